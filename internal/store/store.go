// Package store persists analysis runs and their result tables behind a
// driver-agnostic interface with SQLite and Postgres implementations.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/msi-cli/internal/config"
	"github.com/sells-group/msi-cli/internal/model"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the signal engine. It also
// satisfies the pipeline's run tracker.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source string, ingest model.IngestSummary) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FailRun(ctx context.Context, runID string, cause string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	LatestRun(ctx context.Context) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Result tables
	SaveResults(ctx context.Context, runID string, rs *model.ResultSet) error
	GetAggregates(ctx context.Context, runID string) ([]model.WeeklyAggregate, error)
	GetScores(ctx context.Context, runID string) ([]model.MSIScore, error)
	GetWaves(ctx context.Context, runID string) ([]model.WavePattern, error)
	GetHotspots(ctx context.Context, runID string) ([]model.HotspotScore, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Driver and runs migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, cfg.Pool)
	case "sqlite":
		s, err = NewSQLite(cfg.Path)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
