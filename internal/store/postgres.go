package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/msi-cli/internal/config"
	"github.com/sells-group/msi-cli/internal/db"
	"github.com/sells-group/msi-cli/internal/model"
	"github.com/sells-group/msi-cli/internal/retry"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, source, status, ingest, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"fail_run":          `UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT id, source, status, ingest, error, created_at, updated_at FROM runs WHERE id = $1`,
	"latest_run":        `SELECT id, source, status, ingest, error, created_at, updated_at FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg config.PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg.MaxConns > 0 {
		maxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		minConns = poolCfg.MinConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := retry.Do(ctx, retry.Default(), "postgres ping", pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	ingest     JSONB NOT NULL DEFAULT '{}',
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS weekly_aggregates (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	region      TEXT NOT NULL,
	district    TEXT NOT NULL,
	year        INTEGER NOT NULL,
	week        INTEGER NOT NULL,
	enrollment  BIGINT NOT NULL,
	demographic BIGINT NOT NULL,
	biometric   BIGINT NOT NULL,
	total       BIGINT NOT NULL,
	PRIMARY KEY (run_id, region, district, year, week)
);

CREATE TABLE IF NOT EXISTS msi_scores (
	run_id              TEXT NOT NULL REFERENCES runs(id),
	region              TEXT NOT NULL,
	district            TEXT NOT NULL,
	year                INTEGER NOT NULL,
	week                INTEGER NOT NULL,
	msi                 DOUBLE PRECISION NOT NULL,
	inverse_correlation DOUBLE PRECISION NOT NULL,
	spatial_spread      DOUBLE PRECISION NOT NULL,
	anomaly_term        DOUBLE PRECISION NOT NULL,
	rel_change          DOUBLE PRECISION NOT NULL,
	neighbor_rel_change DOUBLE PRECISION NOT NULL,
	neighbors           INTEGER NOT NULL,
	PRIMARY KEY (run_id, region, district, year, week)
);

CREATE TABLE IF NOT EXISTS wave_patterns (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	seq             INTEGER NOT NULL,
	origin_region   TEXT NOT NULL,
	origin_district TEXT NOT NULL,
	origin_year     INTEGER NOT NULL,
	origin_week     INTEGER NOT NULL,
	span_weeks      INTEGER NOT NULL,
	mean_msi        DOUBLE PRECISION NOT NULL,
	score           DOUBLE PRECISION NOT NULL,
	affected        JSONB NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS hotspot_scores (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	rank         INTEGER NOT NULL,
	region       TEXT NOT NULL,
	district     TEXT NOT NULL,
	score        DOUBLE PRECISION NOT NULL,
	peak_msi     DOUBLE PRECISION NOT NULL,
	active_weeks INTEGER NOT NULL,
	mean_spread  DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_weekly_aggregates_run ON weekly_aggregates(run_id);
CREATE INDEX IF NOT EXISTS idx_msi_scores_run ON msi_scores(run_id);
CREATE INDEX IF NOT EXISTS idx_msi_scores_msi ON msi_scores(run_id, msi DESC);
CREATE INDEX IF NOT EXISTS idx_wave_patterns_run ON wave_patterns(run_id);
CREATE INDEX IF NOT EXISTS idx_hotspot_scores_run ON hotspot_scores(run_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, source string, ingest model.IngestSummary) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	ingestJSON, err := json.Marshal(ingest)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal ingest summary")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, status, ingest, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, source, string(model.RunStatusQueued), ingestJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Source:    source,
		Status:    model.RunStatusQueued,
		Ingest:    ingest,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), cause, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	return s.queryRun(ctx,
		`SELECT id, source, status, ingest, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
}

func (s *PostgresStore) LatestRun(ctx context.Context) (*model.Run, error) {
	return s.queryRun(ctx,
		`SELECT id, source, status, ingest, error, created_at, updated_at FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`,
	)
}

func (s *PostgresStore) queryRun(ctx context.Context, query string, args ...any) (*model.Run, error) {
	var r model.Run
	var ingestJSON []byte

	err := s.pool.QueryRow(ctx, query, args...).
		Scan(&r.ID, &r.Source, &r.Status, &ingestJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(ErrNotFound, "run")
		}
		return nil, eris.Wrap(err, "postgres: get run")
	}

	if err := json.Unmarshal(ingestJSON, &r.Ingest); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal ingest summary")
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, ingest, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var ingestJSON []byte
		if err := rows.Scan(&r.ID, &r.Source, &r.Status, &ingestJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(ingestJSON, &r.Ingest); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal ingest summary")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveResults bulk-loads the two large tables over the COPY protocol and
// inserts the small ones row by row.
func (s *PostgresStore) SaveResults(ctx context.Context, runID string, rs *model.ResultSet) error {
	aggRows := make([][]any, len(rs.Aggregates))
	for i, agg := range rs.Aggregates {
		aggRows[i] = []any{
			runID, agg.Unit.Region, agg.Unit.Name, agg.Week.Year, agg.Week.Week,
			agg.Enrollment, agg.Demographic, agg.Biometric, agg.Total,
		}
	}
	if _, err := db.CopyFrom(ctx, s.pool, "weekly_aggregates",
		[]string{"run_id", "region", "district", "year", "week", "enrollment", "demographic", "biometric", "total"},
		aggRows,
	); err != nil {
		return err
	}

	scoreRows := make([][]any, len(rs.Scores))
	for i, sc := range rs.Scores {
		scoreRows[i] = []any{
			runID, sc.Unit.Region, sc.Unit.Name, sc.Week.Year, sc.Week.Week,
			sc.MSI, sc.InverseCorrelation, sc.SpatialSpread, sc.AnomalyTerm,
			sc.RelChange, sc.NeighborRelChange, sc.Neighbors,
		}
	}
	if _, err := db.CopyFrom(ctx, s.pool, "msi_scores",
		[]string{"run_id", "region", "district", "year", "week", "msi", "inverse_correlation", "spatial_spread", "anomaly_term", "rel_change", "neighbor_rel_change", "neighbors"},
		scoreRows,
	); err != nil {
		return err
	}

	for i, w := range rs.Waves {
		affectedJSON, err := json.Marshal(w.Affected)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal wave hits")
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO wave_patterns (run_id, seq, origin_region, origin_district, origin_year, origin_week, span_weeks, mean_msi, score, affected)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			runID, i, w.Origin.Region, w.Origin.Name, w.OriginWeek.Year, w.OriginWeek.Week,
			w.SpanWeeks, w.MeanMSI, w.Score, affectedJSON,
		); err != nil {
			return eris.Wrap(err, "postgres: insert wave")
		}
	}

	for _, h := range rs.Hotspots {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO hotspot_scores (run_id, rank, region, district, score, peak_msi, active_weeks, mean_spread)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			runID, h.Rank, h.Unit.Region, h.Unit.Name, h.Score, h.PeakMSI, h.ActiveWeeks, h.MeanSpread,
		); err != nil {
			return eris.Wrap(err, "postgres: insert hotspot")
		}
	}

	return nil
}

func (s *PostgresStore) GetAggregates(ctx context.Context, runID string) ([]model.WeeklyAggregate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT region, district, year, week, enrollment, demographic, biometric, total
		 FROM weekly_aggregates WHERE run_id = $1
		 ORDER BY region, district, year, week`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get aggregates")
	}
	defer rows.Close()

	var aggs []model.WeeklyAggregate
	for rows.Next() {
		var a model.WeeklyAggregate
		if err := rows.Scan(&a.Unit.Region, &a.Unit.Name, &a.Week.Year, &a.Week.Week,
			&a.Enrollment, &a.Demographic, &a.Biometric, &a.Total); err != nil {
			return nil, eris.Wrap(err, "postgres: scan aggregate")
		}
		aggs = append(aggs, a)
	}
	return aggs, eris.Wrap(rows.Err(), "postgres: get aggregates iterate")
}

func (s *PostgresStore) GetScores(ctx context.Context, runID string) ([]model.MSIScore, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT region, district, year, week, msi, inverse_correlation, spatial_spread, anomaly_term, rel_change, neighbor_rel_change, neighbors
		 FROM msi_scores WHERE run_id = $1
		 ORDER BY region, district, year, week`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get scores")
	}
	defer rows.Close()

	var scores []model.MSIScore
	for rows.Next() {
		var sc model.MSIScore
		if err := rows.Scan(&sc.Unit.Region, &sc.Unit.Name, &sc.Week.Year, &sc.Week.Week,
			&sc.MSI, &sc.InverseCorrelation, &sc.SpatialSpread, &sc.AnomalyTerm,
			&sc.RelChange, &sc.NeighborRelChange, &sc.Neighbors); err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		scores = append(scores, sc)
	}
	return scores, eris.Wrap(rows.Err(), "postgres: get scores iterate")
}

func (s *PostgresStore) GetWaves(ctx context.Context, runID string) ([]model.WavePattern, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT origin_region, origin_district, origin_year, origin_week, span_weeks, mean_msi, score, affected
		 FROM wave_patterns WHERE run_id = $1
		 ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get waves")
	}
	defer rows.Close()

	var waves []model.WavePattern
	for rows.Next() {
		var w model.WavePattern
		var affectedJSON []byte
		if err := rows.Scan(&w.Origin.Region, &w.Origin.Name, &w.OriginWeek.Year, &w.OriginWeek.Week,
			&w.SpanWeeks, &w.MeanMSI, &w.Score, &affectedJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan wave")
		}
		if err := json.Unmarshal(affectedJSON, &w.Affected); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal wave hits")
		}
		waves = append(waves, w)
	}
	return waves, eris.Wrap(rows.Err(), "postgres: get waves iterate")
}

func (s *PostgresStore) GetHotspots(ctx context.Context, runID string) ([]model.HotspotScore, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT rank, region, district, score, peak_msi, active_weeks, mean_spread
		 FROM hotspot_scores WHERE run_id = $1
		 ORDER BY rank`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get hotspots")
	}
	defer rows.Close()

	var hotspots []model.HotspotScore
	for rows.Next() {
		var h model.HotspotScore
		if err := rows.Scan(&h.Rank, &h.Unit.Region, &h.Unit.Name,
			&h.Score, &h.PeakMSI, &h.ActiveWeeks, &h.MeanSpread); err != nil {
			return nil, eris.Wrap(err, "postgres: scan hotspot")
		}
		hotspots = append(hotspots, h)
	}
	return hotspots, eris.Wrap(rows.Err(), "postgres: get hotspots iterate")
}
