package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/msi-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "activity.csv", "queued", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "activity.csv", model.IngestSummary{Files: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("scoring", pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing-run", model.RunStatusScoring)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, source, status, ingest, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "source", "status", "ingest", "error", "created_at", "updated_at"}).
			AddRow("run-1", "activity.csv", model.RunStatusComplete, []byte(`{"parsed":20}`), "", now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 20, run.Ingest.Parsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, source, status, ingest, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("missing-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "missing-run")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResults_CopiesBulkTables(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rs := testResultSet()

	mock.ExpectCopyFrom(pgx.Identifier{"weekly_aggregates"},
		[]string{"run_id", "region", "district", "year", "week", "enrollment", "demographic", "biometric", "total"}).
		WillReturnResult(int64(len(rs.Aggregates)))
	mock.ExpectCopyFrom(pgx.Identifier{"msi_scores"},
		[]string{"run_id", "region", "district", "year", "week", "msi", "inverse_correlation", "spatial_spread", "anomaly_term", "rel_change", "neighbor_rel_change", "neighbors"}).
		WillReturnResult(int64(len(rs.Scores)))
	mock.ExpectExec(`INSERT INTO wave_patterns`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO hotspot_scores`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO hotspot_scores`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveResults(context.Background(), "run-1", rs)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetHotspots(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT rank, region, district, score, peak_msi, active_weeks, mean_spread`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"rank", "region", "district", "score", "peak_msi", "active_weeks", "mean_spread"}).
			AddRow(1, "Kerala", "Idukki", 0.9, 0.42, 2, 1.0).
			AddRow(2, "Kerala", "Kollam", 0.4, 0.35, 1, 0.5))

	hotspots, err := s.GetHotspots(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, hotspots, 2)
	assert.Equal(t, model.UnitKey{Region: "Kerala", Name: "Idukki"}, hotspots[0].Unit)
	assert.Equal(t, 1, hotspots[0].Rank)
	assert.NoError(t, mock.ExpectationsWereMet())
}
