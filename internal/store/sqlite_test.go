package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/msi-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "msi.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testResultSet() *model.ResultSet {
	idukki := model.UnitKey{Region: "Kerala", Name: "Idukki"}
	kollam := model.UnitKey{Region: "Kerala", Name: "Kollam"}
	w5 := model.WeekKey{Year: 2025, Week: 5}
	w6 := model.WeekKey{Year: 2025, Week: 6}

	return &model.ResultSet{
		Aggregates: []model.WeeklyAggregate{
			{Unit: idukki, Week: w5, Enrollment: 5, Demographic: 3, Biometric: 2, Total: 10},
			{Unit: kollam, Week: w5, Enrollment: 8, Total: 8},
		},
		Scores: []model.MSIScore{
			{Unit: idukki, Week: w6, MSI: 0.42, InverseCorrelation: 0.84, SpatialSpread: 1.0, AnomalyTerm: 0.25, RelChange: -0.1, NeighborRelChange: 0.2, Neighbors: 1},
		},
		Waves: []model.WavePattern{
			{
				Origin:     idukki,
				OriginWeek: w5,
				Affected: []model.WaveHit{
					{Unit: idukki, FirstWeek: w5, MSI: 0.42},
					{Unit: kollam, FirstWeek: w6, MSI: 0.35},
				},
				SpanWeeks: 3,
				MeanMSI:   0.385,
				Score:     4.8,
			},
		},
		Hotspots: []model.HotspotScore{
			{Rank: 1, Unit: idukki, Score: 0.9, PeakMSI: 0.42, ActiveWeeks: 2, MeanSpread: 1.0},
			{Rank: 2, Unit: kollam, Score: 0.4, PeakMSI: 0.35, ActiveWeeks: 1, MeanSpread: 0.5},
		},
		Ingest: model.IngestSummary{Files: 1, Parsed: 20},
	}
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "activity.csv", model.IngestSummary{Files: 1, Parsed: 20, Dropped: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusScoring))
	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusComplete))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, "activity.csv", got.Source)
	assert.Equal(t, 20, got.Ingest.Parsed)
	assert.Equal(t, 2, got.Ingest.Dropped)
}

func TestSQLiteStore_FailRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "bad.csv", model.IngestSummary{})
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, run.ID, "aggregate: empty input"))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Contains(t, got.Error, "empty input")
}

func TestSQLiteStore_RunNotFound(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.UpdateRunStatus(ctx, "missing", model.RunStatusComplete)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SaveAndLoadResults(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "activity.csv", model.IngestSummary{})
	require.NoError(t, err)

	rs := testResultSet()
	require.NoError(t, s.SaveResults(ctx, run.ID, rs))

	aggs, err := s.GetAggregates(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, rs.Aggregates, aggs)

	scores, err := s.GetScores(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, rs.Scores, scores)

	waves, err := s.GetWaves(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, rs.Waves, waves)

	hotspots, err := s.GetHotspots(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, rs.Hotspots, hotspots)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a, err := s.CreateRun(ctx, "a.csv", model.IngestSummary{})
	require.NoError(t, err)
	b, err := s.CreateRun(ctx, "b.csv", model.IngestSummary{})
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, b.ID, model.RunStatusComplete))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	complete, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, b.ID, complete[0].ID)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Contains(t, []string{a.ID, b.ID}, latest.ID)
}
