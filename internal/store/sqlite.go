package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/msi-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	ingest     TEXT NOT NULL DEFAULT '{}',
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS weekly_aggregates (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	region      TEXT NOT NULL,
	district    TEXT NOT NULL,
	year        INTEGER NOT NULL,
	week        INTEGER NOT NULL,
	enrollment  INTEGER NOT NULL,
	demographic INTEGER NOT NULL,
	biometric   INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	PRIMARY KEY (run_id, region, district, year, week)
);

CREATE TABLE IF NOT EXISTS msi_scores (
	run_id              TEXT NOT NULL REFERENCES runs(id),
	region              TEXT NOT NULL,
	district            TEXT NOT NULL,
	year                INTEGER NOT NULL,
	week                INTEGER NOT NULL,
	msi                 REAL NOT NULL,
	inverse_correlation REAL NOT NULL,
	spatial_spread      REAL NOT NULL,
	anomaly_term        REAL NOT NULL,
	rel_change          REAL NOT NULL,
	neighbor_rel_change REAL NOT NULL,
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
	mean_msi        REAL NOT NULL,
	score           REAL NOT NULL,
	affected        TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS hotspot_scores (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	rank         INTEGER NOT NULL,
	region       TEXT NOT NULL,
	district     TEXT NOT NULL,
	score        REAL NOT NULL,
	peak_msi     REAL NOT NULL,
	active_weeks INTEGER NOT NULL,
	mean_spread  REAL NOT NULL,
	PRIMARY KEY (run_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_weekly_aggregates_run ON weekly_aggregates(run_id);
CREATE INDEX IF NOT EXISTS idx_msi_scores_run ON msi_scores(run_id);
CREATE INDEX IF NOT EXISTS idx_wave_patterns_run ON wave_patterns(run_id);
CREATE INDEX IF NOT EXISTS idx_hotspot_scores_run ON hotspot_scores(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source string, ingest model.IngestSummary) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	ingestJSON, err := json.Marshal(ingest)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal ingest summary")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, ingest, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, source, string(model.RunStatusQueued), string(ingestJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, cause string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), cause, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, ingest, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, ingest, error, created_at, updated_at FROM runs
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, ingest, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveResults(ctx context.Context, runID string, rs *model.ResultSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save results")
	}
	defer tx.Rollback()

	for _, agg := range rs.Aggregates {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO weekly_aggregates (run_id, region, district, year, week, enrollment, demographic, biometric, total)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, agg.Unit.Region, agg.Unit.Name, agg.Week.Year, agg.Week.Week,
			agg.Enrollment, agg.Demographic, agg.Biometric, agg.Total,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert aggregate")
		}
	}

	for _, sc := range rs.Scores {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO msi_scores (run_id, region, district, year, week, msi, inverse_correlation, spatial_spread, anomaly_term, rel_change, neighbor_rel_change, neighbors)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, sc.Unit.Region, sc.Unit.Name, sc.Week.Year, sc.Week.Week,
			sc.MSI, sc.InverseCorrelation, sc.SpatialSpread, sc.AnomalyTerm,
			sc.RelChange, sc.NeighborRelChange, sc.Neighbors,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert score")
		}
	}

	for i, w := range rs.Waves {
		affectedJSON, err := json.Marshal(w.Affected)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal wave hits")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO wave_patterns (run_id, seq, origin_region, origin_district, origin_year, origin_week, span_weeks, mean_msi, score, affected)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, i, w.Origin.Region, w.Origin.Name, w.OriginWeek.Year, w.OriginWeek.Week,
			w.SpanWeeks, w.MeanMSI, w.Score, string(affectedJSON),
		); err != nil {
			return eris.Wrap(err, "sqlite: insert wave")
		}
	}

	for _, h := range rs.Hotspots {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO hotspot_scores (run_id, rank, region, district, score, peak_msi, active_weeks, mean_spread)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, h.Rank, h.Unit.Region, h.Unit.Name, h.Score, h.PeakMSI, h.ActiveWeeks, h.MeanSpread,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert hotspot")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save results")
}

func (s *SQLiteStore) GetAggregates(ctx context.Context, runID string) ([]model.WeeklyAggregate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT region, district, year, week, enrollment, demographic, biometric, total
		 FROM weekly_aggregates WHERE run_id = ?
		 ORDER BY region, district, year, week`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get aggregates")
	}
	defer rows.Close()

	var aggs []model.WeeklyAggregate
	for rows.Next() {
		var a model.WeeklyAggregate
		if err := rows.Scan(&a.Unit.Region, &a.Unit.Name, &a.Week.Year, &a.Week.Week,
			&a.Enrollment, &a.Demographic, &a.Biometric, &a.Total); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan aggregate")
		}
		aggs = append(aggs, a)
	}
	return aggs, eris.Wrap(rows.Err(), "sqlite: get aggregates iterate")
}

func (s *SQLiteStore) GetScores(ctx context.Context, runID string) ([]model.MSIScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT region, district, year, week, msi, inverse_correlation, spatial_spread, anomaly_term, rel_change, neighbor_rel_change, neighbors
		 FROM msi_scores WHERE run_id = ?
		 ORDER BY region, district, year, week`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get scores")
	}
	defer rows.Close()

	var scores []model.MSIScore
	for rows.Next() {
		var sc model.MSIScore
		if err := rows.Scan(&sc.Unit.Region, &sc.Unit.Name, &sc.Week.Year, &sc.Week.Week,
			&sc.MSI, &sc.InverseCorrelation, &sc.SpatialSpread, &sc.AnomalyTerm,
			&sc.RelChange, &sc.NeighborRelChange, &sc.Neighbors); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score")
		}
		scores = append(scores, sc)
	}
	return scores, eris.Wrap(rows.Err(), "sqlite: get scores iterate")
}

func (s *SQLiteStore) GetWaves(ctx context.Context, runID string) ([]model.WavePattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT origin_region, origin_district, origin_year, origin_week, span_weeks, mean_msi, score, affected
		 FROM wave_patterns WHERE run_id = ?
		 ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get waves")
	}
	defer rows.Close()

	var waves []model.WavePattern
	for rows.Next() {
		var w model.WavePattern
		var affectedJSON string
		if err := rows.Scan(&w.Origin.Region, &w.Origin.Name, &w.OriginWeek.Year, &w.OriginWeek.Week,
			&w.SpanWeeks, &w.MeanMSI, &w.Score, &affectedJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan wave")
		}
		if err := json.Unmarshal([]byte(affectedJSON), &w.Affected); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal wave hits")
		}
		waves = append(waves, w)
	}
	return waves, eris.Wrap(rows.Err(), "sqlite: get waves iterate")
}

func (s *SQLiteStore) GetHotspots(ctx context.Context, runID string) ([]model.HotspotScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rank, region, district, score, peak_msi, active_weeks, mean_spread
		 FROM hotspot_scores WHERE run_id = ?
		 ORDER BY rank`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get hotspots")
	}
	defer rows.Close()

	var hotspots []model.HotspotScore
	for rows.Next() {
		var h model.HotspotScore
		if err := rows.Scan(&h.Rank, &h.Unit.Region, &h.Unit.Name,
			&h.Score, &h.PeakMSI, &h.ActiveWeeks, &h.MeanSpread); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan hotspot")
		}
		hotspots = append(hotspots, h)
	}
	return hotspots, eris.Wrap(rows.Err(), "sqlite: get hotspots iterate")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var ingestJSON string

	err := row.Scan(&r.ID, &r.Source, &r.Status, &ingestJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(ingestJSON), &r.Ingest); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal ingest summary")
	}
	return &r, nil
}
