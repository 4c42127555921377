package analysis

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/msi-cli/internal/config"
	"github.com/sells-group/msi-cli/internal/graph"
	"github.com/sells-group/msi-cli/internal/model"
)

// RunTracker is the slice of the store the pipeline needs for run
// bookkeeping. A nil tracker disables persistence of run state.
type RunTracker interface {
	CreateRun(ctx context.Context, source string, ingest model.IngestSummary) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FailRun(ctx context.Context, runID string, cause string) error
}

// Pipeline orchestrates the full analysis: aggregation, neighbor graph,
// change series, MSI scoring, wave detection, and hotspot ranking. Each
// stage consumes the complete output of its predecessor; the whole run is
// a pure function of the input snapshot.
type Pipeline struct {
	cfg     config.AnalysisConfig
	tracker RunTracker
}

// NewPipeline creates a Pipeline. tracker may be nil.
func NewPipeline(cfg config.AnalysisConfig, tracker RunTracker) *Pipeline {
	return &Pipeline{cfg: cfg, tracker: tracker}
}

// Result couples a ResultSet with its run record.
type Result struct {
	Run       *model.Run
	ResultSet *model.ResultSet
}

// Run executes the pipeline over a fixed record snapshot. The only fatal
// analysis condition is an empty aggregate table; every per-unit gap is
// recoverable and shows up as absence in the output tables.
func (p *Pipeline) Run(ctx context.Context, source string, records []model.ActivityRecord, ingest model.IngestSummary) (*Result, error) {
	log := zap.L().With(zap.String("source", source))
	log.Info("pipeline: starting analysis run", zap.Int("records", len(records)))

	var run *model.Run
	if p.tracker != nil {
		var err error
		run, err = p.tracker.CreateRun(ctx, source, ingest)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
	}

	setStatus := func(status model.RunStatus) {
		if p.tracker == nil {
			return
		}
		if err := p.tracker.UpdateRunStatus(ctx, run.ID, status); err != nil {
			log.Warn("pipeline: update run status failed",
				zap.String("status", string(status)),
				zap.Error(err),
			)
		}
	}
	fail := func(stage string, err error) error {
		wrapped := eris.Wrapf(err, "pipeline: %s", stage)
		if p.tracker != nil {
			if ferr := p.tracker.FailRun(ctx, run.ID, wrapped.Error()); ferr != nil {
				log.Warn("pipeline: mark run failed", zap.Error(ferr))
			}
		}
		return wrapped
	}

	setStatus(model.RunStatusAggregating)
	table, err := Aggregate(records)
	if err != nil {
		return nil, fail("aggregate", err)
	}

	g := graph.Build(table.Units())
	series := BuildChangeSeries(table, p.cfg.AnomalyWindow)

	setStatus(model.RunStatusScoring)
	scores, err := NewScorer(g, p.cfg).Score(ctx, series, table.Timeline())
	if err != nil {
		return nil, fail("score", err)
	}

	setStatus(model.RunStatusDetecting)
	waves := NewWaveDetector(g, p.cfg).Detect(scores, table.Timeline())

	setStatus(model.RunStatusRanking)
	hotspots := RankHotspots(scores, p.cfg)

	setStatus(model.RunStatusComplete)
	log.Info("pipeline: analysis run complete",
		zap.Int("aggregates", table.Len()),
		zap.Int("scores", len(scores)),
		zap.Int("waves", len(waves)),
		zap.Int("hotspots", len(hotspots)),
	)

	return &Result{
		Run: run,
		ResultSet: &model.ResultSet{
			Aggregates: table.Rows(),
			Scores:     scores,
			Waves:      waves,
			Hotspots:   hotspots,
			Ingest:     ingest,
		},
	}, nil
}
