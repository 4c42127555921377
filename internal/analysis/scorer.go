package analysis

import (
	"context"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/msi-cli/internal/config"
	"github.com/sells-group/msi-cli/internal/graph"
	"github.com/sells-group/msi-cli/internal/model"
)

// Scorer computes the Mobility Signal Index for every eligible
// (unit, week) cell:
//
//	MSI = inverse_correlation × (1 + spatial_spread) × anomaly_term
//
// A cell is scored only when the unit has at least one neighbor, both the
// unit's and the neighbor-averaged relative-change series are fully
// defined over the trailing window, and the rolling anomaly is defined.
// Anything else is absence, never zero: zero means "no divergence", which
// is a different statement.
type Scorer struct {
	graph *graph.Graph
	cfg   config.AnalysisConfig
}

// NewScorer creates a Scorer over an immutable neighbor graph.
func NewScorer(g *graph.Graph, cfg config.AnalysisConfig) *Scorer {
	return &Scorer{graph: g, cfg: cfg}
}

// Score computes the full score table. Units are scored in parallel;
// results are merged in (unit, week) order so output is deterministic
// regardless of scheduling.
func (s *Scorer) Score(ctx context.Context, series map[model.UnitKey]*model.ChangeSeries, timeline *model.Timeline) ([]model.MSIScore, error) {
	units := s.graph.Units()
	perUnit := make([][]model.MSIScore, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)

	for i, unit := range units {
		i, unit := i, unit
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perUnit[i] = s.scoreUnit(unit, series, timeline)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var scores []model.MSIScore
	for _, unitScores := range perUnit {
		scores = append(scores, unitScores...)
	}

	zap.L().Info("analysis: scored units",
		zap.Int("units", len(units)),
		zap.Int("scores", len(scores)),
		zap.Int("window", s.cfg.Window),
	)
	return scores, nil
}

// scoreUnit walks one unit's timeline. Isolated units produce no scores at
// all: with no neighbors there is no divergence to measure.
func (s *Scorer) scoreUnit(unit model.UnitKey, series map[model.UnitKey]*model.ChangeSeries, timeline *model.Timeline) []model.MSIScore {
	neighbors := s.graph.Neighbors(unit)
	if len(neighbors) == 0 {
		return nil
	}
	unitSeries, ok := series[unit]
	if !ok {
		return nil
	}

	var scores []model.MSIScore
	for i := s.cfg.Window; i < timeline.Len(); i++ {
		if score, ok := s.scoreCell(unit, unitSeries, neighbors, series, timeline, i); ok {
			scores = append(scores, score)
		}
	}
	return scores
}

func (s *Scorer) scoreCell(unit model.UnitKey, unitSeries *model.ChangeSeries, neighbors []model.UnitKey, series map[model.UnitKey]*model.ChangeSeries, timeline *model.Timeline, i int) (model.MSIScore, bool) {
	window := s.cfg.Window

	// Trailing window of the unit's relative changes; every value must be
	// defined or the cell has insufficient history.
	unitWin := make([]float64, 0, window)
	for j := i - window + 1; j <= i; j++ {
		rel := unitSeries.RelAt(j)
		if !rel.Defined {
			return model.MSIScore{}, false
		}
		unitWin = append(unitWin, rel.V)
	}

	// Neighbor-averaged relative change over the same window. The average
	// at a week is taken over the neighbors defined that week and is
	// itself undefined when no neighbor is.
	neighWin := make([]float64, 0, window)
	for j := i - window + 1; j <= i; j++ {
		avg := neighborAverage(neighbors, series, j)
		if !avg.Defined {
			return model.MSIScore{}, false
		}
		neighWin = append(neighWin, avg.V)
	}

	anomaly := unitSeries.AnomalyAt(i)
	if !anomaly.Defined {
		return model.MSIScore{}, false
	}

	// Zero variance on either side leaves the correlation undefined and
	// the cell absent.
	corr := pearson(unitWin, neighWin)
	if !corr.Defined {
		return model.MSIScore{}, false
	}
	invCorr := -corr.V

	spread := spatialSpread(unitWin[len(unitWin)-1], neighbors, series, i)
	anomalyTerm := math.Min(anomaly.V, s.cfg.AnomalyCap) / s.cfg.AnomalyCap

	return model.MSIScore{
		Unit:               unit,
		Week:               timeline.At(i),
		MSI:                invCorr * (1 + spread) * anomalyTerm,
		InverseCorrelation: invCorr,
		SpatialSpread:      spread,
		AnomalyTerm:        anomalyTerm,
		RelChange:          unitWin[len(unitWin)-1],
		NeighborRelChange:  neighWin[len(neighWin)-1],
		Neighbors:          len(neighbors),
	}, true
}

// neighborAverage is the mean relative change across the neighbors with a
// defined value at timeline position i.
func neighborAverage(neighbors []model.UnitKey, series map[model.UnitKey]*model.ChangeSeries, i int) model.OptFloat {
	var sum float64
	n := 0
	for _, nb := range neighbors {
		nbSeries, ok := series[nb]
		if !ok {
			continue
		}
		rel := nbSeries.RelAt(i)
		if !rel.Defined {
			continue
		}
		sum += rel.V
		n++
	}
	if n == 0 {
		return model.Undef()
	}
	return model.Def(sum / float64(n))
}

// spatialSpread is the fraction of neighbors whose latest relative-change
// sign opposes the unit's. Exactly-zero changes count as neither direction
// and are excluded from both sides; an empty denominator means spread 0.
func spatialSpread(unitRel float64, neighbors []model.UnitKey, series map[model.UnitKey]*model.ChangeSeries, i int) float64 {
	unitSign := sign(unitRel)
	if unitSign == 0 {
		return 0
	}

	opposite, total := 0, 0
	for _, nb := range neighbors {
		nbSeries, ok := series[nb]
		if !ok {
			continue
		}
		rel := nbSeries.RelAt(i)
		if !rel.Defined {
			continue
		}
		nbSign := sign(rel.V)
		if nbSign == 0 {
			continue
		}
		total++
		if nbSign != unitSign {
			opposite++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(opposite) / float64(total)
}
