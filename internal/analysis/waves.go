package analysis

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/msi-cli/internal/config"
	"github.com/sells-group/msi-cli/internal/graph"
	"github.com/sells-group/msi-cli/internal/model"
)

// WaveDetector finds connected propagation of strong signals through
// space and time: a strong cell seeds a candidate wave, which grows by
// adding neighbors of already-affected units that cross the strong
// threshold at the same or a later week within the horizon. Each origin
// is processed independently; waves may share units.
type WaveDetector struct {
	graph *graph.Graph
	cfg   config.AnalysisConfig
}

// NewWaveDetector creates a detector over the run's neighbor graph.
func NewWaveDetector(g *graph.Graph, cfg config.AnalysisConfig) *WaveDetector {
	return &WaveDetector{graph: g, cfg: cfg}
}

// strongIndex holds, per unit, the timeline positions where MSI crossed
// the strong threshold.
type strongIndex struct {
	byUnit map[model.UnitKey]map[int]float64
}

func (d *WaveDetector) buildIndex(scores []model.MSIScore, timeline *model.Timeline) *strongIndex {
	idx := &strongIndex{byUnit: make(map[model.UnitKey]map[int]float64)}
	for _, sc := range scores {
		if sc.MSI < d.cfg.StrongThreshold {
			continue
		}
		pos := timeline.Index(sc.Week)
		if pos < 0 {
			continue
		}
		cells, ok := idx.byUnit[sc.Unit]
		if !ok {
			cells = make(map[int]float64)
			idx.byUnit[sc.Unit] = cells
		}
		cells[pos] = sc.MSI
	}
	return idx
}

// earliestAt returns the earliest strong position of unit within [from, to]
// and its MSI.
func (si *strongIndex) earliestAt(unit model.UnitKey, from, to int) (int, float64, bool) {
	cells, ok := si.byUnit[unit]
	if !ok {
		return 0, 0, false
	}
	best, bestMSI, found := 0, 0.0, false
	for pos, msi := range cells {
		if pos < from || pos > to {
			continue
		}
		if !found || pos < best {
			best, bestMSI, found = pos, msi, true
		}
	}
	return best, bestMSI, found
}

// Detect scans the score table for wave patterns. The result is ordered by
// wave score descending, ties broken by origin unit then origin week, so
// repeated runs produce identical output.
func (d *WaveDetector) Detect(scores []model.MSIScore, timeline *model.Timeline) []model.WavePattern {
	index := d.buildIndex(scores, timeline)

	// Candidate origins in stable (unit, week) order.
	var waves []model.WavePattern
	for _, sc := range scores {
		if sc.MSI < d.cfg.StrongThreshold {
			continue
		}
		origin := timeline.Index(sc.Week)
		if origin < 0 {
			continue
		}
		if wave, ok := d.expand(sc.Unit, origin, index, timeline); ok {
			waves = append(waves, wave)
		}
	}

	sort.Slice(waves, func(i, j int) bool {
		if waves[i].Score != waves[j].Score {
			return waves[i].Score > waves[j].Score
		}
		if waves[i].Origin != waves[j].Origin {
			return waves[i].Origin.Less(waves[j].Origin)
		}
		return waves[i].OriginWeek.Before(waves[j].OriginWeek)
	})

	zap.L().Info("analysis: wave detection complete",
		zap.Int("waves", len(waves)),
		zap.Float64("strong_threshold", d.cfg.StrongThreshold),
	)
	return waves
}

// expand grows the affected set outward from the origin by frontier
// expansion. The visited set is keyed by unit, which guarantees
// termination on the cyclic same-region graph.
func (d *WaveDetector) expand(origin model.UnitKey, originPos int, index *strongIndex, timeline *model.Timeline) (model.WavePattern, bool) {
	horizon := originPos + d.cfg.WaveHorizon

	type hit struct {
		pos int
		msi float64
	}
	affected := map[model.UnitKey]hit{}
	originMSI := index.byUnit[origin][originPos]
	affected[origin] = hit{pos: originPos, msi: originMSI}

	frontier := []model.UnitKey{origin}
	for len(frontier) > 0 {
		curr := frontier[0]
		frontier = frontier[1:]
		from := affected[curr].pos

		for _, nb := range d.graph.Neighbors(curr) {
			if _, seen := affected[nb]; seen {
				continue
			}
			// The signal spreads outward: a neighbor joins only if it
			// crosses the threshold at the same or a later week.
			pos, msi, ok := index.earliestAt(nb, from, horizon)
			if !ok {
				continue
			}
			affected[nb] = hit{pos: pos, msi: msi}
			frontier = append(frontier, nb)
		}
	}

	last := originPos
	for _, h := range affected {
		if h.pos > last {
			last = h.pos
		}
	}
	span := last - originPos

	if len(affected) < d.cfg.WaveMinUnits || span < d.cfg.WaveMinSpan {
		return model.WavePattern{}, false
	}

	hits := make([]model.WaveHit, 0, len(affected))
	var msiSum float64
	for unit, h := range affected {
		hits = append(hits, model.WaveHit{Unit: unit, FirstWeek: timeline.At(h.pos), MSI: h.msi})
		msiSum += h.msi
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].FirstWeek != hits[j].FirstWeek {
			return hits[i].FirstWeek.Before(hits[j].FirstWeek)
		}
		return hits[i].Unit.Less(hits[j].Unit)
	})
	meanMSI := msiSum / float64(len(hits))

	return model.WavePattern{
		Origin:     origin,
		OriginWeek: timeline.At(originPos),
		Affected:   hits,
		SpanWeeks:  span,
		MeanMSI:    meanMSI,
		Score:      waveScore(len(hits), span, meanMSI),
	}, true
}

// waveScore grows monotonically with affected-unit count, duration, and
// mean signal strength.
func waveScore(affected, spanWeeks int, meanMSI float64) float64 {
	return float64(affected) * (1 + float64(spanWeeks)/4) * (1 + meanMSI)
}
