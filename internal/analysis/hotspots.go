package analysis

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/msi-cli/internal/config"
	"github.com/sells-group/msi-cli/internal/model"
)

// RankHotspots collapses each unit's MSI history into one composite score
// built from its peak MSI, how often it crossed the moderate threshold,
// and the mean spatial spread across those weeks. Each component is
// min-max rescaled to [0,1] across units before weighting so no component
// dominates on units of measurement alone. Units with no defined MSI are
// excluded; ties break on unit identity so the ranking is a total order.
func RankHotspots(scores []model.MSIScore, cfg config.AnalysisConfig) []model.HotspotScore {
	type unitStats struct {
		peak      float64
		active    int
		spreadSum float64
		hasScore  bool
	}

	stats := make(map[model.UnitKey]*unitStats)
	for _, sc := range scores {
		st, ok := stats[sc.Unit]
		if !ok {
			st = &unitStats{}
			stats[sc.Unit] = st
		}
		if !st.hasScore || sc.MSI > st.peak {
			st.peak = sc.MSI
		}
		st.hasScore = true
		if sc.MSI >= cfg.ModerateThreshold {
			st.active++
			st.spreadSum += sc.SpatialSpread
		}
	}
	if len(stats) == 0 {
		return nil
	}

	units := make([]model.UnitKey, 0, len(stats))
	for u := range stats {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Less(units[j]) })

	peaks := make([]float64, len(units))
	freqs := make([]float64, len(units))
	spreads := make([]float64, len(units))
	for i, u := range units {
		st := stats[u]
		peaks[i] = st.peak
		freqs[i] = float64(st.active)
		if st.active > 0 {
			spreads[i] = st.spreadSum / float64(st.active)
		}
	}

	peakScaled := rescale(peaks)
	freqScaled := rescale(freqs)
	spreadScaled := rescale(spreads)

	wSum := cfg.HotspotPeakWeight + cfg.HotspotFrequencyWeight + cfg.HotspotSpreadWeight
	hotspots := make([]model.HotspotScore, len(units))
	for i, u := range units {
		st := stats[u]
		score := (cfg.HotspotPeakWeight*peakScaled[i] +
			cfg.HotspotFrequencyWeight*freqScaled[i] +
			cfg.HotspotSpreadWeight*spreadScaled[i]) / wSum
		hotspots[i] = model.HotspotScore{
			Unit:        u,
			Score:       score,
			PeakMSI:     st.peak,
			ActiveWeeks: st.active,
			MeanSpread:  spreads[i],
		}
	}

	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Score != hotspots[j].Score {
			return hotspots[i].Score > hotspots[j].Score
		}
		return hotspots[i].Unit.Less(hotspots[j].Unit)
	})
	for i := range hotspots {
		hotspots[i].Rank = i + 1
	}

	zap.L().Info("analysis: hotspot ranking complete", zap.Int("units", len(hotspots)))
	return hotspots
}

// rescale maps xs onto [0,1] by min-max. A constant series rescales to all
// zeros: with no variation the component carries no ranking information.
func rescale(xs []float64) []float64 {
	if len(xs) == 0 {
		return nil
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	out := make([]float64, len(xs))
	if hi == lo {
		return out
	}
	for i, x := range xs {
		out[i] = (x - lo) / (hi - lo)
	}
	return out
}
