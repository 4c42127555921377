package analysis

import (
	"math"

	"github.com/sells-group/msi-cli/internal/model"
)

// BuildChangeSeries derives the per-unit change series over the global
// timeline. Policies:
//
//   - Relative change at week t is undefined when week t-1 is absent or has
//     zero activity; it is never coerced to ±Inf or NaN.
//   - The rolling anomaly magnitude |v_t - mean| / std uses the trailing
//     anomalyWindow weeks strictly before t, and is undefined until all of
//     them are observed (strict policy, no reduced-confidence values).
//   - A zero rolling std (perfectly flat recent history) defines the
//     magnitude as zero rather than undefined, so flat series never read
//     as infinitely anomalous.
func BuildChangeSeries(table *model.AggregateTable, anomalyWindow int) map[model.UnitKey]*model.ChangeSeries {
	timeline := table.Timeline()
	weeks := timeline.Weeks()

	series := make(map[model.UnitKey]*model.ChangeSeries, len(table.Units()))
	for _, unit := range table.Units() {
		points := make([]model.ChangePoint, len(weeks))
		for i, week := range weeks {
			value, observed := table.Total(unit, week)
			points[i] = model.ChangePoint{
				Week:     week,
				Observed: observed,
				Value:    value,
				Rel:      relChange(table, unit, i, weeks),
				Anomaly:  rollingAnomaly(table, unit, i, weeks, anomalyWindow),
			}
		}
		series[unit] = &model.ChangeSeries{Unit: unit, Points: points}
	}
	return series
}

func relChange(table *model.AggregateTable, unit model.UnitKey, i int, weeks []model.WeekKey) model.OptFloat {
	if i == 0 {
		return model.Undef()
	}
	curr, ok := table.Total(unit, weeks[i])
	if !ok {
		return model.Undef()
	}
	prev, ok := table.Total(unit, weeks[i-1])
	if !ok || prev == 0 {
		return model.Undef()
	}
	return model.Def(float64(curr-prev) / float64(prev))
}

func rollingAnomaly(table *model.AggregateTable, unit model.UnitKey, i int, weeks []model.WeekKey, window int) model.OptFloat {
	if i < window {
		return model.Undef()
	}
	curr, ok := table.Total(unit, weeks[i])
	if !ok {
		return model.Undef()
	}

	trailing := make([]float64, 0, window)
	for j := i - window; j < i; j++ {
		v, ok := table.Total(unit, weeks[j])
		if !ok {
			return model.Undef()
		}
		trailing = append(trailing, float64(v))
	}

	m := mean(trailing)
	sd := stddev(trailing, m)
	if sd == 0 {
		return model.Def(0)
	}
	return model.Def(math.Abs(float64(curr)-m) / sd)
}
