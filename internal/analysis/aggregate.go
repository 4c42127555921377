// Package analysis implements the Mobility Signal Index engine: weekly
// aggregation, change series derivation, MSI scoring, wave detection, and
// hotspot ranking. Every stage is a pure function of its inputs; a run
// over a fixed snapshot is deterministic.
package analysis

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/msi-cli/internal/model"
)

// ErrEmptyInput is the run's only fatal condition: aggregation produced no
// rows at all. Per-unit gaps are recoverable; a fully empty table is not.
var ErrEmptyInput = eris.New("analysis: aggregation produced no weekly rows")

// Aggregate collapses validated activity records into the unit × week
// activity matrix. Counts are summed per (unit, ISO week) across all three
// categories; the result is independent of record order.
func Aggregate(records []model.ActivityRecord) (*model.AggregateTable, error) {
	type key struct {
		unit model.UnitKey
		week model.WeekKey
	}

	sums := make(map[key]*model.WeeklyAggregate)
	for _, rec := range records {
		k := key{unit: rec.Unit, week: rec.Week()}
		agg, ok := sums[k]
		if !ok {
			agg = &model.WeeklyAggregate{Unit: rec.Unit, Week: k.week}
			sums[k] = agg
		}
		switch rec.Category {
		case model.CategoryEnrollment:
			agg.Enrollment += rec.Count
		case model.CategoryDemographic:
			agg.Demographic += rec.Count
		case model.CategoryBiometric:
			agg.Biometric += rec.Count
		}
		agg.Total += rec.Count
	}

	if len(sums) == 0 {
		return nil, ErrEmptyInput
	}

	rows := make([]model.WeeklyAggregate, 0, len(sums))
	for _, agg := range sums {
		rows = append(rows, *agg)
	}
	table := model.NewAggregateTable(rows)

	zap.L().Info("analysis: aggregated records",
		zap.Int("records", len(records)),
		zap.Int("cells", table.Len()),
		zap.Int("units", len(table.Units())),
		zap.Int("weeks", table.Timeline().Len()),
	)
	return table, nil
}
