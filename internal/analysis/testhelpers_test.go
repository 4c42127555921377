package analysis

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/msi-cli/internal/config"
	"github.com/sells-group/msi-cli/internal/model"
)

func init() {
	// Replace global logger with a no-op to keep test output clean.
	zap.ReplaceGlobals(zap.NewNop())
}

func testCfg() config.AnalysisConfig {
	return config.AnalysisConfig{
		Window:                 4,
		AnomalyWindow:          4,
		AnomalyCap:             3.0,
		ModerateThreshold:      0.15,
		StrongThreshold:        0.3,
		VeryStrongThreshold:    0.5,
		WaveMinUnits:           3,
		WaveMinSpan:            3,
		WaveHorizon:            6,
		HotspotPeakWeight:      0.4,
		HotspotFrequencyWeight: 0.3,
		HotspotSpreadWeight:    0.3,
		MaxConcurrency:         4,
	}
}

func unit(region, name string) model.UnitKey {
	return model.UnitKey{Region: region, Name: name}
}

func week(w int) model.WeekKey {
	return model.WeekKey{Year: 2025, Week: w}
}

// mondayOfWeek returns the Monday of ISO week w of 2025.
func mondayOfWeek(w int) time.Time {
	// 2024-12-30 is the Monday of 2025-W01.
	start := time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)
	return start.AddDate(0, 0, (w-1)*7)
}

// recordsFor expands per-week totals into one enrollment record per week.
func recordsFor(u model.UnitKey, weekTotals map[int]int64) []model.ActivityRecord {
	var records []model.ActivityRecord
	for w, total := range weekTotals {
		records = append(records, model.ActivityRecord{
			Unit:     u,
			Date:     mondayOfWeek(w),
			Category: model.CategoryEnrollment,
			Count:    total,
		})
	}
	return records
}

// weeklySeries builds aggregate rows for a unit from consecutive weekly
// totals starting at week 1.
func weeklySeries(u model.UnitKey, totals ...int64) []model.WeeklyAggregate {
	rows := make([]model.WeeklyAggregate, len(totals))
	for i, total := range totals {
		rows[i] = model.WeeklyAggregate{Unit: u, Week: week(i + 1), Total: total}
	}
	return rows
}
