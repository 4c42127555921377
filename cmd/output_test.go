package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/msi-cli/internal/model"
)

func TestFormatHotspots(t *testing.T) {
	var sb strings.Builder
	formatHotspots(&sb, []model.HotspotScore{
		{Rank: 1, Unit: model.UnitKey{Region: "Kerala", Name: "Idukki"}, Score: 0.912, PeakMSI: 0.42, ActiveWeeks: 3, MeanSpread: 0.75},
	})

	out := sb.String()
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "Idukki")
	assert.Contains(t, out, "0.912")
}

func TestFormatWaves(t *testing.T) {
	var sb strings.Builder
	formatWaves(&sb, []model.WavePattern{
		{
			Origin:     model.UnitKey{Region: "Kerala", Name: "Idukki"},
			OriginWeek: model.WeekKey{Year: 2025, Week: 5},
			Affected:   []model.WaveHit{{}, {}, {}},
			SpanWeeks:  3,
			MeanMSI:    0.385,
			Score:      9.68,
		},
	})

	out := sb.String()
	assert.Contains(t, out, "Kerala|Idukki")
	assert.Contains(t, out, "2025-W05")
	assert.Contains(t, out, "9.68")
}

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	var sb strings.Builder
	formatRunsList(&sb, []model.Run{
		{
			ID:        "0123456789abcdef",
			Source:    "a-very-long-source-file-name-that-gets-cut.csv",
			Status:    model.RunStatusComplete,
			Ingest:    model.IngestSummary{Parsed: 100, Dropped: 3},
			CreatedAt: now,
			UpdatedAt: now.Add(42 * time.Second),
		},
	})

	out := sb.String()
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef", "IDs are truncated for display")
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "42s")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("123456789"))
	assert.Equal(t, "short", truncateID("short"))
}
