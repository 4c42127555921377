package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekOf_ISOWeekBoundaries(t *testing.T) {
	// 2024-12-30 (Monday) belongs to ISO week 1 of 2025.
	w := WeekOf(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, WeekKey{Year: 2025, Week: 1}, w)
	assert.Equal(t, "2025-W01", w.String())

	// 2021-01-01 (Friday) belongs to ISO week 53 of 2020.
	w = WeekOf(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, WeekKey{Year: 2020, Week: 53}, w)
}

func TestWeekKey_Before(t *testing.T) {
	assert.True(t, WeekKey{2024, 52}.Before(WeekKey{2025, 1}))
	assert.True(t, WeekKey{2025, 1}.Before(WeekKey{2025, 2}))
	assert.False(t, WeekKey{2025, 2}.Before(WeekKey{2025, 2}))
}

func TestTimeline_SortsAndDeduplicates(t *testing.T) {
	tl := NewTimeline([]WeekKey{
		{2025, 3}, {2025, 1}, {2025, 3}, {2024, 52}, {2025, 2},
	})

	assert.Equal(t, 4, tl.Len())
	assert.Equal(t, WeekKey{2024, 52}, tl.At(0))
	assert.Equal(t, WeekKey{2025, 3}, tl.At(3))
	assert.Equal(t, 2, tl.Index(WeekKey{2025, 2}))
	assert.Equal(t, -1, tl.Index(WeekKey{2025, 40}))
}
