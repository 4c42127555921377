package model

import (
	"fmt"
	"sort"
	"time"
)

// WeekKey identifies an ISO calendar week. All three source categories are
// bucketed on the same week key regardless of category-specific date ranges.
type WeekKey struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

// WeekOf returns the ISO week containing t.
func WeekOf(t time.Time) WeekKey {
	y, w := t.ISOWeek()
	return WeekKey{Year: y, Week: w}
}

// String renders the key as "2025-W07". Lexical order equals
// chronological order.
func (w WeekKey) String() string {
	return fmt.Sprintf("%04d-W%02d", w.Year, w.Week)
}

// Before reports whether w precedes other.
func (w WeekKey) Before(other WeekKey) bool {
	if w.Year != other.Year {
		return w.Year < other.Year
	}
	return w.Week < other.Week
}

// Timeline is the sorted set of distinct weeks observed in a dataset.
// Window and span arithmetic is done over timeline positions rather than
// calendar math, so sparse datasets stay well defined.
type Timeline struct {
	weeks []WeekKey
	index map[WeekKey]int
}

// NewTimeline builds a timeline from a set of weeks. Duplicates are
// collapsed; input order is irrelevant.
func NewTimeline(weeks []WeekKey) *Timeline {
	seen := make(map[WeekKey]struct{}, len(weeks))
	uniq := make([]WeekKey, 0, len(weeks))
	for _, w := range weeks {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		uniq = append(uniq, w)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].Before(uniq[j]) })

	index := make(map[WeekKey]int, len(uniq))
	for i, w := range uniq {
		index[w] = i
	}
	return &Timeline{weeks: uniq, index: index}
}

// Len returns the number of distinct weeks.
func (tl *Timeline) Len() int {
	return len(tl.weeks)
}

// Weeks returns the weeks in chronological order. Callers must not mutate
// the returned slice.
func (tl *Timeline) Weeks() []WeekKey {
	return tl.weeks
}

// At returns the week at position i.
func (tl *Timeline) At(i int) WeekKey {
	return tl.weeks[i]
}

// Index returns the position of w, or -1 if w was never observed.
func (tl *Timeline) Index(w WeekKey) int {
	i, ok := tl.index[w]
	if !ok {
		return -1
	}
	return i
}
