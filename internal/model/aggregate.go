package model

import "sort"

// WeeklyAggregate is the summed activity for one (unit, week) cell. The
// per-category columns are kept for the dashboard contract; Total is their
// sum and is the series the signal engine consumes.
type WeeklyAggregate struct {
	Unit        UnitKey `json:"unit"`
	Week        WeekKey `json:"week"`
	Enrollment  int64   `json:"enrollment"`
	Demographic int64   `json:"demographic"`
	Biometric   int64   `json:"biometric"`
	Total       int64   `json:"total"`
}

// AggregateTable is the unit × week activity matrix. Missing cells mean
// "no data", which the engine treats differently from zero activity.
type AggregateTable struct {
	cells    map[UnitKey]map[WeekKey]*WeeklyAggregate
	timeline *Timeline
	units    []UnitKey
}

// NewAggregateTable builds a table from aggregate rows. Later rows for the
// same (unit, week) key replace earlier ones; callers are expected to have
// already summed per-key.
func NewAggregateTable(rows []WeeklyAggregate) *AggregateTable {
	cells := make(map[UnitKey]map[WeekKey]*WeeklyAggregate)
	var weeks []WeekKey
	for i := range rows {
		row := rows[i]
		byWeek, ok := cells[row.Unit]
		if !ok {
			byWeek = make(map[WeekKey]*WeeklyAggregate)
			cells[row.Unit] = byWeek
		}
		byWeek[row.Week] = &row
		weeks = append(weeks, row.Week)
	}

	units := make([]UnitKey, 0, len(cells))
	for u := range cells {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Less(units[j]) })

	return &AggregateTable{
		cells:    cells,
		timeline: NewTimeline(weeks),
		units:    units,
	}
}

// Units returns all units with at least one observation, in stable order.
func (t *AggregateTable) Units() []UnitKey {
	return t.units
}

// Timeline returns the distinct observed weeks across all units.
func (t *AggregateTable) Timeline() *Timeline {
	return t.timeline
}

// Cell returns the aggregate for (unit, week), or false when the cell is
// absent. Absence is not zero.
func (t *AggregateTable) Cell(unit UnitKey, week WeekKey) (WeeklyAggregate, bool) {
	byWeek, ok := t.cells[unit]
	if !ok {
		return WeeklyAggregate{}, false
	}
	agg, ok := byWeek[week]
	if !ok {
		return WeeklyAggregate{}, false
	}
	return *agg, true
}

// Total returns the total activity for (unit, week), or false when absent.
func (t *AggregateTable) Total(unit UnitKey, week WeekKey) (int64, bool) {
	agg, ok := t.Cell(unit, week)
	if !ok {
		return 0, false
	}
	return agg.Total, true
}

// Rows flattens the table into (unit, week)-ordered rows, the stable shape
// handed to the store and export layers.
func (t *AggregateTable) Rows() []WeeklyAggregate {
	var rows []WeeklyAggregate
	for _, u := range t.units {
		for _, w := range t.timeline.Weeks() {
			if agg, ok := t.Cell(u, w); ok {
				rows = append(rows, agg)
			}
		}
	}
	return rows
}

// Len returns the number of populated cells.
func (t *AggregateTable) Len() int {
	n := 0
	for _, byWeek := range t.cells {
		n += len(byWeek)
	}
	return n
}
