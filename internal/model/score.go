package model

// MSIScore is one defined Mobility Signal Index measurement. Cells where
// any prerequisite was undefined (no neighbors, short history, zero
// variance) simply do not appear in the score table.
type MSIScore struct {
	Unit               UnitKey `json:"unit"`
	Week               WeekKey `json:"week"`
	MSI                float64 `json:"msi"`
	InverseCorrelation float64 `json:"inverse_correlation"`
	SpatialSpread      float64 `json:"spatial_spread"`
	AnomalyTerm        float64 `json:"anomaly_term"` // min(|z|, 3)/3
	RelChange          float64 `json:"rel_change"`
	NeighborRelChange  float64 `json:"neighbor_rel_change"`
	Neighbors          int     `json:"neighbors"`
}

// WaveHit is one unit swept up by a wave, with the week it first crossed
// the strong threshold inside the wave window.
type WaveHit struct {
	Unit      UnitKey `json:"unit"`
	FirstWeek WeekKey `json:"first_week"`
	MSI       float64 `json:"msi"`
}

// WavePattern is a geographically and temporally connected cluster of
// strong signals spreading outward from an origin unit.
type WavePattern struct {
	Origin     UnitKey   `json:"origin"`
	OriginWeek WeekKey   `json:"origin_week"`
	Affected   []WaveHit `json:"affected"` // ordered by first week, then unit
	SpanWeeks  int       `json:"span_weeks"`
	MeanMSI    float64   `json:"mean_msi"`
	Score      float64   `json:"score"`
}

// HotspotScore is a unit's composite ranking of its propensity to show
// strong, frequent, widely-shared divergence signals.
type HotspotScore struct {
	Rank        int     `json:"rank"`
	Unit        UnitKey `json:"unit"`
	Score       float64 `json:"score"`
	PeakMSI     float64 `json:"peak_msi"`
	ActiveWeeks int     `json:"active_weeks"` // weeks at or above the moderate threshold
	MeanSpread  float64 `json:"mean_spread"`
}

// ResultSet bundles the four output tables of an analysis run. These are
// the only contracts the export and serve collaborators may depend on.
type ResultSet struct {
	Aggregates []WeeklyAggregate `json:"aggregates"`
	Scores     []MSIScore        `json:"scores"`
	Waves      []WavePattern     `json:"waves"`
	Hotspots   []HotspotScore    `json:"hotspots"`
	Ingest     IngestSummary     `json:"ingest"`
}
