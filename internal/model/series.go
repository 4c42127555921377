package model

import "encoding/json"

// OptFloat is an optional float64. Undefined values stay undefined at the
// type level instead of propagating NaN or ±Inf through the pipeline; the
// zero OptFloat is undefined.
type OptFloat struct {
	V       float64
	Defined bool
}

// Def returns a defined OptFloat.
func Def(v float64) OptFloat {
	return OptFloat{V: v, Defined: true}
}

// Undef returns an undefined OptFloat.
func Undef() OptFloat {
	return OptFloat{}
}

// MarshalJSON renders undefined values as null so absent cells stay
// visibly absent in the serve API.
func (o OptFloat) MarshalJSON() ([]byte, error) {
	if !o.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(o.V)
}

// UnmarshalJSON accepts null as undefined.
func (o *OptFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OptFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Def(v)
	return nil
}

// ChangePoint is one week of a unit's derived series. Observed is false
// when the unit has no aggregate for the week; Rel and Anomaly carry their
// own definedness per the zero-division and short-history policies.
type ChangePoint struct {
	Week     WeekKey  `json:"week"`
	Observed bool     `json:"observed"`
	Value    int64    `json:"value"`
	Rel      OptFloat `json:"rel"`     // week-over-week relative change
	Anomaly  OptFloat `json:"anomaly"` // rolling |z| magnitude
}

// ChangeSeries is a unit's ordered-by-week derived series over the global
// timeline, gaps explicit.
type ChangeSeries struct {
	Unit   UnitKey       `json:"unit"`
	Points []ChangePoint `json:"points"`
}

// RelAt returns the relative change at timeline position i.
func (s *ChangeSeries) RelAt(i int) OptFloat {
	if i < 0 || i >= len(s.Points) {
		return Undef()
	}
	return s.Points[i].Rel
}

// AnomalyAt returns the rolling anomaly magnitude at timeline position i.
func (s *ChangeSeries) AnomalyAt(i int) OptFloat {
	if i < 0 || i >= len(s.Points) {
		return Undef()
	}
	return s.Points[i].Anomaly
}
