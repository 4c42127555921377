package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// EventCategory classifies an administrative activity record.
type EventCategory string

const (
	CategoryEnrollment  EventCategory = "enrollment"
	CategoryDemographic EventCategory = "demographic"
	CategoryBiometric   EventCategory = "biometric"
)

// ParseCategory maps raw category text to an EventCategory. Both the
// "enrollment" and "enrolment" spellings appear in source exports.
func ParseCategory(s string) (EventCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enrollment", "enrolment":
		return CategoryEnrollment, nil
	case "demographic", "demographic_update", "demo":
		return CategoryDemographic, nil
	case "biometric", "biometric_update", "bio":
		return CategoryBiometric, nil
	default:
		return "", eris.Errorf("model: unknown event category %q", s)
	}
}

// ActivityRecord is one administrative event row after schema validation
// at the ingestion boundary. Records are immutable once parsed.
type ActivityRecord struct {
	Unit      UnitKey       `json:"unit"`
	Pincode   string        `json:"pincode"`
	PinRegion string        `json:"pin_region"` // first 3 digits of the pincode
	Date      time.Time     `json:"date"`
	Category  EventCategory `json:"category"`
	Count     int64         `json:"count"`
}

// Week returns the ISO week bucket for the record.
func (r ActivityRecord) Week() WeekKey {
	return WeekOf(r.Date)
}

// IngestSummary reports what happened at the ingestion boundary. Malformed
// records are dropped and counted, never fatal.
type IngestSummary struct {
	Files    int            `json:"files"`
	Parsed   int            `json:"parsed"`
	Dropped  int            `json:"dropped"`
	DropsBy  map[string]int `json:"drops_by_cause,omitempty"`
}

// AddDrop records one dropped record under the given cause.
func (s *IngestSummary) AddDrop(cause string) {
	if s.DropsBy == nil {
		s.DropsBy = make(map[string]int)
	}
	s.DropsBy[cause]++
	s.Dropped++
}

// Merge folds another summary into s.
func (s *IngestSummary) Merge(other IngestSummary) {
	s.Files += other.Files
	s.Parsed += other.Parsed
	s.Dropped += other.Dropped
	for cause, n := range other.DropsBy {
		if s.DropsBy == nil {
			s.DropsBy = make(map[string]int)
		}
		s.DropsBy[cause] += n
	}
}
