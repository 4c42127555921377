// Package model defines the core data types shared across the MSI pipeline:
// activity records, weekly aggregates, change series, scores, and the
// result set consumed by the export and serve surfaces.
package model

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnitKey identifies a geographic unit (district-equivalent) within its
// parent region (state-equivalent). Both parts are normalized so textual
// variants of the same unit collapse to one identity.
type UnitKey struct {
	Region string `json:"region"`
	Name   string `json:"name"`
}

// NormalizeUnit builds a UnitKey from raw region and unit names. Names are
// trimmed, interior whitespace is collapsed, and words are title-cased, so
// "  tamil  nadu " and "TAMIL NADU" map to the same key.
func NormalizeUnit(region, name string) (UnitKey, error) {
	r := normalizeName(region)
	n := normalizeName(name)
	if r == "" || n == "" {
		return UnitKey{}, eris.Errorf("model: empty unit identity (region=%q, name=%q)", region, name)
	}
	return UnitKey{Region: r, Name: n}, nil
}

func normalizeName(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	joined := strings.Join(fields, " ")
	return cases.Title(language.English).String(strings.ToLower(joined))
}

// String renders the key as "Region|Name", the canonical form used in
// logs and stable output ordering.
func (u UnitKey) String() string {
	return u.Region + "|" + u.Name
}

// Less orders keys by region, then name.
func (u UnitKey) Less(other UnitKey) bool {
	if u.Region != other.Region {
		return u.Region < other.Region
	}
	return u.Name < other.Name
}
