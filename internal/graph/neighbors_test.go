package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/msi-cli/internal/model"
)

func unit(region, name string) model.UnitKey {
	return model.UnitKey{Region: region, Name: name}
}

func TestBuild_SameRegionUnitsAreNeighbors(t *testing.T) {
	g := Build([]model.UnitKey{
		unit("Kerala", "Idukki"),
		unit("Kerala", "Kollam"),
		unit("Kerala", "Thrissur"),
		unit("Goa", "North Goa"),
	})

	ns := g.Neighbors(unit("Kerala", "Idukki"))
	assert.Equal(t, []model.UnitKey{unit("Kerala", "Kollam"), unit("Kerala", "Thrissur")}, ns)
	assert.Equal(t, 2, g.Degree(unit("Kerala", "Kollam")))
}

func TestBuild_NoSelfLoopsAndSymmetric(t *testing.T) {
	g := Build([]model.UnitKey{
		unit("Bihar", "Gaya"),
		unit("Bihar", "Araria"),
	})

	for _, u := range g.Units() {
		for _, n := range g.Neighbors(u) {
			assert.NotEqual(t, u, n, "self loop on %s", u)
			assert.Contains(t, g.Neighbors(n), u, "asymmetric edge %s -> %s", u, n)
		}
	}
}

func TestBuild_SingletonRegionIsIsolated(t *testing.T) {
	g := Build([]model.UnitKey{
		unit("Goa", "North Goa"),
		unit("Kerala", "Idukki"),
		unit("Kerala", "Kollam"),
	})

	assert.Empty(t, g.Neighbors(unit("Goa", "North Goa")))
	assert.Equal(t, 0, g.Degree(unit("Goa", "North Goa")))
}

func TestBuild_OrderIndependent(t *testing.T) {
	units := []model.UnitKey{
		unit("Kerala", "Thrissur"),
		unit("Kerala", "Idukki"),
		unit("Bihar", "Gaya"),
		unit("Kerala", "Kollam"),
	}
	reversed := make([]model.UnitKey, len(units))
	for i, u := range units {
		reversed[len(units)-1-i] = u
	}

	a := Build(units)
	b := Build(reversed)

	assert.Equal(t, a.Units(), b.Units())
	for _, u := range a.Units() {
		assert.Equal(t, a.Neighbors(u), b.Neighbors(u))
	}
}

func TestBuild_DuplicateUnitsCollapsed(t *testing.T) {
	g := Build([]model.UnitKey{
		unit("Kerala", "Idukki"),
		unit("Kerala", "Idukki"),
		unit("Kerala", "Kollam"),
	})

	assert.Len(t, g.Units(), 2)
	assert.Equal(t, []model.UnitKey{unit("Kerala", "Kollam")}, g.Neighbors(unit("Kerala", "Idukki")))
}
