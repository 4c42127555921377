// Package graph builds the geographic adjacency relation used by the
// signal engine. Adjacency is a coarse same-region proxy: two units are
// neighbors iff they share the same parent region. The graph is built once
// per dataset and treated as immutable for a run.
package graph

import (
	"sort"

	"github.com/sells-group/msi-cli/internal/model"
)

// Graph is an undirected, symmetric adjacency relation over geographic
// units with no self-loops. Neighbor lists are sorted, so rebuilding from
// the same unit set is deterministic regardless of input order.
type Graph struct {
	neighbors map[model.UnitKey][]model.UnitKey
	units     []model.UnitKey
}

// Build constructs the graph from the distinct units of a dataset.
// Duplicate keys are collapsed. A unit whose region contains no other
// units gets an empty neighbor set.
func Build(units []model.UnitKey) *Graph {
	byRegion := make(map[string][]model.UnitKey)
	seen := make(map[model.UnitKey]struct{}, len(units))
	for _, u := range units {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		byRegion[u.Region] = append(byRegion[u.Region], u)
	}

	neighbors := make(map[model.UnitKey][]model.UnitKey, len(seen))
	all := make([]model.UnitKey, 0, len(seen))
	for _, siblings := range byRegion {
		sort.Slice(siblings, func(i, j int) bool { return siblings[i].Less(siblings[j]) })
		for _, u := range siblings {
			ns := make([]model.UnitKey, 0, len(siblings)-1)
			for _, other := range siblings {
				if other != u {
					ns = append(ns, other)
				}
			}
			neighbors[u] = ns
			all = append(all, u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Less(all[j]) })

	return &Graph{neighbors: neighbors, units: all}
}

// Units returns every unit in the graph in stable order.
func (g *Graph) Units() []model.UnitKey {
	return g.units
}

// Neighbors returns the sorted neighbor set of u. The result is empty both
// for isolated units and for units the graph has never seen; callers treat
// either case as "no signal computable". Callers must not mutate the
// returned slice.
func (g *Graph) Neighbors(u model.UnitKey) []model.UnitKey {
	return g.neighbors[u]
}

// Degree returns the number of neighbors of u.
func (g *Graph) Degree(u model.UnitKey) int {
	return len(g.neighbors[u])
}
