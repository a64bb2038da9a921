// Package knn builds the per-date k-nearest-neighbor graphs the Q statistic
// engine consumes.
package knn

import (
	"sort"

	"qcluster/domain/core"
	"qcluster/domain/study"
)

// Neighbor is one entry of an ordered neighbor list.
type Neighbor struct {
	ID       core.IndividualID `json:"id"`
	Distance float64           `json:"distance"`
}

// Graph holds, for one date, every active individual's and focus location's
// ordered nearest neighbors. Symmetry is not assumed: A may list B without B
// listing A.
type Graph struct {
	Date core.Date
	K    int

	Individuals map[core.IndividualID][]Neighbor
	Focuses     map[core.FocusID][]Neighbor

	Locations      map[core.IndividualID]study.Point
	FocusLocations map[core.FocusID]study.Point

	// IDs lists the active individuals in ascending identifier order.
	IDs []core.IndividualID

	// Undersized marks a date with fewer than k+1 active individuals.
	// Such dates are reported but excluded from global aggregation.
	Undersized bool
}

// Build computes the k nearest active individuals to each active individual
// and to each active focus point on one date. Distance ties are broken by
// ascending identifier so results are reproducible across runs.
func Build(date core.Date, k int, people map[core.IndividualID]study.Point, focuses map[core.FocusID]study.Point) *Graph {
	ids := make([]core.IndividualID, 0, len(people))
	for id := range people {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	g := &Graph{
		Date:           date,
		K:              k,
		Individuals:    make(map[core.IndividualID][]Neighbor, len(ids)),
		Focuses:        make(map[core.FocusID][]Neighbor, len(focuses)),
		Locations:      people,
		FocusLocations: focuses,
		IDs:            ids,
		Undersized:     len(ids) < k+1,
	}

	for _, id := range ids {
		g.Individuals[id] = nearest(people[id], ids, people, k, id)
	}
	for fid, loc := range focuses {
		g.Focuses[fid] = nearest(loc, ids, people, k, "")
	}
	return g
}

// nearest selects the k closest candidates to origin, excluding self.
// Candidates arrive pre-sorted by identifier, and the sort below is stable,
// so equal distances resolve to the lower identifier.
func nearest(origin study.Point, ids []core.IndividualID, people map[core.IndividualID]study.Point, k int, self core.IndividualID) []Neighbor {
	candidates := make([]Neighbor, 0, len(ids))
	for _, id := range ids {
		if id == self {
			continue
		}
		candidates = append(candidates, Neighbor{ID: id, Distance: origin.DistanceTo(people[id])})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	if k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates
}
