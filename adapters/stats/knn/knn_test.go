package knn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qcluster/domain/core"
	"qcluster/domain/study"
)

var testDate = core.NewDate(2015, time.January, 1)

func points(coords map[string][2]float64) map[core.IndividualID]study.Point {
	out := make(map[core.IndividualID]study.Point, len(coords))
	for id, xy := range coords {
		out[core.IndividualID(id)] = study.Point{X: xy[0], Y: xy[1]}
	}
	return out
}

func neighborIDs(neighbors []Neighbor) []string {
	out := make([]string, len(neighbors))
	for i, n := range neighbors {
		out[i] = string(n.ID)
	}
	return out
}

func TestBuildExcludesSelf(t *testing.T) {
	g := Build(testDate, 2, points(map[string][2]float64{
		"A": {0, 0}, "B": {1, 0}, "C": {2, 0},
	}), nil)

	for id, neighbors := range g.Individuals {
		for _, n := range neighbors {
			assert.NotEqual(t, id, n.ID, "self in neighbor list of %s", id)
		}
	}
}

func TestBuildOrdersByDistance(t *testing.T) {
	g := Build(testDate, 3, points(map[string][2]float64{
		"A": {0, 0}, "B": {1, 0}, "C": {5, 0}, "D": {2, 0},
	}), nil)

	assert.Equal(t, []string{"B", "D", "C"}, neighborIDs(g.Individuals["A"]))
	for i := 1; i < len(g.Individuals["A"]); i++ {
		assert.LessOrEqual(t, g.Individuals["A"][i-1].Distance, g.Individuals["A"][i].Distance)
	}
}

func TestBuildBreaksTiesByIdentifier(t *testing.T) {
	// B and C are equidistant from A; the lower identifier must come first
	g := Build(testDate, 1, points(map[string][2]float64{
		"A": {0, 0}, "C": {0, 1}, "B": {1, 0},
	}), nil)

	require.Len(t, g.Individuals["A"], 1)
	assert.Equal(t, core.IndividualID("B"), g.Individuals["A"][0].ID)
}

func TestBuildTruncatesToAvailable(t *testing.T) {
	g := Build(testDate, 5, points(map[string][2]float64{
		"A": {0, 0}, "B": {1, 1}, "C": {2, 2},
	}), nil)

	// only two candidates exist for each origin
	assert.Len(t, g.Individuals["A"], 2)
	assert.True(t, g.Undersized)
}

func TestBuildMarksUndersized(t *testing.T) {
	people := points(map[string][2]float64{"A": {0, 0}, "B": {1, 1}, "C": {2, 2}})

	assert.False(t, Build(testDate, 2, people, nil).Undersized)
	assert.True(t, Build(testDate, 3, people, nil).Undersized)
}

func TestBuildFocusNeighbors(t *testing.T) {
	people := points(map[string][2]float64{"A": {0, 0}, "B": {10, 0}, "C": {20, 0}})
	focuses := map[core.FocusID]study.Point{"F": {X: 9, Y: 0}}

	g := Build(testDate, 2, people, focuses)

	require.Len(t, g.Focuses["F"], 2)
	// a focus point is never its own neighbor, so all k slots are individuals
	assert.Equal(t, []string{"B", "A"}, neighborIDs(g.Focuses["F"]))
}

func TestBuildIDsSorted(t *testing.T) {
	g := Build(testDate, 1, points(map[string][2]float64{
		"C": {0, 0}, "A": {1, 0}, "B": {2, 0},
	}), nil)

	assert.Equal(t, []core.IndividualID{"A", "B", "C"}, g.IDs)
}
