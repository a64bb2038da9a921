package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qcluster/domain/core"
	"qcluster/domain/study"
)

func day(d int) core.Date {
	return core.NewDate(2015, time.January, 1).AddDays(d)
}

func interval(start, end int, x, y float64) study.ResidenceInterval {
	return study.ResidenceInterval{Start: day(start), End: day(end), Location: study.Point{X: x, Y: y}}
}

func buildIndex(t *testing.T, individuals []*study.Individual, focuses []*study.FocusLocation) *Index {
	t.Helper()
	s, err := study.NewStudy(individuals, focuses)
	require.NoError(t, err)
	return New(s)
}

func TestActiveIndividualsBoundaries(t *testing.T) {
	ix := buildIndex(t, []*study.Individual{
		{ID: "A", Intervals: []study.ResidenceInterval{interval(0, 10, 1, 1), interval(10, 20, 2, 2)}},
	}, nil)

	// start date is covered
	active, err := ix.ActiveIndividuals(day(0))
	require.NoError(t, err)
	assert.Equal(t, study.Point{X: 1, Y: 1}, active["A"])

	// interior boundary belongs to the later interval
	active, err = ix.ActiveIndividuals(day(10))
	require.NoError(t, err)
	assert.Equal(t, study.Point{X: 2, Y: 2}, active["A"])

	// the final interval is closed on the right
	active, err = ix.ActiveIndividuals(day(20))
	require.NoError(t, err)
	assert.Equal(t, study.Point{X: 2, Y: 2}, active["A"])

	// one past the end is uncovered
	active, err = ix.ActiveIndividuals(day(21))
	require.NoError(t, err)
	assert.NotContains(t, active, core.IndividualID("A"))
}

func TestActiveIndividualsToleratesGaps(t *testing.T) {
	ix := buildIndex(t, []*study.Individual{
		{ID: "A", Intervals: []study.ResidenceInterval{interval(0, 5, 1, 1), interval(8, 12, 2, 2)}},
		{ID: "B", Intervals: []study.ResidenceInterval{interval(0, 12, 3, 3)}},
	}, nil)

	// A has no residence on day 6; only B is active
	active, err := ix.ActiveIndividuals(day(6))
	require.NoError(t, err)
	assert.NotContains(t, active, core.IndividualID("A"))
	assert.Contains(t, active, core.IndividualID("B"))
}

func TestActiveIndividualsRejectsMalformedHistory(t *testing.T) {
	// overlapping intervals give a date two locations
	ix := buildIndex(t, []*study.Individual{
		{ID: "A", Intervals: []study.ResidenceInterval{interval(0, 10, 1, 1), interval(5, 15, 2, 2)}},
	}, nil)

	_, err := ix.ActiveIndividuals(day(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDataGap)
}

func TestActiveFocusPoints(t *testing.T) {
	ix := buildIndex(t, []*study.Individual{
		{ID: "A", Intervals: []study.ResidenceInterval{interval(0, 10, 1, 1)}},
	}, []*study.FocusLocation{
		{ID: "F", Intervals: []study.ResidenceInterval{interval(2, 8, 5, 5)}},
	})

	assert.Empty(t, ix.ActiveFocusPoints(day(0)))

	active := ix.ActiveFocusPoints(day(2))
	assert.Equal(t, study.Point{X: 5, Y: 5}, active["F"])
}
