package study

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qcluster/domain/core"
)

func day(d int) core.Date {
	return core.NewDate(2015, time.January, 1).AddDays(d)
}

func testIndividual(id string, isCase bool, intervals ...ResidenceInterval) *Individual {
	return &Individual{
		ID:        core.IndividualID(id),
		Label:     Label{IsCase: isCase},
		Intervals: intervals,
	}
}

func interval(start, end int, x, y float64) ResidenceInterval {
	return ResidenceInterval{Start: day(start), End: day(end), Location: Point{X: x, Y: y}}
}

func TestNewStudySortsById(t *testing.T) {
	s, err := NewStudy([]*Individual{
		testIndividual("C", true, interval(0, 10, 0, 0)),
		testIndividual("A", false, interval(0, 10, 1, 0)),
		testIndividual("B", true, interval(0, 10, 2, 0)),
	}, nil)
	require.NoError(t, err)

	var ids []string
	for _, ind := range s.Individuals {
		ids = append(ids, string(ind.ID))
	}
	assert.Equal(t, []string{"A", "B", "C"}, ids)
	assert.Equal(t, 2, s.NumCases())
}

func TestNewStudyRejectsEmpty(t *testing.T) {
	_, err := NewStudy(nil, nil)
	assert.ErrorIs(t, err, core.ErrEmptyStudy)
}

func TestNewStudyRejectsMissingHistory(t *testing.T) {
	_, err := NewStudy([]*Individual{testIndividual("A", true)}, nil)
	assert.ErrorIs(t, err, core.ErrDanglingID)
}

func TestNewStudyRejectsDuplicateIds(t *testing.T) {
	_, err := NewStudy([]*Individual{
		testIndividual("A", true, interval(0, 10, 0, 0)),
		testIndividual("A", false, interval(0, 10, 1, 0)),
	}, nil)
	assert.Error(t, err)
}

func TestTimeAxisCollectsBoundaries(t *testing.T) {
	s, err := NewStudy([]*Individual{
		testIndividual("A", true, interval(0, 5, 0, 0), interval(5, 10, 1, 1)),
		testIndividual("B", false, interval(2, 8, 3, 3)),
	}, []*FocusLocation{
		{ID: "F", Intervals: []ResidenceInterval{interval(1, 9, 5, 5)}},
	})
	require.NoError(t, err)

	axis := s.TimeAxis()
	expected := []core.Date{day(0), day(1), day(2), day(5), day(8), day(9), day(10)}
	assert.Equal(t, expected, axis)
}

func TestPersonYearsAndCaseYears(t *testing.T) {
	s, err := NewStudy([]*Individual{
		testIndividual("A", true, interval(0, 365, 0, 0)),
		testIndividual("B", false, interval(0, 365, 1, 1)),
	}, nil)
	require.NoError(t, err)

	single := PersonYears(s.Individuals[0].Intervals)
	assert.InDelta(t, 365.0/365.2425, single, 1e-12)
	// only the case accrues case-years
	assert.InDelta(t, single, s.CaseYears(), 1e-12)
}

func TestEffectiveWeightDefaults(t *testing.T) {
	assert.Equal(t, 1.0, Label{IsCase: true}.EffectiveWeight())
	assert.Equal(t, 0.0, Label{IsCase: false}.EffectiveWeight())

	w := 0.3
	assert.Equal(t, 0.3, Label{IsCase: true, Weight: &w}.EffectiveWeight())
	assert.Equal(t, 0.3, Label{IsCase: false, Weight: &w}.EffectiveWeight())
}

func TestExposureWindowBounds(t *testing.T) {
	dod := day(100)
	l := Label{IsCase: true, DiagnosisDate: &dod, LatencyDays: 30, ExposureDays: 20}

	// window is [dod-50, dod)
	assert.False(t, l.InExposureWindow(day(49)))
	assert.True(t, l.InExposureWindow(day(50)))
	assert.True(t, l.InExposureWindow(day(99)))
	assert.False(t, l.InExposureWindow(day(100)))

	assert.False(t, Label{IsCase: true}.InExposureWindow(day(50)))
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate(10))

	bad := cfg
	bad.K = 0
	assert.ErrorIs(t, bad.Validate(10), core.ErrInvalidNeighbors)

	bad = cfg
	bad.K = 10
	assert.ErrorIs(t, bad.Validate(10), core.ErrInvalidNeighbors)

	bad = cfg
	bad.Alpha = 0
	assert.ErrorIs(t, bad.Validate(10), core.ErrInvalidAlpha)

	bad = cfg
	bad.Alpha = 1
	assert.ErrorIs(t, bad.Validate(10), core.ErrInvalidAlpha)

	bad = cfg
	bad.Shuffles = 0
	assert.ErrorIs(t, bad.Validate(10), core.ErrInvalidShuffles)
}

func TestMinPValue(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 0.01, cfg.MinPValue(), 1e-12)

	cfg.Shuffles = 999
	assert.InDelta(t, 0.001, cfg.MinPValue(), 1e-12)
}

func TestParseCorrection(t *testing.T) {
	for input, want := range map[string]Correction{
		"":         CorrectionNone,
		"none":     CorrectionNone,
		"binomial": CorrectionBinomial,
		"fdr":      CorrectionFDR,
	} {
		got, err := ParseCorrection(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got)
	}

	_, err := ParseCorrection("bonferroni")
	assert.ErrorIs(t, err, core.ErrInvalidCorrection)
}
