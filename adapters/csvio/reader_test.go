package csvio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qcluster/domain/core"
	"qcluster/internal/errors"
	"qcluster/internal/testkit"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const detailsCSV = `ID,is_case,DOD,latency,weight,exposure_duration
A,1,20150601,30,0.9,60
B,0,,,0.1,
C,1,20150301,15,,30
`

const historiesCSV = `ID,start_date,end_date,x,y
A,20150101,20150401,1.5,2.5
A,20150401,20151231,3,4
B,20150101,20151231,-1,-2
C,20150101,20151231,0,0
`

func TestLoadStudyParsesAllColumns(t *testing.T) {
	dir := t.TempDir()
	details := writeFile(t, dir, "details.csv", detailsCSV)
	histories := writeFile(t, dir, "histories.csv", historiesCSV)

	s, err := NewReader(details, histories, "").LoadStudy(context.Background())
	require.NoError(t, err)
	require.Len(t, s.Individuals, 3)
	assert.Equal(t, 2, s.NumCases())

	a, ok := s.Individual("A")
	require.True(t, ok)
	assert.True(t, a.Label.IsCase)
	require.NotNil(t, a.Label.DiagnosisDate)
	assert.Equal(t, "20150601", a.Label.DiagnosisDate.String())
	assert.Equal(t, 30, a.Label.LatencyDays)
	assert.Equal(t, 60, a.Label.ExposureDays)
	require.NotNil(t, a.Label.Weight)
	assert.Equal(t, 0.9, *a.Label.Weight)
	require.Len(t, a.Intervals, 2)
	assert.Equal(t, 1.5, a.Intervals[0].Location.X)

	b, _ := s.Individual("B")
	assert.False(t, b.Label.IsCase)
	assert.Nil(t, b.Label.DiagnosisDate)
	assert.Equal(t, 0, b.Label.LatencyDays)

	c, _ := s.Individual("C")
	assert.Nil(t, c.Label.Weight)
	assert.Equal(t, 30, c.Label.ExposureDays)
}

func TestLoadStudyColumnOrderIndependent(t *testing.T) {
	dir := t.TempDir()
	details := writeFile(t, dir, "details.csv", "is_case,ID\n1,A\n0,B\n")
	histories := writeFile(t, dir, "histories.csv",
		"y,x,end_date,start_date,ID\n2,1,20151231,20150101,A\n4,3,20151231,20150101,B\n")

	s, err := NewReader(details, histories, "").LoadStudy(context.Background())
	require.NoError(t, err)
	a, _ := s.Individual("A")
	assert.Equal(t, 1.0, a.Intervals[0].Location.X)
	assert.Equal(t, 2.0, a.Intervals[0].Location.Y)
}

func TestLoadStudyLoadsFocusFile(t *testing.T) {
	dir := t.TempDir()
	details := writeFile(t, dir, "details.csv", "ID,is_case\nA,1\nB,0\n")
	histories := writeFile(t, dir, "histories.csv",
		"ID,start_date,end_date,x,y\nA,20150101,20151231,0,0\nB,20150101,20151231,1,1\n")
	focus := writeFile(t, dir, "focus.csv",
		"ID,start_date,end_date,x,y\nPlant,20150101,20151231,5,5\n")

	s, err := NewReader(details, histories, focus).LoadStudy(context.Background())
	require.NoError(t, err)
	require.Len(t, s.Focuses, 1)
	assert.Equal(t, core.FocusID("Plant"), s.Focuses[0].ID)
}

func TestLoadStudyRejectsDetailsWithoutHistory(t *testing.T) {
	dir := t.TempDir()
	details := writeFile(t, dir, "details.csv", "ID,is_case\nA,1\nB,0\n")
	histories := writeFile(t, dir, "histories.csv",
		"ID,start_date,end_date,x,y\nA,20150101,20151231,0,0\n")

	_, err := NewReader(details, histories, "").LoadStudy(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeIntegrityViolation, errors.GetCode(err))
}

func TestLoadStudyRejectsOrphanHistory(t *testing.T) {
	dir := t.TempDir()
	details := writeFile(t, dir, "details.csv", "ID,is_case\nA,1\n")
	histories := writeFile(t, dir, "histories.csv",
		"ID,start_date,end_date,x,y\nA,20150101,20151231,0,0\nGhost,20150101,20151231,1,1\n")

	_, err := NewReader(details, histories, "").LoadStudy(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeIntegrityViolation, errors.GetCode(err))
}

func TestLoadStudyRejectsBadRows(t *testing.T) {
	dir := t.TempDir()
	histories := writeFile(t, dir, "histories.csv",
		"ID,start_date,end_date,x,y\nA,20150101,20151231,0,0\n")

	cases := map[string]string{
		"missing id column": "is_case\n1\n",
		"bad is_case":       "ID,is_case\nA,maybe\n",
		"bad date":          "ID,is_case,DOD\nA,1,June 1st\n",
		"weight too large":  "ID,is_case,weight\nA,1,1.5\n",
		"negative latency":  "ID,is_case,latency\nA,1,-3\n",
		"duplicate id":      "ID,is_case\nA,1\nA,0\n",
	}
	for name, content := range cases {
		details := writeFile(t, dir, "bad_details.csv", content)
		_, err := NewReader(details, histories, "").LoadStudy(context.Background())
		assert.Error(t, err, name)
	}
}

func TestLoadStudyRejectsInvertedInterval(t *testing.T) {
	dir := t.TempDir()
	details := writeFile(t, dir, "details.csv", "ID,is_case\nA,1\n")
	histories := writeFile(t, dir, "histories.csv",
		"ID,start_date,end_date,x,y\nA,20151231,20150101,0,0\n")

	_, err := NewReader(details, histories, "").LoadStudy(context.Background())
	assert.Error(t, err)
}

func TestRoundTripThroughSimulator(t *testing.T) {
	sim, err := testkit.Simulate(testkit.SimConfig{Individuals: 200, Moves: 2, LatencyDays: 30, Seed: 7})
	require.NoError(t, err)

	dir := t.TempDir()
	histories := filepath.Join(dir, "histories.csv")
	details := filepath.Join(dir, "details.csv")
	focus := filepath.Join(dir, "focus.csv")
	require.NoError(t, testkit.WriteCSVs(sim, histories, details, focus))

	loaded, err := NewReader(details, histories, focus).LoadStudy(context.Background())
	require.NoError(t, err)

	require.Len(t, loaded.Individuals, len(sim.Study.Individuals))
	assert.Equal(t, sim.Study.NumCases(), loaded.NumCases())
	assert.Len(t, loaded.Focuses, len(sim.Study.Focuses))

	for i, want := range sim.Study.Individuals {
		got := loaded.Individuals[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Label.IsCase, got.Label.IsCase)
		assert.Equal(t, want.Label.LatencyDays, got.Label.LatencyDays)
		require.Len(t, got.Intervals, len(want.Intervals))
		for j := range want.Intervals {
			assert.Equal(t, want.Intervals[j].Start, got.Intervals[j].Start)
			assert.Equal(t, want.Intervals[j].End, got.Intervals[j].End)
		}
	}
}
