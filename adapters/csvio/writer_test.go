package csvio

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qcluster/domain/core"
	"qcluster/domain/study"
)

func sampleResults() *study.Results {
	d := core.NewDate(2015, time.January, 1)
	res := study.NewResults(core.StudyID(core.NewID()), study.DefaultConfig(), 42)
	res.Q = study.QStat{Value: 4, PValue: 0.02, Significant: true}
	res.AddDate(&study.DateResult{
		Date: d, Stat: study.QStat{Value: 4, PValue: 0.02, Significant: true},
		ActiveCount: 6, CaseCount: 2,
		Points: map[core.IndividualID]*study.LocalResult{},
	})
	res.AddCase(&study.CaseResult{
		Individual: "A",
		Global:     study.QStat{Value: 2, PValue: 0.03, Significant: true},
		Points:     map[core.Date]*study.LocalResult{},
	})
	return res
}

func TestWriteResultsProducesAllTables(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "demo")

	require.NoError(t, w.WriteResults(context.Background(), sampleResults()))

	for _, name := range study.TableNames() {
		path := filepath.Join(dir, "demo_"+name+".csv")
		f, err := os.Open(path)
		require.NoError(t, err, "missing table file %s", name)

		rows, err := csv.NewReader(f).ReadAll()
		f.Close()
		require.NoError(t, err)
		require.NotEmpty(t, rows, "table %s has no header", name)
	}
}

func TestWriteResultsRowsMatchTables(t *testing.T) {
	dir := t.TempDir()
	res := sampleResults()
	require.NoError(t, NewWriter(dir, "s").WriteResults(context.Background(), res))

	f, err := os.Open(filepath.Join(dir, "s_dates.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	table, err := res.Table(study.TableDates)
	require.NoError(t, err)
	require.Len(t, rows, len(table.Rows)+1)
	assert.Equal(t, table.Header, rows[0])
	assert.Equal(t, table.Rows[0], rows[1])
}

func TestWriteResultsCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	require.NoError(t, NewWriter(dir, "s").WriteResults(context.Background(), sampleResults()))

	_, err := os.Stat(filepath.Join(dir, "s_global.csv"))
	assert.NoError(t, err)
}
