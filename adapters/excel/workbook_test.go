package excel

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

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
	return res
}

func TestWriteResultsCreatesSheetPerTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.xlsx")
	w := NewWorkbookWriter(path)

	require.NoError(t, w.WriteResults(context.Background(), sampleResults()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, study.TableNames(), f.GetSheetList())
}

func TestWriteResultsSheetContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.xlsx")
	res := sampleResults()
	require.NoError(t, NewWorkbookWriter(path).WriteResults(context.Background(), res))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(study.TableDates)
	require.NoError(t, err)

	table, err := res.Table(study.TableDates)
	require.NoError(t, err)
	require.Len(t, rows, len(table.Rows)+1)
	assert.Equal(t, table.Header, rows[0])
	assert.Equal(t, table.Rows[0], rows[1])
}
