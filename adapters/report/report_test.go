package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qcluster/domain/core"
	"qcluster/domain/study"
)

func sampleResults() *study.Results {
	d := core.NewDate(2015, time.January, 1)
	cfg := study.DefaultConfig()
	cfg.Correction = study.CorrectionBinomial
	res := study.NewResults("study-1", cfg, 42)
	res.Q = study.QStat{Value: 12, PValue: 0.01, Significant: true}
	res.Qf = study.QStat{Value: 4, PValue: 0.01, Significant: true}
	res.QCaseYears = study.QStat{Value: 0.8, PValue: 0.01, Significant: true}
	res.TotalCases = 3
	res.TotalCaseYears = 15
	res.AddDate(&study.DateResult{
		Date: d, Stat: study.QStat{Value: 12, PValue: 0.01, Significant: true},
		Points: map[core.IndividualID]*study.LocalResult{},
	})
	res.AddCase(&study.CaseResult{
		Individual: "A",
		Global:     study.QStat{Value: 4, PValue: 0.02, Significant: true},
		Points:     map[core.Date]*study.LocalResult{},
	})
	res.AddFocus(&study.FocusResult{
		Focus:  "Plant",
		Global: study.QStat{Value: 2, PValue: 0.3},
		Points: map[core.Date]*study.FocusLocalResult{},
	})
	res.DatesLowerKPlusOne = []core.Date{d.AddDays(5)}
	res.Corrections = []study.CorrectionOutcome{
		{Family: "dates", Method: study.CorrectionBinomial, Tests: 1, Significant: 1, PValue: 0.05, FamilySig: true},
	}
	return res
}

func TestMarkdownMentionsEverySection(t *testing.T) {
	doc := Markdown(sampleResults())

	for _, want := range []string{
		"study-1",
		"seed=42",
		"## Global statistics",
		"## Time slices",
		"## Cases",
		"## Multiple-testing correction",
		"## Focus locations",
		"Plant",
		"fewer than k+1",
	} {
		assert.Contains(t, doc, want)
	}
}

func TestMarkdownReflectsMode(t *testing.T) {
	res := sampleResults()
	assert.Contains(t, Markdown(res), "case clustering")

	res.Config.UseExposure = true
	res.Config.UseWeights = true
	doc := Markdown(res)
	assert.Contains(t, doc, "exposure clustering")
	assert.Contains(t, doc, "case-probability weighted")
}

func TestWriteResultsRendersHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	w := NewHTMLWriter(path)

	require.NoError(t, w.WriteResults(context.Background(), sampleResults()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(raw)
	assert.True(t, strings.Contains(html, "<html"), "not a complete HTML page")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "study-1")
}
