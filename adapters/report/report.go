// Package report renders a human-readable summary of a completed run as
// Markdown and as standalone HTML.
package report

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"qcluster/domain/study"
	apperrors "qcluster/internal/errors"
)

// HTMLWriter renders the study report to an HTML file.
type HTMLWriter struct {
	Path string
}

// NewHTMLWriter creates a report writer for the given output path.
func NewHTMLWriter(path string) *HTMLWriter {
	return &HTMLWriter{Path: path}
}

// WriteResults renders and saves the report.
func (w *HTMLWriter) WriteResults(ctx context.Context, res *study.Results) error {
	doc := Markdown(res)

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.CompletePage})
	out := markdown.ToHTML([]byte(doc), p, renderer)

	if err := os.WriteFile(w.Path, out, 0o644); err != nil {
		return apperrors.Wrapf(err, "writing report %s", w.Path)
	}
	return nil
}

// Markdown builds the report source.
func Markdown(res *study.Results) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Space-time clustering study %s\n\n", res.StudyID)
	fmt.Fprintf(&b, "Run at %s with k=%d, %d permutation shuffles, alpha=%g, seed=%d, correction=%s.\n\n",
		res.CreatedAt.Format("2006-01-02 15:04:05 MST"),
		res.Config.K, res.Config.Shuffles, res.Config.Alpha, res.Seed, res.Config.Correction)

	mode := "case clustering"
	if res.Config.UseExposure {
		mode = "exposure clustering"
	}
	weights := "unweighted"
	if res.Config.UseWeights {
		weights = "case-probability weighted"
	}
	fmt.Fprintf(&b, "Mode: %s, %s. %d cases accruing %.2f case-years.\n\n",
		mode, weights, res.TotalCases, res.TotalCaseYears)

	b.WriteString("## Global statistics\n\n")
	b.WriteString("| Statistic | Value | p-value | Significant |\n|---|---|---|---|\n")
	writeStat(&b, "Q", res.Q)
	writeStat(&b, "Qf", res.Qf)
	writeStat(&b, "Q (case-years)", res.QCaseYears)
	fmt.Fprintf(&b, "\nPermutation null of Q: mean %.4f, sd %.4f, median %.4f, range [%.4f, %.4f].\n\n",
		res.GlobalNull.Mean, res.GlobalNull.StdDev, res.GlobalNull.Median, res.GlobalNull.Min, res.GlobalNull.Max)

	fmt.Fprintf(&b, "## Time slices\n\n%d of %d dates significant at alpha=%g",
		res.SignificantDateCount(), len(res.DateOrder), res.Config.Alpha)
	if n := len(res.DatesLowerKPlusOne); n > 0 {
		fmt.Fprintf(&b, "; %d dates had fewer than k+1 active individuals and were excluded from global aggregation", n)
	}
	b.WriteString(".\n\n")

	fmt.Fprintf(&b, "## Cases\n\n%d of %d case tests significant.\n\n",
		res.SignificantCaseCount(), len(res.CaseOrder))

	if len(res.Corrections) > 0 {
		b.WriteString("## Multiple-testing correction\n\n")
		for _, c := range res.Corrections {
			switch c.Method {
			case study.CorrectionBinomial:
				fmt.Fprintf(&b, "- Binomial over %q: %d/%d significant, family p=%.4g (family significant: %v)\n",
					c.Family, c.Significant, c.Tests, c.PValue, c.FamilySig)
			case study.CorrectionFDR:
				fmt.Fprintf(&b, "- Benjamini-Yekutieli over %q: adjusted alpha %.6g, %d/%d pass\n",
					c.Family, c.AdjustedAlpha, c.Significant, c.Tests)
			}
		}
		b.WriteString("\n")
	}

	if len(res.FocusOrder) > 0 {
		b.WriteString("## Focus locations\n\n")
		b.WriteString("| Focus | Q (case-years) | p-value | Significant |\n|---|---|---|---|\n")
		for _, id := range res.FocusOrder {
			f := res.Focuses[id]
			fmt.Fprintf(&b, "| %s | %.6g | %.4g | %v |\n",
				id, f.QCaseYears, f.Global.PValue, f.Global.Significant)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func writeStat(b *strings.Builder, name string, s study.QStat) {
	fmt.Fprintf(b, "| %s | %.6g | %.4g | %v |\n", name, s.Value, s.PValue, s.Significant)
}
