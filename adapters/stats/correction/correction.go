// Package correction applies multiple-testing corrections across the
// per-date and per-individual test families of a completed run.
package correction

import (
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"qcluster/domain/study"
)

// Family names reported in correction outcomes.
const (
	FamilyDates  = "dates"
	FamilyPoints = "points"
)

// Apply runs the configured correction over both test families and records
// the outcomes on the results. Raw QStat values and flags are left intact;
// only the CorrectedSignificant fields are reclassified (FDR) or a
// family-level verdict is added (binomial).
func Apply(res *study.Results) {
	switch res.Config.Correction {
	case study.CorrectionBinomial:
		res.Corrections = append(res.Corrections,
			binomialFamily(FamilyDates, datePValues(res), res.SignificantDateCount(), res.Config.Alpha),
			binomialFamily(FamilyPoints, casePValues(res), res.SignificantCaseCount(), res.Config.Alpha),
		)
	case study.CorrectionFDR:
		res.Corrections = append(res.Corrections,
			fdrDates(res),
			fdrPoints(res),
		)
	}
}

func datePValues(res *study.Results) []float64 {
	ps := make([]float64, 0, len(res.DateOrder))
	for _, d := range res.DateOrder {
		ps = append(ps, res.Dates[d].Stat.PValue)
	}
	return ps
}

func casePValues(res *study.Results) []float64 {
	ps := make([]float64, 0, len(res.CaseOrder))
	for _, id := range res.CaseOrder {
		ps = append(ps, res.Cases[id].Global.PValue)
	}
	return ps
}

// binomialFamily tests whether the observed count of significant sub-tests
// exceeds what a Binomial(M, alpha) null would produce.
func binomialFamily(family string, pvalues []float64, significant int, alpha float64) study.CorrectionOutcome {
	m := len(pvalues)
	out := study.CorrectionOutcome{
		Family:      family,
		Method:      study.CorrectionBinomial,
		Tests:       m,
		Significant: significant,
	}
	if m == 0 {
		out.PValue = 1
		return out
	}
	out.PValue = binomialTailP(m, alpha, significant)
	out.FamilySig = out.PValue <= alpha
	return out
}

// binomialTailP is P(X >= x) for X ~ Binomial(n, p).
func binomialTailP(n int, p float64, x int) float64 {
	if x <= 0 {
		return 1
	}
	dist := distuv.Binomial{N: float64(n), P: p}
	tail := 1 - dist.CDF(float64(x-1))
	if tail < 0 {
		tail = 0
	}
	if tail > 1 {
		tail = 1
	}
	return tail
}

// BYAdjustedAlpha computes the Benjamini-Yekutieli critical threshold for a
// p-value family under arbitrary dependency. It is the step-up threshold
// alpha*i/(M*c(M)) at the largest rank i whose p-value stays at or below
// it; when no rank qualifies, the floor alpha/(M*c(M)) is returned and
// nothing in the family is significant.
func BYAdjustedAlpha(pvalues []float64, alpha float64) float64 {
	m := len(pvalues)
	if m == 0 {
		return alpha
	}
	sorted := make([]float64, m)
	copy(sorted, pvalues)
	sort.Float64s(sorted)

	cm := 0.0
	for i := 1; i <= m; i++ {
		cm += 1.0 / float64(i)
	}

	threshold := alpha / (float64(m) * cm)
	for i := m; i >= 1; i-- {
		cut := alpha * float64(i) / (float64(m) * cm)
		if sorted[i-1] <= cut {
			threshold = cut
			break
		}
	}
	return threshold
}

func fdrDates(res *study.Results) study.CorrectionOutcome {
	ps := datePValues(res)
	adjusted := BYAdjustedAlpha(ps, res.Config.Alpha)
	n := 0
	for _, d := range res.DateOrder {
		dr := res.Dates[d]
		dr.CorrectedSignificant = dr.Stat.PValue <= adjusted
		if dr.CorrectedSignificant {
			n++
		}
	}
	return study.CorrectionOutcome{
		Family:        FamilyDates,
		Method:        study.CorrectionFDR,
		Tests:         len(ps),
		Significant:   n,
		FamilySig:     n > 0,
		AdjustedAlpha: adjusted,
	}
}

func fdrPoints(res *study.Results) study.CorrectionOutcome {
	ps := casePValues(res)
	adjusted := BYAdjustedAlpha(ps, res.Config.Alpha)
	n := 0
	for _, id := range res.CaseOrder {
		cr := res.Cases[id]
		cr.CorrectedSignificant = cr.Global.PValue <= adjusted
		if cr.CorrectedSignificant {
			n++
		}
	}
	return study.CorrectionOutcome{
		Family:        FamilyPoints,
		Method:        study.CorrectionFDR,
		Tests:         len(ps),
		Significant:   n,
		FamilySig:     n > 0,
		AdjustedAlpha: adjusted,
	}
}
