package engine

import (
	"context"
	"math"
	"math/rand"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"qcluster/domain/core"
	"qcluster/domain/study"
)

// Runner drives the Monte Carlo permutation test: it evaluates the observed
// labeling once, reruns the engine under relabeled trials, and assembles the
// study results with empirical p-values.
type Runner struct {
	e    *Engine
	seed int64
}

// NewRunner creates a permutation runner. seed is the resolved random seed
// echoed in the results; every trial derives its own generator from it.
func NewRunner(e *Engine, seed int64) *Runner {
	return &Runner{e: e, seed: seed}
}

// Run executes the permutation test for the engine's study under seed.
func (e *Engine) Run(ctx context.Context, seed int64) (*study.Results, error) {
	return NewRunner(e, seed).Run(ctx)
}

// accumulator tallies, per statistic, how many null samples reached the
// observed value. Each worker owns one; they merge after the trials finish,
// so completion order cannot affect results.
type accumulator struct {
	global     int
	date       []int
	local      [][]int
	caseGlobal []int
	focusDate  [][]int
	focus      []int
}

func newAccumulator(obs *Snapshot) *accumulator {
	a := &accumulator{
		date:       make([]int, len(obs.DateQ)),
		local:      make([][]int, len(obs.LocalQ)),
		caseGlobal: make([]int, len(obs.CaseQ)),
		focusDate:  make([][]int, len(obs.FocusDateQ)),
		focus:      make([]int, len(obs.FocusQ)),
	}
	for i := range a.local {
		a.local[i] = make([]int, len(obs.LocalQ[i]))
	}
	for i := range a.focusDate {
		a.focusDate[i] = make([]int, len(obs.FocusDateQ[i]))
	}
	return a
}

// tally compares one null snapshot against the observed one. The one-sided
// comparison is "null at or above observed"; inactive (NaN) entries are
// skipped on both sides since activity does not depend on labels.
func (a *accumulator) tally(obs, null *Snapshot) {
	if null.Global >= obs.Global {
		a.global++
	}
	for i := range obs.DateQ {
		if null.DateQ[i] >= obs.DateQ[i] {
			a.date[i]++
		}
	}
	for ti := range obs.LocalQ {
		for di := range obs.LocalQ[ti] {
			o := obs.LocalQ[ti][di]
			if math.IsNaN(o) {
				continue
			}
			if null.LocalQ[ti][di] >= o {
				a.local[ti][di]++
			}
		}
		if null.CaseQ[ti] >= obs.CaseQ[ti] {
			a.caseGlobal[ti]++
		}
	}
	for fi := range obs.FocusDateQ {
		for di := range obs.FocusDateQ[fi] {
			o := obs.FocusDateQ[fi][di]
			if math.IsNaN(o) {
				continue
			}
			if null.FocusDateQ[fi][di] >= o {
				a.focusDate[fi][di]++
			}
		}
		if null.FocusQ[fi] >= obs.FocusQ[fi] {
			a.focus[fi]++
		}
	}
}

func (a *accumulator) merge(b *accumulator) {
	a.global += b.global
	for i := range a.date {
		a.date[i] += b.date[i]
	}
	for i := range a.local {
		for j := range a.local[i] {
			a.local[i][j] += b.local[i][j]
		}
	}
	for i := range a.caseGlobal {
		a.caseGlobal[i] += b.caseGlobal[i]
	}
	for i := range a.focusDate {
		for j := range a.focusDate[i] {
			a.focusDate[i][j] += b.focusDate[i][j]
		}
	}
	for i := range a.focus {
		a.focus[i] += b.focus[i]
	}
}

// trialLabels permutes the multiset of label bundles across all individuals
// using a generator derived from the run seed and the trial index alone.
// Locations and dates are untouched.
func (r *Runner) trialLabels(base []study.Label, trial int) []study.Label {
	rng := rand.New(rand.NewSource(r.seed + int64(trial) + 1))
	labels := make([]study.Label, len(base))
	copy(labels, base)
	rng.Shuffle(len(labels), func(i, j int) {
		labels[i], labels[j] = labels[j], labels[i]
	})
	return labels
}

// Run executes the full permutation test and builds the results aggregate.
// Cancellation aborts the run; partial results are never returned.
func (r *Runner) Run(ctx context.Context) (*study.Results, error) {
	cfg := r.e.cfg
	base := r.e.ObservedLabels()
	observed := r.e.Compute(base)

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > cfg.Shuffles {
		workers = cfg.Shuffles
	}

	nullGlobal := make([]float64, cfg.Shuffles)
	accs := make([]*accumulator, workers)

	grp, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		acc := newAccumulator(observed)
		accs[w] = acc
		start := w
		grp.Go(func() error {
			for trial := start; trial < cfg.Shuffles; trial += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				null := r.e.Compute(r.trialLabels(base, trial))
				nullGlobal[trial] = null.Global
				acc.tally(observed, null)
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	total := accs[0]
	for _, acc := range accs[1:] {
		total.merge(acc)
	}

	return r.assemble(observed, total, nullGlobal), nil
}

// qstat converts an exceedance count into the empirical statistic triple.
// The +1 in numerator and denominator keeps the minimum achievable p-value
// at 1/(shuffles+1).
func (r *Runner) qstat(value float64, exceed int) study.QStat {
	p := float64(1+exceed) / float64(1+r.e.cfg.Shuffles)
	return study.QStat{Value: value, PValue: p, Significant: p <= r.e.cfg.Alpha}
}

func (r *Runner) assemble(obs *Snapshot, acc *accumulator, nullGlobal []float64) *study.Results {
	e := r.e
	res := study.NewResults(core.StudyID(core.NewID()), e.cfg, r.seed)

	res.TotalCases = e.s.NumCases()
	res.TotalCaseYears = e.s.CaseYears()

	// Qf and the case-years form are positive rescalings of Q, so they
	// share its permutation null and p-value.
	global := r.qstat(obs.Global, acc.global)
	res.Q = global
	res.Qf = study.QStat{Value: safeDiv(obs.Global, float64(res.TotalCases)), PValue: global.PValue, Significant: global.Significant}
	res.QCaseYears = study.QStat{Value: safeDiv(obs.Global, res.TotalCaseYears), PValue: global.PValue, Significant: global.Significant}
	res.GlobalNull = nullSummary(nullGlobal)

	tracked := e.Tracked()

	// Date axis first; the per-date significant-point sub-maps are wired
	// while walking the case axis below.
	for di, d := range e.axis {
		g := e.graphs[di]
		caseCount := 0
		for _, id := range g.IDs {
			if e.s.Individuals[e.slot[id]].Label.IsCase {
				caseCount++
			}
		}
		stat := r.qstat(obs.DateQ[di], acc.date[di])
		res.AddDate(&study.DateResult{
			Date:                 d,
			Stat:                 stat,
			ActiveCount:          len(g.IDs),
			CaseCount:            caseCount,
			Undersized:           g.Undersized,
			CorrectedSignificant: stat.Significant,
			Points:               make(map[core.IndividualID]*study.LocalResult),
		})
		if g.Undersized {
			res.DatesLowerKPlusOne = append(res.DatesLowerKPlusOne, d)
		}
	}

	for ti, id := range tracked {
		ind, _ := e.s.Individual(id)
		years := study.PersonYears(ind.Intervals)
		global := r.qstat(obs.CaseQ[ti], acc.caseGlobal[ti])
		cr := &study.CaseResult{
			Individual:           id,
			Global:               global,
			CaseYears:            years,
			QCaseYears:           safeDiv(obs.CaseQ[ti], years),
			CorrectedSignificant: global.Significant,
			Points:               make(map[core.Date]*study.LocalResult),
		}
		for di, d := range e.axis {
			v := obs.LocalQ[ti][di]
			if math.IsNaN(v) {
				continue
			}
			lr := &study.LocalResult{
				Individual: id,
				Date:       d,
				Location:   e.graphs[di].Locations[id],
				Stat:       r.qstat(v, acc.local[ti][di]),
			}
			cr.Points[d] = lr
			cr.DateOrder = append(cr.DateOrder, d)
			if lr.Stat.Significant {
				dr := res.Dates[d]
				dr.Points[id] = lr
				dr.PointOrder = append(dr.PointOrder, id)
			}
		}
		res.AddCase(cr)
	}

	for fi, fid := range e.focusIDs {
		global := r.qstat(obs.FocusQ[fi], acc.focus[fi])
		fr := &study.FocusResult{
			Focus:      fid,
			Global:     global,
			QCaseYears: safeDiv(obs.FocusQ[fi], res.TotalCaseYears),
			Points:     make(map[core.Date]*study.FocusLocalResult),
		}
		for di, d := range e.axis {
			v := obs.FocusDateQ[fi][di]
			if math.IsNaN(v) {
				continue
			}
			fr.Points[d] = &study.FocusLocalResult{
				Focus:    fid,
				Date:     d,
				Location: e.graphs[di].FocusLocations[fid],
				Stat:     r.qstat(v, acc.focusDate[fi][di]),
			}
			fr.DateOrder = append(fr.DateOrder, d)
		}
		res.AddFocus(fr)
	}

	return res
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func nullSummary(samples []float64) study.NullSummary {
	mean, _ := stats.Mean(samples)
	sd, _ := stats.StandardDeviationSample(samples)
	median, _ := stats.Median(samples)
	min, _ := stats.Min(samples)
	max, _ := stats.Max(samples)
	return study.NullSummary{Mean: mean, StdDev: sd, Median: median, Min: min, Max: max}
}
