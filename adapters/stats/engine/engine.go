// Package engine computes the family of Jacquez Q statistics over per-date
// nearest-neighbor graphs and derives their significance by permutation.
package engine

import (
	"math"

	"qcluster/adapters/stats/index"
	"qcluster/adapters/stats/knn"
	"qcluster/domain/core"
	"qcluster/domain/study"
)

// Engine evaluates every Q statistic for one labeling of the study
// population. Geometry is fixed for the lifetime of a run: the per-date
// neighbor graphs are built once here and shared read-only by the observed
// evaluation and every permutation trial.
type Engine struct {
	cfg    study.Config
	s      *study.Study
	axis   []core.Date
	graphs []*knn.Graph

	// included marks axis dates that feed global aggregation; undersized
	// dates are reported but excluded.
	included []bool

	ids  []core.IndividualID
	slot map[core.IndividualID]int

	// tracked are the slots of observed cases: the individuals whose local
	// statistics are recorded and tested.
	tracked []int

	focusIDs []core.FocusID
	fslot    map[core.FocusID]int
}

// Snapshot holds every statistic value produced by one labeling. Entries
// for inactive individual/date pairs are NaN.
type Snapshot struct {
	Global float64

	// DateQ is the time-slice statistic per axis date.
	DateQ []float64

	// LocalQ is indexed [tracked][date].
	LocalQ [][]float64

	// CaseQ is each tracked individual's local statistic summed over
	// included dates.
	CaseQ []float64

	// FocusDateQ is indexed [focus][date]; FocusQ aggregates over included
	// dates.
	FocusDateQ [][]float64
	FocusQ     []float64
}

// New prepares an engine for a validated study and configuration: it fixes
// the time axis, builds one neighbor graph per axis date and records which
// dates are undersized.
func New(s *study.Study, cfg study.Config) (*Engine, error) {
	if err := cfg.Validate(len(s.Individuals)); err != nil {
		return nil, err
	}

	ix := index.New(s)
	axis := s.TimeAxis()

	e := &Engine{
		cfg:      cfg,
		s:        s,
		axis:     axis,
		graphs:   make([]*knn.Graph, len(axis)),
		included: make([]bool, len(axis)),
		slot:     make(map[core.IndividualID]int, len(s.Individuals)),
		fslot:    make(map[core.FocusID]int, len(s.Focuses)),
	}

	for i, ind := range s.Individuals {
		e.ids = append(e.ids, ind.ID)
		e.slot[ind.ID] = i
		if ind.Label.IsCase {
			e.tracked = append(e.tracked, i)
		}
	}
	for i, f := range s.Focuses {
		e.focusIDs = append(e.focusIDs, f.ID)
		e.fslot[f.ID] = i
	}

	for di, d := range axis {
		people, err := ix.ActiveIndividuals(d)
		if err != nil {
			return nil, err
		}
		g := knn.Build(d, cfg.K, people, ix.ActiveFocusPoints(d))
		e.graphs[di] = g
		e.included[di] = !g.Undersized
	}
	return e, nil
}

// Axis returns the study time axis.
func (e *Engine) Axis() []core.Date { return e.axis }

// Graphs returns the per-date neighbor graphs, aligned with Axis.
func (e *Engine) Graphs() []*knn.Graph { return e.graphs }

// Tracked returns the identifiers whose local statistics are recorded, in
// ascending order.
func (e *Engine) Tracked() []core.IndividualID {
	out := make([]core.IndividualID, len(e.tracked))
	for i, s := range e.tracked {
		out[i] = e.ids[s]
	}
	return out
}

// FocusIDs returns the focus identifiers in ascending order.
func (e *Engine) FocusIDs() []core.FocusID { return e.focusIDs }

// ObservedLabels returns the study's real label assignment in slot order.
func (e *Engine) ObservedLabels() []study.Label {
	labels := make([]study.Label, len(e.s.Individuals))
	for i, ind := range e.s.Individuals {
		labels[i] = ind.Label
	}
	return labels
}

// contribution is an individual's case-positive value at date d under the
// configured clustering semantics: the case indicator, or the supplied case
// probability when weights are enabled, gated by the exposure window when
// exposure clustering is selected.
func (e *Engine) contribution(l study.Label, d core.Date) float64 {
	if e.cfg.UseExposure && !l.InExposureWindow(d) {
		return 0
	}
	if e.cfg.UseWeights {
		return l.EffectiveWeight()
	}
	if l.IsCase {
		return 1
	}
	return 0
}

// Compute evaluates every statistic for one label assignment. labels must
// be in slot order (ascending individual identifier).
func (e *Engine) Compute(labels []study.Label) *Snapshot {
	snap := &Snapshot{
		DateQ:      make([]float64, len(e.axis)),
		LocalQ:     make([][]float64, len(e.tracked)),
		CaseQ:      make([]float64, len(e.tracked)),
		FocusDateQ: make([][]float64, len(e.focusIDs)),
		FocusQ:     make([]float64, len(e.focusIDs)),
	}
	for ti := range snap.LocalQ {
		snap.LocalQ[ti] = naNs(len(e.axis))
	}
	for fi := range snap.FocusDateQ {
		snap.FocusDateQ[fi] = naNs(len(e.axis))
	}

	contrib := make([]float64, len(labels))
	qis := make([]float64, len(labels))
	for di, d := range e.axis {
		g := e.graphs[di]

		for _, id := range g.IDs {
			s := e.slot[id]
			contrib[s] = e.contribution(labels[s], d)
		}

		var slice float64
		for _, id := range g.IDs {
			s := e.slot[id]
			qi := 0.0
			for _, nb := range g.Individuals[id] {
				qi += contrib[e.slot[nb.ID]]
			}
			qis[s] = qi
			slice += contrib[s] * qi
		}
		snap.DateQ[di] = slice
		if e.included[di] {
			snap.Global += slice
		}

		for ti, s := range e.tracked {
			if _, active := g.Locations[e.ids[s]]; !active {
				continue
			}
			snap.LocalQ[ti][di] = qis[s]
			if e.included[di] {
				snap.CaseQ[ti] += qis[s]
			}
		}

		for fid, neighbors := range g.Focuses {
			fi := e.fslot[fid]
			qf := 0.0
			for _, nb := range neighbors {
				qf += contrib[e.slot[nb.ID]]
			}
			snap.FocusDateQ[fi][di] = qf
			if e.included[di] {
				snap.FocusQ[fi] += qf
			}
		}
	}
	return snap
}

func naNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
