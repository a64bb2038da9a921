package study

import (
	"fmt"
	"math"
	"sort"

	"qcluster/domain/core"
)

// Point is a planar coordinate pair.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the Euclidean distance between two points.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// ResidenceInterval is one entry of an entity's movement history: a location
// held from Start up to (but not including) End. The final interval of a
// history is closed on the right so the entity stays active on the last axis
// date its own boundaries produce.
type ResidenceInterval struct {
	Start    core.Date `json:"start_date"`
	End      core.Date `json:"end_date"`
	Location Point     `json:"location"`
}

// Label carries the case/control assignment of an individual plus the timing
// fields that travel with it under permutation. Weight is the covariate-
// adjusted case probability; nil means 1.0 for cases and 0.0 for controls.
type Label struct {
	IsCase        bool       `json:"is_case"`
	Weight        *float64   `json:"weight,omitempty"`
	DiagnosisDate *core.Date `json:"date_of_diagnosis,omitempty"`
	LatencyDays   int        `json:"latency_days"`
	ExposureDays  int        `json:"exposure_duration_days"`
}

// EffectiveWeight resolves the case probability, defaulting per case status.
func (l Label) EffectiveWeight() float64 {
	if l.Weight != nil {
		return *l.Weight
	}
	if l.IsCase {
		return 1.0
	}
	return 0.0
}

// InExposureWindow reports whether d falls inside the label's exposure
// window: after diagnosis minus (latency + exposure duration) and strictly
// before diagnosis. Without a diagnosis date there is no window.
func (l Label) InExposureWindow(d core.Date) bool {
	if l.DiagnosisDate == nil {
		return false
	}
	dod := *l.DiagnosisDate
	start := dod.AddDays(-(l.LatencyDays + l.ExposureDays))
	return d >= start && d < dod
}

// Individual is one study subject: a label plus a residence history.
type Individual struct {
	ID        core.IndividualID   `json:"id"`
	Label     Label               `json:"label"`
	Intervals []ResidenceInterval `json:"intervals"`
}

// FocusLocation is a point of interest with its own movement history. It is
// only ever a query point, never a case/control subject.
type FocusLocation struct {
	ID        core.FocusID        `json:"id"`
	Intervals []ResidenceInterval `json:"intervals"`
}

// Study is the loaded, validated input aggregate shared read-only by every
// component of an analysis run.
type Study struct {
	Individuals []*Individual
	Focuses     []*FocusLocation

	byID map[core.IndividualID]*Individual
}

// NewStudy assembles a study from loaded individuals and focus locations.
// Individuals are ordered by identifier so downstream tie breaking and
// iteration are reproducible. An individual without residence intervals is
// a dangling details row and rejected.
func NewStudy(individuals []*Individual, focuses []*FocusLocation) (*Study, error) {
	if len(individuals) == 0 {
		return nil, core.ErrEmptyStudy
	}

	sorted := make([]*Individual, len(individuals))
	copy(sorted, individuals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[core.IndividualID]*Individual, len(sorted))
	for _, ind := range sorted {
		if len(ind.Intervals) == 0 {
			return nil, fmt.Errorf("%w: %s has no residence history", core.ErrDanglingID, ind.ID)
		}
		if _, dup := byID[ind.ID]; dup {
			return nil, fmt.Errorf("duplicate individual id %s", ind.ID)
		}
		sortIntervals(ind.Intervals)
		byID[ind.ID] = ind
	}

	fsorted := make([]*FocusLocation, len(focuses))
	copy(fsorted, focuses)
	sort.Slice(fsorted, func(i, j int) bool { return fsorted[i].ID < fsorted[j].ID })
	for _, f := range fsorted {
		sortIntervals(f.Intervals)
	}

	return &Study{Individuals: sorted, Focuses: fsorted, byID: byID}, nil
}

func sortIntervals(intervals []ResidenceInterval) {
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start < intervals[j].Start })
}

// Individual looks up a subject by identifier.
func (s *Study) Individual(id core.IndividualID) (*Individual, bool) {
	ind, ok := s.byID[id]
	return ind, ok
}

// NumCases counts the case-labelled individuals.
func (s *Study) NumCases() int {
	n := 0
	for _, ind := range s.Individuals {
		if ind.Label.IsCase {
			n++
		}
	}
	return n
}

// TimeAxis returns the sorted distinct dates at which the active-location
// configuration can change: every interval boundary across individuals and
// focus locations.
func (s *Study) TimeAxis() []core.Date {
	seen := make(map[core.Date]struct{})
	add := func(intervals []ResidenceInterval) {
		for _, iv := range intervals {
			seen[iv.Start] = struct{}{}
			seen[iv.End] = struct{}{}
		}
	}
	for _, ind := range s.Individuals {
		add(ind.Intervals)
	}
	for _, f := range s.Focuses {
		add(f.Intervals)
	}

	axis := make([]core.Date, 0, len(seen))
	for d := range seen {
		axis = append(axis, d)
	}
	sort.Slice(axis, func(i, j int) bool { return axis[i] < axis[j] })
	return axis
}

// PersonYears accrues the total residence time of an interval history in
// fractional years.
func PersonYears(intervals []ResidenceInterval) float64 {
	total := 0.0
	for _, iv := range intervals {
		total += core.YearsBetween(iv.Start, iv.End)
	}
	return total
}

// CaseYears sums the person-time accrued by case individuals.
func (s *Study) CaseYears() float64 {
	total := 0.0
	for _, ind := range s.Individuals {
		if ind.Label.IsCase {
			total += PersonYears(ind.Intervals)
		}
	}
	return total
}
