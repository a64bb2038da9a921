// Package index answers "who has a defined location on date D" over the
// residence and focus histories of a study.
package index

import (
	"qcluster/domain/core"
	"qcluster/domain/study"
)

// Index resolves active entities and their coordinates for any study date.
// It is built once per run and shared read-only afterwards.
type Index struct {
	s *Study
}

// Study aliases the input aggregate to keep the constructor signature flat.
type Study = study.Study

// New builds an index over a loaded study.
func New(s *Study) *Index {
	return &Index{s: s}
}

// locationOn resolves an interval history at d. An interval covers
// start <= d < end; the final interval additionally covers d == end so an
// entity does not vanish on the last axis date its own boundaries produce.
func locationOn(intervals []study.ResidenceInterval, d core.Date) (study.Point, bool) {
	for i, iv := range intervals {
		if d < iv.Start {
			break
		}
		if d < iv.End || (i == len(intervals)-1 && d == iv.End) {
			return iv.Location, true
		}
	}
	return study.Point{}, false
}

// ActiveIndividuals maps every individual with a defined location on d to
// that location. Individuals whose history leaves d uncovered are simply
// absent from the map. The error path is a defensive invariant check for
// malformed intervals that upstream validation should have rejected; it
// aborts the run rather than produce a wrong statistic.
func (ix *Index) ActiveIndividuals(d core.Date) (map[core.IndividualID]study.Point, error) {
	active := make(map[core.IndividualID]study.Point)
	for _, ind := range ix.s.Individuals {
		if err := checkIntervals(ind.ID, ind.Intervals); err != nil {
			return nil, err
		}
		loc, ok := locationOn(ind.Intervals, d)
		if !ok {
			continue
		}
		active[ind.ID] = loc
	}
	return active, nil
}

// ActiveFocusPoints maps every focus location defined on d to its
// coordinates. Gaps in focus histories are legitimate: the point is simply
// absent from that date's graph.
func (ix *Index) ActiveFocusPoints(d core.Date) map[core.FocusID]study.Point {
	active := make(map[core.FocusID]study.Point)
	for _, f := range ix.s.Focuses {
		if loc, ok := locationOn(f.Intervals, d); ok {
			active[f.ID] = loc
		}
	}
	return active
}

// checkIntervals rejects inverted or overlapping intervals. A date covered
// twice has no single location, so the lookup must not proceed.
func checkIntervals(id core.IndividualID, intervals []study.ResidenceInterval) error {
	for i, iv := range intervals {
		if iv.End < iv.Start {
			return core.NewDataGapError(id, iv.Start)
		}
		if i > 0 && iv.Start < intervals[i-1].End {
			return core.NewDataGapError(id, iv.Start)
		}
	}
	return nil
}
