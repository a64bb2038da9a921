package study

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"qcluster/domain/core"
)

// QStat is an immutable statistic triple: observed value, empirical p-value
// and the raw significance verdict at the nominal alpha.
type QStat struct {
	Value       float64 `json:"value"`
	PValue      float64 `json:"p_value"`
	Significant bool    `json:"significant"`
}

// LocalResult is one individual's clustering statistic on one date. The same
// instance is reachable from both the date axis and the case axis.
type LocalResult struct {
	Individual core.IndividualID `json:"id"`
	Date       core.Date         `json:"date"`
	Location   Point             `json:"location"`
	Stat       QStat             `json:"stat"`
}

// DateResult is the time-slice view for one axis date.
type DateResult struct {
	Date        core.Date `json:"date"`
	Stat        QStat     `json:"stat"`
	ActiveCount int       `json:"active_count"`
	CaseCount   int       `json:"case_count"`
	Undersized  bool      `json:"undersized"`

	// CorrectedSignificant mirrors Stat.Significant unless an FDR run
	// reclassified this date against the adjusted alpha.
	CorrectedSignificant bool `json:"corrected_significant"`

	// Points holds this date's significant individuals, keyed by id.
	Points     map[core.IndividualID]*LocalResult `json:"points"`
	PointOrder []core.IndividualID                `json:"-"`
}

// CaseResult is the per-individual view for one case.
type CaseResult struct {
	Individual core.IndividualID `json:"id"`
	Global     QStat             `json:"global"`
	CaseYears  float64           `json:"case_years"`

	// QCaseYears is the global statistic normalized by this case's own
	// accrued person-time.
	QCaseYears float64 `json:"q_case_years"`

	CorrectedSignificant bool `json:"corrected_significant"`

	// Points maps every date this case was active to its local statistic.
	Points    map[core.Date]*LocalResult `json:"points"`
	DateOrder []core.Date                `json:"-"`
}

// FocusLocalResult is a focus location's statistic on one date.
type FocusLocalResult struct {
	Focus    core.FocusID `json:"id"`
	Date     core.Date    `json:"date"`
	Location Point        `json:"location"`
	Stat     QStat        `json:"stat"`
}

// FocusResult aggregates one focus location across the study window.
type FocusResult struct {
	Focus      core.FocusID `json:"id"`
	Global     QStat        `json:"global"`
	QCaseYears float64      `json:"q_case_years"`

	Points    map[core.Date]*FocusLocalResult `json:"points"`
	DateOrder []core.Date                     `json:"-"`
}

// CorrectionOutcome reports one multiple-testing correction applied to one
// test family ("dates" or "points").
type CorrectionOutcome struct {
	Family        string     `json:"family"`
	Method        Correction `json:"method"`
	Tests         int        `json:"tests"`
	Significant   int        `json:"significant"`
	PValue        float64    `json:"p_value,omitempty"`
	FamilySig     bool       `json:"family_significant"`
	AdjustedAlpha float64    `json:"adjusted_alpha,omitempty"`
}

// NullSummary describes the permutation null distribution of the global
// statistic.
type NullSummary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Results is the long-lived aggregate a completed analysis run produces.
// It is built once and immutable thereafter.
type Results struct {
	StudyID core.StudyID `json:"study_id"`
	Config  Config       `json:"config"`

	// Seed is the resolved random seed actually consumed by the run.
	Seed        int64     `json:"seed"`
	Fingerprint core.Hash `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`

	// Global statistics: raw Q, case-count-normalized Qf, and the
	// case-years-normalized form. All three share one permutation null.
	Q          QStat `json:"q"`
	Qf         QStat `json:"qf"`
	QCaseYears QStat `json:"q_case_years"`

	TotalCases     int         `json:"total_cases"`
	TotalCaseYears float64     `json:"total_case_years"`
	GlobalNull     NullSummary `json:"global_null"`

	Dates     map[core.Date]*DateResult `json:"dates"`
	DateOrder []core.Date               `json:"-"`

	Cases     map[core.IndividualID]*CaseResult `json:"cases"`
	CaseOrder []core.IndividualID               `json:"-"`

	Focuses    map[core.FocusID]*FocusResult `json:"focuses"`
	FocusOrder []core.FocusID                `json:"-"`

	// DatesLowerKPlusOne lists the axis dates with fewer than k+1 active
	// individuals. They are reported but excluded from global aggregation.
	DatesLowerKPlusOne []core.Date `json:"dates_lower_k_plus_one"`

	Corrections []CorrectionOutcome `json:"corrections,omitempty"`
}

// NewResults creates the results container for a run.
func NewResults(id core.StudyID, cfg Config, seed int64) *Results {
	return &Results{
		StudyID:   id,
		Config:    cfg,
		Seed:      seed,
		CreatedAt: time.Now().UTC(),
		Dates:     make(map[core.Date]*DateResult),
		Cases:     make(map[core.IndividualID]*CaseResult),
		Focuses:   make(map[core.FocusID]*FocusResult),
	}
}

// AddDate appends a date-axis entry, preserving insertion order.
func (r *Results) AddDate(dr *DateResult) {
	r.Dates[dr.Date] = dr
	r.DateOrder = append(r.DateOrder, dr.Date)
}

// AddCase appends a case-axis entry, preserving insertion order.
func (r *Results) AddCase(cr *CaseResult) {
	r.Cases[cr.Individual] = cr
	r.CaseOrder = append(r.CaseOrder, cr.Individual)
}

// AddFocus appends a focus entry, preserving insertion order.
func (r *Results) AddFocus(fr *FocusResult) {
	r.Focuses[fr.Focus] = fr
	r.FocusOrder = append(r.FocusOrder, fr.Focus)
}

// RebuildOrder reconstructs the ordered access indexes after the container
// has been decoded from JSON. Every axis is keyed by a naturally ordered
// identifier, so sorted keys reproduce the original insertion order.
func (r *Results) RebuildOrder() {
	r.DateOrder = r.DateOrder[:0]
	for d := range r.Dates {
		r.DateOrder = append(r.DateOrder, d)
	}
	SortDates(r.DateOrder)

	r.CaseOrder = r.CaseOrder[:0]
	for id := range r.Cases {
		r.CaseOrder = append(r.CaseOrder, id)
	}
	sort.Slice(r.CaseOrder, func(i, j int) bool { return r.CaseOrder[i] < r.CaseOrder[j] })

	r.FocusOrder = r.FocusOrder[:0]
	for id := range r.Focuses {
		r.FocusOrder = append(r.FocusOrder, id)
	}
	sort.Slice(r.FocusOrder, func(i, j int) bool { return r.FocusOrder[i] < r.FocusOrder[j] })

	for _, d := range r.DateOrder {
		dr := r.Dates[d]
		dr.PointOrder = dr.PointOrder[:0]
		for id := range dr.Points {
			dr.PointOrder = append(dr.PointOrder, id)
		}
		sort.Slice(dr.PointOrder, func(i, j int) bool { return dr.PointOrder[i] < dr.PointOrder[j] })
	}
	for _, id := range r.CaseOrder {
		cr := r.Cases[id]
		cr.DateOrder = cr.DateOrder[:0]
		for d := range cr.Points {
			cr.DateOrder = append(cr.DateOrder, d)
		}
		SortDates(cr.DateOrder)
	}
	for _, id := range r.FocusOrder {
		fr := r.Focuses[id]
		fr.DateOrder = fr.DateOrder[:0]
		for d := range fr.Points {
			fr.DateOrder = append(fr.DateOrder, d)
		}
		SortDates(fr.DateOrder)
	}
}

// SignificantDateCount counts raw-significant time slices.
func (r *Results) SignificantDateCount() int {
	n := 0
	for _, d := range r.DateOrder {
		if r.Dates[d].Stat.Significant {
			n++
		}
	}
	return n
}

// SignificantCaseCount counts raw-significant per-case global tests.
func (r *Results) SignificantCaseCount() int {
	n := 0
	for _, id := range r.CaseOrder {
		if r.Cases[id].Global.Significant {
			n++
		}
	}
	return n
}

// ============================================================================
// Tabular export
// ============================================================================

// Table is one normalized result set ready for delimited output.
type Table struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Result table names.
const (
	TableGlobal     = "global"
	TableCases      = "cases"
	TableDates      = "dates"
	TableCasesDates = "cases_dates"
	TableFocus      = "focus"
	TableFocusDates = "focus_dates"
)

// TableNames lists the export tables in their canonical order.
func TableNames() []string {
	return []string{TableGlobal, TableCases, TableDates, TableCasesDates, TableFocus, TableFocusDates}
}

// Table renders one named result set. Every table has a stable header and
// one row per entity or entity/date pair; no recomputation happens here.
func (r *Results) Table(name string) (Table, error) {
	switch name {
	case TableGlobal:
		return r.globalTable(), nil
	case TableCases:
		return r.casesTable(), nil
	case TableDates:
		return r.datesTable(), nil
	case TableCasesDates:
		return r.casesDatesTable(), nil
	case TableFocus:
		return r.focusTable(), nil
	case TableFocusDates:
		return r.focusDatesTable(), nil
	}
	return Table{}, fmt.Errorf("%w: %s", core.ErrTableNotFound, name)
}

// Tables renders all six result sets.
func (r *Results) Tables() []Table {
	out := make([]Table, 0, 6)
	for _, name := range TableNames() {
		t, _ := r.Table(name)
		out = append(out, t)
	}
	return out
}

func (r *Results) globalTable() Table {
	rows := [][]string{
		{"q", ff(r.Q.Value), ff(r.Q.PValue), fb(r.Q.Significant)},
		{"qf", ff(r.Qf.Value), ff(r.Qf.PValue), fb(r.Qf.Significant)},
		{"q_case_years", ff(r.QCaseYears.Value), ff(r.QCaseYears.PValue), fb(r.QCaseYears.Significant)},
	}
	for _, c := range r.Corrections {
		switch c.Method {
		case CorrectionBinomial:
			rows = append(rows, []string{
				"binomial_" + c.Family, strconv.Itoa(c.Significant), ff(c.PValue), fb(c.FamilySig),
			})
		case CorrectionFDR:
			rows = append(rows, []string{
				"fdr_adjusted_alpha_" + c.Family, ff(c.AdjustedAlpha), "", fb(c.FamilySig),
			})
		}
	}
	return Table{
		Name:   TableGlobal,
		Header: []string{"statistic", "value", "p_value", "significant"},
		Rows:   rows,
	}
}

func (r *Results) casesTable() Table {
	rows := make([][]string, 0, len(r.CaseOrder))
	for _, id := range r.CaseOrder {
		c := r.Cases[id]
		rows = append(rows, []string{
			id.String(), ff(c.CaseYears),
			ff(c.Global.Value), ff(c.QCaseYears),
			ff(c.Global.PValue), fb(c.Global.Significant), fb(c.CorrectedSignificant),
		})
	}
	return Table{
		Name:   TableCases,
		Header: []string{"id", "case_years", "q", "q_case_years", "p_value", "significant", "corrected_significant"},
		Rows:   rows,
	}
}

func (r *Results) datesTable() Table {
	rows := make([][]string, 0, len(r.DateOrder))
	for _, d := range r.DateOrder {
		dr := r.Dates[d]
		rows = append(rows, []string{
			d.String(), strconv.Itoa(dr.ActiveCount), strconv.Itoa(dr.CaseCount), fb(dr.Undersized),
			ff(dr.Stat.Value), ff(dr.Stat.PValue), fb(dr.Stat.Significant), fb(dr.CorrectedSignificant),
		})
	}
	return Table{
		Name:   TableDates,
		Header: []string{"date", "active_count", "case_count", "undersized", "q", "p_value", "significant", "corrected_significant"},
		Rows:   rows,
	}
}

func (r *Results) casesDatesTable() Table {
	var rows [][]string
	for _, id := range r.CaseOrder {
		c := r.Cases[id]
		for _, d := range c.DateOrder {
			lr := c.Points[d]
			rows = append(rows, []string{
				id.String(), d.String(),
				ff(lr.Location.X), ff(lr.Location.Y),
				ff(lr.Stat.Value), ff(lr.Stat.PValue), fb(lr.Stat.Significant),
			})
		}
	}
	return Table{
		Name:   TableCasesDates,
		Header: []string{"id", "date", "x", "y", "q", "p_value", "significant"},
		Rows:   rows,
	}
}

func (r *Results) focusTable() Table {
	rows := make([][]string, 0, len(r.FocusOrder))
	for _, id := range r.FocusOrder {
		f := r.Focuses[id]
		rows = append(rows, []string{
			id.String(), ff(f.Global.Value), ff(f.QCaseYears),
			ff(f.Global.PValue), fb(f.Global.Significant),
		})
	}
	return Table{
		Name:   TableFocus,
		Header: []string{"id", "q", "q_case_years", "p_value", "significant"},
		Rows:   rows,
	}
}

func (r *Results) focusDatesTable() Table {
	var rows [][]string
	for _, id := range r.FocusOrder {
		f := r.Focuses[id]
		for _, d := range f.DateOrder {
			fr := f.Points[d]
			rows = append(rows, []string{
				id.String(), d.String(),
				ff(fr.Location.X), ff(fr.Location.Y),
				ff(fr.Stat.Value), ff(fr.Stat.PValue), fb(fr.Stat.Significant),
			})
		}
	}
	return Table{
		Name:   TableFocusDates,
		Header: []string{"id", "date", "x", "y", "q", "p_value", "significant"},
		Rows:   rows,
	}
}

func ff(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func fb(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// SortDates sorts a date slice ascending in place and returns it.
func SortDates(dates []core.Date) []core.Date {
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	return dates
}
