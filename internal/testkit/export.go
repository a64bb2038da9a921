package testkit

import (
	"encoding/csv"
	"os"
	"strconv"

	"qcluster/domain/study"
)

// WriteCSVs writes a simulated study out in the three input formats, so the
// generated data can be fed back through the normal ingestion path.
func WriteCSVs(sim *Simulation, historiesPath, detailsPath, focusPath string) error {
	details := [][]string{{"ID", "is_case", "DOD", "latency", "weight", "exposure_duration"}}
	histories := [][]string{{"ID", "start_date", "end_date", "x", "y"}}
	for _, ind := range sim.Study.Individuals {
		l := ind.Label
		details = append(details, []string{
			ind.ID.String(),
			boolField(l.IsCase),
			l.DiagnosisDate.String(),
			strconv.Itoa(l.LatencyDays),
			strconv.FormatFloat(*l.Weight, 'g', -1, 64),
			strconv.Itoa(l.ExposureDays),
		})
		histories = append(histories, intervalRows(ind.ID.String(), ind.Intervals)...)
	}

	focus := [][]string{{"ID", "start_date", "end_date", "x", "y"}}
	for _, f := range sim.Study.Focuses {
		focus = append(focus, intervalRows(f.ID.String(), f.Intervals)...)
	}

	if err := writeCSV(detailsPath, details); err != nil {
		return err
	}
	if err := writeCSV(historiesPath, histories); err != nil {
		return err
	}
	return writeCSV(focusPath, focus)
}

func intervalRows(id string, intervals []study.ResidenceInterval) [][]string {
	rows := make([][]string, 0, len(intervals))
	for _, iv := range intervals {
		rows = append(rows, []string{
			id, iv.Start.String(), iv.End.String(),
			strconv.FormatFloat(iv.Location.X, 'g', -1, 64),
			strconv.FormatFloat(iv.Location.Y, 'g', -1, 64),
		})
	}
	return rows
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}
