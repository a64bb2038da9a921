// Package csvio parses the three tabular input datasets into study entities
// and writes result tables back out as delimited files.
package csvio

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"qcluster/domain/core"
	"qcluster/domain/study"
	apperrors "qcluster/internal/errors"
)

// Reader loads a study from the details, residence-history and optional
// focus-geography CSV files.
type Reader struct {
	DetailsPath   string
	HistoriesPath string
	FocusPath     string // optional; empty means no focus data
}

// NewReader creates a study reader over the given file paths.
func NewReader(details, histories, focus string) *Reader {
	return &Reader{DetailsPath: details, HistoriesPath: histories, FocusPath: focus}
}

// LoadStudy parses and validates all inputs into a Study. Every individual
// in the details table must have residence intervals and vice versa.
func (r *Reader) LoadStudy(ctx context.Context) (*study.Study, error) {
	labels, order, err := r.readDetails()
	if err != nil {
		return nil, err
	}
	histories, err := readIntervals(r.HistoriesPath)
	if err != nil {
		return nil, err
	}

	individuals := make([]*study.Individual, 0, len(order))
	for _, id := range order {
		intervals, ok := histories[id]
		if !ok {
			return nil, apperrors.IntegrityViolation(
				fmt.Sprintf("individual %s has no residence history", id))
		}
		individuals = append(individuals, &study.Individual{
			ID:        core.IndividualID(id),
			Label:     labels[id],
			Intervals: intervals,
		})
		delete(histories, id)
	}
	for id := range histories {
		return nil, apperrors.IntegrityViolation(
			fmt.Sprintf("residence history references unknown individual %s", id))
	}

	var focuses []*study.FocusLocation
	if r.FocusPath != "" {
		focusIntervals, err := readIntervals(r.FocusPath)
		if err != nil {
			return nil, err
		}
		for _, id := range core.SortedKeys(focusIntervals) {
			focuses = append(focuses, &study.FocusLocation{
				ID:        core.FocusID(id),
				Intervals: focusIntervals[id],
			})
		}
	}

	s, err := study.NewStudy(individuals, focuses)
	if err != nil {
		return nil, apperrors.Wrap(err, "study validation failed")
	}
	return s, nil
}

// readDetails parses the details table: ID, is_case and the optional DOD,
// latency, weight and exposure_duration columns, order-independent.
func (r *Reader) readDetails() (map[string]study.Label, []string, error) {
	rows, cols, err := readTable(r.DetailsPath)
	if err != nil {
		return nil, nil, err
	}
	if err := requireColumns(r.DetailsPath, cols, "id", "is_case"); err != nil {
		return nil, nil, err
	}

	labels := make(map[string]study.Label, len(rows))
	var order []string
	for i, row := range rows {
		id := strings.TrimSpace(row[cols["id"]])
		if id == "" {
			return nil, nil, rowError(r.DetailsPath, i, "empty id")
		}
		if _, dup := labels[id]; dup {
			return nil, nil, rowError(r.DetailsPath, i, fmt.Sprintf("duplicate id %s", id))
		}

		isCase, err := parseBool(row[cols["is_case"]])
		if err != nil {
			return nil, nil, rowError(r.DetailsPath, i, err.Error())
		}
		label := study.Label{IsCase: isCase}

		if v, ok := field(row, cols, "dod"); ok {
			d, err := core.ParseDate(v)
			if err != nil {
				return nil, nil, rowError(r.DetailsPath, i, err.Error())
			}
			label.DiagnosisDate = &d
		}
		if v, ok := field(row, cols, "latency"); ok {
			label.LatencyDays, err = parseNonNegativeInt(v, "latency")
			if err != nil {
				return nil, nil, rowError(r.DetailsPath, i, err.Error())
			}
		}
		if v, ok := field(row, cols, "exposure_duration"); ok {
			label.ExposureDays, err = parseNonNegativeInt(v, "exposure_duration")
			if err != nil {
				return nil, nil, rowError(r.DetailsPath, i, err.Error())
			}
		}
		if v, ok := field(row, cols, "weight"); ok {
			w, err := strconv.ParseFloat(v, 64)
			if err != nil || w < 0 || w > 1 {
				return nil, nil, rowError(r.DetailsPath, i, fmt.Sprintf("weight %q outside [0,1]", v))
			}
			label.Weight = &w
		}

		labels[id] = label
		order = append(order, id)
	}
	return labels, order, nil
}

// readIntervals parses a movement-history table (residence or focus):
// ID, start_date, end_date, x, y.
func readIntervals(path string) (map[string][]study.ResidenceInterval, error) {
	rows, cols, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(path, cols, "id", "start_date", "end_date", "x", "y"); err != nil {
		return nil, err
	}

	out := make(map[string][]study.ResidenceInterval)
	for i, row := range rows {
		id := strings.TrimSpace(row[cols["id"]])
		if id == "" {
			return nil, rowError(path, i, "empty id")
		}
		start, err := core.ParseDate(strings.TrimSpace(row[cols["start_date"]]))
		if err != nil {
			return nil, rowError(path, i, err.Error())
		}
		end, err := core.ParseDate(strings.TrimSpace(row[cols["end_date"]]))
		if err != nil {
			return nil, rowError(path, i, err.Error())
		}
		if end < start {
			return nil, rowError(path, i, fmt.Sprintf("end_date %s before start_date %s", end, start))
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(row[cols["x"]]), 64)
		if err != nil {
			return nil, rowError(path, i, fmt.Sprintf("invalid x %q", row[cols["x"]]))
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(row[cols["y"]]), 64)
		if err != nil {
			return nil, rowError(path, i, fmt.Sprintf("invalid y %q", row[cols["y"]]))
		}
		out[id] = append(out[id], study.ResidenceInterval{
			Start:    start,
			End:      end,
			Location: study.Point{X: x, Y: y},
		})
	}
	return out, nil
}

// readTable reads a CSV file into rows plus a lowercase header->index map.
func readTable(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, "reading header of %s", path)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, apperrors.Wrapf(err, "reading %s", path)
		}
		rows = append(rows, row)
	}
	return rows, cols, nil
}

func requireColumns(path string, cols map[string]int, names ...string) error {
	for _, name := range names {
		if _, ok := cols[name]; !ok {
			return apperrors.InvalidInput(fmt.Sprintf("%s: missing column %q", path, name))
		}
	}
	return nil
}

func field(row []string, cols map[string]int, name string) (string, bool) {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return "", false
	}
	v := strings.TrimSpace(row[idx])
	return v, v != ""
}

func parseBool(s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "1", "true", "TRUE", "True":
		return true, nil
	case "0", "false", "FALSE", "False":
		return false, nil
	}
	return false, fmt.Errorf("invalid is_case value %q", s)
}

func parseNonNegativeInt(s, name string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return n, nil
}

func rowError(path string, rowIdx int, msg string) error {
	return apperrors.InvalidInput(fmt.Sprintf("%s row %d: %s", path, rowIdx+2, msg))
}
