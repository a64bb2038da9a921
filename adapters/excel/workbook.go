// Package excel exports a completed run as a single workbook, one sheet per
// result table.
package excel

import (
	"context"

	"github.com/xuri/excelize/v2"

	"qcluster/domain/study"
	apperrors "qcluster/internal/errors"
)

// WorkbookWriter writes the six result tables as sheets of one xlsx file.
type WorkbookWriter struct {
	Path string
}

// NewWorkbookWriter creates a workbook writer for the given output path.
func NewWorkbookWriter(path string) *WorkbookWriter {
	return &WorkbookWriter{Path: path}
}

// WriteResults builds and saves the workbook.
func (w *WorkbookWriter) WriteResults(ctx context.Context, res *study.Results) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, table := range res.Tables() {
		sheet := table.Name
		if i == 0 {
			// Rename the default sheet instead of leaving it empty.
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return apperrors.Wrapf(err, "naming sheet %s", sheet)
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return apperrors.Wrapf(err, "creating sheet %s", sheet)
			}
		}
		if err := writeSheet(f, sheet, table); err != nil {
			return err
		}
	}

	if err := f.SaveAs(w.Path); err != nil {
		return apperrors.Wrapf(err, "saving workbook %s", w.Path)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, table study.Table) error {
	writeRow := func(rowIdx int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
		}
		return f.SetSheetRow(sheet, cell, &row)
	}

	if err := writeRow(1, table.Header); err != nil {
		return apperrors.Wrapf(err, "writing sheet %s", sheet)
	}
	for i, r := range table.Rows {
		if err := writeRow(i+2, r); err != nil {
			return apperrors.Wrapf(err, "writing sheet %s", sheet)
		}
	}
	return nil
}
