package csvio

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"qcluster/domain/study"
	apperrors "qcluster/internal/errors"
)

// Writer exports the six result tables as delimited files under a folder,
// named <prefix>_<table>.csv.
type Writer struct {
	Dir    string
	Prefix string
}

// NewWriter creates a table writer for the given output folder and prefix.
func NewWriter(dir, prefix string) *Writer {
	return &Writer{Dir: dir, Prefix: prefix}
}

// WriteResults writes every result table of a completed run.
func (w *Writer) WriteResults(ctx context.Context, res *study.Results) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return apperrors.Wrapf(err, "creating output folder %s", w.Dir)
	}
	for _, table := range res.Tables() {
		if err := w.writeTable(table); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable writes a single named table to an explicit file path.
func WriteTable(path string, table study.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(table.Header); err != nil {
		return apperrors.Wrapf(err, "writing %s", path)
	}
	for _, row := range table.Rows {
		if err := writer.Write(row); err != nil {
			return apperrors.Wrapf(err, "writing %s", path)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.Wrapf(err, "flushing %s", path)
	}
	return nil
}

func (w *Writer) writeTable(table study.Table) error {
	name := fmt.Sprintf("%s_%s.csv", w.Prefix, table.Name)
	return WriteTable(filepath.Join(w.Dir, name), table)
}
