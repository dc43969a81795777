package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"rockdissolution/internal/models"
)

// CSVSink writes one CSV file per table into a directory. The first table of
// a collection is stored as {name}.csv, later ones as {name}_{table}.csv.
type CSVSink struct {
	Dir string
}

// NewCSVSink creates a sink writing into dir.
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{Dir: dir}
}

func (s *CSVSink) path(name string) string {
	return filepath.Join(s.Dir, name+".csv")
}

// Exists reports whether the primary file of name is on disk.
func (s *CSVSink) Exists(name string) (bool, error) {
	return fileExists(s.path(name))
}

// Write stores every table of c.
func (s *CSVSink) Write(c Collection) error {
	if err := c.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	for i, t := range c.Tables {
		if err := writeCSV(s.path(c.ArtifactName(i)), t); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op.
func (s *CSVSink) Close() error {
	return nil
}

func writeCSV(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Header()); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrIOFailure, path, err)
	}
	for r := 0; r < t.Rows(); r++ {
		if err := w.Write(t.StringRow(r)); err != nil {
			return fmt.Errorf("%w: %s: %v", models.ErrIOFailure, path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrIOFailure, path, err)
	}
	return f.Close()
}
