package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"rockdissolution/internal/models"
)

const (
	// CombinedSheet is the sheet holding the first table of a per-collection workbook.
	CombinedSheet = "Combined"

	defaultSheet  = "Sheet1"
	maxSheetName  = 31
	sheetNameDeny = `[]:*?/\`
)

// WorkbookSink stores every collection as a sheet of a single .xlsx file,
// sheets kept in natural name order.
// Tables of one collection are stacked vertically, separated by a blank row.
// The file is saved after every write so finished sheets survive an
// interrupted run.
type WorkbookSink struct {
	mu          sync.Mutex
	path        string
	file        *excelize.File
	placeholder bool
}

// NewWorkbookSink opens path, or prepares a new workbook if it does not exist.
func NewWorkbookSink(path string) (*WorkbookSink, error) {
	s := &WorkbookSink{path: path}
	f, err := excelize.OpenFile(path)
	switch {
	case err == nil:
		s.file = f
	case errors.Is(err, os.ErrNotExist):
		s.file = excelize.NewFile()
		s.placeholder = true
	default:
		return nil, fmt.Errorf("%w: open workbook %s: %v", models.ErrIOFailure, path, err)
	}
	return s, nil
}

// Path returns the workbook location.
func (s *WorkbookSink) Path() string {
	return s.path
}

// Exists reports whether the workbook holds a sheet for name.
func (s *WorkbookSink) Exists(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.placeholder {
		return false, nil
	}
	idx, err := s.file.GetSheetIndex(sheetName(name))
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	return idx >= 0, nil
}

// Write replaces the sheet for c and saves the workbook.
func (s *WorkbookSink) Write(c Collection) error {
	if err := c.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sheet := sheetName(c.Name)
	if s.placeholder {
		if err := s.file.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
		}
		s.placeholder = false
	} else if err := resetSheet(s.file, sheet); err != nil {
		return err
	}

	row := 1
	for i, t := range c.Tables {
		if i > 0 {
			row++
		}
		next, err := writeTable(s.file, sheet, row, t)
		if err != nil {
			return err
		}
		row = next
	}
	if err := sortSheets(s.file); err != nil {
		return err
	}
	return s.save()
}

func (s *WorkbookSink) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("%w: save workbook %s: %v", models.ErrIOFailure, s.path, err)
	}
	return nil
}

// Close releases the workbook.
func (s *WorkbookSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// FileWorkbookSink stores each collection in its own .xlsx file named after
// the collection, one sheet per table. The first table goes to the
// "Combined" sheet.
type FileWorkbookSink struct {
	Dir string
}

// NewFileWorkbookSink creates a sink writing into dir.
func NewFileWorkbookSink(dir string) *FileWorkbookSink {
	return &FileWorkbookSink{Dir: dir}
}

func (s *FileWorkbookSink) path(name string) string {
	return filepath.Join(s.Dir, name+".xlsx")
}

// Exists reports whether the workbook for name is on disk.
func (s *FileWorkbookSink) Exists(name string) (bool, error) {
	return fileExists(s.path(name))
}

// Write creates or overwrites the workbook for c.
func (s *FileWorkbookSink) Write(c Collection) error {
	if err := c.validate(); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, t := range c.Tables {
		sheet := CombinedSheet
		if i > 0 {
			sheet = sheetName(t.Name)
		}
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
		}
		if _, err := writeTable(f, sheet, 1, t); err != nil {
			return err
		}
	}

	path := s.path(c.Name)
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%w: save workbook %s: %v", models.ErrIOFailure, path, err)
	}
	return nil
}

// Close is a no-op; every write closes its own file.
func (s *FileWorkbookSink) Close() error {
	return nil
}

// ReadSheet reads a sheet of an .xlsx file back as strings, header first.
func ReadSheet(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook %s: %v", models.ErrIOFailure, path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName(sheet))
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %s: %v", models.ErrIOFailure, sheet, err)
	}
	return rows, nil
}

// writeTable writes t starting at row and returns the first row after it.
func writeTable(f *excelize.File, sheet string, row int, t *Table) (int, error) {
	header := make([]interface{}, len(t.Columns))
	for i, name := range t.Header() {
		header[i] = name
	}
	if err := setRow(f, sheet, row, header); err != nil {
		return 0, err
	}
	row++

	for r := 0; r < t.Rows(); r++ {
		values := make([]interface{}, len(t.Columns))
		for i, v := range t.Row(r) {
			values[i] = v
		}
		if err := setRow(f, sheet, row, values); err != nil {
			return 0, err
		}
		row++
	}
	return row, nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("%w: sheet %s row %d: %v", models.ErrIOFailure, sheet, row, err)
	}
	return nil
}

// sortSheets puts the sheets of f in natural name order, so Image2_Image3
// precedes Image10_Image11 whatever order the sheets were written in.
func sortSheets(f *excelize.File) error {
	names := f.GetSheetList()
	sorted := append([]string(nil), names...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return naturalLess(sorted[i], sorted[j])
	})
	if slices.Equal(names, sorted) {
		return nil
	}
	// Chain each sheet in front of its successor, starting from the end
	for i := len(sorted) - 2; i >= 0; i-- {
		if err := f.MoveSheet(sorted[i], sorted[i+1]); err != nil {
			return fmt.Errorf("%w: order sheets: %v", models.ErrIOFailure, err)
		}
	}
	return nil
}

// naturalLess compares a and b treating runs of digits as numbers.
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		ca, ra := leadingRun(a)
		cb, rb := leadingRun(b)
		if ca != cb {
			da, db := isDigit(ca[0]), isDigit(cb[0])
			if da && db {
				na, nb := strings.TrimLeft(ca, "0"), strings.TrimLeft(cb, "0")
				if len(na) != len(nb) {
					return len(na) < len(nb)
				}
				if na != nb {
					return na < nb
				}
			} else {
				return ca < cb
			}
		}
		a, b = ra, rb
	}
	return len(a) < len(b)
}

// leadingRun splits s after its first run of digits or non-digits.
func leadingRun(s string) (run, rest string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// resetSheet creates sheet, or clears it when it already exists.
func resetSheet(f *excelize.File, sheet string) error {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	if idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
		}
		return nil
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	for r := len(rows); r >= 1; r-- {
		if err := f.RemoveRow(sheet, r); err != nil {
			return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
		}
	}
	return nil
}

// sheetName maps a collection name onto the characters and length Excel
// accepts for sheet names.
func sheetName(name string) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(sheetNameDeny, r) {
			return '_'
		}
		return r
	}, name)
	if len(clean) > maxSheetName {
		clean = clean[:maxSheetName]
	}
	return clean
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
}
