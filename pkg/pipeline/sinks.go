package pipeline

import (
	"fmt"
	"path/filepath"

	"rockdissolution/pkg/report"
)

// sinks holds the output of each unit kind.
type sinks struct {
	dissolution report.MultiSink
	proximity   report.MultiSink
}

// openSinks opens every configured output format. A SQLite database is
// shared by both kinds.
func (r *Runner) openSinks() (*sinks, error) {
	out := r.cfg.Output
	s := &sinks{}
	for _, name := range out.Formats {
		format, err := report.ParseFormat(name)
		if err != nil {
			s.close()
			return nil, err
		}
		switch format {
		case report.FormatXLSX:
			wb, err := report.NewWorkbookSink(filepath.Join(out.Dir, out.Workbook))
			if err != nil {
				s.close()
				return nil, err
			}
			s.dissolution = append(s.dissolution, wb)
			s.proximity = append(s.proximity, report.NewFileWorkbookSink(out.Dir))
		case report.FormatCSV:
			s.dissolution = append(s.dissolution, report.NewCSVSink(filepath.Join(out.Dir, "csv", KindDissolution)))
			s.proximity = append(s.proximity, report.NewCSVSink(filepath.Join(out.Dir, "csv", KindProximity)))
		case report.FormatSQLite:
			db, err := report.OpenSQLite(filepath.Join(out.Dir, out.Database))
			if err != nil {
				s.close()
				return nil, err
			}
			s.dissolution = append(s.dissolution, db)
			s.proximity = append(s.proximity, db)
		}
	}
	if len(s.dissolution) == 0 {
		return nil, fmt.Errorf("pipeline: no output formats configured")
	}
	return s, nil
}

func (s *sinks) close() error {
	err1 := s.dissolution.Close()
	err2 := s.proximity.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
