package report

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"rockdissolution/internal/models"
)

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT    NOT NULL,
	collection  TEXT    NOT NULL,
	tables      INTEGER NOT NULL,
	rows        INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_collection ON runs(collection);`

// SQLiteSink stores each table as an SQL table and records every written
// collection in a runs table under the sink's run id.
type SQLiteSink struct {
	mu    sync.Mutex
	db    *sql.DB
	runID string
	once  sync.Once
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database %s: %v", models.ErrIOFailure, path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(runsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", models.ErrIOFailure, err)
	}
	return &SQLiteSink{db: db, runID: uuid.New().String()}, nil
}

// RunID identifies the rows this sink wrote.
func (s *SQLiteSink) RunID() string {
	return s.runID
}

// Exists reports whether any run has recorded the collection.
func (s *SQLiteSink) Exists(name string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE collection = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	return n > 0, nil
}

// Write replaces the tables of c and records the run in one transaction.
func (s *SQLiteSink) Write(c Collection) error {
	if err := c.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	defer tx.Rollback()

	rows := 0
	for i, t := range c.Tables {
		if err := insertTable(tx, c.ArtifactName(i), t); err != nil {
			return fmt.Errorf("%w: table %s: %v", models.ErrIOFailure, c.ArtifactName(i), err)
		}
		rows += t.Rows()
	}

	if _, err := tx.Exec(`DELETE FROM runs WHERE collection = ?`, c.Name); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	_, err = tx.Exec(`INSERT INTO runs (run_id, collection, tables, rows, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.runID, c.Name, len(c.Tables), rows, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", models.ErrIOFailure, err)
	}
	return nil
}

func insertTable(tx *sql.Tx, name string, t *Table) error {
	cols := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quoteIdent(c.Name) + " INTEGER"
		marks[i] = "?"
	}

	if _, err := tx.Exec(`DROP TABLE IF EXISTS ` + quoteIdent(name)); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE TABLE ` + quoteIdent(name) + ` (` + strings.Join(cols, ", ") + `)`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO ` + quoteIdent(name) + ` VALUES (` + strings.Join(marks, ", ") + `)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]interface{}, len(t.Columns))
	for r := 0; r < t.Rows(); r++ {
		for i, v := range t.Row(r) {
			args[i] = v
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}
	return nil
}

// ReadTable loads a stored table back in insertion order.
func (s *SQLiteSink) ReadTable(name string) (*Table, error) {
	rows, err := s.db.Query(`SELECT * FROM ` + quoteIdent(name) + ` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	t := NewTable(name, names...)
	values := make([]int64, len(names))
	ptrs := make([]interface{}, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
		}
		if err := t.AppendRow(values...); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	return t, nil
}

// Close closes the database. It is safe to call more than once, so one
// sink can back several pipelines.
func (s *SQLiteSink) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
