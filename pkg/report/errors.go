package report

import "errors"

var (
	// ErrRowWidth indicates a row or column whose length does not match the table.
	ErrRowWidth = errors.New("report: ragged table")
	// ErrUnknownFormat indicates an unsupported output format name.
	ErrUnknownFormat = errors.New("report: unknown output format")
	// ErrEmptyTable indicates a table with no columns where one is required.
	ErrEmptyTable = errors.New("report: table has no columns")
)
