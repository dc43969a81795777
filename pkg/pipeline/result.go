package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Status is the outcome of one unit.
type Status string

const (
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Unit kinds.
const (
	KindDissolution = "dissolution"
	KindProximity   = "proximity"
)

// UnitResult reports one unit of work.
type UnitResult struct {
	// Name is the output collection name, e.g. "Image1_Image2"
	Name     string
	Kind     string
	Status   Status
	Err      error
	Duration time.Duration
}

func (r UnitResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", r.Kind, r.Name, r.Status, r.Err)
	}
	return fmt.Sprintf("%s %s: %s", r.Kind, r.Name, r.Status)
}

// Results is the outcome of a run, in scheduling order.
type Results []UnitResult

// Count returns the number of units with status s.
func (rs Results) Count(s Status) int {
	n := 0
	for _, r := range rs {
		if r.Status == s {
			n++
		}
	}
	return n
}

// Failed returns the failed units.
func (rs Results) Failed() Results {
	var out Results
	for _, r := range rs {
		if r.Status == StatusFailed {
			out = append(out, r)
		}
	}
	return out
}

// Get returns the result for the named unit.
func (rs Results) Get(name string) (UnitResult, bool) {
	for _, r := range rs {
		if r.Name == name {
			return r, true
		}
	}
	return UnitResult{}, false
}

// Summary is a one-line tally, e.g. "9 done, 2 skipped, 1 failed".
func (rs Results) Summary() string {
	parts := []string{
		fmt.Sprintf("%d done", rs.Count(StatusDone)),
		fmt.Sprintf("%d skipped", rs.Count(StatusSkipped)),
		fmt.Sprintf("%d failed", rs.Count(StatusFailed)),
	}
	return strings.Join(parts, ", ")
}
