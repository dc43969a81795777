package volume

import (
	"fmt"

	"rockdissolution/internal/models"
)

// Series is an ordered list of label volumes on disk, loaded lazily.
type Series struct {
	Paths   []string
	Options Options
}

// NewSeries builds a series from a printf pattern with one integer verb,
// expanded for steps 1..n.
func NewSeries(pattern string, n int, opts Options) *Series {
	s := &Series{Options: opts}
	for i := 1; i <= n; i++ {
		s.Paths = append(s.Paths, fmt.Sprintf(pattern, i))
	}
	return s
}

// Len returns the number of volumes in the series.
func (s *Series) Len() int {
	return len(s.Paths)
}

// Load reads the i-th volume.
func (s *Series) Load(i int) (*models.LabelVolume, error) {
	if i < 0 || i >= len(s.Paths) {
		return nil, fmt.Errorf("volume: series index %d out of range [0, %d)", i, len(s.Paths))
	}
	return Load(s.Paths[i], s.Options)
}
