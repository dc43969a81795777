package models

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the analysis packages. Packages wrap these with
// context using fmt.Errorf("...: %w", err) so callers can test with errors.Is.
var (
	// ErrShapeMismatch indicates volumes of one comparison have different dimensions.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidLabel indicates reserved label values are negative or ambiguous.
	ErrInvalidLabel = errors.New("invalid reserved label")
	// ErrEmptyLabelSet indicates a volume holds no labels besides reserved ones.
	ErrEmptyLabelSet = errors.New("no labels of interest")
	// ErrIOFailure indicates a loader or exporter failure.
	ErrIOFailure = errors.New("i/o failure")
)

// ValidateReserved checks the pore and outer-layer labels.
func ValidateReserved(poreLabel, outerLayerLabel int32) error {
	if poreLabel < 0 || outerLayerLabel < 0 {
		return fmt.Errorf("%w: pore=%d outer-layer=%d must be non-negative",
			ErrInvalidLabel, poreLabel, outerLayerLabel)
	}
	if poreLabel == outerLayerLabel {
		return fmt.Errorf("%w: pore and outer-layer labels are both %d",
			ErrInvalidLabel, poreLabel)
	}
	return nil
}
