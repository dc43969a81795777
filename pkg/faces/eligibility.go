package faces

import "sort"

// denseLimit bounds the label value for which slot lookup uses a slice.
const denseLimit = 1 << 20

// eligibility maps labels that receive face counts to accumulator slots.
type eligibility struct {
	labels []int32         // eligible labels, ascending
	dense  []int32         // label -> slot+1, 0 when not eligible
	sparse map[int32]int32 // used when a label exceeds denseLimit
}

func newEligibility(labelsOfInterest []int32, poreLabel, outerLayerLabel int32) *eligibility {
	seen := make(map[int32]struct{})
	e := &eligibility{}
	var maxLabel int32 = -1
	for _, l := range labelsOfInterest {
		if l == poreLabel || l == outerLayerLabel || l < 0 {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		e.labels = append(e.labels, l)
		if l > maxLabel {
			maxLabel = l
		}
	}
	sort.Slice(e.labels, func(i, j int) bool { return e.labels[i] < e.labels[j] })

	if maxLabel < denseLimit {
		e.dense = make([]int32, maxLabel+1)
		for i, l := range e.labels {
			e.dense[l] = int32(i) + 1
		}
	} else {
		e.sparse = make(map[int32]int32, len(e.labels))
		for i, l := range e.labels {
			e.sparse[l] = int32(i)
		}
	}
	return e
}

// slot returns the accumulator index of an eligible label.
func (e *eligibility) slot(label int32) int {
	if e.dense != nil {
		return int(e.dense[label]) - 1
	}
	return int(e.sparse[label])
}

// lookup returns the slot of label or -1.
func (e *eligibility) lookup(label int32) int {
	if e.dense != nil {
		if label < 0 || int(label) >= len(e.dense) {
			return -1
		}
		return int(e.dense[label]) - 1
	}
	if s, ok := e.sparse[label]; ok {
		return int(s)
	}
	return -1
}

// credit adds one face to the higher label of the pair a, b when the lower
// one is a valid partner.
func (e *eligibility) credit(acc []int64, a, b int32) {
	if a == b {
		return
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo < MinPartnerLabel {
		return
	}
	if s := e.lookup(hi); s >= 0 {
		acc[s]++
	}
}
