package proximity

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"rockdissolution/pkg/report"
)

// DistanceColumn is the key column of a merged distance table.
const DistanceColumn = "Unique Value"

// CountColumn returns the column name holding the counts of label.
func CountColumn(label int32) string {
	return fmt.Sprintf("Count_Label_%d", label)
}

// LabelHistogram counts dissolved voxels of one label per rounded distance.
type LabelHistogram struct {
	Label  int32
	Counts map[int64]int64
}

// NewLabelHistogram creates an empty histogram for label.
func NewLabelHistogram(label int32) *LabelHistogram {
	return &LabelHistogram{Label: label, Counts: make(map[int64]int64)}
}

// Add increments the count at distance d by n.
func (h *LabelHistogram) Add(d, n int64) {
	h.Counts[d] += n
}

// AddAll adds every bin of o into h.
func (h *LabelHistogram) AddAll(o *LabelHistogram) {
	for d, n := range o.Counts {
		h.Counts[d] += n
	}
}

// Total returns the number of voxels binned.
func (h *LabelHistogram) Total() int64 {
	var n int64
	for _, c := range h.Counts {
		n += c
	}
	return n
}

// Histogram is the wide (distance x label) table merged from per-label
// histograms. Every merged label has a column even when it binned nothing;
// missing cells read as zero.
type Histogram struct {
	byLabel map[int32]map[int64]int64
}

// NewHistogram returns an empty histogram with no label columns.
func NewHistogram() *Histogram {
	return &Histogram{byLabel: make(map[int32]map[int64]int64)}
}

// Merge outer-joins per-label histograms on distance. Histograms of the same
// label are summed. The result does not depend on argument order.
func Merge(hs ...*LabelHistogram) *Histogram {
	out := NewHistogram()
	for _, h := range hs {
		bins, ok := out.byLabel[h.Label]
		if !ok {
			bins = make(map[int64]int64, len(h.Counts))
			out.byLabel[h.Label] = bins
		}
		for d, n := range h.Counts {
			bins[d] += n
		}
	}
	return out
}

// Labels returns the label columns, ascending.
func (h *Histogram) Labels() []int32 {
	out := make([]int32, 0, len(h.byLabel))
	for l := range h.byLabel {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Distances returns every distance binned by any label, ascending.
func (h *Histogram) Distances() []int64 {
	seen := make(map[int64]struct{})
	for _, bins := range h.byLabel {
		for d := range bins {
			seen[d] = struct{}{}
		}
	}
	out := make([]int64, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns the number of voxels of label at distance d.
func (h *Histogram) Count(label int32, d int64) int64 {
	return h.byLabel[label][d]
}

// Table renders the histogram with a distance column followed by one count
// column per label. Rows are ascending by distance and zero-filled.
func (h *Histogram) Table(name string) *report.Table {
	lbls := h.Labels()
	cols := []string{DistanceColumn}
	for _, l := range lbls {
		cols = append(cols, CountColumn(l))
	}
	t := report.NewTable(name, cols...)
	for _, d := range h.Distances() {
		row := make([]int64, 0, len(cols))
		row = append(row, d)
		for _, l := range lbls {
			row = append(row, h.byLabel[l][d])
		}
		// width always matches the header built above
		_ = t.AppendRow(row...)
	}
	return t
}

// LabelSummary condenses one label column.
type LabelSummary struct {
	Label        int32
	Dissolved    int64
	MeanDistance float64
	MaxDistance  int64
}

// Summary returns per-label totals and the count-weighted mean distance.
// MeanDistance is 0 for labels without binned voxels.
func (h *Histogram) Summary() []LabelSummary {
	var out []LabelSummary
	for _, l := range h.Labels() {
		bins := h.byLabel[l]
		s := LabelSummary{Label: l}
		if len(bins) > 0 {
			ds := make([]float64, 0, len(bins))
			ws := make([]float64, 0, len(bins))
			for _, d := range sortedKeys(bins) {
				n := bins[d]
				ds = append(ds, float64(d))
				ws = append(ws, float64(n))
				s.Dissolved += n
				if d > s.MaxDistance {
					s.MaxDistance = d
				}
			}
			s.MeanDistance = stat.Mean(ds, ws)
		}
		out = append(out, s)
	}
	return out
}

// SummaryTable renders Summary. Mean distances are reported in hundredths
// of a voxel to keep the table integral.
func (h *Histogram) SummaryTable(name string) *report.Table {
	t := report.NewTable(name, "Phase", "Dissolved Voxels", "Mean Distance (x100)", "Max Distance")
	for _, s := range h.Summary() {
		_ = t.AppendRow(int64(s.Label), s.Dissolved, int64(s.MeanDistance*100+0.5), s.MaxDistance)
	}
	return t
}

func sortedKeys(bins map[int64]int64) []int64 {
	out := make([]int64, 0, len(bins))
	for d := range bins {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
