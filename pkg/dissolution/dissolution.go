// Package dissolution tabulates, for each consecutive pair of time steps,
// the voxel population and pore-contact face count of every phase and the
// number of voxels each phase lost.
package dissolution

import (
	"context"
	"fmt"

	"rockdissolution/internal/models"
	"rockdissolution/pkg/faces"
	"rockdissolution/pkg/labels"
	"rockdissolution/pkg/report"
)

// Column names of a pair table.
const (
	ColPhase        = "Phase"
	ColVoxelsBefore = "Voxel Count (Image A)"
	ColVoxelsAfter  = "Voxel Count (Image B)"
	ColFacesBefore  = "Face Count (Image A)"
	ColFacesAfter   = "Face Count (Image B)"
	ColDissolved    = "Dissolved Voxels"
)

// Params configures the face counting of a comparison.
type Params struct {
	PoreLabel       int32
	OuterLayerLabel int32
	DilationRadius  int
	Workers         int
}

// Record is one row of a pair report.
type Record struct {
	Label        int32
	VoxelsBefore int64
	VoxelsAfter  int64
	FacesBefore  int64
	FacesAfter   int64

	// Delta is VoxelsBefore - VoxelsAfter: positive for net dissolution,
	// negative for growth.
	Delta int64
}

// PairReport holds the rows for time steps (Step, Step+1).
type PairReport struct {
	// Step is the 1-based index of the "before" volume
	Step    int
	Records []Record

	// NewLabels lists labels present only in the "after" volume
	NewLabels []int32
}

// Name returns the sheet name of the pair, e.g. "Image1_Image2".
func (r *PairReport) Name() string {
	return PairName(r.Step)
}

// PairName returns the sheet name of the pair starting at 1-based step.
func PairName(step int) string {
	return fmt.Sprintf("Image%d_Image%d", step, step+1)
}

// Record returns the row for label.
func (r *PairReport) Record(label int32) (Record, bool) {
	for _, rec := range r.Records {
		if rec.Label == label {
			return rec, true
		}
	}
	return Record{}, false
}

// Table renders the report with one row per label of the "before" volume.
func (r *PairReport) Table() *report.Table {
	t := report.NewTable(r.Name(),
		ColPhase, ColVoxelsBefore, ColVoxelsAfter, ColFacesBefore, ColFacesAfter, ColDissolved)
	for _, rec := range r.Records {
		_ = t.AppendRow(int64(rec.Label), rec.VoxelsBefore, rec.VoxelsAfter,
			rec.FacesBefore, rec.FacesAfter, rec.Delta)
	}
	return t
}

// ComparePair builds the report of one pair of consecutive volumes. step is
// the 1-based index of before. Labels of interest for both face tables are
// the labels of before; labels missing from either volume count as zero.
func ComparePair(step int, before, after *models.LabelVolume, p Params) (*PairReport, error) {
	if err := models.CheckShapes(before.Shape, after.Shape); err != nil {
		return nil, fmt.Errorf("dissolution: %s: %w", PairName(step), err)
	}

	popsBefore := labels.VoxelPopulations(before)
	popsAfter := labels.VoxelPopulations(after)
	interest := popsBefore.Labels()

	counter := faces.Counter{Workers: p.Workers}
	facesBefore, err := counter.Count(before, interest, p.PoreLabel, p.OuterLayerLabel, p.DilationRadius)
	if err != nil {
		return nil, fmt.Errorf("dissolution: %s: face count of step %d: %w", PairName(step), step, err)
	}
	facesAfter, err := counter.Count(after, interest, p.PoreLabel, p.OuterLayerLabel, p.DilationRadius)
	if err != nil {
		return nil, fmt.Errorf("dissolution: %s: face count of step %d: %w", PairName(step), step+1, err)
	}

	rep := &PairReport{Step: step}
	for _, l := range interest {
		rep.Records = append(rep.Records, Record{
			Label:        l,
			VoxelsBefore: popsBefore.Get(l),
			VoxelsAfter:  popsAfter.Get(l),
			FacesBefore:  facesBefore.Get(l),
			FacesAfter:   facesAfter.Get(l),
			Delta:        popsBefore.Get(l) - popsAfter.Get(l),
		})
	}
	for _, l := range popsAfter.Labels() {
		if popsBefore.Get(l) == 0 {
			rep.NewLabels = append(rep.NewLabels, l)
		}
	}
	return rep, nil
}

// Sequence is an ordered series of volumes loaded on demand.
type Sequence interface {
	Len() int
	Load(i int) (*models.LabelVolume, error)
}

// BuildReport compares every consecutive pair of seq in order. Only the
// current pair is held in memory. The first failing pair aborts the build;
// callers that need per-pair isolation run ComparePair per unit instead.
func BuildReport(ctx context.Context, seq Sequence, p Params) ([]*PairReport, error) {
	if seq.Len() < 2 {
		return nil, nil
	}

	prev, err := seq.Load(0)
	if err != nil {
		return nil, fmt.Errorf("dissolution: load step 1: %w", err)
	}

	reports := make([]*PairReport, 0, seq.Len()-1)
	for i := 1; i < seq.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		next, err := seq.Load(i)
		if err != nil {
			return reports, fmt.Errorf("dissolution: load step %d: %w", i+1, err)
		}
		rep, err := ComparePair(i, prev, next, p)
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
		prev = next
	}
	return reports, nil
}
