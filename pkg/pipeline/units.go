package pipeline

import (
	"fmt"
	"path/filepath"
	"sync"

	"rockdissolution/internal/models"
	"rockdissolution/pkg/config"
	"rockdissolution/pkg/dissolution"
	"rockdissolution/pkg/distance"
	"rockdissolution/pkg/labels"
	"rockdissolution/pkg/logging"
	"rockdissolution/pkg/proximity"
	"rockdissolution/pkg/report"
	"rockdissolution/pkg/visualization"
	"rockdissolution/pkg/volume"
)

// Sheet names of a proximity collection.
const (
	ProximityTable = report.CombinedSheet
	SummaryTable   = "Summary"
)

func (r *Runner) dissolutionUnits(sink report.Sink) []unit {
	var units []unit
	for step := 1; step < r.series.Len(); step++ {
		step := step
		units = append(units, unit{
			name: dissolution.PairName(step),
			kind: KindDissolution,
			sink: sink,
			run:  func() (report.Collection, error) { return r.comparePair(step) },
		})
	}
	return units
}

// comparePair loads volumes step and step+1 (1-based) and tabulates them.
// Both volumes are loaded by the unit itself so only one pair per unit is
// held in memory.
func (r *Runner) comparePair(step int) (report.Collection, error) {
	name := dissolution.PairName(step)
	before, err := r.series.Load(step - 1)
	if err != nil {
		return report.Collection{}, err
	}
	after, err := r.series.Load(step)
	if err != nil {
		return report.Collection{}, err
	}
	logging.Debugf("%s: loaded %s voxels per volume", name, logging.Count(int64(before.Shape.Len())))

	pore, outer := r.reserved()
	rep, err := dissolution.ComparePair(step, before, after, dissolution.Params{
		PoreLabel:       pore,
		OuterLayerLabel: outer,
		DilationRadius:  r.cfg.Analysis.DilationRadius,
		Workers:         r.workers,
	})
	if err != nil {
		return report.Collection{}, err
	}

	r.warnIfNoLabels(name, labels.Exclude(labels.DiscoverLabels(before), pore, outer))
	if len(rep.NewLabels) > 0 {
		logging.Warningf("%s: labels %v appear only in step %d and are not tabulated", name, rep.NewLabels, step+1)
	}
	if r.cfg.Output.QCSlices || r.cfg.Output.QCStacks {
		r.saveQC(name+"_dissolved", models.MaskAsField(dissolvedMask(before, after, pore)))
	}
	return report.NewCollection(name, rep.Table()), nil
}

func (r *Runner) proximityUnits(sink report.Sink) []unit {
	var units []unit
	for _, set := range r.cfg.Regions {
		set := set
		for n := 1; n <= r.cfg.RegionCount(set); n++ {
			n := n
			u := unit{
				name: fmt.Sprintf("%s_%d", set.Prefix, n),
				kind: KindProximity,
				sink: sink,
				run:  func() (report.Collection, error) { return r.binRegion(set, n) },
			}
			if step := pairFor(set, n); step+1 <= r.series.Len() {
				r.cache.retain(step - 1)
				r.cache.retain(step)
				u.release = func() {
					r.cache.release(step - 1)
					r.cache.release(step)
				}
			}
			units = append(units, u)
		}
	}
	return units
}

// pairFor returns the 1-based before step a mask is compared against.
func pairFor(set config.RegionSet, n int) int {
	if set.Pairing == config.PairSequential {
		return n
	}
	return 1
}

// binRegion bins the dissolved voxels of one pair by distance to mask n of set.
func (r *Runner) binRegion(set config.RegionSet, n int) (report.Collection, error) {
	name := fmt.Sprintf("%s_%d", set.Prefix, n)
	step := pairFor(set, n)
	if step+1 > r.series.Len() {
		return report.Collection{}, fmt.Errorf("mask %d of %q needs steps %d and %d, series has %d",
			n, set.Name, step, step+1, r.series.Len())
	}

	opts := r.opts
	opts.DType = volume.DType(r.cfg.RegionDType(set))
	mask, err := volume.LoadMask(fmt.Sprintf(set.Pattern, n), opts)
	if err != nil {
		return report.Collection{}, err
	}
	before, err := r.cache.get(step - 1)
	if err != nil {
		return report.Collection{}, err
	}
	after, err := r.cache.get(step)
	if err != nil {
		return report.Collection{}, err
	}
	if err := models.CheckShapes(mask.Shape, before.Shape, after.Shape); err != nil {
		return report.Collection{}, fmt.Errorf("proximity: %w", err)
	}

	method := distance.Method(r.cfg.Analysis.DistanceMethod)
	dist, err := distance.Transform(mask, method, r.workers)
	if err != nil {
		return report.Collection{}, err
	}

	pore, outer := r.reserved()
	hist, err := proximity.BinDistances(dist, before, after, pore, outer, proximity.Options{
		Method:          method,
		Workers:         r.workers,
		IncludeInterior: r.cfg.Analysis.IncludeInterior,
	})
	if err != nil {
		return report.Collection{}, err
	}
	r.warnIfNoLabels(name, hist.Labels())

	table := hist.Table(ProximityTable)
	if r.cfg.Output.Plots && table.Rows() > 0 {
		path := filepath.Join(r.cfg.Output.Dir, "plots", name+".png")
		if err := report.PlotTable(table, proximity.DistanceColumn, name, path); err != nil {
			logging.Warningf("%s: plot: %v", name, err)
		}
	}
	if r.cfg.Output.QCSlices || r.cfg.Output.QCStacks {
		r.saveQC(name+"_distance", dist)
	}
	return report.NewCollection(name, table, hist.SummaryTable(SummaryTable)), nil
}

// saveQC writes the middle z slice of f, and with qc_stacks every z slice.
// QC images never fail a unit.
func (r *Runner) saveQC(name string, f *models.Field) {
	dir := filepath.Join(r.cfg.Output.Dir, "qc")
	if r.cfg.Output.QCSlices {
		if err := visualization.SaveMidSlice(f, filepath.Join(dir, name+".png")); err != nil {
			logging.Warningf("%s: QC slice: %v", name, err)
		}
	}
	if r.cfg.Output.QCStacks {
		if err := visualization.NewViewer(f).SaveSliceSequence("z", filepath.Join(dir, name), ".png"); err != nil {
			logging.Warningf("%s: QC stack: %v", name, err)
		}
	}
}

// dissolvedMask marks voxels that became pore between before and after.
func dissolvedMask(before, after *models.LabelVolume, pore int32) *models.Mask {
	m := models.NewMask(before.Shape)
	for i := range m.Data {
		m.Data[i] = after.Data[i] == pore && before.Data[i] != pore
	}
	return m
}

// volumeCache loads each step at most once and shares it read-only between
// proximity units. Units claim the steps they need when planned; an entry is
// dropped once its last claim is released, so a step stays in memory only
// while some unit still needs it.
type volumeCache struct {
	series *volume.Series

	mu      sync.Mutex
	entries map[int]*cacheEntry
}

type cacheEntry struct {
	refs int
	once sync.Once
	v    *models.LabelVolume
	err  error
}

func newVolumeCache(s *volume.Series) *volumeCache {
	return &volumeCache{series: s, entries: make(map[int]*cacheEntry)}
}

// retain records one more planned user of step i.
func (c *volumeCache) retain(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[i]
	if !ok {
		e = &cacheEntry{}
		c.entries[i] = e
	}
	e.refs++
}

// release drops one claim on step i and evicts the entry after the last one.
func (c *volumeCache) release(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[i]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		e.v = nil
		delete(c.entries, i)
	}
}

// get returns step i, loading it on first use. Steps nobody retained are
// loaded without being cached.
func (c *volumeCache) get(i int) (*models.LabelVolume, error) {
	c.mu.Lock()
	e, ok := c.entries[i]
	c.mu.Unlock()
	if !ok {
		return c.series.Load(i)
	}

	e.once.Do(func() {
		e.v, e.err = c.series.Load(i)
	})
	return e.v, e.err
}

// size reports how many steps are currently claimed.
func (c *volumeCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
