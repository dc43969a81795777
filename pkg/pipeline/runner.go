// Package pipeline runs the dissolution and proximity analyses of a volume
// series as independent units of work with bounded concurrency.
//
// Units are:
//   - one dissolution unit per consecutive pair of volumes, named
//     Image{i}_Image{i+1}
//   - one proximity unit per region mask file, named {prefix}_{n}
//
// A failing unit is reported and never aborts its siblings. With
// skip_if_output_exists set, units whose output every sink already holds are
// skipped.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"rockdissolution/internal/models"
	"rockdissolution/pkg/config"
	"rockdissolution/pkg/logging"
	"rockdissolution/pkg/report"
	"rockdissolution/pkg/volume"
)

// Runner executes the analyses described by a configuration.
type Runner struct {
	cfg  *config.Config
	opts volume.Options

	// units bounds concurrently running units; workers bounds goroutines
	// per pass inside a unit
	units   int
	workers int

	series *volume.Series
	cache  *volumeCache
}

// unit is one schedulable piece of work.
type unit struct {
	name string
	kind string
	sink report.Sink
	run  func() (report.Collection, error)

	// release drops the unit's claim on shared volumes once it has finished,
	// been skipped or never started
	release func()
}

// NewRunner validates cfg and prepares a runner.
func NewRunner(cfg *config.Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	shape, err := cfg.Shape()
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:  cfg,
		opts: volume.Options{Shape: shape, DType: volume.DType(cfg.Input.DType)},
	}
	r.units = cfg.Processing.NumCores
	if r.units <= 0 {
		r.units = runtime.NumCPU()
	}
	r.series = volume.NewSeries(cfg.Input.ImagePattern, cfg.Analysis.NumberOfTimeSteps, r.opts)
	r.cache = newVolumeCache(r.series)
	return r, nil
}

// Run executes every unit and returns their outcomes in scheduling order.
// The returned error is non-nil only when the run could not start; unit
// failures are reported in the results. Cancelling ctx stops scheduling new
// units.
func (r *Runner) Run(ctx context.Context) (Results, error) {
	tlog := logging.NewTimeLog()

	logging.Infof("Step 1: Opening outputs in %s...", r.cfg.Output.Dir)
	s, err := r.openSinks()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.close(); err != nil {
			logging.Errorf("closing outputs: %v", err)
		}
	}()

	logging.Infof("Step 2: Planning units...")
	units := r.dissolutionUnits(s.dissolution)
	units = append(units, r.proximityUnits(s.proximity)...)
	if len(units) == 0 {
		logging.Warningf("nothing to do: %d time steps and %d region sets",
			r.cfg.Analysis.NumberOfTimeSteps, len(r.cfg.Regions))
		return nil, nil
	}

	parallelUnits := r.units
	if parallelUnits > len(units) {
		parallelUnits = len(units)
	}
	r.workers = r.units / parallelUnits
	if r.workers < 1 {
		r.workers = 1
	}

	logging.Infof("Step 3: Running %d units, %d at a time...", len(units), parallelUnits)
	results := r.schedule(ctx, units, parallelUnits)

	tlog.Infof("Analysis finished: %s", results.Summary())
	return results, nil
}

// schedule runs units with at most limit in flight. Each unit writes its
// outcome to its own slot; a collector reports progress as units finish.
func (r *Runner) schedule(ctx context.Context, units []unit, limit int) Results {
	type indexed struct {
		idx int
		res UnitResult
	}
	results := make(Results, len(units))
	resultChan := make(chan indexed)
	done := make(chan struct{})

	go func() {
		completed := 0
		for res := range resultChan {
			completed++
			results[res.idx] = res.res
			progress := float64(completed) / float64(len(units)) * 100
			logging.Infof("[%5.1f%%] %s", progress, res.res)
		}
		close(done)
	}()

	var g errgroup.Group
	g.SetLimit(limit)
	for i, u := range units {
		if err := ctx.Err(); err != nil {
			if u.release != nil {
				u.release()
			}
			resultChan <- indexed{i, UnitResult{Name: u.name, Kind: u.kind, Status: StatusFailed,
				Err: fmt.Errorf("not started: %w", err)}}
			continue
		}
		i, u := i, u
		g.Go(func() error {
			resultChan <- indexed{i, r.runUnit(u)}
			return nil
		})
	}
	g.Wait()
	close(resultChan)
	<-done

	return results
}

// runUnit runs one unit, converting every failure into its result.
func (r *Runner) runUnit(u unit) UnitResult {
	start := time.Now()
	res := UnitResult{Name: u.name, Kind: u.kind}
	if u.release != nil {
		defer u.release()
	}

	if r.cfg.Analysis.SkipIfOutputExists {
		exists, err := u.sink.Exists(u.name)
		if err != nil {
			logging.Warningf("%s: checking existing output: %v", u.name, err)
		} else if exists {
			res.Status = StatusSkipped
			return res
		}
	}

	c, err := u.run()
	if err == nil {
		err = u.sink.Write(c)
	}
	res.Duration = time.Since(start)
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		return res
	}
	res.Status = StatusDone
	return res
}

// reserved returns the configured pore and outer-layer labels.
func (r *Runner) reserved() (pore, outer int32) {
	return r.cfg.Analysis.PoreLabel, r.cfg.Analysis.OuterLayerLabel
}

// warnIfNoLabels flags a volume with nothing but reserved labels.
func (r *Runner) warnIfNoLabels(name string, interest []int32) {
	if len(interest) == 0 {
		logging.Warningf("%s: %v; writing empty table", name, models.ErrEmptyLabelSet)
	}
}
