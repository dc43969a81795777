package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"rockdissolution/internal/models"
	"rockdissolution/pkg/config"
	"rockdissolution/pkg/flowfield"
	"rockdissolution/pkg/logging"
	"rockdissolution/pkg/visualization"
	"rockdissolution/pkg/volume"
)

// runFlowField converts staggered velocity files into a speed field and
// fast/slow region masks.
func runFlowField(args []string) {
	fs := flag.NewFlagSet("flowfield", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Configuration file (.yaml or .toml)")
	uxPath := fs.String("ux", "Ufx.raw", "x-face velocities, float32 (z, y, x+1)")
	uyPath := fs.String("uy", "Ufy.raw", "y-face velocities, float32 (z, y+1, x)")
	uzPath := fs.String("uz", "Ufz.raw", "z-face velocities, float32 (z+1, y, x)")
	shapeFlag := fs.String("shape", "", "Cell grid shape z,y,x")
	outDir := fs.String("out", ".", "Output directory")
	masks := fs.Bool("masks", true, "Also write fast-flow and slow-flow masks")
	cores := fs.Int("cores", 0, "Number of CPU cores to use (default: all available)")
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.Logging.SetLogger()
	defer logging.Shutdown()

	shape, err := config.ParseShape(*shapeFlag)
	if err != nil {
		log.Fatalf("Invalid -shape: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("FLOW FIELD PRE-PROCESSING")
	fmt.Println("================================")
	startTime := time.Now()

	ux, uy, uz := readFaces(shape, *uxPath, *uyPath, *uzPath)
	speed, err := flowfield.Average(ux, uy, uz, shape, flowfield.Options{
		LegacyZAverage: cfg.FlowField.LegacyZAverage,
		Workers:        *cores,
	})
	if err != nil {
		log.Fatalf("Failed to average velocities: %v", err)
	}

	speedPath := filepath.Join(*outDir, "flowfield.raw")
	if err := volume.SaveFloat32(speedPath, speed); err != nil {
		log.Fatalf("Failed to save speed field: %v", err)
	}
	fmt.Printf("Speed field saved to: %s\n", speedPath)

	if err := visualization.SaveMidSlice(speed, filepath.Join(*outDir, "flowfield_mid.png")); err != nil {
		log.Printf("Warning: Failed to save speed slice: %v", err)
	}

	if *masks {
		for _, m := range []struct {
			name  string
			q     float64
			above bool
		}{
			{"fastflow.raw", cfg.FlowField.FastQuantile, true},
			{"slowregions.raw", cfg.FlowField.SlowQuantile, false},
		} {
			mask, err := flowfield.RegionMask(speed, m.q, m.above)
			if err != nil {
				log.Fatalf("Failed to threshold %s: %v", m.name, err)
			}
			path := filepath.Join(*outDir, m.name)
			if err := volume.SaveMask(path, mask); err != nil {
				log.Fatalf("Failed to save %s: %v", m.name, err)
			}
			fmt.Printf("Mask (%s voxels) saved to: %s\n", logging.Count(int64(mask.Count())), path)
		}
	}

	fmt.Printf("\nFlow field processed in %.2f seconds\n", time.Since(startTime).Seconds())
}

func readFaces(cells models.Shape, uxPath, uyPath, uzPath string) (ux, uy, uz []float32) {
	sx, sy, sz := flowfield.FaceShapes(cells)
	var err error
	if ux, err = volume.ReadFloat32(uxPath, sx.Len()); err != nil {
		log.Fatalf("Failed to read ux: %v", err)
	}
	if uy, err = volume.ReadFloat32(uyPath, sy.Len()); err != nil {
		log.Fatalf("Failed to read uy: %v", err)
	}
	if uz, err = volume.ReadFloat32(uzPath, sz.Len()); err != nil {
		log.Fatalf("Failed to read uz: %v", err)
	}
	logging.Infof("Read %s of face velocities", logging.Bytes(uint64(4*(sx.Len()+sy.Len()+sz.Len()))))
	return ux, uy, uz
}
