package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"rockdissolution/pkg/config"
	"rockdissolution/pkg/logging"
	"rockdissolution/pkg/pipeline"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "flowfield" {
		runFlowField(os.Args[2:])
		return
	}
	os.Exit(runAnalysis(os.Args[1:]))
}

func runAnalysis(args []string) int {
	fs := flag.NewFlagSet("rockdissolution", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Configuration file (.yaml or .toml)")
	initConfig := fs.Bool("init-config", false, "Write a default configuration file and exit")
	images := fs.String("images", "", "Printf pattern of the volume series, e.g. image%d.tif")
	steps := fs.Int("steps", 0, "Number of time steps")
	shape := fs.String("shape", "", "Volume shape z,y,x for raw inputs")
	cores := fs.Int("cores", 0, "Number of CPU cores to use (default: config value)")
	skipExisting := fs.Bool("skip-existing", true, "Skip units whose output already exists")
	outDir := fs.String("out", "", "Output directory")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: rockdissolution [flags]\n       rockdissolution flowfield [flags]\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return 0
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags given on the command line override the file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "images":
			cfg.Input.ImagePattern = *images
		case "steps":
			cfg.Analysis.NumberOfTimeSteps = *steps
		case "shape":
			cfg.Input.VolumeShape = *shape
		case "cores":
			cfg.Processing.NumCores = *cores
		case "skip-existing":
			cfg.Analysis.SkipIfOutputExists = *skipExisting
		case "out":
			cfg.Output.Dir = *outDir
		}
	})

	cfg.Logging.SetLogger()
	defer logging.Shutdown()

	fmt.Println("================================")
	fmt.Println("ROCK DISSOLUTION ANALYSIS")
	fmt.Println("Voxel populations, pore-contact faces and dissolution proximity")
	fmt.Println("================================")
	fmt.Printf("Series: %s (%d steps)\n", cfg.Input.ImagePattern, cfg.Analysis.NumberOfTimeSteps)
	fmt.Printf("Pore label %d, outer-layer label %d, dilation radius %d\n",
		cfg.Analysis.PoreLabel, cfg.Analysis.OuterLayerLabel, cfg.Analysis.DilationRadius)

	runner, err := pipeline.NewRunner(cfg)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startTime := time.Now()
	results, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nAnalysis finished in %.2f seconds: %s\n", processingTime.Seconds(), results.Summary())
	fmt.Printf("Outputs written to: %s\n", cfg.Output.Dir)

	failed := results.Failed()
	if len(failed) == 0 {
		return 0
	}
	fmt.Println("\nFailed units:")
	for _, r := range failed {
		fmt.Printf("- %s: %v\n", r.Name, r.Err)
	}
	return 1
}
