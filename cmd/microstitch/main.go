// Command microstitch solves tile positions for a microscope mosaic scan
// and optionally composites the result into a single raster image.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/labtile/microstitch/internal/geom"
	"github.com/labtile/microstitch/internal/pairsolver"
	"github.com/labtile/microstitch/internal/pipeline"
	"github.com/labtile/microstitch/internal/provider"
	"github.com/labtile/microstitch/internal/scanset"
	"github.com/labtile/microstitch/internal/sinks"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		outputProject string
		outputOverlap string
		compositeOut  string
		cropW, cropH  int
		rangeHX, rangeHY int
		rangeVX, rangeVY int
		logSteps      int
		relaxIters    int
		maxSanityDiff float64
		maxDistance   float64
		guessMode     string
		verbose       bool
		showVersion   bool
		mqttBroker    string
		mqttTopic     string
		cpuProfile    string
	)

	flag.StringVar(&outputProject, "save-project", "", "Write the solved project (grid, affine, stitch positions) as YAML")
	flag.StringVar(&outputOverlap, "save-overlaps", "", "Write the solved per-tile overlap displacements as YAML")
	flag.StringVar(&compositeOut, "composite", "", "Assemble and write a stitched mosaic TIFF to this path")
	flag.IntVar(&cropW, "crop-w", 512, "Tile crop width used during overlap search and compositing")
	flag.IntVar(&cropH, "crop-h", 512, "Tile crop height used during overlap search and compositing")
	flag.IntVar(&rangeHX, "range-h-x", 64, "Horizontal-pair search range, X half-width")
	flag.IntVar(&rangeHY, "range-h-y", 32, "Horizontal-pair search range, Y half-width")
	flag.IntVar(&rangeVX, "range-v-x", 32, "Vertical-pair search range, X half-width")
	flag.IntVar(&rangeVY, "range-v-y", 64, "Vertical-pair search range, Y half-width")
	flag.IntVar(&logSteps, "log-steps", 4, "Number of pyramid levels the hierarchical overlap search descends")
	flag.IntVar(&relaxIters, "relax-iters", 50, "Number of Jacobi relaxation iterations")
	flag.Float64Var(&maxSanityDiff, "max-sanity-diff", 50, "Outlier gate: displacements further than this from the sanity norm are ignored during relaxation")
	flag.Float64Var(&maxDistance, "max-distance", 200, "Warn when a measured overlap lies further than this from its guess")
	flag.StringVar(&guessMode, "guess-mode", "stage", "Initial guess source for overlap search: stage, fixed")
	flag.BoolVar(&verbose, "verbose", false, "Verbose progress output")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.StringVar(&mqttBroker, "mqtt-broker", "", "Publish progress events to this MQTT broker URL, e.g. tcp://localhost:1883")
	flag.StringVar(&mqttTopic, "mqtt-topic", "microstitch/progress", "MQTT topic for progress events")
	flag.StringVar(&cpuProfile, "cpuprofile", "", "Write CPU profile to file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: microstitch [flags] <project.yaml>\n\n")
		fmt.Fprintf(os.Stderr, "Solve tile positions for a microscope mosaic scan described by a project file.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("microstitch %s (commit %s, built %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) != 1 {
		flag.Usage()
		os.Exit(1)
	}
	projectPath := args[0]

	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			log.Fatalf("Creating CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("Starting CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	mode, err := parseGuessMode(guessMode)
	if err != nil {
		log.Fatalf("Guess mode: %v", err)
	}

	sink, closeSink := buildSink(verbose, mqttBroker, mqttTopic)
	if closeSink != nil {
		defer closeSink()
	}

	set, err := scanset.LoadInput(projectPath)
	if err != nil {
		log.Fatalf("Loading project %s: %v", projectPath, err)
	}

	fmt.Printf("microstitch %s (commit %s, built %s)\n", version, commit, buildDate)
	fmt.Printf("  %-16s %d\n", "Tiles:", len(set.Tiles))
	fmt.Printf("  %-16s %dx%d\n", "Crop size:", cropW, cropH)
	fmt.Printf("  %-16s %d\n", "Relax iters:", relaxIters)
	fmt.Printf("  %-16s %s\n", "Guess mode:", guessMode)

	cfg := pipeline.Config{
		Pairsolver: pairsolver.Config{
			Mode:        mode,
			MaxDistance: maxDistance,
			LogSteps:    logSteps,
			CropSize:    geom.Point2i{X: cropW, Y: cropH},
			RangeH:      geom.Point2i{X: rangeHX, Y: rangeHY},
			RangeV:      geom.Point2i{X: rangeVX, Y: rangeVY},
		},
		RelaxIters:        relaxIters,
		MaxSanityDiff:     maxSanityDiff,
		CalibrationOrigin: geom.Point2i{X: 0, Y: 0},
		Composite:         compositeOut != "",
		CompositeOutput:   compositeOut,
		CompositeCrop:     geom.Point2i{X: cropW, Y: cropH},
	}

	start := time.Now()
	stats, err := pipeline.Run(set, cfg, provider.NewFileImageProvider(), sink)
	if err != nil {
		log.Fatalf("Solving: %v", err)
	}
	elapsed := time.Since(start).Round(time.Millisecond)

	fmt.Printf("Done: %d tiles, calibration score %.4f, %v\n", stats.TileCount, stats.CalibScore, elapsed)

	if outputProject != "" {
		if err := scanset.SaveProject(set, outputProject, scanset.SaveFlagsAll); err != nil {
			log.Fatalf("Saving project: %v", err)
		}
		fmt.Printf("Project written to %s\n", outputProject)
	}
	if outputOverlap != "" {
		if err := scanset.SaveOverlaps(set, outputOverlap); err != nil {
			log.Fatalf("Saving overlaps: %v", err)
		}
		fmt.Printf("Overlaps written to %s\n", outputOverlap)
	}
	if compositeOut != "" {
		fmt.Printf("Mosaic written to %s\n", compositeOut)
	}
}

func parseGuessMode(s string) (pairsolver.GuessMode, error) {
	switch s {
	case "stage":
		return pairsolver.GuessStage, nil
	case "fixed":
		return pairsolver.GuessFixed, nil
	default:
		return 0, fmt.Errorf("unknown guess mode %q (want stage or fixed)", s)
	}
}

// buildSink assembles the console/MQTT sink combination, returning a
// cleanup function to flush and close any network sink.
func buildSink(verbose bool, mqttBroker, mqttTopic string) (sinks.Sink, func()) {
	var fanout sinks.Multi
	if verbose {
		fanout = append(fanout, sinks.NewConsole())
	}

	if mqttBroker == "" {
		if len(fanout) == 0 {
			return sinks.Discard, nil
		}
		return fanout, nil
	}

	mq, err := sinks.NewMQTT(mqttBroker, "microstitch", mqttTopic)
	if err != nil {
		log.Fatalf("Connecting to MQTT broker %s: %v", mqttBroker, err)
	}
	fanout = append(fanout, mq)
	return fanout, func() { mq.Close() }
}
