// Package pipeline wires the pairsolver, calibrate, and relax stages into
// one end-to-end run over a scan set, mirroring the top-level orchestration
// shape of the teacher's tile.Generate/tile.Transform entry points
// (internal/tile/generator.go, internal/tile/transform.go): a stats
// struct, sequential stage calls, and phase-scoped logging.
package pipeline

import (
	"fmt"
	"time"

	"github.com/labtile/microstitch/internal/calibrate"
	"github.com/labtile/microstitch/internal/compositor"
	"github.com/labtile/microstitch/internal/geom"
	"github.com/labtile/microstitch/internal/pairsolver"
	"github.com/labtile/microstitch/internal/provider"
	"github.com/labtile/microstitch/internal/relax"
	"github.com/labtile/microstitch/internal/scanset"
	"github.com/labtile/microstitch/internal/sinks"
)

// Config holds every parameter a full run needs across all stages.
type Config struct {
	Pairsolver    pairsolver.Config
	RelaxIters    int
	MaxSanityDiff float64
	// CalibrationOrigin is the grid position whose down/right neighbors
	// seed the affine calibration (usually (0, 0)).
	CalibrationOrigin geom.Point2i
	// Composite, if true, assembles the solved set into a raster
	// mosaic at CompositeOutput.
	Composite       bool
	CompositeOutput string
	CompositeCrop   geom.Point2i
}

// Stats summarizes one run, grounded on the teacher's tile.Stats
// (internal/tile/generator.go).
type Stats struct {
	TileCount     int
	RelaxIters    int
	Elapsed       time.Duration
	CalibScore    float64
}

// Run executes the full solve: affine calibration from a 3-point
// correspondence, overlap measurement across the grid, position
// relaxation, and (optionally) mosaic compositing.
func Run(set *scanset.ScanSet, cfg Config, p provider.ImageProvider, sink sinks.Sink) (Stats, error) {
	if sink == nil {
		sink = sinks.Discard
	}
	start := time.Now()

	if err := set.Freeze(); err != nil {
		return Stats{}, fmt.Errorf("pipeline: %w", err)
	}

	solver := pairsolver.New(cfg.Pairsolver, p, sink)

	sink.Log(sinks.Info, "pipeline: calibrating stage-to-image transform")
	cal := calibrate.New(solver)
	calibScore, err := cal.Calibrate(set, cfg.CalibrationOrigin)
	if err != nil {
		return Stats{}, fmt.Errorf("pipeline: calibration: %w", err)
	}
	calibrate.ApplyInitialGrid(set)

	sink.Log(sinks.Info, "pipeline: measuring tile overlaps")
	pairCfg := cfg.Pairsolver
	pairCfg.Mode = pairsolver.GuessStage
	solver = pairsolver.New(pairCfg, p, sink)
	solver.ComputeOverlapsX(set)
	solver.ComputeOverlapsY(set)

	sink.Log(sinks.Info, "pipeline: relaxing tile positions")
	r := relax.New(sink)
	r.Setup(set, cfg.MaxSanityDiff)
	r.Run(cfg.RelaxIters)

	if cfg.Composite {
		sink.Log(sinks.Info, "pipeline: compositing mosaic")
		comp := compositor.NewRasterCompositor(p, sink, cfg.CompositeCrop)
		if err := comp.Composite(set, cfg.CompositeOutput); err != nil {
			return Stats{}, fmt.Errorf("pipeline: composite: %w", err)
		}
	}

	return Stats{
		TileCount:  len(set.Tiles),
		RelaxIters: cfg.RelaxIters,
		Elapsed:    time.Since(start),
		CalibScore: calibScore,
	}, nil
}
