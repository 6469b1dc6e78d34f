// Package pairsolver measures the pixel displacement between adjacent
// tiles in a scan grid, seeding each measurement with a guess and
// refining it with a hierarchical overlap search.
package pairsolver

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/labtile/microstitch/internal/geom"
	"github.com/labtile/microstitch/internal/overlap"
	"github.com/labtile/microstitch/internal/provider"
	"github.com/labtile/microstitch/internal/scanset"
	"github.com/labtile/microstitch/internal/sinks"
)

const (
	stepOverlapsY = "Computing vertical overlaps"
	stepOverlapsX = "Computing horizontal overlaps"
	stepGridVec   = "Computing grid vector"
)

// Solver measures pairwise tile displacements. Grounded on OverlapSolver
// (OverlapSolver.h/.cpp).
type Solver struct {
	cfg      Config
	provider provider.ImageProvider
	sink     sinks.Sink
}

// New returns a Solver reading tiles through p and reporting through sink.
// A nil sink is replaced with sinks.Discard.
func New(cfg Config, p provider.ImageProvider, sink sinks.Sink) *Solver {
	if sink == nil {
		sink = sinks.Discard
	}
	return &Solver{cfg: cfg, provider: p, sink: sink}
}

// Measure scores the overlap between tiles a and b, searching around
// guess within rng. Grounded on OverlapSolver::findOverlapPair(imageA,
// imageB, guess, range, dr): loads both images, center-crops them, and
// runs the hierarchical search. If either image fails to load, the failure
// is reported through the sink's Fatal and Measure returns guess with a
// NaN score.
func (s *Solver) Measure(a, b *scanset.Tile, guess, rng geom.Point2i) (geom.Point2i, float64) {
	imgA, err := s.provider.GetImage(a.Path)
	if err != nil {
		s.sink.Fatal(fmt.Sprintf("could not load image for overlap: %q: %v", a.Path, err))
		return guess, math.NaN()
	}
	imgB, err := s.provider.GetImage(b.Path)
	if err != nil {
		s.sink.Fatal(fmt.Sprintf("could not load image for overlap: %q: %v", b.Path, err))
		return guess, math.NaN()
	}

	fa := overlap.FromImage(imgA).CenterCrop(s.cfg.CropSize.X, s.cfg.CropSize.Y)
	fb := overlap.FromImage(imgB).CenterCrop(s.cfg.CropSize.X, s.cfg.CropSize.Y)

	dr, score := overlap.IterBestOverlapNC(fa, fb, guess, rng, s.cfg.LogSteps)
	return dr, score
}

// guessFor computes the initial offset guess for the pair (x, y)->dir,
// per s.cfg.Mode. Grounded on the three-branch guessMode switch in
// OverlapSolver::findOverlapPair(set, x, y, dir, dr).
func (s *Solver) guessFor(set *scanset.ScanSet, pos geom.Point2i, dir geom.Direction) geom.Point2i {
	a := set.TileAt(pos.X, pos.Y)
	b := set.NeighborAt(pos, dir)

	switch s.cfg.Mode {
	case GuessStage:
		ds := b.StagePosition.Sub(a.StagePosition)
		return geom.ApplyAffine2x3(set.AffineStageToImage, ds).RoundToPoint2i()
	case GuessResult:
		return b.StitchPosition.Sub(a.StitchPosition)
	case GuessFixed:
		return s.cfg.fixedGuessFor(dir)
	default:
		panic("pairsolver: invalid guess mode")
	}
}

// FindPair measures the (pos)->dir pair using the solver's configured
// guess mode and search range, and warns if the result strayed too far
// from the guess. Grounded on OverlapSolver::findOverlapPair(set, x, y,
// dir, dr) — every caller that needs a single pair's displacement,
// including the affine/grid-vector bootstraps, routes through this same
// guess-mode-aware path rather than inventing its own guess or range.
func (s *Solver) FindPair(set *scanset.ScanSet, pos geom.Point2i, dir geom.Direction) (geom.Point2i, float64) {
	a := set.TileAt(pos.X, pos.Y)
	b := set.NeighborAt(pos, dir)
	guess := s.guessFor(set, pos, dir)
	rng := s.cfg.rangeFor(dir)

	dr, score := s.Measure(a, b, guess, rng)

	if d := dr.Sub(guess).Norm(); s.cfg.MaxDistance > 0 && d > s.cfg.MaxDistance {
		sinks.Logf(s.sink, sinks.Warn,
			"overly large difference %.1f from guess encountered at (%d,%d) dir=%v", d, pos.X, pos.Y, dir)
	}
	return dr, score
}

func workerCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}

// ComputeOverlapsY measures every vertical (Down/Up) neighbor pair across
// the grid, one row at a time, parallelizing across columns within a row
// with a bounded worker pool — grounded on the teacher's job-channel
// pattern (tile.Generate, internal/tile/generator.go) and preserving the
// original's #pragma omp parallel for-per-row structure: a row's writes
// never alias another row's, so rows are processed sequentially while
// columns within a row run concurrently.
func (s *Solver) ComputeOverlapsY(set *scanset.ScanSet) {
	s.sink.Log(sinks.Info, "computing vertical overlaps")
	height := set.Grid.Height
	width := set.Grid.Width
	if height == 0 {
		return
	}

	for y := 0; y < height-1; y++ {
		s.sink.Progress(stepOverlapsY, y, height-1)

		jobs := make(chan int, width)
		for x := 0; x < width; x++ {
			jobs <- x
		}
		close(jobs)

		var wg sync.WaitGroup
		for w := 0; w < workerCount(); w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for x := range jobs {
					pos := geom.Point2i{X: x, Y: y}
					dr, score := s.FindPair(set, pos, geom.Down)
					if math.IsNaN(score) {
						continue // load failure: keep the prior displacements
					}
					set.TileAt(x, y).Displacements[geom.Down] = dr
					set.NeighborAt(pos, geom.Down).Displacements[geom.Up] = dr.Neg()
				}
			}()
		}
		wg.Wait()
	}
	s.sink.Progress(stepOverlapsY, height-1, height-1)
}

// ComputeOverlapsX is ComputeOverlapsY's horizontal twin, grounded on
// OverlapSolver::computeOverlapsX.
func (s *Solver) ComputeOverlapsX(set *scanset.ScanSet) {
	s.sink.Log(sinks.Info, "computing horizontal overlaps")
	width := set.Grid.Width
	height := set.Grid.Height
	if width == 0 {
		return
	}

	for x := 0; x < width-1; x++ {
		s.sink.Progress(stepOverlapsX, x, width-1)

		jobs := make(chan int, height)
		for y := 0; y < height; y++ {
			jobs <- y
		}
		close(jobs)

		var wg sync.WaitGroup
		for w := 0; w < workerCount(); w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for y := range jobs {
					pos := geom.Point2i{X: x, Y: y}
					dr, score := s.FindPair(set, pos, geom.Right)
					if math.IsNaN(score) {
						continue // load failure: keep the prior displacements
					}
					set.TileAt(x, y).Displacements[geom.Right] = dr
					set.NeighborAt(pos, geom.Right).Displacements[geom.Left] = dr.Neg()
				}
			}()
		}
		wg.Wait()
	}
	s.sink.Progress(stepOverlapsX, width-1, width-1)
}

// ComputeGridVector measures the single pair (x,y)->dir and derives one
// column of the stage-to-image affine transform from it: the per-grid-step
// pixel displacement along dir's axis. This must run before
// ComputeOverlapsX/Y, since their GuessStage guesses depend on it.
// Grounded on OverlapSolver::computeGridVector.
func (s *Solver) ComputeGridVector(set *scanset.ScanSet, pos geom.Point2i, dir geom.Direction) float64 {
	s.sink.Progress(stepGridVec, 0, 1)

	a := set.TileAt(pos.X, pos.Y)
	b := set.NeighborAt(pos, dir)
	// Uses StagePosition, not GridPosition, so the resulting matrix column
	// agrees with guessFor's GuessStage branch, which also transforms a
	// StagePosition difference (see DESIGN.md's "Unified stage->image
	// transform" note).
	ds := b.StagePosition.Sub(a.StagePosition)

	// Routes through FindPair rather than a hardcoded zero guess, per
	// computeGridVector's own findOverlapPair(set, x, y, dir, dr) call —
	// the grid-vector bootstrap uses the same configured guess mode
	// (typically FIXED, since the affine matrix isn't known yet) and the
	// same configured search range as every other pair measurement.
	dr, score := s.FindPair(set, pos, dir)

	if dir == geom.Up || dir == geom.Down {
		if ds.Y != 0 {
			set.AffineStageToImage[0][1] = float64(dr.X) / ds.Y
			set.AffineStageToImage[1][1] = float64(dr.Y) / ds.Y
		}
	} else {
		if ds.X != 0 {
			set.AffineStageToImage[0][0] = float64(dr.X) / ds.X
			set.AffineStageToImage[1][0] = float64(dr.Y) / ds.X
		}
	}

	s.sink.Progress(stepGridVec, 1, 1)
	return score
}
