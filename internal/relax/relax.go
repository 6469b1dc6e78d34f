// Package relax iteratively relaxes every tile's stitch position toward
// agreement with its measured neighbor displacements.
package relax

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/labtile/microstitch/internal/geom"
	"github.com/labtile/microstitch/internal/scanset"
	"github.com/labtile/microstitch/internal/sinks"
)

const stepRelax = "Solving grid"

// Solver runs Jacobi-style position relaxation over a scan set's grid.
// Grounded on RelaxationSolver (RelaxationSolver.h/.cpp).
type Solver struct {
	sink sinks.Sink

	set            *scanset.ScanSet
	pos            []geom.Point2f // current position grid, row-major [y*width+x]
	sanityNorm     float64
	maxSanityDiff  float64
	iterations     int
}

// New returns a Solver reporting through sink. A nil sink is replaced with
// sinks.Discard.
func New(sink sinks.Sink) *Solver {
	if sink == nil {
		sink = sinks.Discard
	}
	return &Solver{sink: sink}
}

// Setup initializes the relaxation grid from set's current StitchPosition
// values and computes the sanity norm: the mean per-direction displacement
// magnitude over interior tiles, used to gate outlier displacements during
// Run. Grounded on RelaxationSolver::setup.
//
// Per spec.md's explicit instruction (recorded in DESIGN.md's Open
// Question decisions), sanityNorm mixes horizontal and vertical edge
// populations into one scalar threshold rather than a per-axis norm —
// this is preserved unchanged, not silently corrected.
func (s *Solver) Setup(set *scanset.ScanSet, maxSanityDiff float64) {
	s.set = set
	s.iterations = 0
	s.maxSanityDiff = maxSanityDiff

	width, height := set.Grid.Width, set.Grid.Height
	s.pos = make([]geom.Point2f, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			s.pos[y*width+x] = set.TileAt(x, y).StitchPosition.ToPoint2f()
		}
	}

	s.sink.Log(sinks.Info, "relaxation: initializing solver")

	var sum float64
	count := 0
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			tile := set.TileAt(x, y)
			var dirSum float64
			for d := 0; d < geom.NumDirections; d++ {
				dirSum += tile.Displacements[d].Norm() / 4
			}
			sum += dirSum
			count++
		}
	}
	if count > 0 {
		s.sanityNorm = sum / float64(count)
	}
}

func (s *Solver) at(x, y int) geom.Point2f {
	return s.pos[y*s.set.Grid.Width+x]
}

// accumulateFromNeighbor adds pos's neighbor-in-direction implied position
// (the neighbor's current position minus the measured displacement toward
// it) into acc, unless that displacement's magnitude deviates from
// sanityNorm by more than maxSanityDiff — the outlier gate. Grounded on
// RelaxationSolver::accumulateFromNeighbor.
func (s *Solver) accumulateFromNeighbor(pos geom.Point2i, dir geom.Direction, acc *geom.Point2f, n *int) {
	if !s.set.HasNeighbor(pos, dir) {
		return
	}
	tile := s.set.TileAt(pos.X, pos.Y)
	ds := tile.Displacements[dir]
	if math.Abs(ds.Norm()-s.sanityNorm) > s.maxSanityDiff {
		return
	}

	neighborPos := pos.Add(dir.Unit())
	implied := s.at(neighborPos.X, neighborPos.Y).Sub(ds.ToPoint2f())
	*acc = acc.Add(implied)
	*n++
}

// Run performs iters Jacobi relaxation sweeps, then commits the result
// back into set's tile StitchPosition fields and recomputes set.StitchRect.
// Grounded on RelaxationSolver::run: reads from the current position grid,
// writes into a separate next-position buffer, then swaps — so a tile
// never reads a neighbor's already-updated-this-iteration position.
func (s *Solver) Run(iters int) {
	width, height := s.set.Grid.Width, s.set.Grid.Height
	next := make([]geom.Point2f, len(s.pos))

	s.sink.Log(sinks.Info, "relaxation: starting run")

	for it := 0; it < iters; it, s.iterations = it+1, s.iterations+1 {
		var movedTotal float64

		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				gridPos := geom.Point2i{X: x, Y: y}
				var acc geom.Point2f
				n := 0

				for _, d := range geom.Directions {
					s.accumulateFromNeighbor(gridPos, d, &acc, &n)
				}

				if n == 0 {
					sinks.Logf(s.sink, sinks.Warn, "no valid neighbors at (%d, %d)", x, y)
					next[y*width+x] = s.at(x, y)
					continue
				}

				avg := acc.Scale(1 / float64(n))
				movedTotal += s.at(x, y).Sub(avg).Norm()
				next[y*width+x] = avg
			}
		}

		copy(s.pos, next)
		sinks.Logf(s.sink, sinks.Debug, "relaxation: iteration %d moved %.3f px in total", it, movedTotal)
		s.sink.Progress(stepRelax, it, iters)
	}

	s.sink.Log(sinks.Info, "relaxation: committing results")
	s.commit()
}

func (s *Solver) commit() {
	width, height := s.set.Grid.Width, s.set.Grid.Height

	points := make(orb.MultiPoint, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := s.at(x, y)
			s.set.TileAt(x, y).StitchPosition = p.RoundToPoint2i()
			points = append(points, orb.Point{p.X, p.Y})
		}
	}

	bound := points.Bound()
	s.set.StitchRect = geom.Rect{
		Min: geom.Point2f{X: bound.Min[0], Y: bound.Min[1]}.RoundToPoint2i(),
		Max: geom.Point2f{X: bound.Max[0], Y: bound.Max[1]}.RoundToPoint2i(),
	}

	s.sink.Log(sinks.Info, "relaxation done")
}
