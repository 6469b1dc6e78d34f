// Package calibrate derives the affine transform between stage coordinates
// and image pixel coordinates, and uses it to seed every tile's initial
// stitch position before relaxation runs.
package calibrate

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/labtile/microstitch/internal/geom"
	"github.com/labtile/microstitch/internal/pairsolver"
	"github.com/labtile/microstitch/internal/scanset"
)

// Calibrator derives ScanSet.AffineStageToImage from exact point
// correspondences and applies it to seed every tile's StitchPosition.
// Grounded on AffineOverlapSolver (AffineOverlapSolver.h/.cpp).
type Calibrator struct {
	solver *pairsolver.Solver
}

// New returns a Calibrator that measures correspondence pairs through
// solver.
func New(solver *pairsolver.Solver) *Calibrator {
	return &Calibrator{solver: solver}
}

// solveAffine2x3 finds the 2x3 matrix M such that, for each i in 0..2,
// ApplyAffine2x3(M, src[i]) == dst[i] exactly. This is OpenCV's
// getAffineTransform: two independent 3x3 linear solves (one per output
// row), done here with gonum.org/v1/gonum/mat's VecDense.SolveVec — named
// out-of-pack dependency, see DESIGN.md "Out-of-pack dependencies".
func solveAffine2x3(src, dst [3]geom.Point2f) ([2][3]float64, error) {
	a := mat.NewDense(3, 3, []float64{
		src[0].X, src[0].Y, 1,
		src[1].X, src[1].Y, 1,
		src[2].X, src[2].Y, 1,
	})

	var m [2][3]float64
	for row, pick := range []func(geom.Point2f) float64{
		func(p geom.Point2f) float64 { return p.X },
		func(p geom.Point2f) float64 { return p.Y },
	} {
		b := mat.NewVecDense(3, []float64{pick(dst[0]), pick(dst[1]), pick(dst[2])})
		var x mat.VecDense
		if err := x.SolveVec(a, b); err != nil {
			return [2][3]float64{}, fmt.Errorf("calibrate: singular correspondence (row %d): %w", row, err)
		}
		m[row] = [3]float64{x.AtVec(0), x.AtVec(1), x.AtVec(2)}
	}
	return m, nil
}

// Calibrate measures the two edges out of tile (x, y) — down and right —
// and solves the affine transform from their stage displacements to their
// measured pixel displacements. Grounded on
// AffineOverlapSolver::computeMatrix, which finds both edges through
// findOverlapPair(set, x, y, dir, dr) — i.e. through the solver's
// configured guess mode and search range, typically FIXED for this
// bootstrap, rather than an ad hoc guess/range of its own.
func (c *Calibrator) Calibrate(set *scanset.ScanSet, origin geom.Point2i) (float64, error) {
	down, right := geom.Down, geom.Right

	a := set.TileAt(origin.X, origin.Y)
	b := set.NeighborAt(origin, down)
	cc := set.NeighborAt(origin, right)

	src := [3]geom.Point2f{
		{X: 0, Y: 0},
		b.StagePosition.Sub(a.StagePosition),
		cc.StagePosition.Sub(a.StagePosition),
	}

	drDown, scoreB := c.solver.FindPair(set, origin, down)
	drRight, scoreC := c.solver.FindPair(set, origin, right)

	dst := [3]geom.Point2f{
		{X: 0, Y: 0},
		drDown.ToPoint2f(),
		drRight.ToPoint2f(),
	}

	m, err := solveAffine2x3(src, dst)
	if err != nil {
		return 0, err
	}
	set.AffineStageToImage = m
	return scoreB + scoreC, nil
}

// CalibrateFromStitch derives the affine transform from three tiles whose
// StitchPosition has already been solved (e.g. by a previous relaxation
// pass), rather than by measuring overlaps directly. Grounded on
// AffineOverlapSolver::computeMatrixFromStitch.
func (c *Calibrator) CalibrateFromStitch(set *scanset.ScanSet, ta, tb, tc geom.Point2i) error {
	a := set.TileAt(ta.X, ta.Y)
	b := set.TileAt(tb.X, tb.Y)
	cc := set.TileAt(tc.X, tc.Y)

	src := [3]geom.Point2f{
		{X: 0, Y: 0},
		b.StagePosition.Sub(a.StagePosition),
		cc.StagePosition.Sub(a.StagePosition),
	}

	origin := a.StitchPosition
	dst := [3]geom.Point2f{
		{X: 0, Y: 0},
		b.StitchPosition.Sub(origin).ToPoint2f(),
		cc.StitchPosition.Sub(origin).ToPoint2f(),
	}

	m, err := solveAffine2x3(src, dst)
	if err != nil {
		return err
	}
	set.AffineStageToImage = m
	return nil
}

// ApplyInitialGrid seeds every tile's StitchPosition from its
// StagePosition via the calibrated affine transform, relative to the
// scan set's StageOrigin. Grounded on
// AffineOverlapSolver::applyInitialGrid.
func ApplyInitialGrid(set *scanset.ScanSet) {
	for y := 0; y < set.Grid.Height; y++ {
		for x := 0; x < set.Grid.Width; x++ {
			t := set.TileAt(x, y)
			stagePos := t.StagePosition.Sub(set.StageOrigin)
			t.StitchPosition = geom.ApplyAffine2x3(set.AffineStageToImage, stagePos).RoundToPoint2i()
		}
	}
}
