package calibrate

import (
	"github.com/labtile/microstitch/internal/geom"
	"github.com/labtile/microstitch/internal/pairsolver"
	"github.com/labtile/microstitch/internal/scanset"
)

// TwoAxis calibrates by measuring one horizontal and one vertical pair
// independently and deriving each axis of the transform on its own, rather
// than solving a joint 3-point system. Grounded on the non-affine
// OverlapSolver::computeGridVector/applyInitialGrid path
// (OverlapSolver.cpp), kept as a simpler bootstrap for scan grids whose
// stage motion is known to be axis-aligned (see DESIGN.md's "Unified
// stage->image transform" note — this still writes into the one general
// ScanSet.AffineStageToImage matrix, just one column at a time).
type TwoAxis struct {
	solver *pairsolver.Solver
}

// NewTwoAxis returns a TwoAxis calibrator measuring pairs through solver.
func NewTwoAxis(solver *pairsolver.Solver) *TwoAxis {
	return &TwoAxis{solver: solver}
}

// Calibrate measures the down and right edges out of origin and sets the
// corresponding column of the affine transform from each: both the on-axis
// scale and the cross term from the measured off-axis component. The
// translation column is left as it was.
func (t *TwoAxis) Calibrate(set *scanset.ScanSet, origin geom.Point2i) float64 {
	scoreDown := t.solver.ComputeGridVector(set, origin, geom.Down)
	scoreRight := t.solver.ComputeGridVector(set, origin, geom.Right)
	return scoreDown + scoreRight
}
