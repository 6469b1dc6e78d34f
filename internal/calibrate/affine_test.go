package calibrate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/labtile/microstitch/internal/geom"
	"github.com/labtile/microstitch/internal/scanset"
)

// TestSolveAffine2x3RoundTrip is the affine round-trip invariant: solving
// for the transform that maps three known stage points to three known
// pixel points, then applying it back to the stage points, must reproduce
// the pixel points exactly (up to floating point tolerance).
func TestSolveAffine2x3RoundTrip(t *testing.T) {
	src := [3]geom.Point2f{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 0}}
	dst := [3]geom.Point2f{{X: 3, Y: 5}, {X: 3, Y: 45}, {X: 23, Y: 5}}

	m, err := solveAffine2x3(src, dst)
	require.NoError(t, err)

	for i, s := range src {
		got := geom.ApplyAffine2x3(m, s)
		require.InDelta(t, dst[i].X, got.X, 1e-9)
		require.InDelta(t, dst[i].Y, got.Y, 1e-9)
	}
}

func TestSolveAffine2x3RejectsCollinearPoints(t *testing.T) {
	src := [3]geom.Point2f{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}} // collinear: singular
	dst := [3]geom.Point2f{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}}

	_, err := solveAffine2x3(src, dst)
	require.Error(t, err)
}

// buildLShape builds a 2x2 scan set whose (0,0)/(1,0)/(0,1) tiles form the
// three correspondence points an affine bootstrap needs.
func buildLShape(t *testing.T) *scanset.ScanSet {
	t.Helper()
	set := scanset.New()
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			set.AddTile("t", geom.Point2i{X: x, Y: y}, geom.Point2f{X: float64(x) * 10, Y: float64(y) * 10})
		}
	}
	require.NoError(t, set.Freeze())
	return set
}

// TestCalibrateFromStitchBootstrap covers S4: deriving the affine
// transform from already-solved stitch positions must reproduce the
// per-grid-step pixel displacement implied by those positions.
func TestCalibrateFromStitchBootstrap(t *testing.T) {
	set := buildLShape(t)
	set.TileAt(0, 0).StitchPosition = geom.Point2i{X: 0, Y: 0}
	set.TileAt(1, 0).StitchPosition = geom.Point2i{X: 100, Y: 2}
	set.TileAt(0, 1).StitchPosition = geom.Point2i{X: -1, Y: 95}

	c := New(nil)
	err := c.CalibrateFromStitch(set, geom.Point2i{X: 0, Y: 0}, geom.Point2i{X: 1, Y: 0}, geom.Point2i{X: 0, Y: 1})
	require.NoError(t, err)

	// The stage step along X is 10 units and produced a 100px move, so the
	// solved matrix should scale X stage units by ~10 in image X.
	got := geom.ApplyAffine2x3(set.AffineStageToImage, geom.Point2f{X: 10, Y: 0})
	require.InDelta(t, 100, got.X, 1e-9)
	require.InDelta(t, 2, got.Y, 1e-9)
}

func TestApplyInitialGrid(t *testing.T) {
	set := buildLShape(t)
	set.AffineStageToImage = [2][3]float64{{5, 0, 0}, {0, 5, 0}}

	ApplyInitialGrid(set)

	got := set.TileAt(1, 1).StitchPosition
	require.Equal(t, geom.Point2i{X: 50, Y: 50}, got)
}
