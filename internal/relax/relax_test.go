package relax

import (
	"testing"

	"github.com/labtile/microstitch/internal/geom"
	"github.com/labtile/microstitch/internal/scanset"
)

// buildConsistentGrid builds an NxN grid whose StitchPosition and
// Displacements are already in perfect agreement: tile (x,y) sits at
// pixel (x*step, y*step), and every measured displacement exactly equals
// the corresponding neighbor's positional difference.
func buildConsistentGrid(t *testing.T, n, step int) *scanset.ScanSet {
	t.Helper()
	set := scanset.New()
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			set.AddTile("t", geom.Point2i{X: x, Y: y}, geom.Point2f{X: float64(x), Y: float64(y)})
		}
	}
	if err := set.Freeze(); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			tile := set.TileAt(x, y)
			tile.StitchPosition = geom.Point2i{X: x * step, Y: y * step}
		}
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			pos := geom.Point2i{X: x, Y: y}
			tile := set.TileAt(x, y)
			for _, d := range geom.Directions {
				if !set.HasNeighbor(pos, d) {
					continue
				}
				neighbor := set.NeighborAt(pos, d)
				tile.Displacements[d] = neighbor.StitchPosition.Sub(tile.StitchPosition)
			}
		}
	}
	return set
}

// TestRelaxationFixedPoint is the fixed-point invariant: if every tile's
// position is already consistent with its measured displacements, running
// relaxation must not move anything.
func TestRelaxationFixedPoint(t *testing.T) {
	set := buildConsistentGrid(t, 4, 100)

	want := make([]geom.Point2i, len(set.Tiles))
	for i, tile := range set.Tiles {
		want[i] = tile.StitchPosition
	}

	s := New(nil)
	s.Setup(set, 1)
	s.Run(5)

	for i, tile := range set.Tiles {
		if tile.StitchPosition != want[i] {
			t.Errorf("tile %d moved from %v to %v at a fixed point", i, want[i], tile.StitchPosition)
		}
	}
}

// TestRelaxationRejectsOutlier is the outlier-rejection invariant: a
// single displacement whose magnitude deviates from the sanity norm by
// more than maxSanityDiff must be excluded from the averaging step rather
// than dragging its tile's position toward a bogus value.
func TestRelaxationRejectsOutlier(t *testing.T) {
	set := buildConsistentGrid(t, 5, 100)

	// Corrupt one interior edge with a wildly wrong displacement.
	center := set.TileAt(2, 2)
	center.Displacements[geom.Right] = geom.Point2i{X: 100000, Y: 100000}

	s := New(nil)
	s.Setup(set, 10) // tight tolerance; the corrupted edge lifts the sanity norm to ~4026
	s.Run(3)

	got := set.TileAt(2, 2).StitchPosition
	want := geom.Point2i{X: 200, Y: 200}
	// The corrupted edge must be gated out, so (2,2) should still land
	// near its consistent position rather than drifting toward +100000.
	if diff := got.Sub(want).Norm(); diff > 50 {
		t.Errorf("tile (2,2) drifted to %v, want near %v (diff=%v)", got, want, diff)
	}
}
