package overlap

import (
	"testing"

	"github.com/labtile/microstitch/internal/geom"
)

// makeCheckerboard builds a deterministic multi-channel checkerboard of
// square-by-square pixel cells. The pattern repeats every 2*square pixels
// along each axis and along the diagonals, so a shifted copy also matches
// exactly at every such alias; a test that needs a unique best alignment
// must pick square large enough that no alias falls inside its search
// window.
func makeCheckerboard(w, h, channels, square int) *FloatImage {
	img := NewFloatImage(w, h, channels)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 0.0
			if (x/square+y/square)%2 == 0 {
				v = 255.0
			}
			px := img.At(x, y)
			for c := 0; c < channels; c++ {
				px[c] = v
			}
		}
	}
	return img
}

// TestScoreOverlapUniformDiffFavorsSmallerArea checks the area factor of
// w*h / n^3.3: with the same difference d at every pixel, n = d*sqrt(w*h),
// so the score falls as (w*h)^-0.65 and the half overlap outscores the
// full one. The 32-px shift is a multiple of the pattern's 8-px period,
// so the half overlap sees the same per-pixel difference.
func TestScoreOverlapUniformDiffFavorsSmallerArea(t *testing.T) {
	a := makeCheckerboard(64, 64, 1, 4)
	b := NewFloatImage(64, 64, 1)
	for i := range b.Pix {
		b.Pix[i] = a.Pix[i] + 1 // uniform small offset: nonzero, uniform norm density
	}

	scoreFull := ScoreOverlap(a, b, geom.Point2i{X: 0, Y: 0})
	scoreHalf := ScoreOverlap(a, b, geom.Point2i{X: 32, Y: 0})

	if scoreFull == BadScore || scoreHalf == BadScore {
		t.Fatalf("expected valid scores, got full=%v half=%v", scoreFull, scoreHalf)
	}
	if scoreHalf <= scoreFull {
		t.Errorf("expected half overlap (smaller area, same per-pixel diff) to score higher: full=%v half=%v", scoreFull, scoreHalf)
	}
}

func TestScoreOverlapDegenerateIsBad(t *testing.T) {
	a := makeCheckerboard(16, 16, 1, 4)
	b := makeCheckerboard(16, 16, 1, 4)
	if got := ScoreOverlap(a, b, geom.Point2i{X: 100, Y: 100}); got != BadScore {
		t.Errorf("expected BadScore for non-overlapping offset, got %v", got)
	}
}

// TestHierarchicalIdempotenceAtLogD0 verifies invariant: with logD=0 the
// pyramid search degenerates to a single FindBestOverlap call at full
// resolution, so both entry points must agree with a direct call.
func TestHierarchicalIdempotenceAtLogD0(t *testing.T) {
	base := makeCheckerboard(64, 64, 1, 4)
	shifted := NewFloatImage(64, 64, 1)
	const dx, dy = 3, -2
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			sx, sy := x+dx, y+dy
			if sx < 0 || sx >= 64 || sy < 0 || sy >= 64 {
				continue
			}
			copy(shifted.At(x, y), base.At(sx, sy))
		}
	}

	direct, directScore := FindBestOverlap(base, shifted, geom.Point2i{}, geom.Point2i{X: 8, Y: 8}, 1)
	pyramid, pyramidScore := IterBestOverlapNC(base, shifted, geom.Point2i{}, geom.Point2i{X: 8, Y: 8}, 0)

	if direct != pyramid {
		t.Errorf("logD=0 pyramid search diverged from direct search: direct=%v pyramid=%v", direct, pyramid)
	}
	if directScore != pyramidScore {
		t.Errorf("logD=0 pyramid score diverged: direct=%v pyramid=%v", directScore, pyramidScore)
	}
}

func TestIterBestOverlapNCFindsKnownShift(t *testing.T) {
	// 32-px squares: the nearest alias of the true shift lies 64 px away,
	// well outside the +/-16 px search window.
	base := makeCheckerboard(128, 128, 1, 32)
	shifted := NewFloatImage(128, 128, 1)
	const dx, dy = 6, -4
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			sx, sy := x+dx, y+dy
			if sx < 0 || sx >= 128 || sy < 0 || sy >= 128 {
				continue
			}
			copy(shifted.At(x, y), base.At(sx, sy))
		}
	}

	best, score := IterBestOverlapNC(base, shifted, geom.Point2i{}, geom.Point2i{X: 16, Y: 16}, 2)
	if score == BadScore {
		t.Fatalf("expected a valid score, got BadScore")
	}
	if best.X != dx || best.Y != dy {
		t.Errorf("IterBestOverlapNC = %v, want (%d, %d)", best, dx, dy)
	}
}
