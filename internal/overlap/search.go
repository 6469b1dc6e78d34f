package overlap

import (
	"image"

	"github.com/labtile/microstitch/internal/geom"
)

// ShrinkMode selects how the search range shrinks between pyramid levels.
// The two modes come from two historical call sites in the original solver
// (iterBestOverlap vs iterBestOverlapNC) that never fully converged on one
// convention; both are preserved here rather than picking a winner, since
// FIXED-guess overlaps recorded under the old ⅓ convention must still
// replay identically (spec.md's Open Question on pyramid shrink divisor).
type ShrinkMode int

const (
	// ShrinkQuarter divides the search range by 4 (plus 1) at each finer
	// pyramid level. This is the production path (IterBestOverlapNC).
	ShrinkQuarter ShrinkMode = iota
	// ShrinkThird divides the search range by 3 (plus 1) at each finer
	// pyramid level. This is the legacy path (IterBestOverlap).
	ShrinkThird
)

func (m ShrinkMode) divisor() int {
	if m == ShrinkThird {
		return 3
	}
	return 4
}

// FindBestOverlap exhaustively scores every integer offset in
// guess±rng (stepping by stride on each axis) and returns the offset with
// the highest ScoreOverlap, along with that score. Mirrors the original's
// findBestOverlap brute-force inner loop exactly: best_score starts at 0,
// the outer loop runs over dx and the inner over dy, and a candidate wins
// with a plain strict ">" comparison — no score is special-cased or
// skipped, so a perfect (score == +Inf) match always wins, and a search
// window with no valid overlap anywhere naturally settles on BadScore.
func FindBestOverlap(a, b *FloatImage, guess, rng geom.Point2i, stride int) (geom.Point2i, float64) {
	if stride < 1 {
		stride = 1
	}

	best := guess
	bestScore := 0.0

	for dx := guess.X - rng.X; dx <= guess.X+rng.X; dx += stride {
		for dy := guess.Y - rng.Y; dy <= guess.Y+rng.Y; dy += stride {
			dr := geom.Point2i{X: dx, Y: dy}
			score := ScoreOverlap(a, b, dr)
			if score > bestScore {
				bestScore = score
				best = dr
			}
		}
	}

	return best, bestScore
}

// iterBestOverlap is the shared coarse-to-fine pyramid driver: it searches
// at the coarsest level logD first, then repeatedly doubles resolution and
// re-searches a shrunk range around the previous level's (rescaled) best
// offset, down to the full-resolution level 0. Both exported entry points
// below are thin wrappers selecting the conversion strategy and ShrinkMode.
func iterBestOverlap(a, b *FloatImage, guess, rng geom.Point2i, logD int, mode ShrinkMode) (geom.Point2i, float64) {
	best := guess
	curRange := rng
	score := BadScore
	div := mode.divisor()

	for s := logD; s >= 0; s-- {
		f := 1 << uint(s)
		da := downsampleFloatImage(a, f)
		db := downsampleFloatImage(b, f)

		scaledGuess := geom.Point2i{X: best.X / f, Y: best.Y / f}
		scaledRange := geom.Point2i{
			X: maxInt(curRange.X/f, 1),
			Y: maxInt(curRange.Y/f, 1),
		}

		found, sc := FindBestOverlap(da, db, scaledGuess, scaledRange, 1)
		best = geom.Point2i{X: found.X * f, Y: found.Y * f}
		score = sc

		curRange = geom.Point2i{X: curRange.X/div + 1, Y: curRange.Y/div + 1}
	}

	return best, score
}

// IterBestOverlapNC ("no conversion") runs the production pyramid search
// directly on pre-built FloatImages with a ¼ range shrink per level.
func IterBestOverlapNC(a, b *FloatImage, guess, rng geom.Point2i, logD int) (geom.Point2i, float64) {
	return iterBestOverlap(a, b, guess, rng, logD, ShrinkQuarter)
}

// IterBestOverlap is the legacy entry point: it converts both source images
// to FloatImage itself (rather than requiring pre-converted inputs) and
// uses a ⅓ range shrink per level.
func IterBestOverlap(a, b image.Image, guess, rng geom.Point2i, logD int) (geom.Point2i, float64) {
	fa := FromImage(a)
	fb := FromImage(b)
	return iterBestOverlap(fa, fb, guess, rng, logD, ShrinkThird)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
