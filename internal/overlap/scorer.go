package overlap

import (
	"math"

	"github.com/labtile/microstitch/internal/geom"
)

// BadScore is the sentinel "no good overlap" score shared by the scorer and
// the hierarchical search driver (Design Note: "Score sentinel" — this is
// the single named home for the magic 1e29 constant from the original's
// scoreOverlap/BAD_SCORE).
const BadScore = 1e29

// ScoreOverlap computes the geometric intersection of a and b under the
// integer offset dr (interpreted as "place b shifted by dr relative to a"),
// then returns area / norm(a-b)^3.3 over that intersection. Higher is
// better; BadScore signals a degenerate (zero-area) overlap. A pixel-
// identical overlap drives the denominator to zero, which — exactly as in
// the original's float division — yields +Inf rather than BadScore, so a
// perfect match always wins a FindBestOverlap search rather than being
// mistaken for "no overlap". Preserves the exponent 3.3 exactly, per
// spec.md §4.1.
func ScoreOverlap(a, b *FloatImage, dr geom.Point2i) float64 {
	offA, offB, w, h := overlapROI(a, b, dr)
	if w == 0 || h == 0 {
		return BadScore
	}

	n := l2Norm(a, offA, b, offB, w, h)
	n = math.Pow(n, 3.3)

	return float64(w*h) / n
}

// overlapROI computes the congruent sub-rectangles of a and b that overlap
// under shift dr, returning the top-left corner of each sub-rectangle plus
// the shared width/height. Mirrors imagealign.cpp's getOverlapRoi.
func overlapROI(a, b *FloatImage, dr geom.Point2i) (offA, offB geom.Point2i, w, h int) {
	zero := geom.Point2i{}
	startA := maxPt(dr, zero)
	startB := maxPt(dr.Neg(), zero)

	boundsA := geom.Point2i{X: a.Width, Y: a.Height}
	boundsB := geom.Point2i{X: b.Width, Y: b.Height}

	endA := clampPt(boundsA, startA.Add(boundsB).Sub(startB))
	endB := clampPt(boundsB, startB.Add(boundsA).Sub(startA))

	wA, hA := endA.X-startA.X, endA.Y-startA.Y
	wB, hB := endB.X-startB.X, endB.Y-startB.Y

	if wA != wB || hA != hB || wA <= 0 || hA <= 0 {
		return geom.Point2i{}, geom.Point2i{}, 0, 0
	}

	return startA, startB, wA, hA
}

func maxPt(a, b geom.Point2i) geom.Point2i {
	return geom.Point2i{X: max(a.X, b.X), Y: max(a.Y, b.Y)}
}

func clampPt(hi, p geom.Point2i) geom.Point2i {
	return geom.Point2i{X: clampInt(p.X, 0, hi.X), Y: clampInt(p.Y, 0, hi.Y)}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// l2Norm computes the L2 (Euclidean) norm of the pixelwise difference
// between the w x h region of a starting at offA and the same-size region
// of b starting at offB, over all channels.
func l2Norm(a *FloatImage, offA geom.Point2i, b *FloatImage, offB geom.Point2i, w, h int) float64 {
	channels := a.Channels
	var sumSq float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pa := a.At(offA.X+x, offA.Y+y)
			pb := b.At(offB.X+x, offB.Y+y)
			for c := 0; c < channels; c++ {
				d := pa[c] - pb[c]
				sumSq += d * d
			}
		}
	}
	return math.Sqrt(sumSq)
}
