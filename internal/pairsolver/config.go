package pairsolver

import "github.com/labtile/microstitch/internal/geom"

// GuessMode selects how a pair's initial offset guess is produced, before
// the hierarchical overlap search refines it. Grounded on OverlapSolver.h's
// GUESS_STAGE/GUESS_RESULT/GUESS_FIXED constants.
type GuessMode int

const (
	// GuessStage derives the guess from the affine stage-to-image
	// transform applied to the neighbor's stage displacement.
	GuessStage GuessMode = iota
	// GuessResult derives the guess from the neighbor's already-solved
	// stitch position (used once a relaxation pass has run once).
	GuessResult
	// GuessFixed uses an operator-supplied constant offset per axis,
	// useful for scan grids whose stage has no usable feedback.
	GuessFixed
)

// Config parameterizes a Solver. Grounded on OverlapSolver::setParameters
// and setFixedGuess.
type Config struct {
	Mode GuessMode
	// MaxDistance bounds how far the search result may lie from the
	// guess before a warning is logged (not a hard failure).
	MaxDistance float64
	// LogSteps is the number of pyramid levels the hierarchical search
	// descends through (logD in overlap.IterBestOverlapNC).
	LogSteps int
	// CropSize is the centered crop applied to each tile before scoring,
	// trading search accuracy at the tile edges for search speed.
	CropSize geom.Point2i
	// RangeH/RangeV bound the search window around the guess for
	// horizontal and vertical neighbor pairs respectively.
	RangeH, RangeV geom.Point2i
	// GuessH/GuessV are the fixed guesses used when Mode == GuessFixed.
	GuessH, GuessV geom.Point2i
}

// rangeFor returns the configured search range for the given neighbor
// direction: vertical pairs (Up/Down) use RangeV, horizontal pairs use
// RangeH. Grounded on OverlapSolver::getRange.
func (c Config) rangeFor(dir geom.Direction) geom.Point2i {
	if dir == geom.Up || dir == geom.Down {
		return c.RangeV
	}
	return c.RangeH
}

// fixedGuessFor returns the Mode == GuessFixed guess for dir, negated for
// the Up/Left directions so a single operator-supplied pair of vectors
// covers all four directions. Grounded on the GUESS_FIXED branch of
// OverlapSolver::findOverlapPair.
func (c Config) fixedGuessFor(dir geom.Direction) geom.Point2i {
	g := c.GuessH
	if dir == geom.Up || dir == geom.Down {
		g = c.GuessV
	}
	if dir == geom.Up || dir == geom.Left {
		g = g.Neg()
	}
	return g
}
