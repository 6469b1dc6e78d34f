package scanset

import "github.com/labtile/microstitch/internal/geom"

// Tile is one source image placed in the logical scan grid. It carries no
// loaded pixel data and no load/evict methods of its own — image decoding
// is a provider.ImageProvider concern (spec.md §6), keeping Tile a plain,
// copyable record the way ScanImage's public fields were in scanset.h,
// minus its private cachedImage/cachedF32Img/cached/cachedF32 state.
type Tile struct {
	// Path is the filesystem path of the source image.
	Path string
	// GridPosition is this tile's exact logical row/column, as supplied
	// by the caller (addImage's gridPos in scanset.cpp).
	GridPosition geom.Point2i
	// StagePosition is the physical stage coordinate the tile was
	// captured at, in stage units (e.g. micrometers).
	StagePosition geom.Point2f
	// StitchPosition is the solved pixel position of this tile's top-left
	// corner in the final mosaic, filled in by relax.Solver.
	StitchPosition geom.Point2i
	// Displacements[d] is the measured pixel offset to this tile's
	// neighbor in direction d, filled in by pairsolver.Solver.
	Displacements [geom.NumDirections]geom.Point2i
}
