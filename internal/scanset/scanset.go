// Package scanset holds the tile grid that every solver stage operates on:
// adding tiles, normalizing their grid positions, and addressing tiles by
// grid coordinate or by neighbor direction.
package scanset

import (
	"errors"
	"fmt"

	"github.com/labtile/microstitch/internal/geom"
)

// ErrMissingTile is the panic payload used by TileAt/NeighborAt when asked
// for a grid position that has no tile. Grounded on ScanSet::imageAt's
// assert(x >= 0 && x < gridWidth) — the original treats an out-of-range
// lookup as a programming error, not a recoverable condition, so the Go
// port panics rather than returning an error for the same cases.
var ErrMissingTile = errors.New("scanset: no tile at grid position")

// ScanSet is the full collection of tiles for one mosaic, plus the
// calibration and solved-geometry state later stages fill in. Grounded on
// ScanSet (scanset.h), flattened into exported fields since Go has no
// analogue to C++ friend access and every later stage needs direct field
// access to StitchRect/StageOrigin/AffineStageToImage.
type ScanSet struct {
	Tiles []Tile
	Grid  Grid

	// StageOrigin is the stage position of the tile at grid (0, 0),
	// recorded once Freeze builds the grid.
	StageOrigin geom.Point2f
	// AffineStageToImage maps a stage-space displacement to an image-space
	// pixel displacement. Row 0 produces the X pixel component, row 1 the
	// Y component: px = M[row][0]*sx + M[row][1]*sy + M[row][2].
	// Filled in by calibrate.Calibrator.
	AffineStageToImage [2][3]float64
	// StitchRect is the solved bounding rectangle of the assembled mosaic
	// in pixel space, filled in by relax.Solver.
	StitchRect geom.Rect

	frozen bool
}

// New returns an empty ScanSet ready for AddTile calls.
func New() *ScanSet {
	return &ScanSet{}
}

// AddTile appends a tile. Grounded on ScanSet::addImage; panics if called
// after Freeze, mirroring the original's assert(gridGenerated == false).
func (s *ScanSet) AddTile(path string, gridPos geom.Point2i, stagePos geom.Point2f) {
	if s.frozen {
		panic("scanset: AddTile called after Freeze")
	}
	s.Tiles = append(s.Tiles, Tile{Path: path, GridPosition: gridPos, StagePosition: stagePos})
}

// Freeze builds the grid index from the tiles added so far and records
// StageOrigin. It is idempotent. Grounded on ScanSet::generateGrid.
func (s *ScanSet) Freeze() error {
	if s.frozen {
		return nil
	}
	g, err := BuildGrid(s.Tiles)
	if err != nil {
		return err
	}
	s.Grid = g
	s.frozen = true
	s.StageOrigin = s.TileAt(0, 0).StagePosition
	return nil
}

// TileAt returns the tile at normalized grid position (x, y). It panics if
// the grid has not been built yet or the position has no tile.
func (s *ScanSet) TileAt(x, y int) *Tile {
	if !s.frozen {
		panic("scanset: TileAt called before Freeze")
	}
	idx, ok := s.Grid.IndexAt(x, y)
	if !ok {
		panic(fmt.Errorf("%w: (%d, %d)", ErrMissingTile, x, y))
	}
	return &s.Tiles[idx]
}

// HasNeighbor reports whether grid position g has a neighbor in direction
// dir within grid bounds. Grounded on ScanSet::hasImageAt.
func (s *ScanSet) HasNeighbor(g geom.Point2i, dir geom.Direction) bool {
	h := g.Add(dir.Unit())
	return h.X >= 0 && h.X < s.Grid.Width && h.Y >= 0 && h.Y < s.Grid.Height
}

// NeighborAt returns the tile adjacent to g in direction dir. It panics if
// HasNeighbor(g, dir) would be false. Grounded on ScanSet::imageAt(g, dir).
func (s *ScanSet) NeighborAt(g geom.Point2i, dir geom.Direction) *Tile {
	h := g.Add(dir.Unit())
	return s.TileAt(h.X, h.Y)
}
