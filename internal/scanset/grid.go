package scanset

import (
	"errors"
	"fmt"
	"sort"

	"github.com/labtile/microstitch/internal/geom"
)

// ErrIrregularGrid reports that the tiles' GridPosition values do not form
// a uniform rectangular grid: the row/column spacing is non-uniform, two
// tiles share the same normalized position, or some grid position has no
// tile.
var ErrIrregularGrid = errors.New("scanset: irregular grid")

// Grid is a dense row/column index over a ScanSet's tiles, keyed by
// normalized (0-based) grid coordinates. It resolves the spec's own
// flagged Open Question — ScanSet::generateGrid's findIndexInSet is an
// O(n) linear scan per image — with a map lookup built once, per
// spec.md §9 ("Safe to replace ... behavior does not change").
type Grid struct {
	Width, Height int
	index         map[geom.Point2i]int
}

// IndexAt returns the tile slice index at normalized position (x, y).
func (g Grid) IndexAt(x, y int) (int, bool) {
	idx, ok := g.index[geom.Point2i{X: x, Y: y}]
	return idx, ok
}

// BuildGrid normalizes the raw GridPosition values of tiles into a dense
// 0..width-1 / 0..height-1 index, mirroring ScanSet::generateGrid: collect
// the distinct row and column coordinates, verify they are uniformly
// spaced, then map each tile's raw position to its rank among those
// distinct coordinates, and require every grid position to hold a tile.
func BuildGrid(tiles []Tile) (Grid, error) {
	if len(tiles) == 0 {
		return Grid{}, fmt.Errorf("%w: no tiles", ErrIrregularGrid)
	}

	xs, err := uniqueSortedStep(tileAxis(tiles, func(p geom.Point2i) int { return p.X }))
	if err != nil {
		return Grid{}, err
	}
	ys, err := uniqueSortedStep(tileAxis(tiles, func(p geom.Point2i) int { return p.Y }))
	if err != nil {
		return Grid{}, err
	}

	xIndex := rankIndex(xs)
	yIndex := rankIndex(ys)

	index := make(map[geom.Point2i]int, len(tiles))
	for i, t := range tiles {
		gx, gy := xIndex[t.GridPosition.X], yIndex[t.GridPosition.Y]
		key := geom.Point2i{X: gx, Y: gy}
		if _, exists := index[key]; exists {
			return Grid{}, fmt.Errorf("%w: duplicate tile at grid position %v", ErrIrregularGrid, key)
		}
		index[key] = i
	}
	if len(index) != len(xs)*len(ys) {
		return Grid{}, fmt.Errorf("%w: %d tiles do not cover the %dx%d grid",
			ErrIrregularGrid, len(index), len(xs), len(ys))
	}

	return Grid{Width: len(xs), Height: len(ys), index: index}, nil
}

func tileAxis(tiles []Tile, axis func(geom.Point2i) int) []int {
	out := make([]int, len(tiles))
	for i, t := range tiles {
		out[i] = axis(t.GridPosition)
	}
	return out
}

// uniqueSortedStep de-duplicates and sorts values, then verifies the
// result is uniformly spaced (or has fewer than 2 distinct values, which
// trivially satisfies "uniform").
func uniqueSortedStep(values []int) ([]int, error) {
	seen := make(map[int]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)

	if len(out) > 1 {
		step := out[1] - out[0]
		for i := 1; i < len(out); i++ {
			if out[i]-out[i-1] != step {
				return nil, fmt.Errorf("%w: non-uniform spacing at index %d (%d, expected step %d)",
					ErrIrregularGrid, i, out[i]-out[i-1], step)
			}
		}
	}
	return out, nil
}

func rankIndex(sorted []int) map[int]int {
	m := make(map[int]int, len(sorted))
	for i, v := range sorted {
		m[v] = i
	}
	return m
}
