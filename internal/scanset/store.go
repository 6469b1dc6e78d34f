package scanset

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/labtile/microstitch/internal/geom"
)

// ErrLoadParse wraps any failure to parse a project or overlap document.
var ErrLoadParse = errors.New("scanset: load parse error")

// SaveFlags selects which optional sections SaveProject writes, matching
// ScanSet::saveProject's SAVE_FLAG_* bitmask (scanset.h).
type SaveFlags int

const (
	SaveDisplacements SaveFlags = 1 << iota
	SaveSolverOpt
	SaveMatrix
	SaveGridSize
)

const (
	SaveFlagsAll   = SaveDisplacements | SaveSolverOpt | SaveMatrix | SaveGridSize
	SaveFlagsInput = SaveFlags(0)
	SaveFlagsGrid  = SaveGridSize
)

type imageRecord struct {
	Path          string       `yaml:"path"`
	Grid          [2]int       `yaml:"grid"`
	Stage         [2]float64   `yaml:"stage"`
	Stitch        *[2]int      `yaml:"stitch,omitempty"`
	Displacements *[4][2]int   `yaml:"displacements,omitempty"`
}

type rectDoc struct {
	MinX, MinY, MaxX, MaxY int
}

type projectDocument struct {
	StageToImgX *[3]float64 `yaml:"stageToImgX,omitempty"`
	StageToImgY *[3]float64 `yaml:"stageToImgY,omitempty"`
	GridWidth   *int        `yaml:"gridWidth,omitempty"`
	GridHeight  *int        `yaml:"gridHeight,omitempty"`
	StageOrigin *[2]float64 `yaml:"stageOrigin,omitempty"`
	StitchRect  *rectDoc    `yaml:"stitchRect,omitempty"`
	Images      []imageRecord `yaml:"images"`
}

// SaveProject writes a YAML project document for s, the Go analogue of
// ScanSet::saveProject's cv::FileStorage output. gopkg.in/yaml.v3 plays the
// role of cv::FileStorage's YAML backend (grounded on kwv-tudomesh's
// dependency on the same library for structured document serialization).
func SaveProject(s *ScanSet, path string, flags SaveFlags) error {
	doc := projectDocument{
		Images: make([]imageRecord, len(s.Tiles)),
	}

	if flags&SaveMatrix != 0 {
		x := [3]float64{s.AffineStageToImage[0][0], s.AffineStageToImage[0][1], s.AffineStageToImage[0][2]}
		y := [3]float64{s.AffineStageToImage[1][0], s.AffineStageToImage[1][1], s.AffineStageToImage[1][2]}
		doc.StageToImgX = &x
		doc.StageToImgY = &y
	}
	if flags&SaveGridSize != 0 {
		w, h := s.Grid.Width, s.Grid.Height
		origin := [2]float64{s.StageOrigin.X, s.StageOrigin.Y}
		doc.GridWidth = &w
		doc.GridHeight = &h
		doc.StageOrigin = &origin
	}
	if flags&SaveSolverOpt != 0 {
		doc.StitchRect = &rectDoc{
			MinX: s.StitchRect.Min.X, MinY: s.StitchRect.Min.Y,
			MaxX: s.StitchRect.Max.X, MaxY: s.StitchRect.Max.Y,
		}
	}

	for i, t := range s.Tiles {
		rec := imageRecord{
			Path:  t.Path,
			Grid:  [2]int{t.GridPosition.X, t.GridPosition.Y},
			Stage: [2]float64{t.StagePosition.X, t.StagePosition.Y},
		}
		if flags&SaveSolverOpt != 0 {
			stitch := [2]int{t.StitchPosition.X, t.StitchPosition.Y}
			rec.Stitch = &stitch
		}
		if flags&SaveDisplacements != 0 {
			var d [4][2]int
			for dir := 0; dir < geom.NumDirections; dir++ {
				d[dir] = [2]int{t.Displacements[dir].X, t.Displacements[dir].Y}
			}
			rec.Displacements = &d
		}
		doc.Images[i] = rec
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("scanset: marshal project: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("scanset: write project %s: %w", path, err)
	}
	return nil
}

// LoadInput reads a project document's path/grid/stage fields into a new,
// unfrozen ScanSet, ignoring any solver-derived sections. Grounded on
// ScanSet::loadInput, which likewise only restores the input tile list —
// callers must call Freeze themselves afterward, same as the original
// expects a subsequent generateGrid call.
func LoadInput(path string) (*ScanSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scanset: read project %s: %w", path, err)
	}

	var doc projectDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadParse, path, err)
	}

	s := New()
	for _, rec := range doc.Images {
		s.AddTile(
			rec.Path,
			geom.Point2i{X: rec.Grid[0], Y: rec.Grid[1]},
			geom.Point2f{X: rec.Stage[0], Y: rec.Stage[1]},
		)
	}
	return s, nil
}

type overlapDocument struct {
	Width         int         `yaml:"width"`
	Height        int         `yaml:"height"`
	Displacements [][4][2]int `yaml:"displacements"`
}

// SaveOverlaps writes every tile's four edge displacements as a flat,
// row-major grid.Width*grid.Height array, the YAML analogue of
// ScanSet::saveOverlaps' 3D cv::Point2i Mat.
func SaveOverlaps(s *ScanSet, path string) error {
	if !s.frozen {
		return fmt.Errorf("scanset: SaveOverlaps called before Freeze")
	}

	doc := overlapDocument{
		Width:         s.Grid.Width,
		Height:        s.Grid.Height,
		Displacements: make([][4][2]int, s.Grid.Width*s.Grid.Height),
	}
	for y := 0; y < s.Grid.Height; y++ {
		for x := 0; x < s.Grid.Width; x++ {
			t := s.TileAt(x, y)
			var d [4][2]int
			for dir := 0; dir < geom.NumDirections; dir++ {
				d[dir] = [2]int{t.Displacements[dir].X, t.Displacements[dir].Y}
			}
			doc.Displacements[y*s.Grid.Width+x] = d
		}
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("scanset: marshal overlaps: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("scanset: write overlaps %s: %w", path, err)
	}
	return nil
}

// LoadOverlaps reads a previously saved overlap document into s's existing
// (already-frozen) tiles. Grounded on ScanSet::loadOverlaps, which likewise
// requires gridWidth/gridHeight to already be known.
func LoadOverlaps(s *ScanSet, path string) error {
	if !s.frozen {
		return fmt.Errorf("scanset: LoadOverlaps called before Freeze")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("scanset: read overlaps %s: %w", path, err)
	}

	var doc overlapDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLoadParse, path, err)
	}
	if doc.Width != s.Grid.Width || doc.Height != s.Grid.Height {
		return fmt.Errorf("scanset: overlap document grid %dx%d does not match scan set grid %dx%d",
			doc.Width, doc.Height, s.Grid.Width, s.Grid.Height)
	}

	for y := 0; y < s.Grid.Height; y++ {
		for x := 0; x < s.Grid.Width; x++ {
			t := s.TileAt(x, y)
			d := doc.Displacements[y*s.Grid.Width+x]
			for dir := 0; dir < geom.NumDirections; dir++ {
				t.Displacements[dir] = geom.Point2i{X: d[dir][0], Y: d[dir][1]}
			}
		}
	}
	return nil
}
