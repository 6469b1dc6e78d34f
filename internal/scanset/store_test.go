package scanset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/labtile/microstitch/internal/geom"
)

func buildTestSet(t *testing.T) *ScanSet {
	t.Helper()
	s := New()
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			s.AddTile(
				"tile.tif",
				geom.Point2i{X: x, Y: y},
				geom.Point2f{X: float64(x) * 512, Y: float64(y) * 512},
			)
		}
	}
	require.NoError(t, s.Freeze())
	s.AffineStageToImage = [2][3]float64{{1, 0, 0}, {0, 1, 0}}
	s.StitchRect = geom.Rect{Min: geom.Point2i{X: 0, Y: 0}, Max: geom.Point2i{X: 1024, Y: 1024}}
	for i := range s.Tiles {
		s.Tiles[i].StitchPosition = s.Tiles[i].GridPosition
		for d := 0; d < geom.NumDirections; d++ {
			s.Tiles[i].Displacements[d] = geom.Point2i{X: d, Y: d * 2}
		}
	}
	return s
}

// TestProjectSaveLoadRoundTrip covers the save/load round-trip testable
// property: loading a saved project must reproduce the same tile list
// (path, grid position, stage position) that was saved.
func TestProjectSaveLoadRoundTrip(t *testing.T) {
	s := buildTestSet(t)
	path := filepath.Join(t.TempDir(), "project.yaml")

	require.NoError(t, SaveProject(s, path, SaveFlagsAll))

	loaded, err := LoadInput(path)
	require.NoError(t, err)
	require.Len(t, loaded.Tiles, len(s.Tiles))

	for i, want := range s.Tiles {
		got := loaded.Tiles[i]
		require.Equal(t, want.Path, got.Path)
		require.Equal(t, want.GridPosition, got.GridPosition)
		require.Equal(t, want.StagePosition, got.StagePosition)
	}
}

func TestProjectSaveLoadInputOnlyFlags(t *testing.T) {
	s := buildTestSet(t)
	path := filepath.Join(t.TempDir(), "project.yaml")

	require.NoError(t, SaveProject(s, path, SaveFlagsInput))

	loaded, err := LoadInput(path)
	require.NoError(t, err)
	require.Len(t, loaded.Tiles, len(s.Tiles))
}

func TestOverlapsSaveLoadRoundTrip(t *testing.T) {
	s := buildTestSet(t)
	path := filepath.Join(t.TempDir(), "overlaps.yaml")

	require.NoError(t, SaveOverlaps(s, path))

	loaded := buildTestSet(t)
	for i := range loaded.Tiles {
		loaded.Tiles[i].Displacements = [geom.NumDirections]geom.Point2i{}
	}
	require.NoError(t, LoadOverlaps(loaded, path))

	for i, want := range s.Tiles {
		require.Equal(t, want.Displacements, loaded.Tiles[i].Displacements)
	}
}

func TestLoadInputRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("images: [not, a, valid, image, list"), 0o644))

	_, err := LoadInput(path)
	require.Error(t, err)
}
