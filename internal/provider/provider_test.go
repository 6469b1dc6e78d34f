package provider

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTestPNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 0, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestFileImageProviderDecodesOnce(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, "tile.png")

	p := NewFileImageProvider()
	img1, err := p.GetImage(path)
	require.NoError(t, err)
	img2, err := p.GetImage(path)
	require.NoError(t, err)
	require.Same(t, img1, img2, "expected the cached decode to be returned on the second call")
}

func TestFileImageProviderConcurrentLoadIsSingleFlight(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, "tile.png")

	p := NewFileImageProvider()
	const n = 16
	results := make([]image.Image, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			img, err := p.GetImage(path)
			require.NoError(t, err)
			results[i] = img
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Same(t, results[0], results[i])
	}
}

func TestFileImageProviderEvict(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, "tile.png")

	p := NewFileImageProvider()
	img1, err := p.GetImage(path)
	require.NoError(t, err)

	p.Evict(path)

	img2, err := p.GetImage(path)
	require.NoError(t, err)
	require.NotSame(t, img1, img2, "expected Evict to force a fresh decode")
}

func TestFileImageProviderMissingFile(t *testing.T) {
	p := NewFileImageProvider()
	_, err := p.GetImage(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrImageLoad)
}
