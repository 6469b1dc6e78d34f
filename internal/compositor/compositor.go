// Package compositor assembles solved tile positions into one raster
// mosaic. It is a reference implementation of what spec.md leaves as an
// external collaborator (see DESIGN.md's "Compositor scope" decision) —
// callers are free to substitute their own Compositor.
package compositor

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"github.com/labtile/microstitch/internal/geom"
	"github.com/labtile/microstitch/internal/overlap"
	"github.com/labtile/microstitch/internal/provider"
	"github.com/labtile/microstitch/internal/scanset"
	"github.com/labtile/microstitch/internal/sinks"
)

// Compositor assembles a solved ScanSet into a single mosaic image and
// writes it to path.
type Compositor interface {
	Composite(set *scanset.ScanSet, out string) error
}

// RasterCompositor blends overlapping tile crops by averaging, grounded on
// SimpleStitcher::run: crop every tile to CropSize, accumulate into a
// float sum-and-count buffer, then divide. golang.org/x/image/draw.BiLinear
// is used only for this postprocessing decimation step, scaling each
// 16-bit grayscale tile crop by 1/Decimation; the overlap
// search does its own float downsampling instead (see SPEC_FULL.md §4.2).
type RasterCompositor struct {
	Provider   provider.ImageProvider
	Sink       sinks.Sink
	CropSize   geom.Point2i
	Decimation int
}

// NewRasterCompositor returns a RasterCompositor with decimation 1 (full
// resolution output) unless overridden.
func NewRasterCompositor(p provider.ImageProvider, sink sinks.Sink, cropSize geom.Point2i) *RasterCompositor {
	if sink == nil {
		sink = sinks.Discard
	}
	return &RasterCompositor{Provider: p, Sink: sink, CropSize: cropSize, Decimation: 1}
}

const stepStitch = "Assembling mosaic"

// Composite assembles set's tiles into one averaged mosaic and writes it
// as a 16-bit grayscale TIFF to out.
func (c *RasterCompositor) Composite(set *scanset.ScanSet, out string) error {
	decimate := c.Decimation
	if decimate < 1 {
		decimate = 1
	}

	outW := (set.StitchRect.Width() + c.CropSize.X) / decimate
	outH := (set.StitchRect.Height() + c.CropSize.Y) / decimate
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	c.Sink.Log(sinks.Info, fmt.Sprintf("stitcher: assembling %dx%d mosaic (%dx reduced)", outW, outH, decimate))

	sum := make([]float64, outW*outH)
	count := make([]int, outW*outH)

	total := set.Grid.Width * set.Grid.Height
	done := 0
	for y := 0; y < set.Grid.Height; y++ {
		for x := 0; x < set.Grid.Width; x++ {
			c.Sink.Progress(stepStitch, done, total)
			done++

			tile := set.TileAt(x, y)
			if err := c.blendTile(tile, set.StitchRect.Min, decimate, outW, outH, sum, count); err != nil {
				sinks.Logf(c.Sink, sinks.Warn, "stitcher: skipping tile %q: %v", tile.Path, err)
			}
			c.Provider.Evict(tile.Path)
		}
	}
	c.Sink.Progress(stepStitch, total, total)

	img := image.NewGray16(image.Rect(0, 0, outW, outH))
	for i, n := range count {
		if n == 0 {
			continue
		}
		v := sum[i] / float64(n)
		img.Pix[i*2] = byte(uint16(v) >> 8)
		img.Pix[i*2+1] = byte(uint16(v))
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("compositor: create %s: %w", out, err)
	}
	defer f.Close()

	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("compositor: encode %s: %w", out, err)
	}
	return nil
}

func (c *RasterCompositor) blendTile(tile *scanset.Tile, rectMin geom.Point2i, decimate, outW, outH int, sum []float64, count []int) error {
	src, err := c.Provider.GetImage(tile.Path)
	if err != nil {
		return err
	}

	fimg := overlap.FromImage(src).CenterCrop(c.CropSize.X, c.CropSize.Y)

	crop := image.NewGray16(image.Rect(0, 0, fimg.Width, fimg.Height))
	for y := 0; y < fimg.Height; y++ {
		for x := 0; x < fimg.Width; x++ {
			px := fimg.At(x, y)
			var v float64
			for _, ch := range px {
				v += ch
			}
			v /= float64(len(px))
			crop.SetGray16(x, y, clampGray16(v))
		}
	}

	dw, dh := crop.Bounds().Dx()/decimate, crop.Bounds().Dy()/decimate
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	scaled := image.NewGray16(image.Rect(0, 0, dw, dh))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), crop, crop.Bounds(), draw.Over, nil)

	imgPos := tile.StitchPosition.Sub(rectMin)
	imgPosD := geom.Point2i{X: imgPos.X / decimate, Y: imgPos.Y / decimate}

	for y := 0; y < dh; y++ {
		oy := imgPosD.Y + y
		if oy < 0 || oy >= outH {
			continue
		}
		for x := 0; x < dw; x++ {
			ox := imgPosD.X + x
			if ox < 0 || ox >= outW {
				continue
			}
			v := scaled.Gray16At(x, y).Y
			idx := oy*outW + ox
			sum[idx] += float64(v)
			count[idx]++
		}
	}
	return nil
}

func clampGray16(v float64) color.Gray16 {
	if v < 0 {
		v = 0
	}
	if v > 65535 {
		v = 65535
	}
	return color.Gray16{Y: uint16(v)}
}
