package overlap

import (
	"image"
)

// FloatImage is a dense, multi-channel float64 pixel buffer. It is the
// working representation for the overlap scorer and hierarchical search,
// which both need exact floating point arithmetic over arbitrary bit-depth
// source images (spec.md §4.1 requires "equal depth" pixel arrays, not a
// fixed 8-bit RGBA model).
//
// Pixels are stored channel-interleaved, row-major: Pix[(y*Width+x)*Channels+c].
type FloatImage struct {
	Width, Height, Channels int
	Pix                     []float64
}

// NewFloatImage allocates a zeroed image of the given size.
func NewFloatImage(width, height, channels int) *FloatImage {
	return &FloatImage{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float64, width*height*channels),
	}
}

// At returns the channel values at (x, y) as a slice view (no copy).
func (f *FloatImage) At(x, y int) []float64 {
	i := (y*f.Width + x) * f.Channels
	return f.Pix[i : i+f.Channels]
}

// FromImage converts a standard image.Image to a FloatImage. Grayscale
// sources (image.Gray, image.Gray16) become single-channel; everything
// else is expanded to 3-channel RGB (alpha is dropped — the scorer
// compares photometric content, not transparency).
func FromImage(img image.Image) *FloatImage {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	switch src := img.(type) {
	case *image.Gray:
		out := NewFloatImage(w, h, 1)
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w]
			for x := 0; x < w; x++ {
				out.Pix[y*w+x] = float64(row[x])
			}
		}
		return out
	case *image.Gray16:
		out := NewFloatImage(w, h, 1)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y)
				out.Pix[y*w+x] = float64(c.Y)
			}
		}
		return out
	default:
		out := NewFloatImage(w, h, 3)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				i := (y*w + x) * 3
				out.Pix[i] = float64(r)
				out.Pix[i+1] = float64(g)
				out.Pix[i+2] = float64(b)
			}
		}
		return out
	}
}

// CenterCrop returns a new FloatImage of exactly (width, height), cropped
// symmetrically around the source's center. Per spec.md §4.3 step 3, if the
// source is smaller than the requested crop on an axis, that axis is
// clamped to the source's own size instead (caller-defined behavior).
func (f *FloatImage) CenterCrop(width, height int) *FloatImage {
	if width > f.Width {
		width = f.Width
	}
	if height > f.Height {
		height = f.Height
	}
	offX := (f.Width - width) / 2
	offY := (f.Height - height) / 2

	out := NewFloatImage(width, height, f.Channels)
	for y := 0; y < height; y++ {
		srcRow := (offY + y) * f.Width * f.Channels
		dstRow := y * width * f.Channels
		copy(out.Pix[dstRow:dstRow+width*f.Channels],
			f.Pix[srcRow+offX*f.Channels:srcRow+(offX+width)*f.Channels])
	}
	return out
}
