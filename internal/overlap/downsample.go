package overlap

// downsampleFloatImage shrinks img by integer factor f using bilinear
// resampling, matching spec.md §4.2's "downsample both images by factor
// f = 2^s using bilinear resampling". Hand-rolled in the teacher's
// stride-indexed, per-pixel-loop style (tile/downsample.go) rather than via
// golang.org/x/image/draw, which only operates on 8-bit image.Image color
// models — see SPEC_FULL.md §4.2 for why that would be lossy here.
func downsampleFloatImage(img *FloatImage, f int) *FloatImage {
	if f <= 1 {
		return img
	}

	w := img.Width / f
	h := img.Height / f
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	out := NewFloatImage(w, h, img.Channels)
	for y := 0; y < h; y++ {
		// Sample the source at the center of each f x f destination block.
		sy := float64(y*f) + float64(f-1)/2
		y0 := clampInt(int(sy), 0, img.Height-1)
		y1 := clampInt(y0+1, 0, img.Height-1)
		wy := sy - float64(y0)
		if wy < 0 {
			wy = 0
		}

		for x := 0; x < w; x++ {
			sx := float64(x*f) + float64(f-1)/2
			x0 := clampInt(int(sx), 0, img.Width-1)
			x1 := clampInt(x0+1, 0, img.Width-1)
			wx := sx - float64(x0)
			if wx < 0 {
				wx = 0
			}

			p00 := img.At(x0, y0)
			p10 := img.At(x1, y0)
			p01 := img.At(x0, y1)
			p11 := img.At(x1, y1)

			dst := out.At(x, y)
			for c := 0; c < img.Channels; c++ {
				top := lerp(p00[c], p10[c], wx)
				bot := lerp(p01[c], p11[c], wx)
				dst[c] = lerp(top, bot, wy)
			}
		}
	}
	return out
}

func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}
