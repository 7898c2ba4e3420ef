// Package images - Resampling and geometry helpers for network feature maps.
package images

import (
	"github.com/chewxy/math32"
)

// contribution is the pair of source pixels (and their bilinear weights)
// that produce one destination pixel along a single axis.
type contribution struct {
	// i0, i1 are the neighbouring source indices, i0 <= i1.
	i0, i1 int
	// w0, w1 are the triangle-kernel weights for i0 and i1, summing to 1.
	w0, w1 float32
}

// bilinearContributions precomputes the per-axis sampling taps for upsampling
// an axis of length src by an integer ratio.
//
// Destination pixel centres are mapped onto source pixel centres
// ((d+0.5)/ratio - 0.5), so a ratio of 1 reproduces the source exactly.
func bilinearContributions(src, ratio int) []contribution {
	dst := src * ratio
	taps := make([]contribution, dst)
	inv := 1 / float32(ratio)

	for d := 0; d < dst; d++ {
		s := (float32(d)+0.5)*inv - 0.5
		if s < 0 {
			s = 0
		}
		i0 := int(math32.Floor(s))
		if i0 >= src-1 {
			taps[d] = contribution{i0: src - 1, i1: src - 1, w0: 1}
			continue
		}
		frac := s - float32(i0)
		taps[d] = contribution{i0: i0, i1: i0 + 1, w0: 1 - frac, w1: frac}
	}

	return taps
}

// UpsamplePlane resizes a row-major float32 plane by an integer ratio using
// bilinear interpolation. The source plane is never modified.
//
// Arguments:
//   - src: The width*height source values, row-major.
//   - width: The source width in pixels.
//   - height: The source height in pixels.
//   - ratio: The integer upsample ratio (values < 1 are treated as 1).
//
// Returns:
//   - The upsampled plane and its width and height.
//
// @example
// heat, w, h := UpsamplePlane(raw, 57, 32, 4) // 228x128
func UpsamplePlane(src []float32, width, height, ratio int) ([]float32, int, int) {
	if ratio < 1 {
		ratio = 1
	}
	if width <= 0 || height <= 0 {
		return nil, 0, 0
	}

	dw, dh := width*ratio, height*ratio
	dst := make([]float32, dw*dh)

	if ratio == 1 {
		copy(dst, src)
		return dst, dw, dh
	}

	cols := bilinearContributions(width, ratio)
	rows := bilinearContributions(height, ratio)

	for y, ry := range rows {
		top := src[ry.i0*width : ry.i0*width+width]
		bottom := src[ry.i1*width : ry.i1*width+width]
		out := dst[y*dw : y*dw+dw]
		for x, cx := range cols {
			t := cx.w0*top[cx.i0] + cx.w1*top[cx.i1]
			b := cx.w0*bottom[cx.i0] + cx.w1*bottom[cx.i1]
			out[x] = ry.w0*t + ry.w1*b
		}
	}

	return dst, dw, dh
}
