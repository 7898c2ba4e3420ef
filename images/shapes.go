// Package images - Image processing utilities
package images

import (
	"image"

	"github.com/chewxy/math32"
)

// Rect is a lightweight bounding box.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// Empty reports whether the rectangle contains no pixels.
func (r Rect) Empty() bool {
	return r.X1 >= r.X2 || r.Y1 >= r.Y2
}

// ToRectangle converts the box to an image.Rectangle.
func (r Rect) ToRectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// BoundingRect returns the smallest pixel-aligned Rect containing every
// (xs[i], ys[i]) point. Extra entries of the longer slice are ignored.
//
// Arguments:
//   - xs: The x coordinates.
//   - ys: The y coordinates.
//
// Returns:
//   - The enclosing Rect, or the zero Rect when there are no points.
//
// @example
// r := BoundingRect([]float32{10, 12.5}, []float32{4, 40}) // {10 4 13 41}
func BoundingRect(xs, ys []float32) Rect {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	if n == 0 {
		return Rect{}
	}

	minX, maxX := xs[0], xs[0]
	minY, maxY := ys[0], ys[0]
	for i := 1; i < n; i++ {
		minX = math32.Min(minX, xs[i])
		maxX = math32.Max(maxX, xs[i])
		minY = math32.Min(minY, ys[i])
		maxY = math32.Max(maxY, ys[i])
	}

	return Rect{
		X1: int(math32.Floor(minX)),
		Y1: int(math32.Floor(minY)),
		X2: int(math32.Floor(maxX)) + 1,
		Y2: int(math32.Floor(maxY)) + 1,
	}
}

// ExpandRect grows r by pad times its width and height on every side and
// clips the result to bounds.
//
// @example
// r := ExpandRect(image.Rect(10, 10, 20, 30), 0.5, frame) // (5,0)-(25,40)
func ExpandRect(r image.Rectangle, pad float32, bounds image.Rectangle) image.Rectangle {
	dx := int(math32.Round(pad * float32(r.Dx())))
	dy := int(math32.Round(pad * float32(r.Dy())))
	return image.Rect(r.Min.X-dx, r.Min.Y-dy, r.Max.X+dx, r.Max.Y+dy).Intersect(bounds)
}

// MergeOverlapping replaces every group of overlapping rectangles with their
// union until no two rectangles overlap. Empty rectangles are dropped.
//
// Arguments:
//   - rects: The rectangles; the slice is not modified.
//
// Returns:
//   - The disjoint rectangles, ordered by their first member.
func MergeOverlapping(rects []image.Rectangle) []image.Rectangle {
	out := make([]image.Rectangle, 0, len(rects))
	for _, r := range rects {
		if !r.Empty() {
			out = append(out, r)
		}
	}

	for merged := true; merged; {
		merged = false
		for i := 0; i < len(out); i++ {
			for j := i + 1; j < len(out); j++ {
				if !out[i].Overlaps(out[j]) {
					continue
				}
				out[i] = out[i].Union(out[j])
				out = append(out[:j], out[j+1:]...)
				merged = true
				j = i
			}
		}
	}
	return out
}
