package inference

import (
	"fmt"
	"image"
	"image/draw"
)

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// PrepareInput crops the region of interest out of a frame before it is
// resized for the network.
//
// Arguments:
//   - frame: The full frame.
//   - roi: The region of interest; the empty rectangle selects the whole frame.
//
// Returns:
//   - image.Image: The cropped region, sharing pixels with frame when possible.
//   - image.Rectangle: The region actually used, clipped to the frame.
//   - error: An error if the frame is nil or the region misses it.
func PrepareInput(frame image.Image, roi image.Rectangle) (image.Image, image.Rectangle, error) {
	if frame == nil {
		return nil, image.Rectangle{}, fmt.Errorf("frame is nil")
	}
	bounds := frame.Bounds()
	if roi.Empty() {
		roi = bounds
	}
	clipped := roi.Intersect(bounds)
	if clipped.Empty() {
		return nil, image.Rectangle{}, fmt.Errorf("roi %v lies outside frame %v", roi, bounds)
	}
	if clipped == bounds {
		return frame, clipped, nil
	}

	if s, ok := frame.(subImager); ok {
		return s.SubImage(clipped), clipped, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, clipped.Dx(), clipped.Dy()))
	draw.Draw(dst, dst.Bounds(), frame, clipped.Min, draw.Src)
	return dst, clipped, nil
}
