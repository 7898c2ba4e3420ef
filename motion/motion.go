// Package motion - Motion regions from background subtraction using OpenCV
// (via gocv).
//
// The Segmenter runs a typical pipeline over every frame of a stream:
//
// ┌──────────────┐
// │ Input Frame  │
// └──────┬───────┘
// ┌────────────────────────────┐
// │ Background Subtraction     │
// │       (MOG2)               │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Thresholding (binary mask) │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Morphology (dilate)        │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Contour Bounding Boxes     │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Padded, Merged Regions     │
// └────────────────────────────┘
//
// The regions are handed to the pose estimator as regions of interest, so
// static frames skip inference entirely.
//
// Usage:
//
//	seg := motion.NewSegmenter(motion.DefaultConfig())
//	defer seg.Close()
//
//	for {
//	    frame := getNextFrame()
//	    rois, err := seg.Regions(frame)
//	    ...
//	}
package motion

import (
	"fmt"
	"image"

	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-pose/images"
)

// Config configures motion gating.
type Config struct {
	// Enabled restricts pose estimation to moving regions.
	Enabled bool `json:"enabled" yaml:"enabled" koanf:"enabled"`
	// MinArea is the minimum contour area, in pixels, counted as motion.
	MinArea float64 `json:"minArea" yaml:"minArea" koanf:"minarea"`
	// Threshold is the foreground mask intensity threshold (0-255).
	Threshold float32 `json:"threshold" yaml:"threshold" koanf:"threshold"`
	// DilateSize is the side of the square dilation kernel.
	DilateSize int `json:"dilateSize" yaml:"dilateSize" koanf:"dilatesize"`
	// Padding grows every region by this fraction of its size on each side.
	Padding float32 `json:"padding" yaml:"padding" koanf:"padding"`
}

// DefaultConfig returns motion gating settings suited to a fixed camera.
func DefaultConfig() Config {
	return Config{
		Enabled:    false,
		MinArea:    3000,
		Threshold:  25,
		DilateSize: 9,
		Padding:    0.25,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.MinArea < 0 {
		return fmt.Errorf("minarea must be >= 0, got %v", c.MinArea)
	}
	if c.Threshold < 0 || c.Threshold > 255 {
		return fmt.Errorf("threshold must be within [0,255], got %v", c.Threshold)
	}
	if c.DilateSize < 1 {
		return fmt.Errorf("dilatesize must be >= 1, got %d", c.DilateSize)
	}
	if c.Padding < 0 {
		return fmt.Errorf("padding must be >= 0, got %v", c.Padding)
	}
	return nil
}

// Segmenter extracts motion regions from consecutive frames. It is stateful:
// the background model learns from every frame passed to Regions. Always call
// Close() when done to release native resources.
type Segmenter struct {
	cfg        Config
	delta      gocv.Mat
	threshold  gocv.Mat
	kernel     gocv.Mat
	background gocv.BackgroundSubtractorMOG2
}

// NewSegmenter constructs a Segmenter with initialized OpenCV matrices.
//
// Arguments:
//   - cfg: The motion settings.
//
// Returns:
//   - *Segmenter: The segmenter.
func NewSegmenter(cfg Config) *Segmenter {
	size := max(cfg.DilateSize, 1)
	return &Segmenter{
		cfg:        cfg,
		delta:      gocv.NewMat(),
		threshold:  gocv.NewMat(),
		kernel:     gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, size)),
		background: gocv.NewBackgroundSubtractorMOG2(),
	}
}

// Regions updates the background model with frame and returns the moving
// regions, padded and merged so that overlapping regions become one.
//
// Arguments:
//   - frame: The BGR frame.
//
// Returns:
//   - []image.Rectangle: The regions in frame pixels; empty when nothing moves.
//   - error: An OpenCV error.
func (s *Segmenter) Regions(frame gocv.Mat) ([]image.Rectangle, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	if err := s.background.Apply(frame, &s.delta); err != nil {
		return nil, err
	}
	gocv.Threshold(s.delta, &s.threshold, s.cfg.Threshold, 255, gocv.ThresholdBinary)
	if err := gocv.Dilate(s.threshold, &s.threshold, s.kernel); err != nil {
		return nil, err
	}

	contours := gocv.FindContours(s.threshold, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var boxes []image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if gocv.ContourArea(c) < s.cfg.MinArea {
			continue
		}
		boxes = append(boxes, gocv.BoundingRect(c))
	}

	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	for i, b := range boxes {
		boxes[i] = images.ExpandRect(b, s.cfg.Padding, bounds)
	}
	return images.MergeOverlapping(boxes), nil
}

// Close releases all OpenCV native resources used by the segmenter.
func (s *Segmenter) Close() error {
	return multierr.Combine(
		s.delta.Close(),
		s.threshold.Close(),
		s.kernel.Close(),
		s.background.Close(),
	)
}
