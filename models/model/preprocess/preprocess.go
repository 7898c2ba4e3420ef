// Package preprocess - Converts frames and regions of interest into network input tensors.
package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-pose/common"
)

// NormalizationType defines how pixel values are normalized.
type NormalizationType int

const (
	// NormalizeNone keeps pixel values as 0-255.
	NormalizeNone NormalizationType = iota
	// NormalizeZeroToOne scales pixel values to [0, 1].
	NormalizeZeroToOne
	// NormalizeCentered scales pixel values to [-0.5, 0.5) (value/256 - 0.5).
	NormalizeCentered
	// NormalizeStandardize applies mean and std normalization.
	NormalizeStandardize
)

// ColorMode defines the channel order of the color planes.
type ColorMode int

const (
	// ColorModeRGB is standard RGB color mode.
	ColorModeRGB ColorMode = iota
	// ColorModeBGR is BGR color mode (OpenCV-trained models).
	ColorModeBGR
)

// Config defines the input layout of a pose network.
type Config struct {
	// Name of the model for diagnostics.
	Name string
	// InputWidth is the expected width of the model input.
	InputWidth int
	// InputHeight is the expected height of the model input.
	InputHeight int
	// NormalizationType defines how to normalize pixel values.
	NormalizationType NormalizationType
	// MeanValues for standardization, in tensor channel order.
	MeanValues []float32
	// StdValues for standardization, in tensor channel order.
	StdValues []float32
	// ColorMode defines the channel order (always CHW planes).
	ColorMode ColorMode
	// KeepAspectRatio pads the resized image instead of stretching it.
	KeepAspectRatio bool
	// PadColor fills the padding (default black).
	PadColor color.Color
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("invalid input size %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.NormalizationType == NormalizeStandardize && (len(c.MeanValues) != 3 || len(c.StdValues) != 3) {
		return errors.New("standardization needs three mean and three std values")
	}
	for _, s := range c.StdValues {
		if s == 0 {
			return errors.New("std values must be non-zero")
		}
	}
	return nil
}

// Geometry maps network-input pixels back onto the source image.
type Geometry struct {
	// SourceWidth and SourceHeight are the dimensions before resizing.
	SourceWidth, SourceHeight int
	// ScaleX and ScaleY are the resize factors (input pixels per source pixel).
	ScaleX, ScaleY float32
	// PadLeft and PadTop are the letterbox offsets in input pixels.
	PadLeft, PadTop int
}

// ToSource converts a point in network-input pixels to source pixels.
func (g Geometry) ToSource(x, y float32) (float32, float32) {
	return (x - float32(g.PadLeft)) / g.ScaleX, (y - float32(g.PadTop)) / g.ScaleY
}

// Result contains the input tensor and the geometry used to produce it.
type Result struct {
	// Data is the [3, H, W] float32 tensor.
	Data []float32
	// Shape is [1, 3, H, W].
	Shape []int64
	Geometry
}

// Preprocessor converts images into network input tensors.
// It is safe for concurrent use.
type Preprocessor struct {
	config Config
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
// - config: The network input configuration.
//
// Returns:
// - A configured Preprocessor instance, or the validation error.
//
// @example
// preprocessor, err := NewPreprocessor(OpenPoseConfig(456, 256))
func NewPreprocessor(config Config) (*Preprocessor, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "preprocess config")
	}
	if config.PadColor == nil {
		config.PadColor = color.Black
	}
	return &Preprocessor{config: config}, nil
}

// Config returns the preprocessor configuration.
func (p *Preprocessor) Config() Config {
	return p.config
}

// Preprocess resizes img to the network input and converts it to a tensor.
//
// Arguments:
// - img: The frame or region of interest.
//
// Returns:
// - The tensor and its geometry.
// - error if the image is empty.
func (p *Preprocessor) Preprocess(img image.Image) (*Result, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	resized, geometry := p.resizeImage(img)
	data := p.imageToTensor(resized)
	p.normalize(data)

	return &Result{
		Data:     data,
		Shape:    []int64{1, 3, int64(p.config.InputHeight), int64(p.config.InputWidth)},
		Geometry: geometry,
	}, nil
}

// PreprocessEncoded decodes a JPEG or PNG image and preprocesses it.
func (p *Preprocessor) PreprocessEncoded(data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, errors.New("image data is empty")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "image decoding failed")
	}
	return p.Preprocess(img)
}

// BatchPreprocess processes multiple images in parallel.
//
// Arguments:
// - images: Images to preprocess.
// - maxConcurrency: Maximum number of images to process concurrently.
//
// Returns:
// - One result per image.
// - The first preprocessing error.
func (p *Preprocessor) BatchPreprocess(images []image.Image, maxConcurrency int) ([]*Result, error) {
	results := make([]*Result, len(images))
	err := common.ForRange(len(images), maxConcurrency, func(i int) error {
		r, err := p.Preprocess(images[i])
		if err != nil {
			return errors.Wrapf(err, "failed to preprocess image %d", i)
		}
		results[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// resizeImage resizes the image to the model's input dimensions.
func (p *Preprocessor) resizeImage(img image.Image) (image.Image, Geometry) {
	bounds := img.Bounds()
	g := Geometry{SourceWidth: bounds.Dx(), SourceHeight: bounds.Dy()}
	w, h := p.config.InputWidth, p.config.InputHeight

	g.ScaleX = float32(w) / float32(g.SourceWidth)
	g.ScaleY = float32(h) / float32(g.SourceHeight)
	if !p.config.KeepAspectRatio {
		return resize.Resize(uint(w), uint(h), img, resize.Bilinear), g
	}

	scale := math32.Min(g.ScaleX, g.ScaleY)
	newWidth := max(1, int(float32(g.SourceWidth)*scale))
	newHeight := max(1, int(float32(g.SourceHeight)*scale))
	resized := resize.Resize(uint(newWidth), uint(newHeight), img, resize.Bilinear)

	g.ScaleX, g.ScaleY = scale, scale
	g.PadLeft = (w - newWidth) / 2
	g.PadTop = (h - newHeight) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: p.config.PadColor}, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(g.PadLeft, g.PadTop, g.PadLeft+newWidth, g.PadTop+newHeight),
		resized, resized.Bounds().Min, draw.Src)

	return canvas, g
}

// imageToTensor converts an image to CHW float32 planes.
func (p *Preprocessor) imageToTensor(img image.Image) []float32 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	tensor := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			c0, c1, c2 := float32(r>>8), float32(g>>8), float32(b>>8)
			if p.config.ColorMode == ColorModeBGR {
				c0, c2 = c2, c0
			}
			i := y*width + x
			tensor[i] = c0
			tensor[plane+i] = c1
			tensor[2*plane+i] = c2
		}
	}

	return tensor
}

// normalize applies normalization to the tensor in place.
func (p *Preprocessor) normalize(tensor []float32) {
	switch p.config.NormalizationType {
	case NormalizeZeroToOne:
		for i := range tensor {
			tensor[i] /= 255
		}
	case NormalizeCentered:
		for i := range tensor {
			tensor[i] = tensor[i]/256 - 0.5
		}
	case NormalizeStandardize:
		plane := len(tensor) / 3
		for c := 0; c < 3; c++ {
			mean, std := p.config.MeanValues[c], p.config.StdValues[c]
			for i := c * plane; i < (c+1)*plane; i++ {
				tensor[i] = (tensor[i] - mean) / std
			}
		}
	}
}

// OpenPoseConfig returns the input layout of the COCO OpenPose network:
// BGR planes with raw 0-255 values, padded to keep the aspect ratio.
//
// @example
// config := OpenPoseConfig(456, 256)
func OpenPoseConfig(width, height int) Config {
	return Config{
		Name:              "openpose",
		InputWidth:        width,
		InputHeight:       height,
		NormalizationType: NormalizeNone,
		ColorMode:         ColorModeBGR,
		KeepAspectRatio:   true,
		PadColor:          color.Black,
	}
}
