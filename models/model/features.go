package model

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// FeatureTensor is one 2-D float32 channel produced by the network.
// It is treated as immutable once produced.
type FeatureTensor struct {
	// Name identifies the channel in diagnostics, e.g. "heatmaps[3]".
	Name string
	// Width is the number of columns.
	Width int
	// Height is the number of rows.
	Height int
	// Data holds Width*Height values, row-major.
	Data []float32
}

// At returns the value at column x, row y. The caller keeps x and y in bounds.
func (t FeatureTensor) At(x, y int) float32 {
	return t.Data[y*t.Width+x]
}

// Features is the raw output of a single inference.
type Features struct {
	// Heatmaps holds one channel per keypoint type, optionally followed by a
	// background channel.
	Heatmaps []FeatureTensor
	// PAFs holds two channels (x then y component) per limb type.
	PAFs []FeatureTensor
}

// Empty reports whether there is nothing to decode.
func (f Features) Empty() bool {
	return len(f.Heatmaps) == 0
}

// Validate checks that every heatmap and PAF shares one spatial size, that
// each tensor's data matches its dimensions and that PAFs come in x/y pairs.
//
// Returns:
//   - A *ShapeMismatchError describing the first inconsistency, or nil.
func (f Features) Validate() error {
	if f.Empty() {
		return nil
	}

	w, h := f.Heatmaps[0].Width, f.Heatmaps[0].Height
	if w <= 0 || h <= 0 {
		return &ShapeMismatchError{
			Tensor: tensorName(f.Heatmaps[0], "heatmaps", 0),
			Reason: fmt.Sprintf("non-positive dimensions %dx%d", w, h),
		}
	}

	if len(f.PAFs)%2 != 0 {
		return &ShapeMismatchError{
			Tensor: "pafs",
			Reason: fmt.Sprintf("channel count %d is not a multiple of 2", len(f.PAFs)),
		}
	}

	check := func(group string, ts []FeatureTensor) error {
		for i, t := range ts {
			if t.Width != w || t.Height != h {
				return &ShapeMismatchError{
					Tensor: tensorName(t, group, i),
					Reason: fmt.Sprintf("dimensions %dx%d differ from heatmaps %dx%d", t.Width, t.Height, w, h),
				}
			}
			if len(t.Data) != w*h {
				return &ShapeMismatchError{
					Tensor: tensorName(t, group, i),
					Reason: fmt.Sprintf("holds %d values, expected %d", len(t.Data), w*h),
				}
			}
		}
		return nil
	}

	if err := check("heatmaps", f.Heatmaps); err != nil {
		return err
	}
	return check("pafs", f.PAFs)
}

func tensorName(t FeatureTensor, group string, i int) string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("%s[%d]", group, i)
}

// PlanesFromDense splits a float32 dense tensor shaped [C, H, W] or [1, C, H, W]
// into C channel planes. The values are copied so the result stays valid after
// the runtime reuses its output buffer.
//
// Arguments:
//   - name: The prefix used to name each plane.
//   - d: The dense network output.
//
// Returns:
//   - The channel planes.
//   - A *ShapeMismatchError for unsupported shapes or dtypes.
func PlanesFromDense(name string, d *tensor.Dense) ([]FeatureTensor, error) {
	if d == nil {
		return nil, nil
	}
	if d.Dtype() != tensor.Float32 {
		return nil, &ShapeMismatchError{Tensor: name, Reason: fmt.Sprintf("dtype %v is not float32", d.Dtype())}
	}

	shape := d.Shape()
	switch {
	case len(shape) == 4 && shape[0] == 1:
		shape = shape[1:]
	case len(shape) == 3:
	default:
		return nil, &ShapeMismatchError{Tensor: name, Reason: fmt.Sprintf("unsupported shape %v", shape)}
	}

	c, h, w := shape[0], shape[1], shape[2]
	data, ok := d.Data().([]float32)
	if !ok || len(data) != c*h*w {
		return nil, &ShapeMismatchError{Tensor: name, Reason: fmt.Sprintf("backing data does not match shape %v", d.Shape())}
	}

	planes := make([]FeatureTensor, c)
	for i := range planes {
		plane := make([]float32, h*w)
		copy(plane, data[i*h*w:(i+1)*h*w])
		planes[i] = FeatureTensor{
			Name:   fmt.Sprintf("%s[%d]", name, i),
			Width:  w,
			Height: h,
			Data:   plane,
		}
	}

	return planes, nil
}

// FeaturesFromDense builds Features from the heatmap and PAF output tensors of
// one inference.
func FeaturesFromDense(heatmaps, pafs *tensor.Dense) (Features, error) {
	h, err := PlanesFromDense("heatmaps", heatmaps)
	if err != nil {
		return Features{}, errors.Wrap(err, "heatmaps")
	}
	p, err := PlanesFromDense("pafs", pafs)
	if err != nil {
		return Features{}, errors.Wrap(err, "pafs")
	}

	f := Features{Heatmaps: h, PAFs: p}
	if err := f.Validate(); err != nil {
		return Features{}, err
	}
	return f, nil
}
