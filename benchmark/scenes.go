// Package benchmark - Decode benchmarks over synthetic multi-person scenes.
package benchmark

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/openpose"
)

const (
	// sceneMargin is the empty border, in output pixels, around every person.
	sceneMargin = 2
	// minPersonWidth and minPersonHeight keep the keypoints of one person on
	// distinct output pixels.
	minPersonWidth  = 12
	minPersonHeight = 24
	// blobSigma is the standard deviation of a keypoint blob in output pixels.
	blobSigma = 1.0
	// pafRadius is the half-width of a limb's affinity field in output pixels.
	pafRadius = 1.0
)

// template places the 18 COCO keypoints inside a unit person box.
var template = [18]r2.Vec{
	{X: 0.50, Y: 0.13}, // nose
	{X: 0.50, Y: 0.22}, // neck
	{X: 0.30, Y: 0.22}, {X: 0.22, Y: 0.40}, {X: 0.18, Y: 0.56},
	{X: 0.70, Y: 0.22}, {X: 0.78, Y: 0.40}, {X: 0.82, Y: 0.56},
	{X: 0.38, Y: 0.56}, {X: 0.36, Y: 0.76}, {X: 0.35, Y: 0.96},
	{X: 0.62, Y: 0.56}, {X: 0.64, Y: 0.76}, {X: 0.65, Y: 0.96},
	{X: 0.42, Y: 0.08}, {X: 0.58, Y: 0.08},
	{X: 0.34, Y: 0.10}, {X: 0.66, Y: 0.10},
}

// Scene describes a synthetic network output: People upright skeletons
// standing side by side on a Width x Height output grid.
type Scene struct {
	Width  int `json:"width"  yaml:"width"`
	Height int `json:"height" yaml:"height"`
	People int `json:"people" yaml:"people"`
}

// Person is one skeleton placed in a scene, in output pixels.
type Person struct {
	Box       image.Rectangle
	Keypoints []image.Point
}

// SceneFor returns the scene matching a network input resolution.
func SceneFor(r Resolution, stride, people int) Scene {
	return Scene{Width: r.Width / stride, Height: r.Height / stride, People: people}
}

// Layout places the people of the scene.
//
// Returns:
//   - []Person: One entry per person, left to right.
//   - error: An error if the people do not fit the grid.
func (s Scene) Layout() ([]Person, error) {
	if s.People < 0 {
		return nil, fmt.Errorf("negative people count %d", s.People)
	}
	if s.People == 0 {
		return nil, nil
	}

	w := (s.Width - sceneMargin*(s.People+1)) / s.People
	h := s.Height - 2*sceneMargin
	if w < minPersonWidth || h < minPersonHeight {
		return nil, fmt.Errorf("%d people do not fit a %dx%d grid", s.People, s.Width, s.Height)
	}

	people := make([]Person, s.People)
	for i := range people {
		x0 := sceneMargin + i*(w+sceneMargin)
		box := image.Rect(x0, sceneMargin, x0+w, sceneMargin+h)
		kps := make([]image.Point, len(template))
		for k, t := range template {
			kps[k] = image.Pt(
				box.Min.X+int(math.Round(t.X*float64(w-1))),
				box.Min.Y+int(math.Round(t.Y*float64(h-1))),
			)
		}
		people[i] = Person{Box: box, Keypoints: kps}
	}
	return people, nil
}

// Features renders the scene as an OpenPose COCO network output: 18 keypoint
// heatmaps plus the background channel, and 38 PAF channels.
//
// Keypoints are Gaussian blobs; every non-redundant limb carries its unit
// direction from A to B within a narrow band around the segment.
//
// Returns:
//   - model.Features: The synthetic output.
//   - []Person: The skeletons it contains.
//   - error: A layout error.
//
// @example
// features, people, err := Scene{Width: 57, Height: 32, People: 2}.Features()
func (s Scene) Features() (model.Features, []Person, error) {
	people, err := s.Layout()
	if err != nil {
		return model.Features{}, nil, err
	}

	keypoints := len(openpose.COCOKeypoints)
	f := model.Features{
		Heatmaps: make([]model.FeatureTensor, keypoints+1),
		PAFs:     make([]model.FeatureTensor, 2*len(openpose.COCOLimbs)),
	}
	for i := range f.Heatmaps {
		f.Heatmaps[i] = s.plane(fmt.Sprintf("heatmaps[%d]", i))
	}
	for i := range f.PAFs {
		f.PAFs[i] = s.plane(fmt.Sprintf("pafs[%d]", i))
	}

	for _, p := range people {
		for k, pt := range p.Keypoints {
			drawBlob(f.Heatmaps[k], pt)
		}
		for _, l := range openpose.COCOLimbs {
			if l.Redundant {
				continue
			}
			drawField(f.PAFs[l.PAFX], f.PAFs[l.PAFY], p.Keypoints[l.A], p.Keypoints[l.B])
		}
	}

	background := f.Heatmaps[keypoints].Data
	for i := range background {
		var peak float32
		for k := 0; k < keypoints; k++ {
			peak = max(peak, f.Heatmaps[k].Data[i])
		}
		background[i] = 1 - peak
	}
	return f, people, nil
}

func (s Scene) plane(name string) model.FeatureTensor {
	return model.FeatureTensor{Name: name, Width: s.Width, Height: s.Height, Data: make([]float32, s.Width*s.Height)}
}

func drawBlob(t model.FeatureTensor, c image.Point) {
	const radius = 3
	for y := max(0, c.Y-radius); y <= min(t.Height-1, c.Y+radius); y++ {
		for x := max(0, c.X-radius); x <= min(t.Width-1, c.X+radius); x++ {
			dx, dy := float64(x-c.X), float64(y-c.Y)
			v := float32(math.Exp(-(dx*dx + dy*dy) / (2 * blobSigma * blobSigma)))
			i := y*t.Width + x
			t.Data[i] = max(t.Data[i], v)
		}
	}
}

func drawField(fx, fy model.FeatureTensor, a, b image.Point) {
	from := r2.Vec{X: float64(a.X), Y: float64(a.Y)}
	to := r2.Vec{X: float64(b.X), Y: float64(b.Y)}
	segment := r2.Sub(to, from)
	length := r2.Norm(segment)
	if length == 0 {
		return
	}
	dir := r2.Scale(1/length, segment)

	r := int(math.Ceil(pafRadius))
	x0, x1 := max(0, min(a.X, b.X)-r), min(fx.Width-1, max(a.X, b.X)+r)
	y0, y1 := max(0, min(a.Y, b.Y)-r), min(fx.Height-1, max(a.Y, b.Y)+r)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			pt := r2.Vec{X: float64(x), Y: float64(y)}
			t := math.Max(0, math.Min(length, r2.Dot(r2.Sub(pt, from), dir)))
			nearest := r2.Add(from, r2.Scale(t, dir))
			if r2.Norm(r2.Sub(pt, nearest)) > pafRadius {
				continue
			}
			i := y*fx.Width + x
			fx.Data[i] = float32(dir.X)
			fy.Data[i] = float32(dir.Y)
		}
	}
}
