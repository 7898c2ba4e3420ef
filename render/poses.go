// Package render - Draws decoded poses onto frames.
package render

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-pose/inference"
	"github.com/nvr-ai/go-pose/models/openpose"
	"github.com/nvr-ai/go-pose/models/postprocess"
)

// Style controls how poses are drawn.
type Style struct {
	LineThickness int
	CircleRadius  int
	// Boxes draws each pose's bounding box and score.
	Boxes bool
}

// DefaultStyle returns the style used by cmd/posecam.
func DefaultStyle() Style {
	return Style{LineThickness: 2, CircleRadius: 3, Boxes: true}
}

// PoseKeyPoints renders the skeleton and joints of every pose. Pose
// coordinates must be in the pixel space of img.
func PoseKeyPoints(img *gocv.Mat, poses []postprocess.Pose, limbs []openpose.Limb, style Style) {
	for _, pose := range poses {
		// draw skeleton lines
		for _, s := range openpose.Skeleton(pose, limbs) {
			gocv.Line(img, s.From, s.To, paletteColor(s.Limb), style.LineThickness)
		}

		// draw circles at skeleton joints
		for k, kp := range pose.Keypoints {
			if !kp.Present {
				continue
			}
			center := image.Pt(int(kp.X+0.5), int(kp.Y+0.5))
			gocv.Circle(img, center, style.CircleRadius, paletteColor(k), -1)
		}
	}
}

// Results renders the pose results of an estimator, with their boxes and
// scores when the style asks for them.
func Results(img *gocv.Mat, results []inference.Result, limbs []openpose.Limb, style Style) {
	poses := make([]postprocess.Pose, 0, len(results))
	for _, r := range results {
		if r.Kind != inference.KindPose {
			continue
		}
		poses = append(poses, r.Pose)

		if style.Boxes && !r.Location.Empty() {
			gocv.Rectangle(img, r.Location, boxColor, 1)
			label := fmt.Sprintf("%.2f", r.Pose.Score)
			gocv.PutText(img, label, image.Pt(r.Location.Min.X, max(r.Location.Min.Y-4, 10)),
				gocv.FontHersheySimplex, 0.4, textColor, 1)
		}
	}
	PoseKeyPoints(img, poses, limbs, style)
}
