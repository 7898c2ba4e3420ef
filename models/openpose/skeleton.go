package openpose

import (
	"image"

	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-pose/models/postprocess"
)

// Segment is one drawable limb of a pose.
type Segment struct {
	// Limb is the index into the limb table.
	Limb int
	// From and To are the rounded endpoint positions.
	From, To image.Point
}

// Skeleton lists the limbs of a pose whose endpoints are both present.
// Redundant limbs are left out; they duplicate the head connections.
func Skeleton(pose postprocess.Pose, limbs []Limb) []Segment {
	var segments []Segment
	for k, l := range limbs {
		if l.Redundant || l.A >= len(pose.Keypoints) || l.B >= len(pose.Keypoints) {
			continue
		}
		a, b := pose.Keypoints[l.A], pose.Keypoints[l.B]
		if !a.Present || !b.Present {
			continue
		}
		segments = append(segments, Segment{Limb: k, From: point(a), To: point(b)})
	}
	return segments
}

func point(kp postprocess.Keypoint) image.Point {
	return image.Pt(int(math32.Round(kp.X)), int(math32.Round(kp.Y)))
}
