package openpose

import (
	"github.com/nvr-ai/go-pose/images"
	"github.com/nvr-ai/go-pose/models/postprocess"
)

// Materialize converts subsets into poses in network-input pixels.
//
// Working coordinates are scaled by stride/upsampleRatio; missing keypoint
// types are reported with Present=false.
//
// Arguments:
//   - subsets: The kept subsets.
//   - peaks: All peaks, indexed by id.
//   - stride: The network's output stride.
//   - upsampleRatio: The ratio the feature maps were upsampled by.
//
// Returns:
//   - One pose per subset, in subset order.
func Materialize(subsets []Subset, peaks []postprocess.Peak, stride, upsampleRatio int) []postprocess.Pose {
	if len(subsets) == 0 {
		return nil
	}
	scale := float32(stride) / float32(upsampleRatio)

	poses := make([]postprocess.Pose, 0, len(subsets))
	for _, s := range subsets {
		pose := postprocess.Pose{
			Keypoints:  make([]postprocess.Keypoint, len(s.Slots)),
			TotalScore: s.Score,
			Joints:     s.Joints,
		}
		if s.Joints > 0 {
			pose.Score = s.Score / float32(s.Joints)
		}

		xs := make([]float32, 0, s.Joints)
		ys := make([]float32, 0, s.Joints)
		for k, id := range s.Slots {
			if id == empty {
				continue
			}
			p := peaks[id]
			kp := postprocess.Keypoint{
				X:       float32(p.X) * scale,
				Y:       float32(p.Y) * scale,
				Score:   p.Score,
				Present: true,
			}
			pose.Keypoints[k] = kp
			xs = append(xs, kp.X)
			ys = append(ys, kp.Y)
		}
		pose.Box = images.BoundingRect(xs, ys)
		poses = append(poses, pose)
	}
	return poses
}
