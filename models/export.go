package models

import (
	"github.com/nvr-ai/go-pose/models/postprocess"
)

// NamedKeypoint is a detected keypoint labelled with its layout name.
type NamedKeypoint struct {
	Name  string  `json:"name"`
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Score float32 `json:"score"`
}

// ExportedPose is the serializable form of a pose.
type ExportedPose struct {
	Layout    KeypointLayout  `json:"layout"`
	Score     float32         `json:"score"`
	Joints    int             `json:"joints"`
	Box       [4]int          `json:"box"`
	Keypoints []NamedKeypoint `json:"keypoints"`
}

// Has reports whether layout is registered.
func (m *KeypointManager) Has(layout KeypointLayout) bool {
	_, ok := m.sets[layout]
	return ok
}

// Export converts a pose into the target layout and labels its present
// keypoints. The box is [x1, y1, x2, y2] with exclusive x2, y2.
//
// Arguments:
//   - pose: The pose in the source layout.
//   - from: The source layout.
//   - to: The target layout.
//
// Returns:
//   - ExportedPose: The labelled pose.
//   - error: An error if either layout is unknown or the pose does not match from.
func (m *KeypointManager) Export(pose postprocess.Pose, from, to KeypointLayout) (ExportedPose, error) {
	kps, err := m.Convert(pose, from, to)
	if err != nil {
		return ExportedPose{}, err
	}

	out := ExportedPose{
		Layout: to,
		Score:  pose.Score,
		Joints: pose.Joints,
		Box:    [4]int{pose.Box.X1, pose.Box.Y1, pose.Box.X2, pose.Box.Y2},
	}
	names := m.sets[to].Names
	for i, kp := range kps {
		if !kp.Present {
			continue
		}
		out.Keypoints = append(out.Keypoints, NamedKeypoint{Name: names[i], X: kp.X, Y: kp.Y, Score: kp.Score})
	}
	return out, nil
}
