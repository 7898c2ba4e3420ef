// Package postprocess - Postprocessing types and utilities for pose models.
package postprocess

import "github.com/nvr-ai/go-pose/images"

// Peak is a local confidence maximum of one keypoint heatmap.
type Peak struct {
	// ID is dense and unique across all channels of one inference; ids grow
	// with the channel index.
	ID int
	// Channel is the keypoint type of the heatmap the peak was found in.
	Channel int
	// X, Y is the pixel position in working (upsampled) resolution.
	X, Y int
	// Score is the heatmap confidence at the peak.
	Score float32
}

// LimbCandidate is a scored connection between two peaks through one limb type.
type LimbCandidate struct {
	// Limb is the index of the limb type in the model's limb table.
	Limb int
	// A and B are the ids of the peaks at either end of the limb.
	A, B int
	// Score is the part-affinity score of the connection.
	Score float32
}

// Keypoint is one joint of a decoded pose.
type Keypoint struct {
	// X, Y is the position in network-input pixels.
	X, Y float32
	// Score is the heatmap confidence, 0 when the keypoint is missing.
	Score float32
	// Present is false for keypoint types the pose has no peak for.
	Present bool
}

// Pose is one decoded human skeleton.
type Pose struct {
	// Keypoints holds one entry per keypoint type, in model order.
	Keypoints []Keypoint
	// Score is the mean score per joint.
	Score float32
	// TotalScore is the accumulated peak and limb score.
	TotalScore float32
	// Joints is the number of present keypoints.
	Joints int
	// Box encloses the present keypoints.
	Box images.Rect
}
