// Package models - Definitions for keypoint layouts and the model registry.
package models

import (
	"fmt"

	"github.com/nvr-ai/go-pose/models/openpose"
	"github.com/nvr-ai/go-pose/models/postprocess"
)

// KeypointLayout identifies the keypoint ordering of a dataset or model family.
type KeypointLayout string

const (
	// LayoutOpenPose18 is the COCO OpenPose ordering (with neck).
	LayoutOpenPose18 KeypointLayout = "openpose18"
	// LayoutCOCO17 is the COCO keypoint benchmark ordering (no neck).
	LayoutCOCO17 KeypointLayout = "coco17"
)

// KeypointSet ties a layout to its ordered keypoint names.
type KeypointSet struct {
	// Layout identifier.
	Layout KeypointLayout
	// Names in model order.
	Names []string
	// nameToIdx for fast lookup by name.
	nameToIdx map[string]int
}

// BuildNameIndexMap builds or rebuilds the name->index map.
func (s *KeypointSet) BuildNameIndexMap() {
	s.nameToIdx = make(map[string]int, len(s.Names))
	for i, n := range s.Names {
		s.nameToIdx[n] = i
	}
}

// KeypointManager holds all registered keypoint sets.
type KeypointManager struct {
	sets map[KeypointLayout]*KeypointSet
}

// NewKeypointManager initializes and registers the given sets.
func NewKeypointManager(sets ...*KeypointSet) *KeypointManager {
	mgr := &KeypointManager{sets: make(map[KeypointLayout]*KeypointSet)}
	for _, set := range sets {
		set.BuildNameIndexMap()
		mgr.sets[set.Layout] = set
	}
	return mgr
}

// DefaultKeypointManager returns a manager with the OpenPose and COCO layouts.
func DefaultKeypointManager() *KeypointManager {
	openPose, coco := OpenPose18Keypoints, COCO17Keypoints
	return NewKeypointManager(&openPose, &coco)
}

// GetName returns the keypoint name for a given layout and index.
func (m *KeypointManager) GetName(layout KeypointLayout, idx int) (string, error) {
	set, ok := m.sets[layout]
	if !ok {
		return "", fmt.Errorf("layout %q not registered", layout)
	}
	if idx < 0 || idx >= len(set.Names) {
		return "", fmt.Errorf("index %d out of range for layout %q", idx, layout)
	}
	return set.Names[idx], nil
}

// GetIndex returns the keypoint index for a given layout and name.
func (m *KeypointManager) GetIndex(layout KeypointLayout, name string) (int, error) {
	set, ok := m.sets[layout]
	if !ok {
		return -1, fmt.Errorf("layout %q not registered", layout)
	}
	idx, ok := set.nameToIdx[name]
	if !ok {
		return -1, fmt.Errorf("name %q not found in layout %q", name, layout)
	}
	return idx, nil
}

// Convert reorders the keypoints of a pose from one layout into another.
// Keypoints the target layout lacks are dropped; those the source lacks are
// reported as missing.
//
// Arguments:
//   - pose: The pose in the source layout.
//   - from: The source layout.
//   - to: The target layout.
//
// Returns:
//   - The keypoints in target order.
//
// @example
// coco, err := mgr.Convert(pose, LayoutOpenPose18, LayoutCOCO17)
func (m *KeypointManager) Convert(pose postprocess.Pose, from, to KeypointLayout) ([]postprocess.Keypoint, error) {
	src, ok := m.sets[from]
	if !ok {
		return nil, fmt.Errorf("layout %q not registered", from)
	}
	dst, ok := m.sets[to]
	if !ok {
		return nil, fmt.Errorf("layout %q not registered", to)
	}
	if len(pose.Keypoints) != len(src.Names) {
		return nil, fmt.Errorf("pose has %d keypoints, layout %q has %d", len(pose.Keypoints), from, len(src.Names))
	}

	out := make([]postprocess.Keypoint, len(dst.Names))
	for i, name := range dst.Names {
		if j, ok := src.nameToIdx[name]; ok {
			out[i] = pose.Keypoints[j]
		}
	}
	return out, nil
}

// OpenPose18Keypoints is the keypoint set decoded by the OpenPose model.
var OpenPose18Keypoints = KeypointSet{
	Layout: LayoutOpenPose18,
	Names:  openpose.COCOKeypoints,
}

// COCO17Keypoints is the COCO keypoint benchmark ordering.
var COCO17Keypoints = KeypointSet{
	Layout: LayoutCOCO17,
	Names: []string{
		"nose",
		"left_eye", "right_eye",
		"left_ear", "right_ear",
		"left_shoulder", "right_shoulder",
		"left_elbow", "right_elbow",
		"left_wrist", "right_wrist",
		"left_hip", "right_hip",
		"left_knee", "right_knee",
		"left_ankle", "right_ankle",
	},
}
