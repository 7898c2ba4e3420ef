package openpose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-pose/images"
	"github.com/nvr-ai/go-pose/models/postprocess"
)

func TestMaterialize(t *testing.T) {
	peaks := []postprocess.Peak{
		{ID: 0, Channel: 0, X: 10, Y: 20, Score: 0.9},
		{ID: 1, Channel: 2, X: 30, Y: 40, Score: 0.8},
	}
	subsets := []Subset{{Slots: []int{0, -1, 1}, Score: 2.4, Joints: 2}}

	poses := Materialize(subsets, peaks, 8, 4)

	require.Len(t, poses, 1)
	pose := poses[0]
	assert.Equal(t, []postprocess.Keypoint{
		{X: 20, Y: 40, Score: 0.9, Present: true},
		{},
		{X: 60, Y: 80, Score: 0.8, Present: true},
	}, pose.Keypoints)
	assert.Equal(t, 2, pose.Joints)
	assert.InDelta(t, 2.4, pose.TotalScore, 1e-6)
	assert.InDelta(t, 1.2, pose.Score, 1e-6)
	assert.Equal(t, images.Rect{X1: 20, Y1: 40, X2: 61, Y2: 81}, pose.Box)
}

func TestMaterialize_IdentityScale(t *testing.T) {
	peaks := []postprocess.Peak{{ID: 0, X: 7, Y: 3, Score: 0.5}, {ID: 1, Channel: 1, X: 9, Y: 3, Score: 0.5}}
	poses := Materialize([]Subset{{Slots: []int{0, 1}, Score: 1.5, Joints: 2}}, peaks, 4, 4)

	require.Len(t, poses, 1)
	assert.Equal(t, float32(7), poses[0].Keypoints[0].X)
	assert.Equal(t, float32(9), poses[0].Keypoints[1].X)
}

func TestMaterialize_Empty(t *testing.T) {
	assert.Nil(t, Materialize(nil, nil, 8, 4))
}
