package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-pose/inference"
	"github.com/nvr-ai/go-pose/models/postprocess"
)

func TestFilterPoses(t *testing.T) {
	results := []inference.Result{
		{Request: 0, Pose: postprocess.Pose{Score: 0.1}},
		{Request: 1, Pose: postprocess.Pose{Score: 0.6}},
		{Request: 2, Pose: postprocess.Pose{Score: 0.2}},
	}

	kept := filterPoses(results, 0.2)
	require.Len(t, kept, 2)
	assert.Equal(t, 1, kept[0].Request)
	assert.Equal(t, 2, kept[1].Request)

	// The input keeps its order and length.
	for i, r := range results {
		assert.Equal(t, i, r.Request)
	}

	assert.Empty(t, filterPoses(results, 1))
	assert.Empty(t, filterPoses(nil, 0))
}
