package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plane(w, h int, set map[[2]int]float32) []float32 {
	p := make([]float32, w*h)
	for xy, v := range set {
		p[xy[1]*w+xy[0]] = v
	}
	return p
}

func TestUpsamplePlane_RatioOneIsExactCopy(t *testing.T) {
	src := plane(5, 4, map[[2]int]float32{{1, 2}: 0.9, {4, 3}: 0.3})

	dst, w, h := UpsamplePlane(src, 5, 4, 1)

	require.Equal(t, 5, w)
	require.Equal(t, 4, h)
	assert.Equal(t, src, dst)

	dst[0] = 42
	assert.NotEqual(t, float32(42), src[0], "source must not alias the result")
}

func TestUpsamplePlane_ConstantStaysConstant(t *testing.T) {
	src := make([]float32, 6*3)
	for i := range src {
		src[i] = 0.5
	}

	dst, w, h := UpsamplePlane(src, 6, 3, 4)

	require.Equal(t, 24, w)
	require.Equal(t, 12, h)
	for i, v := range dst {
		assert.InDelta(t, 0.5, v, 1e-6, "pixel %d", i)
	}
}

func TestUpsamplePlane_SpikeStaysLocalAndBounded(t *testing.T) {
	src := plane(16, 16, map[[2]int]float32{{10, 10}: 0.9})

	dst, w, _ := UpsamplePlane(src, 16, 16, 4)

	var maxV float32
	maxX, maxY := -1, -1
	for i, v := range dst {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(0.9))
		if v > maxV {
			maxV, maxX, maxY = v, i%w, i/w
		}
	}

	// The 2x2 plateau around the upsampled centre starts at (41, 41).
	assert.Equal(t, 41, maxX)
	assert.Equal(t, 41, maxY)
	assert.InDelta(t, 0.9*0.875*0.875, maxV, 1e-6)
	assert.Equal(t, dst[41*w+41], dst[42*w+42])
}

func TestUpsamplePlane_Edges(t *testing.T) {
	src := plane(3, 3, map[[2]int]float32{{0, 0}: 1, {2, 2}: 1})

	dst, w, h := UpsamplePlane(src, 3, 3, 2)

	require.Len(t, dst, w*h)
	assert.InDelta(t, 1, dst[0], 1e-6)
	assert.InDelta(t, 1, dst[len(dst)-1], 1e-6)
}

func TestUpsamplePlane_InvalidSize(t *testing.T) {
	dst, w, h := UpsamplePlane(nil, 0, 4, 4)
	assert.Nil(t, dst)
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestBoundingRect_Cases(t *testing.T) {
	tests := []struct {
		name     string
		xs, ys   []float32
		expected Rect
	}{
		{"no points", nil, nil, Rect{}},
		{"single point", []float32{3.5}, []float32{7}, Rect{3, 7, 4, 8}},
		{"spread", []float32{10, 12.5, 11}, []float32{4, 40, 20}, Rect{10, 4, 13, 41}},
		{"mismatched lengths", []float32{1, 100}, []float32{2}, Rect{1, 2, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := BoundingRect(tt.xs, tt.ys)
			assert.Equal(t, tt.expected, r)
		})
	}

	assert.True(t, Rect{}.Empty())
	assert.False(t, Rect{0, 0, 1, 1}.Empty())
}
