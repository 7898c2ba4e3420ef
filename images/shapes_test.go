package images

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingRect(t *testing.T) {
	assert.Equal(t, Rect{X1: 10, Y1: 4, X2: 13, Y2: 41}, BoundingRect([]float32{10, 12.5}, []float32{4, 40}))
	assert.Equal(t, Rect{X1: 3, Y1: 7, X2: 4, Y2: 8}, BoundingRect([]float32{3.2, 9}, []float32{7.9}))
	assert.Equal(t, Rect{}, BoundingRect(nil, nil))
	assert.True(t, Rect{}.Empty())
	assert.Equal(t, image.Rect(1, 2, 3, 4), Rect{X1: 1, Y1: 2, X2: 3, Y2: 4}.ToRectangle())
}

func TestExpandRect(t *testing.T) {
	frame := image.Rect(0, 0, 100, 100)

	assert.Equal(t, image.Rect(5, 0, 25, 40), ExpandRect(image.Rect(10, 10, 20, 30), 0.5, frame))
	assert.Equal(t, image.Rect(10, 10, 20, 30), ExpandRect(image.Rect(10, 10, 20, 30), 0, frame))
	assert.Equal(t, image.Rect(90, 90, 100, 100), ExpandRect(image.Rect(95, 95, 100, 100), 1, frame))
	assert.True(t, ExpandRect(image.Rect(200, 200, 210, 210), 0.1, frame).Empty())
}

func TestMergeOverlapping(t *testing.T) {
	tests := []struct {
		name  string
		rects []image.Rectangle
		want  []image.Rectangle
	}{
		{name: "none", rects: nil, want: []image.Rectangle{}},
		{
			name:  "disjoint",
			rects: []image.Rectangle{image.Rect(0, 0, 10, 10), image.Rect(20, 0, 30, 10)},
			want:  []image.Rectangle{image.Rect(0, 0, 10, 10), image.Rect(20, 0, 30, 10)},
		},
		{
			name:  "touching edges do not overlap",
			rects: []image.Rectangle{image.Rect(0, 0, 10, 10), image.Rect(10, 0, 20, 10)},
			want:  []image.Rectangle{image.Rect(0, 0, 10, 10), image.Rect(10, 0, 20, 10)},
		},
		{
			name:  "pair",
			rects: []image.Rectangle{image.Rect(0, 0, 10, 10), image.Rect(5, 5, 15, 15)},
			want:  []image.Rectangle{image.Rect(0, 0, 15, 15)},
		},
		{
			// The union of the first two reaches the third.
			name: "chain",
			rects: []image.Rectangle{
				image.Rect(0, 0, 10, 10),
				image.Rect(40, 0, 50, 10),
				image.Rect(5, 5, 30, 12),
				image.Rect(25, 11, 45, 20),
			},
			want: []image.Rectangle{image.Rect(0, 0, 50, 20)},
		},
		{
			name:  "empty dropped",
			rects: []image.Rectangle{{}, image.Rect(3, 3, 4, 4)},
			want:  []image.Rectangle{image.Rect(3, 3, 4, 4)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]image.Rectangle(nil), tt.rects...)
			assert.Equal(t, tt.want, MergeOverlapping(tt.rects))
			assert.Equal(t, in, tt.rects)
		})
	}
}
