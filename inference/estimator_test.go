package inference

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nvr-ai/go-pose/images"
	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/model/preprocess"
	"github.com/nvr-ai/go-pose/models/postprocess"
	"github.com/nvr-ai/go-pose/profiler"
)

type fakeRunner struct {
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
	inputs []int
}

func (r *fakeRunner) Run(input []float32) (model.Features, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call := r.calls
	r.calls++
	r.inputs = append(r.inputs, len(input))
	if r.failOn[call] {
		return model.Features{}, errors.New("device lost")
	}
	return model.Features{}, nil
}

type fakePostProcessor struct {
	poses []postprocess.Pose
}

func (f fakePostProcessor) PostProcess(model.Features) ([]postprocess.Pose, error) {
	return f.poses, nil
}

// testPose is expressed in the 16x8 network input.
func testPose() postprocess.Pose {
	return postprocess.Pose{
		Keypoints: []postprocess.Keypoint{
			{X: 6, Y: 2, Score: 0.9, Present: true},
			{},
			{X: 10, Y: 6, Score: 0.8, Present: true},
		},
		Score:      0.85,
		TotalScore: 1.7,
		Joints:     2,
		Box:        images.Rect{X1: 6, Y1: 2, X2: 11, Y2: 7},
	}
}

func testFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	return img
}

func newTestEstimator(t *testing.T, runner Runner, poses []postprocess.Pose, opts ...EstimatorOption) *Estimator {
	t.Helper()
	pre, err := preprocess.NewPreprocessor(preprocess.OpenPoseConfig(16, 8))
	require.NoError(t, err)
	opts = append([]EstimatorOption{WithLogger(zaptest.NewLogger(t))}, opts...)
	e, err := NewEstimator(runner, fakePostProcessor{poses: poses}, pre, opts...)
	require.NoError(t, err)
	return e
}

func TestEstimator_SubmitMapsPosesToFrame(t *testing.T) {
	runner := &fakeRunner{}
	rp := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})
	e := newTestEstimator(t, runner, []postprocess.Pose{testPose()}, WithProfiler(rp))

	// A 16x16 region letterboxed into 16x8: scale 0.5, 4 pixels of padding left.
	roi := image.Rect(32, 0, 48, 16)
	require.NoError(t, e.Enqueue(testFrame(), roi))
	assert.Equal(t, 1, e.Pending())
	require.NoError(t, e.Submit(context.Background()))
	assert.Equal(t, 0, e.Pending())

	assert.Equal(t, []int{3 * 16 * 8}, runner.inputs)
	require.Equal(t, 1, e.ResultsLength())

	r, ok := e.Result(0)
	require.True(t, ok)
	assert.Equal(t, KindPose, r.Kind)
	assert.Equal(t, roi, r.ROI)
	assert.Equal(t, 0, r.Request)

	kps := r.Pose.Keypoints
	assert.InDelta(t, 36, kps[0].X, 1e-4)
	assert.InDelta(t, 4, kps[0].Y, 1e-4)
	assert.False(t, kps[1].Present)
	assert.InDelta(t, 44, kps[2].X, 1e-4)
	assert.InDelta(t, 12, kps[2].Y, 1e-4)
	assert.Equal(t, image.Rect(36, 4, 45, 13), r.Location)
	assert.Equal(t, float32(0.85), r.Pose.Score)

	for _, stage := range []string{"preprocess", "inference", "decode"} {
		tracker, ok := rp.Stage(stage)
		require.True(t, ok, stage)
		assert.Equal(t, int64(1), tracker.Count)
	}
}

func TestEstimator_PartialFailure(t *testing.T) {
	runner := &fakeRunner{failOn: map[int]bool{0: true}}
	e := newTestEstimator(t, runner, []postprocess.Pose{testPose()})

	require.NoError(t, e.Enqueue(testFrame(), image.Rect(0, 0, 16, 16)))
	require.NoError(t, e.Enqueue(testFrame(), image.Rect(16, 16, 32, 32)))

	err := e.Submit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roi 0")
	assert.Contains(t, err.Error(), "device lost")

	results := e.Results()
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Request)
	assert.Equal(t, image.Rect(16, 16, 32, 32), results[0].ROI)
}

func TestEstimator_SubmitReplacesResults(t *testing.T) {
	e := newTestEstimator(t, &fakeRunner{}, []postprocess.Pose{testPose(), testPose()})

	require.NoError(t, e.Enqueue(testFrame(), image.Rectangle{}))
	require.NoError(t, e.Submit(context.Background()))
	results := e.Results()
	require.Len(t, results, 2)
	assert.Equal(t, results[0].Batch, results[1].Batch)
	assert.Equal(t, image.Rect(0, 0, 64, 64), results[0].ROI)

	require.NoError(t, e.Submit(context.Background()))
	assert.Equal(t, 0, e.ResultsLength())
}

func TestEstimator_Enqueue(t *testing.T) {
	e := newTestEstimator(t, &fakeRunner{}, nil, WithMaxBatch(1))

	assert.Error(t, e.Enqueue(nil, image.Rectangle{}))
	assert.Error(t, e.Enqueue(testFrame(), image.Rect(100, 100, 120, 120)))

	require.NoError(t, e.Enqueue(testFrame(), image.Rect(-10, -10, 10, 10)))
	assert.ErrorIs(t, e.Enqueue(testFrame(), image.Rectangle{}), ErrBatchFull)

	require.NoError(t, e.Submit(context.Background()))
	assert.NoError(t, e.Enqueue(testFrame(), image.Rectangle{}))

	e.Discard()
	assert.Equal(t, 0, e.Pending())
}

func TestEstimator_ContextCanceled(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestEstimator(t, runner, []postprocess.Pose{testPose()})
	require.NoError(t, e.Enqueue(testFrame(), image.Rectangle{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Submit(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, runner.calls)
	assert.Equal(t, 0, e.ResultsLength())
}

func TestEstimator_FilteredROIs(t *testing.T) {
	weak := testPose()
	weak.Score = 0.1
	e := newTestEstimator(t, &fakeRunner{}, []postprocess.Pose{testPose(), weak})

	require.NoError(t, e.Enqueue(testFrame(), image.Rect(32, 0, 48, 16)))
	require.NoError(t, e.Submit(context.Background()))

	assert.Equal(t, []image.Rectangle{image.Rect(36, 4, 45, 13)}, e.FilteredROIs(0.5))
	assert.Len(t, e.FilteredROIs(0), 2)

	_, ok := e.Result(2)
	assert.False(t, ok)
	_, ok = e.Result(-1)
	assert.False(t, ok)
}

func TestNewEstimator_MissingCollaborators(t *testing.T) {
	pre, err := preprocess.NewPreprocessor(preprocess.OpenPoseConfig(16, 8))
	require.NoError(t, err)

	_, err = NewEstimator(nil, fakePostProcessor{}, pre)
	assert.Error(t, err)
	_, err = NewEstimator(&fakeRunner{}, nil, pre)
	assert.Error(t, err)
	_, err = NewEstimator(&fakeRunner{}, fakePostProcessor{}, nil)
	assert.Error(t, err)
}

func TestToFrame(t *testing.T) {
	g := preprocess.Geometry{ScaleX: 2, ScaleY: 2}
	pose := ToFrame(testPose(), g, image.Pt(100, 50))

	assert.Equal(t, postprocess.Keypoint{X: 103, Y: 51, Score: 0.9, Present: true}, pose.Keypoints[0])
	assert.Equal(t, postprocess.Keypoint{}, pose.Keypoints[1])
	assert.Equal(t, images.Rect{X1: 103, Y1: 51, X2: 106, Y2: 54}, pose.Box)
	assert.Equal(t, 2, pose.Joints)
}

func TestPrepareInput(t *testing.T) {
	frame := testFrame()

	img, roi, err := PrepareInput(frame, image.Rectangle{})
	require.NoError(t, err)
	assert.Equal(t, frame.Bounds(), roi)
	assert.Same(t, frame, img)

	img, roi, err = PrepareInput(frame, image.Rect(60, 60, 80, 80))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(60, 60, 64, 64), roi)
	assert.Equal(t, roi, img.Bounds())

	uniform := image.NewUniform(color.RGBA{B: 7, A: 255})
	img, roi, err = PrepareInput(uniform, image.Rect(5, 5, 9, 8))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(5, 5, 9, 8), roi)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
	_, _, b, _ := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(7), b>>8)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "pose", KindPose.String())
	assert.Equal(t, "attributes", KindAttributes.String())
	assert.Equal(t, "reidentification", KindReidentification.String())
	assert.Equal(t, "unknown", Kind(9).String())
}
