package benchmark

import (
	"context"
	"encoding/csv"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nvr-ai/go-pose/models/openpose"
)

func TestScene_Layout(t *testing.T) {
	people, err := Scene{Width: 57, Height: 32, People: 3}.Layout()
	require.NoError(t, err)
	require.Len(t, people, 3)

	for i, p := range people {
		assert.True(t, p.Box.In(image.Rect(0, 0, 57, 32)), "person %d", i)
		for k, kp := range p.Keypoints {
			assert.True(t, kp.In(p.Box), "person %d keypoint %d", i, k)
		}
		if i > 0 {
			assert.Greater(t, p.Box.Min.X, people[i-1].Box.Max.X)
		}
	}

	none, err := Scene{Width: 57, Height: 32}.Layout()
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = Scene{Width: 57, Height: 32, People: 5}.Layout()
	assert.Error(t, err)
	_, err = Scene{Width: 57, Height: 20, People: 1}.Layout()
	assert.Error(t, err)
	_, err = Scene{Width: 57, Height: 32, People: -1}.Layout()
	assert.Error(t, err)
}

func TestScene_Features(t *testing.T) {
	f, people, err := Scene{Width: 57, Height: 32, People: 1}.Features()
	require.NoError(t, err)
	require.NoError(t, f.Validate())
	assert.Len(t, f.Heatmaps, 19)
	assert.Len(t, f.PAFs, 38)

	nose := people[0].Keypoints[0]
	assert.InDelta(t, 1, f.Heatmaps[0].At(nose.X, nose.Y), 1e-6)
	assert.InDelta(t, 0, f.Heatmaps[18].At(nose.X, nose.Y), 1e-6)
	assert.InDelta(t, 1, f.Heatmaps[18].At(56, 31), 1e-6)

	// The neck-to-nose field points straight up.
	limb := openpose.COCOLimbs[12]
	neck := people[0].Keypoints[1]
	mid := image.Pt(neck.X, (neck.Y+nose.Y)/2)
	assert.InDelta(t, 0, f.PAFs[limb.PAFX].At(mid.X, mid.Y), 1e-6)
	assert.InDelta(t, -1, f.PAFs[limb.PAFY].At(mid.X, mid.Y), 1e-6)
}

func TestScene_DecodesEveryPerson(t *testing.T) {
	params := openpose.DefaultParams()
	decoder, err := openpose.NewDecoder(params, openpose.COCOLimbs)
	require.NoError(t, err)

	for _, n := range []int{1, 2, 3} {
		f, people, err := Scene{Width: 57, Height: 32, People: n}.Features()
		require.NoError(t, err)

		poses, err := decoder.Decode(f)
		require.NoError(t, err)
		require.Len(t, poses, n, "%d people", n)

		necks := make([]float32, 0, n)
		for _, p := range poses {
			assert.GreaterOrEqual(t, p.Joints, 10)
			require.True(t, p.Keypoints[1].Present)
			necks = append(necks, p.Keypoints[1].X)
		}
		for _, person := range people {
			// Output pixel c lands on working pixel 4c+1 or 4c+2, i.e. input 8c+2 or 8c+4.
			want := float32(8*person.Keypoints[1].X + 3)
			assert.True(t, containsNear(necks, want, 1.5), "neck near %v in %v", want, necks)
		}
	}
}

func containsNear(xs []float32, want, tol float32) bool {
	for _, x := range xs {
		if x >= want-tol && x <= want+tol {
			return true
		}
	}
	return false
}

func TestScenarioBuilder(t *testing.T) {
	scenario := NewScenarioBuilder("test_scenario").
		WithResolution(640, 320).
		WithPeople(2).
		WithIterations(50).
		WithWarmupRuns(5).
		WithWorkers(2).
		Build()

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, Resolution{Width: 640, Height: 320, Name: "640x320"}, scenario.Resolution)
	assert.Equal(t, 2, scenario.People)
	assert.Equal(t, 50, scenario.Iterations)
	assert.Equal(t, 5, scenario.WarmupRuns)
	assert.Equal(t, 2, scenario.Workers)
	assert.NoError(t, scenario.Validate())

	bad := scenario
	bad.Iterations = 0
	assert.Error(t, bad.Validate())
	bad = scenario
	bad.Name = ""
	assert.Error(t, bad.Validate())
}

func TestScenarioSets_FitTheirScenes(t *testing.T) {
	stride := openpose.DefaultParams().Stride
	for _, set := range []*ScenarioSet{QuickScenarios(), CrowdScenarios(), WorkerScenarios(4)} {
		require.NotEmpty(t, set.Scenarios, set.Name)
		for _, s := range set.Scenarios {
			require.NoError(t, s.Validate())
			_, err := SceneFor(s.Resolution, stride, s.People).Layout()
			assert.NoError(t, err, s.Name)
		}
	}
}

func TestSaveLoadScenarioSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.json")
	set := QuickScenarios()
	require.NoError(t, SaveScenarioSet(set, path))

	loaded, err := LoadScenarioSet(path)
	require.NoError(t, err)
	assert.Equal(t, set, loaded)

	_, err = LoadScenarioSet(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	samples := make([]time.Duration, 0, 100)
	for i := 100; i >= 1; i-- {
		samples = append(samples, time.Duration(i)*time.Millisecond)
	}

	l := summarize(samples)
	assert.Equal(t, 50*time.Millisecond, l.P50)
	assert.Equal(t, 95*time.Millisecond, l.P95)
	assert.Equal(t, 100*time.Millisecond, l.Max)
	assert.InDelta(t, float64(50500*time.Microsecond), float64(l.Mean), float64(time.Microsecond))

	assert.Equal(t, LatencyMetrics{}, summarize(nil))
}

func TestSuite_RunAllAndSave(t *testing.T) {
	dir := t.TempDir()
	suite, err := NewSuite(NewSuiteArgs{
		Params:     openpose.DefaultParams(),
		OutputPath: dir,
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	suite.AddScenario(
		NewScenarioBuilder("two").WithPeople(2).WithIterations(3).WithWarmupRuns(1).Build(),
		NewScenarioBuilder("too_many").WithPeople(40).WithIterations(3).Build(),
	)
	require.NoError(t, suite.RunAll(context.Background()))

	results := suite.GetResults()
	require.Len(t, results, 1)
	assert.Equal(t, "two", results[0].Scenario.Name)
	assert.Equal(t, 2, results[0].PoseCount)
	assert.Zero(t, results[0].ErrorRate)
	assert.Positive(t, results[0].FramesPerSecond)

	path, err := suite.SaveResults()
	require.NoError(t, err)
	assert.FileExists(t, path)

	matches, err := filepath.Glob(filepath.Join(dir, "benchmark_summary_*.csv"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	file, err := os.Open(matches[0])
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, summaryHeader, rows[0])
	assert.Equal(t, "two", rows[1][0])
	assert.Equal(t, "2", rows[1][4])
}

func TestSuite_RunScenarioCanceled(t *testing.T) {
	suite, err := NewSuite(NewSuiteArgs{Params: openpose.DefaultParams()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = suite.RunScenario(ctx, NewScenarioBuilder("canceled").WithWarmupRuns(0).Build())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, suite.RunAll(ctx))

	suite.AddScenario(NewScenarioBuilder("canceled").Build())
	assert.ErrorIs(t, suite.RunAll(ctx), context.Canceled)
}

func TestNewSuite_InvalidParams(t *testing.T) {
	params := openpose.DefaultParams()
	params.Stride = 0
	_, err := NewSuite(NewSuiteArgs{Params: params})
	assert.Error(t, err)
}
