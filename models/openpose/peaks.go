package openpose

import (
	"github.com/nvr-ai/go-pose/common"
	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/postprocess"
)

// neighbours are the 8-connected offsets compared against a candidate peak.
var neighbours = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// FindPeaks locates the suppressed peaks of every heatmap channel, one channel
// per worker. The returned peaks carry their channel but no id yet.
//
// Arguments:
//   - heatmaps: The working-resolution keypoint heatmaps.
//   - minDistance: The suppression radius.
//   - threshold: The minimum confidence of a peak.
//   - workers: The maximum number of goroutines (0 = GOMAXPROCS).
//
// Returns:
//   - Per channel, the peaks sorted by descending confidence.
func FindPeaks(heatmaps []model.FeatureTensor, minDistance, threshold float32, workers int) [][]postprocess.Peak {
	out := make([][]postprocess.Peak, len(heatmaps))
	common.ForEach(len(heatmaps), workers, func(c int) {
		out[c] = postprocess.SuppressPeaks(findChannelPeaks(heatmaps[c], c, threshold), minDistance)
	})
	return out
}

// findChannelPeaks returns every pixel above threshold that no in-bounds
// neighbour exceeds. Plateaus yield several candidates; suppression keeps one.
func findChannelPeaks(plane model.FeatureTensor, channel int, threshold float32) []postprocess.Peak {
	var peaks []postprocess.Peak
	for y := 0; y < plane.Height; y++ {
		for x := 0; x < plane.Width; x++ {
			v := plane.At(x, y)
			if !(v > threshold) || !isLocalMax(plane, x, y, v) {
				continue
			}
			peaks = append(peaks, postprocess.Peak{Channel: channel, X: x, Y: y, Score: v})
		}
	}
	return peaks
}

func isLocalMax(plane model.FeatureTensor, x, y int, v float32) bool {
	for _, d := range neighbours {
		nx, ny := x+d[0], y+d[1]
		if nx < 0 || ny < 0 || nx >= plane.Width || ny >= plane.Height {
			continue
		}
		if plane.At(nx, ny) > v {
			return false
		}
	}
	return true
}

// PeakTable holds the peaks of one inference with dense global ids.
type PeakTable struct {
	// ByChannel lists the peaks of each keypoint channel.
	ByChannel [][]postprocess.Peak
	// All is indexed by peak id.
	All []postprocess.Peak
}

// Len returns the total number of peaks.
func (t PeakTable) Len() int {
	return len(t.All)
}

// AssignPeakIDs numbers the peaks 0..N-1 in channel order, then in per-channel
// order. The ids belong to the returned table; the input is not modified, so
// concurrent inferences never share numbering state.
func AssignPeakIDs(byChannel [][]postprocess.Peak) PeakTable {
	total := 0
	for _, peaks := range byChannel {
		total += len(peaks)
	}

	table := PeakTable{
		ByChannel: make([][]postprocess.Peak, len(byChannel)),
		All:       make([]postprocess.Peak, 0, total),
	}
	for c, peaks := range byChannel {
		numbered := make([]postprocess.Peak, len(peaks))
		for i, p := range peaks {
			p.ID = len(table.All)
			p.Channel = c
			numbered[i] = p
			table.All = append(table.All, p)
		}
		table.ByChannel[c] = numbered
	}
	return table
}
