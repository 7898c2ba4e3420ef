// Package postprocess - provides Non-Maximum Suppression for heatmap peaks.
package postprocess

import (
	"sort"

	"github.com/chewxy/math32"
)

// SortPeaks orders peaks by descending score. Equal scores fall back to scan
// order (row, then column) so the result never depends on the input order.
func SortPeaks(peaks []Peak) {
	sort.SliceStable(peaks, func(i, j int) bool {
		a, b := peaks[i], peaks[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
}

// SuppressPeaks performs greedy distance-based Non-Maximum Suppression on the
// candidate peaks of a single heatmap channel.
//
// Candidates are visited from the most to the least confident; a candidate is
// kept unless it lies closer than minDistance (Euclidean, in pixels) to a peak
// that was already kept.
//
// Arguments:
//   - peaks: The candidate peaks; the slice is not modified.
//   - minDistance: The suppression radius.
//
// Returns:
//   - The surviving peaks, most confident first. If no peaks are provided, returns nil.
func SuppressPeaks(peaks []Peak, minDistance float32) []Peak {
	n := len(peaks)
	if n == 0 {
		return nil
	}

	ordered := make([]Peak, n)
	copy(ordered, peaks)
	SortPeaks(ordered)

	kept := make([]Peak, 0, n)
	for _, candidate := range ordered {
		suppressed := false
		for _, anchor := range kept {
			dx := float32(candidate.X - anchor.X)
			dy := float32(candidate.Y - anchor.Y)
			if math32.Sqrt(dx*dx+dy*dy) < minDistance {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, candidate)
		}
	}

	return kept
}
