package openpose

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/nvr-ai/go-pose/common"
	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/postprocess"
)

// Limb is one anatomically valid connection between two keypoint types.
type Limb struct {
	// A and B are the keypoint channels at either end.
	A, B int
	// PAFX and PAFY index the x and y components of the limb's affinity field.
	PAFX, PAFY int
	// Redundant limbs only complete existing skeletons: they never start a
	// new subset nor merge two subsets.
	Redundant bool
}

// COCOKeypoints names the 18 keypoint types of the COCO OpenPose model.
var COCOKeypoints = []string{
	"nose", "neck",
	"right_shoulder", "right_elbow", "right_wrist",
	"left_shoulder", "left_elbow", "left_wrist",
	"right_hip", "right_knee", "right_ankle",
	"left_hip", "left_knee", "left_ankle",
	"right_eye", "left_eye", "right_ear", "left_ear",
}

// COCOLimbs is the limb table of the COCO OpenPose model (38 PAF channels),
// ordered from the torso outwards.
var COCOLimbs = []Limb{
	{A: 1, B: 2, PAFX: 12, PAFY: 13},
	{A: 1, B: 5, PAFX: 20, PAFY: 21},
	{A: 2, B: 3, PAFX: 14, PAFY: 15},
	{A: 3, B: 4, PAFX: 16, PAFY: 17},
	{A: 5, B: 6, PAFX: 22, PAFY: 23},
	{A: 6, B: 7, PAFX: 24, PAFY: 25},
	{A: 1, B: 8, PAFX: 0, PAFY: 1},
	{A: 8, B: 9, PAFX: 2, PAFY: 3},
	{A: 9, B: 10, PAFX: 4, PAFY: 5},
	{A: 1, B: 11, PAFX: 6, PAFY: 7},
	{A: 11, B: 12, PAFX: 8, PAFY: 9},
	{A: 12, B: 13, PAFX: 10, PAFY: 11},
	{A: 1, B: 0, PAFX: 28, PAFY: 29},
	{A: 0, B: 14, PAFX: 30, PAFY: 31},
	{A: 14, B: 16, PAFX: 34, PAFY: 35},
	{A: 0, B: 15, PAFX: 32, PAFY: 33},
	{A: 15, B: 17, PAFX: 36, PAFY: 37},
	{A: 2, B: 16, PAFX: 18, PAFY: 19, Redundant: true},
	{A: 5, B: 17, PAFX: 26, PAFY: 27, Redundant: true},
}

// ValidateLimbs checks a limb table against the number of keypoint types.
//
// Returns:
//   - A *model.ConfigurationError naming the first malformed limb, or nil.
func ValidateLimbs(limbs []Limb, keypointCount int) error {
	for k, l := range limbs {
		field := fmt.Sprintf("limbs[%d]", k)
		switch {
		case l.A < 0 || l.A >= keypointCount || l.B < 0 || l.B >= keypointCount:
			return &model.ConfigurationError{Field: field, Reason: fmt.Sprintf("keypoint channels must be within [0, %d)", keypointCount)}
		case l.A == l.B:
			return &model.ConfigurationError{Field: field, Reason: "must connect two different keypoint types"}
		case l.PAFX < 0 || l.PAFY < 0 || l.PAFX == l.PAFY:
			return &model.ConfigurationError{Field: field, Reason: "needs two distinct non-negative PAF channels"}
		}
	}
	return nil
}

// ScoreLimbs evaluates every limb type against the peaks of its two keypoint
// channels, one limb type per worker.
//
// Arguments:
//   - pafs: The working-resolution part-affinity fields.
//   - peaks: The peak table of the inference.
//   - limbs: The limb table.
//   - p: The decoding parameters.
//
// Returns:
//   - Per limb type, the accepted one-to-one connections sorted by descending score.
func ScoreLimbs(pafs []model.FeatureTensor, peaks PeakTable, limbs []Limb, p Params) [][]postprocess.LimbCandidate {
	out := make([][]postprocess.LimbCandidate, len(limbs))
	common.ForEach(len(limbs), p.Workers, func(k int) {
		out[k] = scoreLimb(k, limbs[k], pafs, peaks, p)
	})
	return out
}

func scoreLimb(k int, limb Limb, pafs []model.FeatureTensor, peaks PeakTable, p Params) []postprocess.LimbCandidate {
	if limb.A >= len(peaks.ByChannel) || limb.B >= len(peaks.ByChannel) ||
		limb.PAFX >= len(pafs) || limb.PAFY >= len(pafs) {
		return nil
	}
	candA, candB := peaks.ByChannel[limb.A], peaks.ByChannel[limb.B]
	if len(candA) == 0 || len(candB) == 0 {
		return nil
	}

	fieldX, fieldY := pafs[limb.PAFX], pafs[limb.PAFY]
	var scored []postprocess.LimbCandidate
	for _, a := range candA {
		for _, b := range candB {
			score, ok := connectionScore(a, b, fieldX, fieldY, p)
			if !ok {
				continue
			}
			scored = append(scored, postprocess.LimbCandidate{Limb: k, A: a.ID, B: b.ID, Score: score})
		}
	}

	SortCandidates(scored)
	return matchOneToOne(scored, min(len(candA), len(candB)))
}

// connectionScore integrates the affinity field along the segment a->b.
//
// The field is sampled at MidPointSamples equally spaced pixels (endpoints
// included) and projected onto the unit direction. Samples above
// MidPointScoreThreshold count; the connection is accepted when enough of them
// count, scoring their mean plus a penalty for limbs longer than half the
// field height.
func connectionScore(a, b postprocess.Peak, fieldX, fieldY model.FeatureTensor, p Params) (float32, bool) {
	from := r2.Vec{X: float64(a.X), Y: float64(a.Y)}
	to := r2.Vec{X: float64(b.X), Y: float64(b.Y)}
	segment := r2.Sub(to, from)
	length := r2.Norm(segment)
	if length == 0 {
		return 0, false
	}
	direction := r2.Scale(1/length, segment)

	n := p.MidPointSamples
	threshold := float64(p.MidPointScoreThreshold)
	var sum float64
	counted := 0
	for i := 0; i < n; i++ {
		pt := r2.Add(from, r2.Scale(float64(i)/float64(n-1), segment))
		x, y := clampPixel(pt, fieldX.Width, fieldX.Height)
		field := r2.Vec{X: float64(fieldX.At(x, y)), Y: float64(fieldY.At(x, y))}
		if proj := r2.Dot(direction, field); proj > threshold {
			sum += proj
			counted++
		}
	}

	if counted == 0 || float32(counted)/float32(n) < p.FoundMidPointsRatioThreshold {
		return 0, false
	}

	penalty := math.Min(0.5*float64(fieldX.Height)/length-1, 0)
	score := float32(sum/float64(counted) + penalty)
	if score <= 0 {
		return 0, false
	}
	return score, true
}

func clampPixel(pt r2.Vec, width, height int) (int, int) {
	x := int(math.Round(pt.X))
	y := int(math.Round(pt.Y))
	return max(0, min(x, width-1)), max(0, min(y, height-1))
}

// SortCandidates orders candidates by descending score; equal scores are
// ordered by peak ids so the assembly order is total and deterministic.
func SortCandidates(c []postprocess.LimbCandidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		if c[i].A != c[j].A {
			return c[i].A < c[j].A
		}
		return c[i].B < c[j].B
	})
}

// matchOneToOne greedily keeps the best connections such that every peak is
// used at most once, stopping after limit connections.
func matchOneToOne(sorted []postprocess.LimbCandidate, limit int) []postprocess.LimbCandidate {
	if len(sorted) == 0 {
		return nil
	}

	usedA := make(map[int]bool, limit)
	usedB := make(map[int]bool, limit)
	matched := make([]postprocess.LimbCandidate, 0, limit)
	for _, c := range sorted {
		if len(matched) == limit {
			break
		}
		if usedA[c.A] || usedB[c.B] {
			continue
		}
		usedA[c.A] = true
		usedB[c.B] = true
		matched = append(matched, c)
	}
	return matched
}
