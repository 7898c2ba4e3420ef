package openpose

import (
	"github.com/nvr-ai/go-pose/models/postprocess"
)

// empty marks a keypoint slot with no peak.
const empty = -1

// Subset is a partial skeleton: at most one peak per keypoint type.
type Subset struct {
	// Slots holds a peak id per keypoint type, or -1.
	Slots []int
	// Score accumulates peak confidences and limb scores.
	Score float32
	// Joints is the number of filled slots.
	Joints int
}

func newSubset(keypointCount int) Subset {
	slots := make([]int, keypointCount)
	for i := range slots {
		slots[i] = empty
	}
	return Subset{Slots: slots}
}

// assembler groups peaks into subsets. Subsets live in an arena; merged
// subsets are linked through a disjoint-set parent array and the owner table
// maps each placed peak to the arena index that first received it.
type assembler struct {
	peaks   []postprocess.Peak
	limbs   []Limb
	subsets []Subset
	parent  []int
	owner   []int
}

func newAssembler(peaks []postprocess.Peak, limbs []Limb) *assembler {
	owner := make([]int, len(peaks))
	for i := range owner {
		owner[i] = empty
	}
	return &assembler{peaks: peaks, limbs: limbs, owner: owner}
}

// find returns the live subset index that absorbed i.
func (a *assembler) find(i int) int {
	for a.parent[i] != i {
		a.parent[i] = a.parent[a.parent[i]]
		i = a.parent[i]
	}
	return i
}

// subsetOf returns the live subset holding the peak, or -1.
func (a *assembler) subsetOf(peakID int) int {
	if a.owner[peakID] == empty {
		return empty
	}
	return a.find(a.owner[peakID])
}

func (a *assembler) create(keypointCount int, c postprocess.LimbCandidate, limb Limb) {
	s := newSubset(keypointCount)
	s.Slots[limb.A] = c.A
	s.Slots[limb.B] = c.B
	s.Joints = 2
	s.Score = a.peaks[c.A].Score + a.peaks[c.B].Score + c.Score

	idx := len(a.subsets)
	a.subsets = append(a.subsets, s)
	a.parent = append(a.parent, idx)
	a.owner[c.A] = idx
	a.owner[c.B] = idx
}

// extend places peakID into slot of subset idx if the slot is still free.
func (a *assembler) extend(idx, slot, peakID int, limbScore float32) {
	s := &a.subsets[idx]
	if s.Slots[slot] != empty {
		return
	}
	s.Slots[slot] = peakID
	s.Joints++
	s.Score += a.peaks[peakID].Score + limbScore
	a.owner[peakID] = idx
}

// merge folds the higher-indexed subset into the lower one when none of their
// filled slots collide.
func (a *assembler) merge(i, j int, limbScore float32) {
	if j < i {
		i, j = j, i
	}
	dst, src := &a.subsets[i], &a.subsets[j]
	for k := range dst.Slots {
		if dst.Slots[k] != empty && src.Slots[k] != empty {
			return
		}
	}

	for k, id := range src.Slots {
		if id != empty {
			dst.Slots[k] = id
		}
	}
	dst.Joints += src.Joints
	dst.Score += src.Score + limbScore
	a.parent[j] = i
	*src = Subset{}
}

func (a *assembler) add(keypointCount int, c postprocess.LimbCandidate) {
	if c.Limb < 0 || c.Limb >= len(a.limbs) ||
		c.A < 0 || c.A >= len(a.peaks) || c.B < 0 || c.B >= len(a.peaks) {
		return
	}
	limb := a.limbs[c.Limb]
	if a.peaks[c.A].Channel != limb.A || a.peaks[c.B].Channel != limb.B {
		return
	}

	sa, sb := a.subsetOf(c.A), a.subsetOf(c.B)
	switch {
	case sa == empty && sb == empty:
		if !limb.Redundant {
			a.create(keypointCount, c, limb)
		}
	case sb == empty:
		a.extend(sa, limb.B, c.B, c.Score)
	case sa == empty:
		a.extend(sb, limb.A, c.A, c.Score)
	case sa == sb:
	default:
		if !limb.Redundant {
			a.merge(sa, sb, c.Score)
		}
	}
}

// live returns the subsets that were not merged away, in arena order.
func (a *assembler) live() []Subset {
	out := make([]Subset, 0, len(a.subsets))
	for i, s := range a.subsets {
		if a.parent[i] == i {
			out = append(out, s)
		}
	}
	return out
}

// Assemble groups peaks into subsets by walking the connections limb type by
// limb type, in limb-table order and descending score within a limb type.
//
// Arguments:
//   - connections: Per limb type, the accepted connections (see ScoreLimbs).
//   - peaks: All peaks, indexed by id.
//   - limbs: The limb table.
//   - keypointCount: The number of keypoint slots per subset.
//   - minJoints: The minimum number of joints of a kept subset.
//   - minScore: The minimum mean score per joint of a kept subset.
//
// Returns:
//   - The kept subsets in creation order.
func Assemble(
	connections [][]postprocess.LimbCandidate,
	peaks []postprocess.Peak,
	limbs []Limb,
	keypointCount, minJoints int,
	minScore float32,
) []Subset {
	a := newAssembler(peaks, limbs)
	for _, limbConnections := range connections {
		for _, c := range limbConnections {
			a.add(keypointCount, c)
		}
	}

	var kept []Subset
	for _, s := range a.live() {
		if s.Joints == 0 || s.Joints < minJoints {
			continue
		}
		if s.Score/float32(s.Joints) < minScore {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}
