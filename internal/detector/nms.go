package detector

import (
	"github.com/chewxy/math32"

	"github.com/MeKo-Tech/ripwatch/internal/mempool"
)

// DefaultIoUThreshold is the overlap above which a lower-confidence box is
// suppressed.
const DefaultIoUThreshold float32 = 0.5

// iouEpsilon guards the IoU denominator for degenerate boxes.
const iouEpsilon float32 = 1e-9

// SuppressIndices performs class-agnostic greedy Non-Maximum Suppression and
// returns the indices of the kept candidates, highest confidence first.
// Equal confidences keep their input order. A candidate is suppressed only
// when its IoU with a kept one is strictly greater than iouThreshold.
func SuppressIndices(cands []RawCandidate, iouThreshold float32) []int {
	if len(cands) == 0 {
		return nil
	}
	if len(cands) == 1 {
		return []int{0}
	}

	indices := sortCandidatesByConfidence(cands)
	suppressed := mempool.GetBool(len(cands))
	defer mempool.PutBool(suppressed)

	kept := make([]int, 0, len(cands))
	for pos, a := range indices {
		if suppressed[a] {
			continue
		}
		kept = append(kept, a)

		// Suppress overlapping candidates with lower or equal confidence
		for _, b := range indices[pos+1:] {
			if suppressed[b] {
				continue
			}
			if ComputeIoU(cands[a], cands[b]) > iouThreshold {
				suppressed[b] = true
			}
		}
	}

	return kept
}

// NonMaxSuppression returns the kept candidates, highest confidence first.
func NonMaxSuppression(cands []RawCandidate, iouThreshold float32) []RawCandidate {
	idx := SuppressIndices(cands, iouThreshold)
	if idx == nil {
		return nil
	}
	kept := make([]RawCandidate, len(idx))
	for i, k := range idx {
		kept[i] = cands[k]
	}
	return kept
}

// ComputeIoU computes Intersection over Union for two center+size boxes.
// Disjoint and zero-area boxes yield 0.
func ComputeIoU(a, b RawCandidate) float32 {
	aMinX, aMinY, aMaxX, aMaxY := a.Bounds()
	bMinX, bMinY, bMaxX, bMaxY := b.Bounds()

	intersectionLeft := math32.Max(aMinX, bMinX)
	intersectionTop := math32.Max(aMinY, bMinY)
	intersectionRight := math32.Min(aMaxX, bMaxX)
	intersectionBottom := math32.Min(aMaxY, bMaxY)

	if intersectionLeft >= intersectionRight || intersectionTop >= intersectionBottom {
		return 0
	}

	intersectionArea := (intersectionRight - intersectionLeft) * (intersectionBottom - intersectionTop)
	unionArea := a.Area() + b.Area() - intersectionArea

	if unionArea <= iouEpsilon {
		return 0
	}

	return intersectionArea / unionArea
}
