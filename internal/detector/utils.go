package detector

import (
	"sort"
)

// sortCandidatesByConfidence returns indices of candidates sorted by
// confidence (descending). Ties keep their original order.
func sortCandidatesByConfidence(cands []RawCandidate) []int {
	indices := make([]int, len(cands))
	for i := range indices {
		indices[i] = i
	}

	sort.SliceStable(indices, func(i, j int) bool {
		return cands[indices[i]].Confidence > cands[indices[j]].Confidence
	})

	return indices
}
