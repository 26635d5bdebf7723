package detector

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genCandidate generates a random candidate box in a 200x200 frame.
func genCandidate() gopter.Gen {
	return gopter.CombineGens(
		gen.Float32Range(0, 200),
		gen.Float32Range(0, 200),
		gen.Float32Range(1, 60),
		gen.Float32Range(1, 60),
		gen.Float32Range(0, 1),
	).Map(func(vals []interface{}) RawCandidate {
		x, ok := vals[0].(float32)
		if !ok {
			panic("expected float32")
		}
		y, ok := vals[1].(float32)
		if !ok {
			panic("expected float32")
		}
		w, ok := vals[2].(float32)
		if !ok {
			panic("expected float32")
		}
		h, ok := vals[3].(float32)
		if !ok {
			panic("expected float32")
		}
		conf, ok := vals[4].(float32)
		if !ok {
			panic("expected float32")
		}
		return RawCandidate{X: x, Y: y, W: w, H: h, Confidence: conf}
	})
}

// genCandidates generates a slice of candidates.
func genCandidates() gopter.Gen {
	return gen.SliceOfN(20, genCandidate())
}

// TestSuppressIndices_OutputSorted verifies kept indices come out by confidence.
func TestSuppressIndices_OutputSorted(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("kept candidates are sorted by confidence (descending)", prop.ForAll(
		func(cands []RawCandidate, iouThreshold float32) bool {
			kept := SuppressIndices(cands, iouThreshold)
			for i := 1; i < len(kept); i++ {
				if cands[kept[i]].Confidence > cands[kept[i-1]].Confidence {
					return false
				}
			}
			return true
		},
		genCandidates(),
		gen.Float32Range(0.1, 0.9),
	))

	properties.TestingRun(t)
}

// TestSuppressIndices_NoOverlapAboveThreshold verifies no kept pair overlaps too much.
func TestSuppressIndices_NoOverlapAboveThreshold(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("kept pairs have IoU <= threshold", prop.ForAll(
		func(cands []RawCandidate, iouThreshold float32) bool {
			kept := SuppressIndices(cands, iouThreshold)
			for i := range kept {
				for j := i + 1; j < len(kept); j++ {
					if ComputeIoU(cands[kept[i]], cands[kept[j]]) > iouThreshold {
						return false
					}
				}
			}
			return true
		},
		genCandidates(),
		gen.Float32Range(0.1, 0.9),
	))

	properties.TestingRun(t)
}

// TestSuppressIndices_Subset verifies kept indices are unique and in range.
func TestSuppressIndices_Subset(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("kept indices are a unique subset of the input", prop.ForAll(
		func(cands []RawCandidate) bool {
			kept := SuppressIndices(cands, DefaultIoUThreshold)
			if len(kept) > len(cands) {
				return false
			}
			if len(cands) > 0 && len(kept) == 0 {
				return false
			}
			seen := make(map[int]bool, len(kept))
			for _, k := range kept {
				if k < 0 || k >= len(cands) || seen[k] {
					return false
				}
				seen[k] = true
			}
			return true
		},
		genCandidates(),
	))

	properties.TestingRun(t)
}

// TestComputeIoU_Properties verifies range and symmetry.
func TestComputeIoU_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("IoU is symmetric and within [0, 1]", prop.ForAll(
		func(a, b RawCandidate) bool {
			ab := ComputeIoU(a, b)
			ba := ComputeIoU(b, a)
			return ab == ba && ab >= 0 && ab <= 1.0001
		},
		genCandidate(),
		genCandidate(),
	))

	properties.Property("IoU with itself is 1", prop.ForAll(
		func(a RawCandidate) bool {
			iou := ComputeIoU(a, a)
			return iou > 0.999 && iou <= 1.0001
		},
		genCandidate(),
	))

	properties.TestingRun(t)
}
