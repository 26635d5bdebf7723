package detector

// RawCandidate is one decoded, confidence-filtered box in model space.
// SlotID is the column index within the tensor for the current frame and is
// only meaningful for cross-frame class hysteresis.
type RawCandidate struct {
	X, Y, W, H float32 // center + size
	Confidence float32
	ClassID    uint32
	SlotID     uint32
	ClassLogit float32 // unsquashed class logit, binary-logit format only
}

// Bounds returns the axis-aligned box as min/max corners.
func (c RawCandidate) Bounds() (minX, minY, maxX, maxY float32) {
	hw, hh := c.W/2, c.H/2
	return c.X - hw, c.Y - hh, c.X + hw, c.Y + hh
}

// Area returns w*h, or 0 for degenerate boxes.
func (c RawCandidate) Area() float32 {
	if c.W <= 0 || c.H <= 0 {
		return 0
	}
	return c.W * c.H
}

// Thresholds controls the per-format keep thresholds of the decoder.
type Thresholds struct {
	MultiClass  float32 // objectness * max class score, 84 channels
	BinaryLogit float32 // objectness * sigmoid(logit), 6 channels
	SingleClass float32 // raw confidence, 5 channels
	ClassBias   float32 // logit above which the binary decision is class 1
}

// DefaultThresholds returns the thresholds used by the deployed models.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MultiClass:  0.25,
		BinaryLogit: 0.15,
		SingleClass: 0.25,
		ClassBias:   0.0001,
	}
}
