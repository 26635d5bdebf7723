package tensor

import (
	"errors"
	"fmt"
)

// Tensor is a read-only view of a detector output with shape [1, C, N]:
// C channels (box geometry followed by scores) for N candidates.
// Data layout is row-major, channel-major within the batch.
type Tensor struct {
	Data  []float32
	Shape []int64 // [B, C, N]
}

// ShapeError reports a tensor whose shape or backing data cannot be used.
type ShapeError struct {
	Shape  []int64
	Length int
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid detection tensor %v (len %d): %s", e.Shape, e.Length, e.Reason)
}

// ErrEmpty is returned when a tensor has no data at all.
var ErrEmpty = errors.New("empty tensor")

// NewDetectionTensor builds a tensor with shape [1, C, N].
// data must be length C*N in channel-major order.
func NewDetectionTensor(data []float32, channels, count int) (Tensor, error) {
	if data == nil {
		return Tensor{}, ErrEmpty
	}
	t := Tensor{Data: data, Shape: []int64{1, int64(channels), int64(count)}}
	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}
	return t, nil
}

// Validate checks the shape is [1, C, N] with C > 0, N >= 0 and that the data
// length matches.
func (t Tensor) Validate() error {
	if len(t.Shape) != 3 {
		return &ShapeError{Shape: t.Shape, Length: len(t.Data), Reason: fmt.Sprintf("rank %d != 3", len(t.Shape))}
	}
	if t.Shape[0] != 1 {
		return &ShapeError{Shape: t.Shape, Length: len(t.Data), Reason: "batch size must be 1"}
	}
	if t.Shape[1] <= 0 {
		return &ShapeError{Shape: t.Shape, Length: len(t.Data), Reason: "channel count must be > 0"}
	}
	if t.Shape[2] < 0 {
		return &ShapeError{Shape: t.Shape, Length: len(t.Data), Reason: "candidate count must be >= 0"}
	}
	// Compared by division so huge shapes cannot wrap the product.
	n := int64(len(t.Data))
	if n%t.Shape[1] != 0 || n/t.Shape[1] != t.Shape[2] {
		return &ShapeError{Shape: t.Shape, Length: len(t.Data), Reason: "data length does not match shape"}
	}
	return nil
}

// Channels returns C, or 0 when the shape is not rank 3.
func (t Tensor) Channels() int {
	if len(t.Shape) != 3 {
		return 0
	}
	return int(t.Shape[1])
}

// Count returns N, the number of candidate columns.
func (t Tensor) Count() int {
	if len(t.Shape) != 3 {
		return 0
	}
	return int(t.Shape[2])
}

// At returns the element at batch b, channel c, candidate i.
// Callers are expected to have validated the tensor.
func (t Tensor) At(b, c, i int) float32 {
	ch := int(t.Shape[1])
	n := int(t.Shape[2])
	return t.Data[(b*ch+c)*n+i]
}

// Stats computes min, max and mean for debug output.
func Stats(data []float32) (float32, float32, float32) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	minVal, maxVal := data[0], data[0]
	var sum float64
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
		sum += float64(v)
	}
	return minVal, maxVal, float32(sum / float64(len(data)))
}
