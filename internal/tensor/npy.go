package tensor

import (
	"fmt"
	"io"
	"os"

	gtensor "gorgonia.org/tensor"
)

// FromDense converts a gorgonia dense tensor of shape [C, N] or [1, C, N]
// into a detection Tensor. float64 backings are narrowed to float32.
func FromDense(d *gtensor.Dense) (Tensor, error) {
	if d == nil {
		return Tensor{}, ErrEmpty
	}
	dims := d.Shape()
	var shape []int64
	switch len(dims) {
	case 2:
		shape = []int64{1, int64(dims[0]), int64(dims[1])}
	case 3:
		shape = []int64{int64(dims[0]), int64(dims[1]), int64(dims[2])}
	default:
		return Tensor{}, &ShapeError{Shape: toInt64(dims), Length: d.Size(), Reason: fmt.Sprintf("rank %d not in {2, 3}", len(dims))}
	}

	var data []float32
	switch v := d.Data().(type) {
	case []float32:
		data = make([]float32, len(v))
		copy(data, v)
	case []float64:
		data = make([]float32, len(v))
		for i, x := range v {
			data[i] = float32(x)
		}
	default:
		return Tensor{}, fmt.Errorf("unsupported tensor dtype %v", d.Dtype())
	}

	t := Tensor{Data: data, Shape: shape}
	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}
	return t, nil
}

// ToDense wraps the tensor data in a gorgonia dense tensor without copying.
func ToDense(t Tensor) *gtensor.Dense {
	dims := make([]int, len(t.Shape))
	for i, v := range t.Shape {
		dims[i] = int(v)
	}
	return gtensor.New(gtensor.WithShape(dims...), gtensor.WithBacking(t.Data))
}

// ReadNpy decodes a NumPy .npy stream into a detection Tensor.
func ReadNpy(r io.Reader) (Tensor, error) {
	d := new(gtensor.Dense)
	if err := d.ReadNpy(r); err != nil {
		return Tensor{}, fmt.Errorf("read npy: %w", err)
	}
	return FromDense(d)
}

// LoadNpy reads a .npy file from disk.
func LoadNpy(path string) (Tensor, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is provided by the caller
	if err != nil {
		return Tensor{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	t, err := ReadNpy(f)
	if err != nil {
		return Tensor{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteNpy encodes the tensor as a NumPy .npy stream.
func WriteNpy(w io.Writer, t Tensor) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return ToDense(t).WriteNpy(w)
}

func toInt64(dims []int) []int64 {
	out := make([]int64, len(dims))
	for i, v := range dims {
		out[i] = int64(v)
	}
	return out
}
