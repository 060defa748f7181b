package trainer

import (
	"fmt"

	"github.com/born-ml/mlp/internal/tensor"
)

// Sample is one labeled training example.
type Sample struct {
	Input    *tensor.Tensor // (in) or (1, in)
	Expected *tensor.Tensor // (out) or (1, out)
}

// Dataset is an ordered collection of samples.
type Dataset []Sample

// NewDataset pairs input rows with expected rows.
func NewDataset(inputs, expected [][]float64) (Dataset, error) {
	if len(inputs) != len(expected) {
		return nil, fmt.Errorf("%w: %d inputs but %d expected rows",
			tensor.ErrShapeMismatch, len(inputs), len(expected))
	}
	data := make(Dataset, len(inputs))
	for i := range inputs {
		x, err := tensor.FromSlice(inputs[i], 1, len(inputs[i]))
		if err != nil {
			return nil, fmt.Errorf("sample %d input: %w", i, err)
		}
		y, err := tensor.FromSlice(expected[i], 1, len(expected[i]))
		if err != nil {
			return nil, fmt.Errorf("sample %d expected: %w", i, err)
		}
		data[i] = Sample{Input: x, Expected: y}
	}
	return data, nil
}

// rows flattens every sample to a (1, n) row and checks the sizes against
// the network's input and output widths.
func (d Dataset) rows(in, out int) (inputs, expected []*tensor.Tensor, err error) {
	if len(d) == 0 {
		return nil, nil, fmt.Errorf("%w: empty dataset", tensor.ErrInvalidConfiguration)
	}
	inputs = make([]*tensor.Tensor, len(d))
	expected = make([]*tensor.Tensor, len(d))
	for i, s := range d {
		if s.Input == nil || s.Expected == nil {
			return nil, nil, fmt.Errorf("%w: sample %d is incomplete", tensor.ErrInvalidConfiguration, i)
		}
		if inputs[i], err = asRow(s.Input, in); err != nil {
			return nil, nil, fmt.Errorf("sample %d input: %w", i, err)
		}
		if expected[i], err = asRow(s.Expected, out); err != nil {
			return nil, nil, fmt.Errorf("sample %d expected: %w", i, err)
		}
	}
	return inputs, expected, nil
}

func asRow(t *tensor.Tensor, width int) (*tensor.Tensor, error) {
	if t.Dims() > 2 || t.Rows() != 1 || t.Cols() != width {
		return nil, tensor.NewShapeError("sample", t.Shape(), tensor.Shape{1, width})
	}
	if t.Dims() == 2 {
		return t, nil
	}
	return t.Reshape(1, width)
}

// Batch is a half-open range [Start, End) of sample positions.
type Batch struct {
	Start int
	End   int
}

// Size returns the number of samples in the batch.
func (b Batch) Size() int {
	return b.End - b.Start
}

// Batches partitions n samples into ceil(n/size) consecutive batches. Every
// batch holds size samples except the last, which holds n mod size when that
// is non-zero.
func Batches(n, size int) []Batch {
	if n <= 0 || size <= 0 {
		return nil
	}
	batches := make([]Batch, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		batches = append(batches, Batch{Start: start, End: min(start+size, n)})
	}
	return batches
}
