package tensor

import "fmt"

// Zeros creates a tensor filled with zeros.
//
// Panics on a non-positive dimension; shapes passed here come from layer
// declarations that are validated beforehand.
//
// Example:
//
//	t := tensor.Zeros(3, 4)
func Zeros(dims ...int) *Tensor {
	t, err := New(Shape(dims))
	if err != nil {
		panic(err)
	}
	return t
}

// Ones creates a tensor filled with ones.
func Ones(dims ...int) *Tensor {
	return Full(1, dims...)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full(3.14, 3, 3)
func Full(value float64, dims ...int) *Tensor {
	t := Zeros(dims...)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// FromRows creates a (len(rows), len(rows[0])) matrix from row slices.
func FromRows(rows [][]float64) (*Tensor, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidConfiguration)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, i, len(row), cols)
		}
		data = append(data, row...)
	}
	return FromSlice(data, len(rows), cols)
}

// StackRows concatenates tensors row-wise into a single matrix.
//
// Each part must be a (cols) vector or a (rows, cols) matrix with the same
// number of columns.
func StackRows(parts ...*Tensor) (*Tensor, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: nothing to stack", ErrInvalidConfiguration)
	}
	cols := parts[0].Cols()
	rows := 0
	for _, p := range parts {
		if p.Dims() > 2 || p.Cols() != cols {
			return nil, NewShapeError("stack", parts[0].shape, p.shape)
		}
		rows += p.Rows()
	}

	out := Zeros(rows, cols)
	offset := 0
	for _, p := range parts {
		offset += copy(out.data[offset:], p.data)
	}
	return out, nil
}
