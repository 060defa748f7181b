// Package tensor provides the dense float64 tensor used by the network engine.
//
// A Tensor is a row-major slice of float64 values plus a Shape. Operations
// return new tensors; the few in-place methods are named *InPlace and exist
// for the optimizer, which is the only component allowed to mutate
// parameters.
package tensor

import (
	"fmt"
	"math"
	"strings"
)

// Tensor is a dense multi-dimensional array of float64 values.
//
// Invariant: len(data) == shape.NumElements().
//
// Example:
//
//	x, _ := tensor.FromSlice([]float64{1, 2, 3, 4}, 2, 2)
//	y, _ := x.MatMul(x) // [[7 10] [15 22]]
type Tensor struct {
	shape Shape
	data  []float64
}

// New creates a zero-filled tensor with the given shape.
func New(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Tensor{
		shape: shape.Clone(),
		data:  make([]float64, shape.NumElements()),
	}, nil
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float64, dims ...int) (*Tensor, error) {
	shape := Shape(dims)
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("%w: shape %v requires %d elements, but got %d",
			ErrShapeMismatch, shape, shape.NumElements(), len(data))
	}

	t := &Tensor{shape: shape.Clone(), data: make([]float64, len(data))}
	copy(t.data, data)
	return t, nil
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape.Clone()
}

// Dims returns the number of dimensions.
func (t *Tensor) Dims() int {
	return len(t.shape)
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Rows returns the first dimension of a matrix, or 1 for a vector.
func (t *Tensor) Rows() int {
	if len(t.shape) == 2 {
		return t.shape[0]
	}
	return 1
}

// Cols returns the last dimension of the tensor.
func (t *Tensor) Cols() int {
	if len(t.shape) == 0 {
		return 1
	}
	return t.shape[len(t.shape)-1]
}

// Data returns the underlying row-major data.
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor) At(indices ...int) float64 {
	return t.data[t.offset(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor) Set(value float64, indices ...int) {
	t.data[t.offset(indices)] = value
}

func (t *Tensor) offset(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(t.shape), len(indices)))
	}

	offset := 0
	strides := t.shape.ComputeStrides()
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, t.shape[i]))
		}
		offset += idx * strides[i]
	}
	return offset
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape.Clone(), data: data}
}

// Reshape returns a copy of the tensor with a different shape.
// The new shape must have the same number of elements.
func (t *Tensor) Reshape(dims ...int) (*Tensor, error) {
	shape := Shape(dims)
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(t.data) {
		return nil, NewShapeError("reshape", t.shape, shape)
	}
	out := t.Clone()
	out.shape = shape.Clone()
	return out, nil
}

// Row returns row i of a matrix as a (1, cols) tensor.
func (t *Tensor) Row(i int) *Tensor {
	cols := t.Cols()
	if i < 0 || i >= t.Rows() {
		panic(fmt.Sprintf("row %d out of bounds (rows %d)", i, t.Rows()))
	}
	data := make([]float64, cols)
	copy(data, t.data[i*cols:(i+1)*cols])
	return &Tensor{shape: Shape{1, cols}, data: data}
}

// Equal reports whether both tensors have the same shape and identical
// values. NaN never compares equal.
func (t *Tensor) Equal(other *Tensor) bool {
	if other == nil || !t.shape.Equal(other.shape) {
		return false
	}
	for i, v := range t.data {
		if v != other.data[i] {
			return false
		}
	}
	return true
}

// BitEqual reports whether both tensors have the same shape and
// bit-identical IEEE-754 values.
func (t *Tensor) BitEqual(other *Tensor) bool {
	if other == nil || !t.shape.Equal(other.shape) {
		return false
	}
	for i, v := range t.data {
		if math.Float64bits(v) != math.Float64bits(other.data[i]) {
			return false
		}
	}
	return true
}

// CheckFinite returns an error wrapping ErrNonFiniteValue if any element is
// NaN or ±Inf.
func (t *Tensor) CheckFinite() error {
	for i, v := range t.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: element %d is %v", ErrNonFiniteValue, i, v)
		}
	}
	return nil
}

// String renders small tensors for debugging.
func (t *Tensor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tensor%v", []int(t.shape))
	if len(t.data) > 64 {
		return sb.String()
	}
	sb.WriteString(fmt.Sprint(t.data))
	return sb.String()
}
