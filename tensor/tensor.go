// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/mlp/internal/tensor"
)

// Tensor is a dense row-major float64 tensor.
type Tensor = tensor.Tensor

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3} is a matrix with 2 rows and 3 columns.
type Shape = tensor.Shape

// ShapeError describes an operation whose operands have incompatible shapes.
type ShapeError = tensor.ShapeError

// Error kinds.
var (
	// ErrShapeMismatch reports incompatible operand or layer dimensions.
	ErrShapeMismatch = tensor.ErrShapeMismatch

	// ErrNonFiniteValue reports a NaN or infinite loss, gradient or parameter.
	ErrNonFiniteValue = tensor.ErrNonFiniteValue

	// ErrInvalidConfiguration reports unusable settings such as a zero batch
	// size or an unknown activation.
	ErrInvalidConfiguration = tensor.ErrInvalidConfiguration
)

// New creates a zero-filled tensor with the given shape.
func New(shape Shape) (*Tensor, error) {
	return tensor.New(shape)
}

// FromSlice creates a tensor from a copy of data.
//
// Example:
//
//	t, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
func FromSlice(data []float64, dims ...int) (*Tensor, error) {
	return tensor.FromSlice(data, dims...)
}

// FromRows creates a (len(rows), len(rows[0])) matrix.
func FromRows(rows [][]float64) (*Tensor, error) {
	return tensor.FromRows(rows)
}

// StackRows concatenates vectors and matrices row-wise.
func StackRows(parts ...*Tensor) (*Tensor, error) {
	return tensor.StackRows(parts...)
}

// Zeros creates a zero-filled tensor. Panics on a non-positive dimension.
func Zeros(dims ...int) *Tensor {
	return tensor.Zeros(dims...)
}

// Ones creates a tensor filled with ones. Panics on a non-positive dimension.
func Ones(dims ...int) *Tensor {
	return tensor.Ones(dims...)
}

// Full creates a tensor filled with value. Panics on a non-positive dimension.
func Full(value float64, dims ...int) *Tensor {
	return tensor.Full(value, dims...)
}
