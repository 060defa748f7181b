// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides dense float64 tensors for the mlp engine.
//
// # Overview
//
// A Tensor is a row-major []float64 with a Shape. Networks work on vectors
// (in) and matrices (batch, in); higher ranks are allowed for storage but
// the arithmetic is defined for rank 1 and 2 only.
//
// Operations return new tensors. The two in-place helpers,
// AddScaledInPlace and ScaleInPlace, exist for optimizers.
//
// # Basic Usage
//
//	x, err := tensor.FromRows([][]float64{
//	    {1, 2, 3},
//	    {4, 5, 6},
//	})
//	w := tensor.Ones(3, 2)
//	y, err := x.MatMul(w) // (2, 2)
//
// # Errors
//
// Operations on incompatible shapes return a *ShapeError. Every error kind
// of the engine is one of three sentinels, matched with errors.Is:
//
//	if errors.Is(err, tensor.ErrShapeMismatch) {
//	    // operand or layer sizes disagree
//	}
//
// Matrix products and elementwise kernels run on gonum.
package tensor
