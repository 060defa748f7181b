// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training neural networks.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for custom optimizers
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/mlp/nn"
//	    "github.com/born-ml/mlp/optim"
//	)
//
//	func main() {
//	    optimizer, err := optim.NewAdam(optim.AdamConfig{LR: 0.001})
//
//	    // Training loop
//	    for epoch := range 10 {
//	        out, cache, _ := net.ForwardTrain(x)
//	        grad, _ := loss.Gradient(out, y)
//	        grads, _ := net.Backward(grad, cache)
//
//	        // Update parameters
//	        if err := optimizer.Apply(net, grads); err != nil {
//	            return err
//	        }
//	    }
//	}
//
// # State
//
// Per-layer state (SGD velocities, Adam moments) is keyed by layer
// position. It is rebuilt from zero whenever Apply sees a network whose
// layer count or layer shapes differ from the tracked ones. Reset discards
// it explicitly.
//
// # SGD
//
// With momentum μ the update is
//
//	v = μ·v + lr·g
//	w = w - v
//
// and without momentum simply w = w - lr·g.
//
// # Adam
//
// Adam keeps exponential moving averages of gradients (m) and squared
// gradients (v) and corrects their initialization bias:
//
//	m̂ = m / (1 - β₁ᵗ)
//	v̂ = v / (1 - β₂ᵗ)
//	w = w - lr·m̂ / (√v̂ + ε)
//
// Both optimizers export their state through StateDict for checkpoints.
package optim
