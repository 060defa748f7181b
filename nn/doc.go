// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides dense layers, networks, losses and model persistence.
//
// # Overview
//
// This package contains:
//   - Layers: Dense (affine transform followed by an activation)
//   - Activations: Identity, Sigmoid, Tanh, ReLU, Softmax
//   - Loss functions: MSELoss, CrossEntropyLoss, CategoricalCrossEntropyLoss
//   - Initialization: XavierInit (default), UniformInit, NormalInit, ZeroInit
//   - Persistence: Save, Load, Checkpoint
//
// # Basic Usage
//
//	import (
//	    "math/rand/v2"
//
//	    "github.com/born-ml/mlp/nn"
//	    "github.com/born-ml/mlp/tensor"
//	)
//
//	func main() {
//	    // Build a 2-8-1 network with a fixed seed
//	    net, err := nn.New(rand.NewPCG(42, 1),
//	        nn.LayerSpec{In: 2, Out: 8, Activation: nn.Tanh},
//	        nn.LayerSpec{In: 8, Out: 1, Activation: nn.Sigmoid},
//	    )
//
//	    // Forward pass over a batch of four samples
//	    x, _ := tensor.FromRows([][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}})
//	    output, err := net.Forward(x)
//	}
//
// # Backpropagation
//
// ForwardTrain keeps each layer's input and pre-activation in a Cache.
// Backward walks the layers in reverse and returns one LayerGradients per
// layer. A Cache serves a single Backward call:
//
//	out, cache, _ := net.ForwardTrain(x)
//	grad, _ := nn.NewMSELoss().Gradient(out, y)
//	grads, _ := net.Backward(grad, cache)
//	_ = optimizer.Apply(net, grads)
//
// # Losses
//
// Every loss is a mean over samples, so the loss of a batch equals the mean
// of the per-sample losses. Pair CrossEntropyLoss with a Sigmoid output and
// CategoricalCrossEntropyLoss with a Softmax output; the combined gradient
// reaching the pre-activation is then (p - y) / batch.
//
// # Persistence
//
// Save writes the .mlpn format: a 64-byte fixed header with a SHA-256 of
// the data section, a JSON header listing layers and tensor offsets, then
// little-endian float64 parameters. Load verifies the checksum and rebuilds
// the network:
//
//	err := nn.SaveFile("xor.mlpn", net, nil)
//	restored, err := nn.LoadFile("xor.mlpn")
//
// A Checkpoint additionally stores optimizer state so training can resume:
//
//	ckpt := &nn.Checkpoint{Network: net, Optimizer: opt, Epoch: 10, Loss: loss}
//	err := ckpt.Save("epoch_10.mlpn")
package nn
