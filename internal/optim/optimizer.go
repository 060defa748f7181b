// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Optimizers own their per-layer state (velocities, moments) keyed by layer
// position. State is rebuilt automatically when the network's layout changes.
//
// Example usage:
//
//	optimizer, err := optim.NewSGD(optim.SGDConfig{LR: 0.5, Momentum: 0.9})
//
//	for epoch := range epochs {
//	    output, cache, _ := net.ForwardTrain(input)
//	    lossGrad, _ := loss.Gradient(output, targets)
//	    grads, _ := net.Backward(lossGrad, cache)
//
//	    // Update parameters
//	    if err := optimizer.Apply(net, grads); err != nil {
//	        return err
//	    }
//	}
package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/mlp/internal/nn"
	"github.com/born-ml/mlp/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers update network parameters in place from a gradient bundle
// produced by Network.Backward.
type Optimizer interface {
	// Apply updates every layer of net from grads.
	//
	// Fails with ErrShapeMismatch if the bundle does not cover exactly the
	// network's layers or a gradient's shape differs from its parameter.
	Apply(net *nn.Network, grads *nn.Gradients) error

	// Reset discards all per-layer state (velocities, moments, timestep).
	Reset()

	// LR returns the current learning rate.
	LR() float64

	// SetLR updates the learning rate for later steps.
	//
	// Returns an error wrapping ErrInvalidConfiguration, leaving the rate
	// unchanged, unless lr is positive and finite.
	SetLR(lr float64) error
}

func checkLR(name string, lr float64) error {
	if !(lr > 0) || math.IsInf(lr, 1) {
		return fmt.Errorf("%w: %s learning rate must be positive and finite, got %g", tensor.ErrInvalidConfiguration, name, lr)
	}
	return nil
}

var (
	_ Optimizer         = (*SGD)(nil)
	_ Optimizer         = (*Adam)(nil)
	_ nn.OptimizerState = (*SGD)(nil)
	_ nn.OptimizerState = (*Adam)(nil)
)

// layerState is a pair of buffers shaped like one layer's parameters.
type layerState struct {
	weight *tensor.Tensor
	bias   *tensor.Tensor
}

func newLayerState(layer *nn.Dense) layerState {
	return layerState{
		weight: tensor.Zeros(layer.InFeatures(), layer.OutFeatures()),
		bias:   tensor.Zeros(layer.OutFeatures()),
	}
}

// stateMatches reports whether state was built for net's current layout.
func stateMatches(state []layerState, net *nn.Network) bool {
	if len(state) != net.NumLayers() {
		return false
	}
	for i, s := range state {
		l := net.Layer(i)
		if !s.weight.Shape().Equal(l.Weight().Shape()) || !s.bias.Shape().Equal(l.Bias().Shape()) {
			return false
		}
	}
	return true
}

func buildState(net *nn.Network) []layerState {
	state := make([]layerState, net.NumLayers())
	for i := range state {
		state[i] = newLayerState(net.Layer(i))
	}
	return state
}

// checkBundle validates grads against net before any parameter is touched,
// so a failed Apply leaves the network unchanged.
func checkBundle(net *nn.Network, grads *nn.Gradients) error {
	if grads == nil || grads.Len() != net.NumLayers() {
		got := 0
		if grads != nil {
			got = grads.Len()
		}
		return fmt.Errorf("%w: gradient bundle covers %d layers, network has %d",
			tensor.ErrShapeMismatch, got, net.NumLayers())
	}
	for i, g := range grads.Layers {
		l := net.Layer(i)
		if g.Weight == nil || !g.Weight.Shape().Equal(l.Weight().Shape()) {
			return fmt.Errorf("layer %d: %w", i, tensor.NewShapeError("weight gradient", shapeOf(g.Weight), l.Weight().Shape()))
		}
		if g.Bias == nil || !g.Bias.Shape().Equal(l.Bias().Shape()) {
			return fmt.Errorf("layer %d: %w", i, tensor.NewShapeError("bias gradient", shapeOf(g.Bias), l.Bias().Shape()))
		}
	}
	return nil
}

func shapeOf(t *tensor.Tensor) tensor.Shape {
	if t == nil {
		return nil
	}
	return t.Shape()
}

// stateKey names one exported state buffer, e.g. "velocity.0.weight".
func stateKey(name string, layer int, param string) string {
	return fmt.Sprintf("%s.%d.%s", name, layer, param)
}

// exportState copies buffers into dict under name.{i}.weight / name.{i}.bias.
func exportState(dict map[string]*tensor.Tensor, name string, state []layerState) {
	for i, s := range state {
		dict[stateKey(name, i, "weight")] = s.weight.Clone()
		dict[stateKey(name, i, "bias")] = s.bias.Clone()
	}
}

// importState restores buffers for n layers from dict.
func importState(dict map[string]*tensor.Tensor, name string, n int) ([]layerState, error) {
	state := make([]layerState, n)
	for i := range state {
		w, okW := dict[stateKey(name, i, "weight")]
		b, okB := dict[stateKey(name, i, "bias")]
		if !okW || !okB {
			return nil, fmt.Errorf("%w: missing %s state for layer %d", tensor.ErrInvalidConfiguration, name, i)
		}
		if !w.Shape().IsMatrix() || !b.Shape().IsVector() || w.Shape()[1] != b.Shape()[0] {
			return nil, fmt.Errorf("%s state layer %d: %w", name, i, tensor.NewShapeError("state", w.Shape(), b.Shape()))
		}
		state[i] = layerState{weight: w.Clone(), bias: b.Clone()}
	}
	return state, nil
}

// countLayers returns the number of layers present under name in dict.
func countLayers(dict map[string]*tensor.Tensor, name string) int {
	n := 0
	for {
		if _, ok := dict[stateKey(name, n, "weight")]; !ok {
			return n
		}
		n++
	}
}
