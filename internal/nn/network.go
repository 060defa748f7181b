package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/mlp/internal/tensor"
)

// Network is an ordered sequence of Dense layers.
//
// Each layer's output becomes the next layer's input. The adjacency
// invariant layer[i].Out == layer[i+1].In is checked when the network is
// assembled and can never be violated afterwards: layer shapes are fixed.
//
// Example:
//
//	net, err := nn.New(rand.NewPCG(1, 2),
//	    nn.LayerSpec{In: 2, Out: 4, Activation: nn.Tanh},
//	    nn.LayerSpec{In: 4, Out: 1, Activation: nn.Sigmoid},
//	)
//	output, err := net.Forward(input)
type Network struct {
	layers []*Dense
}

// Cache carries per-layer forward values from ForwardTrain to Backward.
//
// A Cache is valid for a single Backward call; reusing it fails with
// ErrCacheConsumed.
type Cache struct {
	layers   []*LayerCache
	consumed bool
}

// Len returns the number of layer caches held.
func (c *Cache) Len() int {
	return len(c.layers)
}

// New builds a network from layer descriptions, drawing initial weights
// from src. A nil src uses a randomly seeded PCG generator.
//
// Returns an error wrapping ErrInvalidConfiguration for an empty or invalid
// spec list and ErrShapeMismatch when adjacent layer sizes do not chain.
func New(src rand.Source, specs ...LayerSpec) (*Network, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: network needs at least one layer", tensor.ErrInvalidConfiguration)
	}
	for i := 1; i < len(specs); i++ {
		if specs[i-1].Out != specs[i].In {
			return nil, fmt.Errorf("layer %d -> %d: %w", i-1, i,
				tensor.NewShapeError("chain", tensor.Shape{specs[i-1].In, specs[i-1].Out}, tensor.Shape{specs[i].In, specs[i].Out}))
		}
	}
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	layers := make([]*Dense, len(specs))
	for i, spec := range specs {
		layer, err := NewDense(spec, src)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layers[i] = layer
	}
	return &Network{layers: layers}, nil
}

// FromLayers assembles a network from existing layers, taking ownership of
// them. Adjacent sizes must chain.
func FromLayers(layers ...*Dense) (*Network, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: network needs at least one layer", tensor.ErrInvalidConfiguration)
	}
	for i := 1; i < len(layers); i++ {
		if layers[i-1].out != layers[i].in {
			return nil, fmt.Errorf("layer %d -> %d: %w", i-1, i,
				tensor.NewShapeError("chain", layers[i-1].weight.Shape(), layers[i].weight.Shape()))
		}
	}
	return &Network{layers: append([]*Dense(nil), layers...)}, nil
}

// Forward threads input through every layer, discarding caches.
// Suitable for inference only.
func (n *Network) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	output := input
	for i, layer := range n.layers {
		var err error
		if output, _, err = layer.Forward(output); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return output, nil
}

// Predict is Forward under the name inference callers expect.
func (n *Network) Predict(input *tensor.Tensor) (*tensor.Tensor, error) {
	return n.Forward(input)
}

// ForwardTrain runs the forward pass and keeps every layer cache for a
// subsequent Backward call.
func (n *Network) ForwardTrain(input *tensor.Tensor) (*tensor.Tensor, *Cache, error) {
	cache := &Cache{layers: make([]*LayerCache, 0, len(n.layers))}
	output := input
	for i, layer := range n.layers {
		out, lc, err := layer.Forward(output)
		if err != nil {
			return nil, nil, fmt.Errorf("layer %d: %w", i, err)
		}
		cache.layers = append(cache.layers, lc)
		output = out
	}
	return output, cache, nil
}

// Backward propagates outputGrad from the last layer to the first and
// returns the gradient bundle indexed by layer position.
//
// Fails with ErrShapeMismatch if the cache does not cover every layer, and
// with ErrCacheConsumed if the cache was already used.
func (n *Network) Backward(outputGrad *tensor.Tensor, cache *Cache) (*Gradients, error) {
	if err := n.consume(cache); err != nil {
		return nil, err
	}
	return n.backward(outputGrad, false, cache)
}

// BackwardLoss computes the loss gradient on the cached network output and
// propagates it like Backward.
//
// When loss implements OutputDeltaLoss for the last layer's activation, the
// fused pre-activation gradient replaces the loss gradient and that
// activation's derivative. Saturated sigmoid or softmax outputs then still
// yield the gradient (p - y)/n instead of zero.
func (n *Network) BackwardLoss(loss Loss, expected *tensor.Tensor, cache *Cache) (*Gradients, error) {
	if err := n.consume(cache); err != nil {
		return nil, err
	}
	last := len(n.layers) - 1
	predicted := cache.layers[last].out

	if fused, ok := loss.(OutputDeltaLoss); ok {
		delta, handled, err := fused.OutputDelta(n.layers[last].activation.Kind(), predicted, expected)
		if err != nil {
			return nil, err
		}
		if handled {
			return n.backward(delta, true, cache)
		}
	}

	grad, err := loss.Gradient(predicted, expected)
	if err != nil {
		return nil, err
	}
	return n.backward(grad, false, cache)
}

func (n *Network) consume(cache *Cache) error {
	if cache == nil || len(cache.layers) != len(n.layers) {
		got := 0
		if cache != nil {
			got = len(cache.layers)
		}
		return fmt.Errorf("%w: cache covers %d layers, network has %d",
			tensor.ErrShapeMismatch, got, len(n.layers))
	}
	if cache.consumed {
		return ErrCacheConsumed
	}
	cache.consumed = true
	return nil
}

// backward runs the chain rule from the last layer down. If preActivation
// is set, grad is already the last layer's pre-activation gradient.
func (n *Network) backward(grad *tensor.Tensor, preActivation bool, cache *Cache) (*Gradients, error) {
	grads := &Gradients{Layers: make([]LayerGradients, len(n.layers))}
	last := len(n.layers) - 1
	for i := last; i >= 0; i-- {
		var inputGrad, weightGrad, biasGrad *tensor.Tensor
		var err error
		if i == last && preActivation {
			inputGrad, weightGrad, biasGrad, err = n.layers[i].backwardDelta(grad, cache.layers[i])
		} else {
			inputGrad, weightGrad, biasGrad, err = n.layers[i].Backward(grad, cache.layers[i])
		}
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		grads.Layers[i] = LayerGradients{Weight: weightGrad, Bias: biasGrad}
		grad = inputGrad
	}
	return grads, nil
}

// NumLayers returns the number of layers.
func (n *Network) NumLayers() int {
	return len(n.layers)
}

// Layer returns the layer at index i.
//
// Panics if index is out of bounds.
func (n *Network) Layer(i int) *Dense {
	if i < 0 || i >= len(n.layers) {
		panic("Network.Layer: index out of bounds")
	}
	return n.layers[i]
}

// Layers returns the layers in order. The slice is a copy; the layers are not.
func (n *Network) Layers() []*Dense {
	return append([]*Dense(nil), n.layers...)
}

// InputSize returns the first layer's input size.
func (n *Network) InputSize() int {
	return n.layers[0].in
}

// OutputSize returns the last layer's output size.
func (n *Network) OutputSize() int {
	return n.layers[len(n.layers)-1].out
}

// Specs returns the shape and activation of every layer.
func (n *Network) Specs() []LayerSpec {
	specs := make([]LayerSpec, len(n.layers))
	for i, l := range n.layers {
		specs[i] = l.Spec()
	}
	return specs
}

// Clone returns a deep copy of the network's parameters.
func (n *Network) Clone() *Network {
	layers := make([]*Dense, len(n.layers))
	for i, l := range n.layers {
		layers[i] = l.Clone()
	}
	return &Network{layers: layers}
}

// CheckFinite reports the first layer whose parameters hold NaN or ±Inf.
func (n *Network) CheckFinite() error {
	for i, l := range n.layers {
		if err := l.weight.CheckFinite(); err != nil {
			return fmt.Errorf("layer %d weight: %w", i, err)
		}
		if err := l.bias.CheckFinite(); err != nil {
			return fmt.Errorf("layer %d bias: %w", i, err)
		}
	}
	return nil
}
