package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/mlp/internal/tensor"
)

// LayerSpec declares one dense layer of a network.
type LayerSpec struct {
	In         int         // Input size (weight rows)
	Out        int         // Output size (weight columns, bias length)
	Activation Kind        // Activation applied after the affine transform
	Init       Initializer // Weight initialization policy (default: XavierInit)
}

// Validate checks sizes, activation kind and initializer.
func (s LayerSpec) Validate() error {
	if s.In <= 0 || s.Out <= 0 {
		return fmt.Errorf("%w: layer sizes must be positive, got in=%d out=%d",
			tensor.ErrInvalidConfiguration, s.In, s.Out)
	}
	if !s.Activation.Valid() {
		return fmt.Errorf("%w: unknown activation %d", tensor.ErrInvalidConfiguration, uint8(s.Activation))
	}
	if s.Init != nil {
		return s.Init.Validate()
	}
	return nil
}

// Dense implements a fully connected layer followed by an activation.
//
// Performs the transformation: y = f(x @ W + b)
// where:
//   - x is the input tensor with shape [batch_size, in]
//   - W is the weight matrix with shape [in, out]
//   - b is the bias vector with shape [out]
//   - y is the output tensor with shape [batch_size, out]
//
// Weights follow the LayerSpec's initializer; biases start at zero. Only the
// optimizer mutates W and b after construction.
type Dense struct {
	in         int
	out        int
	weight     *tensor.Tensor
	bias       *tensor.Tensor
	activation Activation
}

// LayerCache holds the values a Dense layer needs for its backward pass.
//
// It lives for exactly one forward/backward pair.
type LayerCache struct {
	input *tensor.Tensor // [batch, in]
	pre   *tensor.Tensor // x @ W + b, [batch, out]
	out   *tensor.Tensor // f(pre), [batch, out]
}

// Output returns the activation output recorded by the forward pass.
func (c *LayerCache) Output() *tensor.Tensor {
	return c.out
}

// NewDense creates a Dense layer from a spec, drawing initial weights from src.
func NewDense(spec LayerSpec, src rand.Source) (*Dense, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	act, err := ActivationFor(spec.Activation)
	if err != nil {
		return nil, err
	}

	initializer := spec.Init
	if initializer == nil {
		initializer = XavierInit{}
	}

	weight := tensor.Zeros(spec.In, spec.Out)
	initializer.Init(weight, spec.In, spec.Out, src)

	return &Dense{
		in:         spec.In,
		out:        spec.Out,
		weight:     weight,
		bias:       tensor.Zeros(spec.Out),
		activation: act,
	}, nil
}

// NewDenseFromParams creates a Dense layer around existing parameter values.
//
// weight must be [in, out] and bias [out]; both are copied.
func NewDenseFromParams(weight, bias *tensor.Tensor, kind Kind) (*Dense, error) {
	ws, bs := weight.Shape(), bias.Shape()
	if !ws.IsMatrix() || !bs.IsVector() || ws[1] != bs[0] {
		return nil, tensor.NewShapeError("dense params", ws, bs)
	}
	act, err := ActivationFor(kind)
	if err != nil {
		return nil, err
	}
	return &Dense{
		in:         ws[0],
		out:        ws[1],
		weight:     weight.Clone(),
		bias:       bias.Clone(),
		activation: act,
	}, nil
}

// Forward computes f(x @ W + b).
//
// input may be a [batch, in] matrix or a single [in] vector, which is
// treated as a batch of one.
func (d *Dense) Forward(input *tensor.Tensor) (*tensor.Tensor, *LayerCache, error) {
	x, err := d.asBatch(input)
	if err != nil {
		return nil, nil, err
	}

	xw, err := x.MatMul(d.weight)
	if err != nil {
		return nil, nil, err
	}
	pre, err := xw.AddRowVector(d.bias)
	if err != nil {
		return nil, nil, err
	}
	out := d.activation.Forward(pre)

	return out, &LayerCache{input: x, pre: pre, out: out}, nil
}

// Backward applies the chain rule through the layer.
//
//	delta      = outputGrad ⊙ f'(pre)
//	weightGrad = inputᵀ @ delta
//	biasGrad   = column-sum(delta)
//	inputGrad  = delta @ Wᵀ
func (d *Dense) Backward(outputGrad *tensor.Tensor, cache *LayerCache) (inputGrad, weightGrad, biasGrad *tensor.Tensor, err error) {
	if cache == nil {
		return nil, nil, nil, fmt.Errorf("%w: missing layer cache", tensor.ErrShapeMismatch)
	}
	gs := outputGrad.Shape()
	if !gs.IsMatrix() || gs[1] != d.out || !gs.Equal(cache.pre.Shape()) {
		return nil, nil, nil, tensor.NewShapeError("dense backward", gs, cache.pre.Shape())
	}

	delta, err := d.activation.Backward(cache.pre, cache.out, outputGrad)
	if err != nil {
		return nil, nil, nil, err
	}
	return d.backwardDelta(delta, cache)
}

// backwardDelta finishes Backward from the gradient with respect to the
// pre-activation.
func (d *Dense) backwardDelta(delta *tensor.Tensor, cache *LayerCache) (inputGrad, weightGrad, biasGrad *tensor.Tensor, err error) {
	if ds := delta.Shape(); !ds.Equal(cache.pre.Shape()) {
		return nil, nil, nil, tensor.NewShapeError("dense backward", ds, cache.pre.Shape())
	}

	xT, err := cache.input.Transpose()
	if err != nil {
		return nil, nil, nil, err
	}
	if weightGrad, err = xT.MatMul(delta); err != nil {
		return nil, nil, nil, err
	}
	if biasGrad, err = delta.SumRows(); err != nil {
		return nil, nil, nil, err
	}

	wT, err := d.weight.Transpose()
	if err != nil {
		return nil, nil, nil, err
	}
	if inputGrad, err = delta.MatMul(wT); err != nil {
		return nil, nil, nil, err
	}
	return inputGrad, weightGrad, biasGrad, nil
}

func (d *Dense) asBatch(input *tensor.Tensor) (*tensor.Tensor, error) {
	shape := input.Shape()
	switch {
	case shape.IsVector() && shape[0] == d.in:
		return input.Reshape(1, d.in)
	case shape.IsMatrix() && shape[1] == d.in:
		return input, nil
	default:
		return nil, tensor.NewShapeError("dense forward", shape, tensor.Shape{0, d.in})
	}
}

// Weight returns the weight matrix [in, out].
//
// The returned tensor is the live parameter; only optimizers should write it.
func (d *Dense) Weight() *tensor.Tensor {
	return d.weight
}

// Bias returns the bias vector [out].
func (d *Dense) Bias() *tensor.Tensor {
	return d.bias
}

// Activation returns the layer's shared activation.
func (d *Dense) Activation() Activation {
	return d.activation
}

// InFeatures returns the number of input features.
func (d *Dense) InFeatures() int {
	return d.in
}

// OutFeatures returns the number of output features.
func (d *Dense) OutFeatures() int {
	return d.out
}

// Spec describes the layer's shape and activation. Init is left nil.
func (d *Dense) Spec() LayerSpec {
	return LayerSpec{In: d.in, Out: d.out, Activation: d.activation.Kind()}
}

// Clone returns a deep copy of the layer. The activation stays shared.
func (d *Dense) Clone() *Dense {
	return &Dense{
		in:         d.in,
		out:        d.out,
		weight:     d.weight.Clone(),
		bias:       d.bias.Clone(),
		activation: d.activation,
	}
}
