package nn_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/born-ml/mlp/internal/nn"
	"github.com/born-ml/mlp/internal/tensor"
)

// params flattens every weight and bias of net into one vector, in layer order.
func params(net *nn.Network) []float64 {
	var out []float64
	for _, l := range net.Layers() {
		out = append(out, l.Weight().Data()...)
		out = append(out, l.Bias().Data()...)
	}
	return out
}

func setParams(net *nn.Network, values []float64) {
	offset := 0
	for _, l := range net.Layers() {
		offset += copy(l.Weight().Data(), values[offset:])
		offset += copy(l.Bias().Data(), values[offset:])
	}
}

func analyticGradient(t *testing.T, net *nn.Network, loss nn.Loss, x, y *tensor.Tensor) []float64 {
	t.Helper()
	out, cache, err := net.ForwardTrain(x)
	require.NoError(t, err)
	lossGrad, err := loss.Gradient(out, y)
	require.NoError(t, err)
	grads, err := net.Backward(lossGrad, cache)
	require.NoError(t, err)

	var flat []float64
	for _, lg := range grads.Layers {
		flat = append(flat, lg.Weight.Data()...)
		flat = append(flat, lg.Bias.Data()...)
	}
	return flat
}

// TestGradientCheck compares backpropagated gradients against central
// finite differences of the loss over every parameter.
func TestGradientCheck(t *testing.T) {
	tests := []struct {
		name   string
		specs  []nn.LayerSpec
		loss   nn.LossKind
		target []float64
	}{
		{
			name: "tanh-sigmoid-mse",
			specs: []nn.LayerSpec{
				{In: 3, Out: 4, Activation: nn.Tanh},
				{In: 4, Out: 2, Activation: nn.Sigmoid},
			},
			loss:   nn.MSE,
			target: []float64{0.2, 0.9, 0.7, 0.1},
		},
		{
			name: "relu-sigmoid-cross_entropy",
			specs: []nn.LayerSpec{
				{In: 3, Out: 5, Activation: nn.ReLU},
				{In: 5, Out: 2, Activation: nn.Sigmoid},
			},
			loss:   nn.CrossEntropy,
			target: []float64{1, 0, 0, 1},
		},
		{
			name: "sigmoid-softmax-categorical",
			specs: []nn.LayerSpec{
				{In: 3, Out: 4, Activation: nn.Sigmoid},
				{In: 4, Out: 2, Activation: nn.Softmax},
			},
			loss:   nn.CategoricalCrossEntropy,
			target: []float64{0, 1, 1, 0},
		},
		{
			name: "identity-deep",
			specs: []nn.LayerSpec{
				{In: 3, Out: 3, Activation: nn.Identity},
				{In: 3, Out: 3, Activation: nn.Tanh},
				{In: 3, Out: 2, Activation: nn.Identity},
			},
			loss:   nn.MSE,
			target: []float64{-0.5, 0.5, 1, -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net, err := nn.New(rand.NewPCG(7, 11), tt.specs...)
			require.NoError(t, err)

			// Biases start at zero; give them random values so their
			// gradients are exercised away from the origin.
			rng := rand.New(rand.NewPCG(3, 5))
			for _, l := range net.Layers() {
				for i := range l.Bias().Data() {
					l.Bias().Data()[i] = rng.Float64() - 0.5
				}
			}

			loss, err := nn.LossFor(tt.loss)
			require.NoError(t, err)

			x, _ := tensor.FromSlice([]float64{0.5, -1.2, 0.3, -0.7, 0.8, 1.5}, 2, 3)
			y, _ := tensor.FromSlice(tt.target, 2, 2)

			original := params(net)
			analytic := analyticGradient(t, net, loss, x, y)

			objective := func(p []float64) float64 {
				setParams(net, p)
				out, err := net.Forward(x)
				require.NoError(t, err)
				v, err := loss.Compute(out, y)
				require.NoError(t, err)
				return v
			}
			numeric := fd.Gradient(nil, objective, original, &fd.Settings{
				Formula: fd.Central,
				Step:    1e-6,
			})
			setParams(net, original)

			require.Len(t, numeric, len(analytic))
			for i := range analytic {
				diff := math.Abs(analytic[i] - numeric[i])
				scale := math.Max(math.Abs(analytic[i])+math.Abs(numeric[i]), 1e-3)
				require.LessOrEqualf(t, diff/scale, 1e-4,
					"param %d: analytic %.10g numeric %.10g", i, analytic[i], numeric[i])
			}
		})
	}
}
