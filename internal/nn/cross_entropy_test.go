package nn_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mlp/internal/nn"
	"github.com/born-ml/mlp/internal/tensor"
)

// TestCrossEntropyLoss tests binary cross-entropy on known values.
func TestCrossEntropyLoss(t *testing.T) {
	loss := nn.NewCrossEntropyLoss()
	predicted, _ := tensor.FromSlice([]float64{0.8, 0.3}, 1, 2)
	expected, _ := tensor.FromSlice([]float64{1, 0}, 1, 2)

	value, err := loss.Compute(predicted, expected)
	require.NoError(t, err)
	want := -(math.Log(0.8) + math.Log(0.7)) / 2
	assert.InDelta(t, want, value, 1e-12)

	grad, err := loss.Gradient(predicted, expected)
	require.NoError(t, err)
	assert.InDelta(t, (0.8-1)/(0.8*0.2*2), grad.At(0, 0), 1e-12)
	assert.InDelta(t, 0.3/(0.3*0.7*2), grad.At(0, 1), 1e-12)
}

// Saturated predictions produce large but finite values.
func TestCrossEntropyLoss_Clamped(t *testing.T) {
	loss := nn.NewCrossEntropyLoss()
	predicted, _ := tensor.FromSlice([]float64{0, 1}, 1, 2)
	expected, _ := tensor.FromSlice([]float64{1, 0}, 1, 2)

	value, err := loss.Compute(predicted, expected)
	require.NoError(t, err)
	assert.False(t, math.IsInf(value, 0))
	assert.Greater(t, value, 20.0)

	grad, err := loss.Gradient(predicted, expected)
	require.NoError(t, err)
	require.NoError(t, grad.CheckFinite())
}

// With sigmoid outputs the chained gradient reduces to (p - y)/n.
func TestCrossEntropyLoss_SigmoidChain(t *testing.T) {
	w, _ := tensor.FromSlice([]float64{0.7, -0.4}, 2, 1)
	b, _ := tensor.FromSlice([]float64{0.1}, 1)
	layer, err := nn.NewDenseFromParams(w, b, nn.Sigmoid)
	require.NoError(t, err)

	x, _ := tensor.FromSlice([]float64{1, 2, -1, 0.5}, 2, 2)
	y, _ := tensor.FromSlice([]float64{1, 0}, 2, 1)
	p, cache, err := layer.Forward(x)
	require.NoError(t, err)

	grad, err := nn.NewCrossEntropyLoss().Gradient(p, y)
	require.NoError(t, err)
	_, _, biasGrad, err := layer.Backward(grad, cache)
	require.NoError(t, err)

	want := ((p.At(0, 0) - 1) + (p.At(1, 0) - 0)) / 2
	assert.InDelta(t, want, biasGrad.At(0), 1e-9)
}

func TestCategoricalCrossEntropyLoss(t *testing.T) {
	loss := nn.NewCategoricalCrossEntropyLoss()
	predicted, _ := tensor.FromSlice([]float64{0.7, 0.2, 0.1, 0.1, 0.1, 0.8}, 2, 3)
	expected, _ := tensor.FromSlice([]float64{1, 0, 0, 0, 0, 1}, 2, 3)

	value, err := loss.Compute(predicted, expected)
	require.NoError(t, err)
	assert.InDelta(t, -(math.Log(0.7)+math.Log(0.8))/2, value, 1e-12)

	grad, err := loss.Gradient(predicted, expected)
	require.NoError(t, err)
	assert.InDelta(t, -1/(0.7*2), grad.At(0, 0), 1e-12)
	assert.Zero(t, grad.At(0, 1))
}

// With softmax outputs the chained gradient reduces to (p - y)/rows.
func TestCategoricalCrossEntropyLoss_SoftmaxChain(t *testing.T) {
	w, _ := tensor.FromSlice([]float64{0.5, -0.2, 0.1, 0.3, 0.4, -0.6}, 2, 3)
	b, _ := tensor.FromSlice([]float64{0, 0.1, -0.1}, 3)
	layer, err := nn.NewDenseFromParams(w, b, nn.Softmax)
	require.NoError(t, err)

	x, _ := tensor.FromSlice([]float64{1, -1}, 1, 2)
	y, _ := tensor.FromSlice([]float64{0, 1, 0}, 1, 3)
	p, cache, err := layer.Forward(x)
	require.NoError(t, err)

	grad, err := nn.NewCategoricalCrossEntropyLoss().Gradient(p, y)
	require.NoError(t, err)
	_, _, biasGrad, err := layer.Backward(grad, cache)
	require.NoError(t, err)

	for j := 0; j < 3; j++ {
		assert.InDelta(t, p.At(0, j)-y.At(0, j), biasGrad.At(j), 1e-9)
	}
}

// A sigmoid unit saturated on the wrong side keeps a usable gradient.
func TestCrossEntropyLoss_SaturatedSigmoidStillLearns(t *testing.T) {
	weight, _ := tensor.FromSlice([]float64{50}, 1, 1)
	bias, _ := tensor.FromSlice([]float64{0}, 1)
	layer, err := nn.NewDenseFromParams(weight, bias, nn.Sigmoid)
	require.NoError(t, err)
	net, err := nn.FromLayers(layer)
	require.NoError(t, err)

	x, _ := tensor.FromSlice([]float64{1}, 1, 1)
	y, _ := tensor.FromSlice([]float64{0}, 1, 1)
	out, cache, err := net.ForwardTrain(x)
	require.NoError(t, err)
	require.Equal(t, 1.0, out.At(0, 0))

	grads, err := net.BackwardLoss(nn.NewCrossEntropyLoss(), y, cache)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, grads.Layers[0].Weight.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, grads.Layers[0].Bias.At(0), 1e-12)
}

// Away from saturation the fused gradient matches the chained one.
func TestBackwardLoss_MatchesChainedGradient(t *testing.T) {
	tests := []struct {
		name     string
		loss     nn.Loss
		output   nn.Kind
		expected []float64
	}{
		{"cross_entropy", nn.NewCrossEntropyLoss(), nn.Sigmoid, []float64{1, 0, 0, 1, 1, 0}},
		{"categorical", nn.NewCategoricalCrossEntropyLoss(), nn.Softmax, []float64{0, 1, 0, 1, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net, err := nn.New(newSource(),
				nn.LayerSpec{In: 2, Out: 4, Activation: nn.Tanh},
				nn.LayerSpec{In: 4, Out: 3, Activation: tt.output},
			)
			require.NoError(t, err)
			x, _ := tensor.FromSlice([]float64{0.5, -0.2, 0.1, 0.9}, 2, 2)
			y, _ := tensor.FromSlice(tt.expected, 2, 3)

			out, cache, err := net.ForwardTrain(x)
			require.NoError(t, err)
			grad, err := tt.loss.Gradient(out, y)
			require.NoError(t, err)
			chained, err := net.Backward(grad, cache)
			require.NoError(t, err)

			_, cache, err = net.ForwardTrain(x)
			require.NoError(t, err)
			fused, err := net.BackwardLoss(tt.loss, y, cache)
			require.NoError(t, err)

			for i := range chained.Layers {
				assert.InDeltaSlice(t, chained.Layers[i].Weight.Data(), fused.Layers[i].Weight.Data(), 1e-9, "layer %d weight", i)
				assert.InDeltaSlice(t, chained.Layers[i].Bias.Data(), fused.Layers[i].Bias.Data(), 1e-9, "layer %d bias", i)
			}
		})
	}
}

// Losses fall back to their plain gradient for other output activations.
func TestBackwardLoss_UnpairedActivation(t *testing.T) {
	_, handled, err := nn.NewCrossEntropyLoss().OutputDelta(nn.Tanh, nil, nil)
	require.NoError(t, err)
	assert.False(t, handled)

	_, handled, err = nn.NewCategoricalCrossEntropyLoss().OutputDelta(nn.Sigmoid, nil, nil)
	require.NoError(t, err)
	assert.False(t, handled)

	net := newTestNetwork(t)
	x, _ := tensor.FromSlice([]float64{0.1, 0.2, 0.3}, 1, 3)
	y, _ := tensor.FromSlice([]float64{0, 1}, 1, 2)
	_, cache, err := net.ForwardTrain(x)
	require.NoError(t, err)
	_, err = net.BackwardLoss(nn.NewMSELoss(), y, cache)
	require.NoError(t, err)
	_, err = net.BackwardLoss(nn.NewMSELoss(), y, cache)
	assert.ErrorIs(t, err, nn.ErrCacheConsumed)
}
