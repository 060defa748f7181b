package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mlp/internal/nn"
	"github.com/born-ml/mlp/internal/tensor"
)

func newTestNetwork(t *testing.T) *nn.Network {
	t.Helper()
	net, err := nn.New(newSource(),
		nn.LayerSpec{In: 3, Out: 4, Activation: nn.Tanh},
		nn.LayerSpec{In: 4, Out: 2, Activation: nn.Sigmoid},
	)
	require.NoError(t, err)
	return net
}

// TestNetwork_Creation tests network assembly from layer specs.
func TestNetwork_Creation(t *testing.T) {
	net := newTestNetwork(t)

	assert.Equal(t, 2, net.NumLayers())
	assert.Equal(t, 3, net.InputSize())
	assert.Equal(t, 2, net.OutputSize())
	assert.Equal(t, []nn.LayerSpec{
		{In: 3, Out: 4, Activation: nn.Tanh},
		{In: 4, Out: 2, Activation: nn.Sigmoid},
	}, net.Specs())
	assert.Len(t, net.Layers(), 2)
	assert.Same(t, net.Layer(1), net.Layers()[1])
}

func TestNetwork_ChainMismatch(t *testing.T) {
	_, err := nn.New(newSource(),
		nn.LayerSpec{In: 2, Out: 3},
		nn.LayerSpec{In: 4, Out: 1},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
	assert.Contains(t, err.Error(), "layer 0 -> 1")

	a, _ := nn.NewDense(nn.LayerSpec{In: 2, Out: 3}, newSource())
	b, _ := nn.NewDense(nn.LayerSpec{In: 2, Out: 1}, newSource())
	_, err = nn.FromLayers(a, b)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestNetwork_InvalidConfiguration(t *testing.T) {
	_, err := nn.New(newSource())
	assert.ErrorIs(t, err, tensor.ErrInvalidConfiguration)

	_, err = nn.FromLayers()
	assert.ErrorIs(t, err, tensor.ErrInvalidConfiguration)

	_, err = nn.New(newSource(), nn.LayerSpec{In: 2, Out: 0})
	assert.ErrorIs(t, err, tensor.ErrInvalidConfiguration)
}

func TestNetwork_NilSource(t *testing.T) {
	net, err := nn.New(nil, nn.LayerSpec{In: 2, Out: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, net.OutputSize())
}

func TestNetwork_Forward(t *testing.T) {
	net := newTestNetwork(t)
	x, _ := tensor.FromSlice([]float64{0.1, -0.2, 0.3, 1, 2, 3}, 2, 3)

	out, err := net.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	for _, v := range out.Data() {
		assert.Greater(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}

	// ForwardTrain returns the same output as Forward.
	trained, cache, err := net.ForwardTrain(x)
	require.NoError(t, err)
	assert.True(t, out.BitEqual(trained))
	assert.Equal(t, 2, cache.Len())

	predicted, err := net.Predict(x)
	require.NoError(t, err)
	assert.True(t, out.BitEqual(predicted))
}

// Rows of a batch are independent: batched forward equals per-row forward.
func TestNetwork_BatchRowsIndependent(t *testing.T) {
	net := newTestNetwork(t)
	x, _ := tensor.FromSlice([]float64{0.1, -0.2, 0.3, 1, 2, 3, -4, 0, 0.5}, 3, 3)

	batched, err := net.Forward(x)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		single, err := net.Forward(x.Row(i))
		require.NoError(t, err)
		assert.InDeltaSlice(t, batched.Row(i).Data(), single.Data(), 1e-12, "row %d", i)
	}
}

func TestNetwork_ForwardShapeMismatch(t *testing.T) {
	net := newTestNetwork(t)
	_, err := net.Forward(tensor.Zeros(1, 5))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
	assert.Contains(t, err.Error(), "layer 0")
}

func TestNetwork_Backward(t *testing.T) {
	net := newTestNetwork(t)
	x, _ := tensor.FromSlice([]float64{0.1, -0.2, 0.3}, 1, 3)

	_, cache, err := net.ForwardTrain(x)
	require.NoError(t, err)

	grads, err := net.Backward(tensor.Ones(1, 2), cache)
	require.NoError(t, err)
	require.Equal(t, 2, grads.Len())
	assert.Equal(t, tensor.Shape{3, 4}, grads.Layers[0].Weight.Shape())
	assert.Equal(t, tensor.Shape{4}, grads.Layers[0].Bias.Shape())
	assert.Equal(t, tensor.Shape{4, 2}, grads.Layers[1].Weight.Shape())
	assert.Equal(t, tensor.Shape{2}, grads.Layers[1].Bias.Shape())
	require.NoError(t, grads.CheckFinite())
}

func TestNetwork_BackwardCacheReuse(t *testing.T) {
	net := newTestNetwork(t)
	_, cache, err := net.ForwardTrain(tensor.Zeros(1, 3))
	require.NoError(t, err)

	_, err = net.Backward(tensor.Ones(1, 2), cache)
	require.NoError(t, err)

	_, err = net.Backward(tensor.Ones(1, 2), cache)
	assert.ErrorIs(t, err, nn.ErrCacheConsumed)
}

func TestNetwork_BackwardCacheLengthMismatch(t *testing.T) {
	short, err := nn.New(newSource(), nn.LayerSpec{In: 3, Out: 2})
	require.NoError(t, err)
	_, cache, err := short.ForwardTrain(tensor.Zeros(1, 3))
	require.NoError(t, err)

	net := newTestNetwork(t)
	_, err = net.Backward(tensor.Ones(1, 2), cache)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = net.Backward(tensor.Ones(1, 2), nil)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestNetwork_BackwardGradShapeMismatch(t *testing.T) {
	net := newTestNetwork(t)
	_, cache, err := net.ForwardTrain(tensor.Zeros(2, 3))
	require.NoError(t, err)

	_, err = net.Backward(tensor.Ones(2, 3), cache)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestNetwork_Clone(t *testing.T) {
	net := newTestNetwork(t)
	clone := net.Clone()

	clone.Layer(0).Weight().Data()[0] += 1
	assert.NotEqual(t, clone.Layer(0).Weight().At(0, 0), net.Layer(0).Weight().At(0, 0))
	assert.True(t, clone.Layer(1).Weight().BitEqual(net.Layer(1).Weight()))
}

func TestNetwork_CheckFinite(t *testing.T) {
	net := newTestNetwork(t)
	require.NoError(t, net.CheckFinite())

	net.Layer(1).Bias().Data()[0] = nanValue()
	err := net.CheckFinite()
	assert.ErrorIs(t, err, tensor.ErrNonFiniteValue)
	assert.Contains(t, err.Error(), "layer 1 bias")
}

func TestGradients_AccumulateAndScale(t *testing.T) {
	net := newTestNetwork(t)
	x, _ := tensor.FromSlice([]float64{0.4, 0.5, 0.6}, 1, 3)

	_, c1, _ := net.ForwardTrain(x)
	g1, err := net.Backward(tensor.Ones(1, 2), c1)
	require.NoError(t, err)
	_, c2, _ := net.ForwardTrain(x)
	g2, err := net.Backward(tensor.Ones(1, 2), c2)
	require.NoError(t, err)

	want := g1.Layers[0].Weight.Clone()
	require.NoError(t, g1.Accumulate(g2))
	g1.Scale(0.5)
	assert.InDeltaSlice(t, want.Data(), g1.Layers[0].Weight.Data(), 1e-15)

	err = g1.Accumulate(&nn.Gradients{})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}
