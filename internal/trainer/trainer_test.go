package trainer_test

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mlp/internal/nn"
	"github.com/born-ml/mlp/internal/optim"
	"github.com/born-ml/mlp/internal/tensor"
	"github.com/born-ml/mlp/internal/trainer"
)

// separable labels points by the sign of their first coordinate.
func separable(t *testing.T) trainer.Dataset {
	t.Helper()
	data, err := trainer.NewDataset(
		[][]float64{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}},
		[][]float64{{0}, {0}, {1}, {1}},
	)
	require.NoError(t, err)
	return data
}

func xorData(t *testing.T) trainer.Dataset {
	t.Helper()
	data, err := trainer.NewDataset(
		[][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {0.5, 0.5}, {0.2, 0.9}, {0.9, 0.1}},
		[][]float64{{0}, {1}, {1}, {0}, {0}, {1}, {1}},
	)
	require.NoError(t, err)
	return data
}

func newNet(t *testing.T, specs ...nn.LayerSpec) *nn.Network {
	t.Helper()
	net, err := nn.New(rand.NewPCG(7, 11), specs...)
	require.NoError(t, err)
	return net
}

func newSGD(t *testing.T, lr, momentum float64) *optim.SGD {
	t.Helper()
	opt, err := optim.NewSGD(optim.SGDConfig{LR: lr, Momentum: momentum})
	require.NoError(t, err)
	return opt
}

func newTrainer(t *testing.T, cfg trainer.Config) *trainer.Trainer {
	t.Helper()
	tr, err := trainer.New(cfg)
	require.NoError(t, err)
	return tr
}

func TestBatches(t *testing.T) {
	tests := []struct {
		n, size  int
		count    int
		lastSize int
	}{
		{n: 10, size: 3, count: 4, lastSize: 1},
		{n: 9, size: 3, count: 3, lastSize: 3},
		{n: 2, size: 5, count: 1, lastSize: 2},
		{n: 1, size: 1, count: 1, lastSize: 1},
	}
	for _, tt := range tests {
		batches := trainer.Batches(tt.n, tt.size)
		require.Len(t, batches, tt.count, "n=%d size=%d", tt.n, tt.size)
		assert.Equal(t, tt.lastSize, batches[len(batches)-1].Size())

		covered := 0
		for i, b := range batches {
			assert.Equal(t, covered, b.Start, "batch %d", i)
			covered = b.End
		}
		assert.Equal(t, tt.n, covered)
	}
	assert.Empty(t, trainer.Batches(0, 4))
}

func TestTrain_SeparableConverges(t *testing.T) {
	net := newNet(t, nn.LayerSpec{In: 2, Out: 1, Activation: nn.Sigmoid})
	tr := newTrainer(t, trainer.Config{
		Epochs:    100,
		BatchSize: 2,
		Shuffle:   true,
		Seed:      3,
		Stop:      trainer.FixedEpochs,
	})

	result, err := tr.Train(net, separable(t), nn.NewCrossEntropyLoss(), newSGD(t, 0.5, 0))
	require.NoError(t, err)

	assert.Equal(t, trainer.StoppedByLimit, result.Outcome)
	assert.Equal(t, trainer.StoppedByLimit, tr.State())
	assert.Equal(t, 100, result.Epochs)
	assert.Equal(t, 2, result.BatchesPerEpoch)
	require.Len(t, result.EpochLosses, 100)
	assert.Less(t, result.FinalLoss, 0.1)

	// Decreasing on average.
	first, second := 0.0, 0.0
	for i, l := range result.EpochLosses {
		if i < 50 {
			first += l
		} else {
			second += l
		}
	}
	assert.Less(t, second, first)
	assert.Less(t, result.EpochLosses[99], result.EpochLosses[0])
}

func TestTrain_LossBelowConverges(t *testing.T) {
	net := newNet(t, nn.LayerSpec{In: 2, Out: 1, Activation: nn.Sigmoid})
	var seen []trainer.EpochStats
	tr := newTrainer(t, trainer.Config{
		Epochs:    1000,
		BatchSize: 4,
		Stop:      trainer.LossBelow,
		Threshold: 0.2,
		OnEpoch:   func(s trainer.EpochStats) { seen = append(seen, s) },
	})

	result, err := tr.Train(net, separable(t), nn.NewCrossEntropyLoss(), newSGD(t, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, trainer.Converged, result.Outcome)
	assert.Less(t, result.Epochs, 1000)
	assert.Less(t, result.FinalLoss, 0.2)
	require.Len(t, seen, result.Epochs)
	assert.Equal(t, result.Epochs-1, seen[len(seen)-1].Epoch)
	assert.Equal(t, 1, seen[0].Batches)

	require.NoError(t, tr.Reset())
	assert.Equal(t, trainer.Idle, tr.State())
}

func TestTrain_ParallelIsDeterministic(t *testing.T) {
	specs := []nn.LayerSpec{
		{In: 2, Out: 6, Activation: nn.Tanh},
		{In: 6, Out: 1, Activation: nn.Sigmoid},
	}
	train := func(workers int) *nn.Network {
		net := newNet(t, specs...)
		tr := newTrainer(t, trainer.Config{
			Epochs:    20,
			BatchSize: 3,
			Shuffle:   true,
			Seed:      99,
			Workers:   workers,
		})
		_, err := tr.Train(net, xorData(t), nn.NewMSELoss(), newSGD(t, 0.1, 0.5))
		require.NoError(t, err)
		return net
	}

	two, eight := train(2), train(8)
	for i := range two.NumLayers() {
		assert.True(t, two.Layer(i).Weight().BitEqual(eight.Layer(i).Weight()), "layer %d weight", i)
		assert.True(t, two.Layer(i).Bias().BitEqual(eight.Layer(i).Bias()), "layer %d bias", i)
	}

	// The matrix path sums in a different order but computes the same step.
	batched := train(0)
	for i := range two.NumLayers() {
		assert.InDeltaSlice(t, batched.Layer(i).Weight().Data(), two.Layer(i).Weight().Data(), 1e-9)
		assert.InDeltaSlice(t, batched.Layer(i).Bias().Data(), two.Layer(i).Bias().Data(), 1e-9)
	}
}

func TestTrain_NonFiniteFails(t *testing.T) {
	data, err := trainer.NewDataset(
		[][]float64{{0, 1}, {1, 0}, {math.NaN(), 1}, {1, 1}},
		[][]float64{{1}, {1}, {0}, {0}},
	)
	require.NoError(t, err)

	net := newNet(t, nn.LayerSpec{In: 2, Out: 1, Activation: nn.Sigmoid})
	tr := newTrainer(t, trainer.Config{Epochs: 5, BatchSize: 2})

	result, err := tr.Train(net, data, nn.NewMSELoss(), newSGD(t, 0.1, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, tensor.ErrNonFiniteValue)

	var trainErr *trainer.TrainError
	require.ErrorAs(t, err, &trainErr)
	assert.Equal(t, 0, trainErr.Epoch)
	assert.Equal(t, 1, trainErr.Batch)

	assert.Equal(t, trainer.Failed, result.Outcome)
	assert.Equal(t, 0, result.Epochs)
	assert.Equal(t, trainer.Failed, tr.State())

	// The failed batch never reached the optimizer.
	require.NoError(t, net.CheckFinite())
}

func TestTrain_DivergenceFails(t *testing.T) {
	net := newNet(t, nn.LayerSpec{In: 2, Out: 1, Activation: nn.Identity})
	data, err := trainer.NewDataset([][]float64{{1e3, -1e3}, {2e3, 1e3}}, [][]float64{{1}, {-1}})
	require.NoError(t, err)
	tr := newTrainer(t, trainer.Config{Epochs: 200, BatchSize: 2})

	_, err = tr.Train(net, data, nn.NewMSELoss(), newSGD(t, 10, 0))
	assert.ErrorIs(t, err, tensor.ErrNonFiniteValue)
	assert.Equal(t, trainer.Failed, tr.State())
}

func TestTrain_ShapeMismatch(t *testing.T) {
	net := newNet(t, nn.LayerSpec{In: 3, Out: 1, Activation: nn.Sigmoid})
	tr := newTrainer(t, trainer.Config{Epochs: 1, BatchSize: 2})

	result, err := tr.Train(net, separable(t), nn.NewMSELoss(), newSGD(t, 0.1, 0))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
	assert.Equal(t, trainer.Failed, result.Outcome)

	_, err = tr.Train(net, nil, nn.NewMSELoss(), newSGD(t, 0.1, 0))
	assert.ErrorIs(t, err, tensor.ErrInvalidConfiguration)
}

func TestTrain_BusyWhileRunning(t *testing.T) {
	net := newNet(t, nn.LayerSpec{In: 2, Out: 1, Activation: nn.Sigmoid})
	var (
		tr       *trainer.Trainer
		innerErr error
		during   trainer.State
	)
	tr = newTrainer(t, trainer.Config{
		Epochs:    1,
		BatchSize: 4,
		OnEpoch: func(trainer.EpochStats) {
			during = tr.State()
			_, innerErr = tr.Train(net, separable(t), nn.NewMSELoss(), newSGD(t, 0.1, 0))
		},
	})

	_, err := tr.Train(net, separable(t), nn.NewMSELoss(), newSGD(t, 0.1, 0))
	require.NoError(t, err)
	assert.Equal(t, trainer.Running, during)
	assert.ErrorIs(t, innerErr, trainer.ErrBusy)
}

func TestTrain_PanickingCallbackReleasesTrainer(t *testing.T) {
	net := newNet(t, nn.LayerSpec{In: 2, Out: 1, Activation: nn.Sigmoid})
	calls := 0
	tr := newTrainer(t, trainer.Config{
		Epochs:    2,
		BatchSize: 4,
		OnEpoch: func(trainer.EpochStats) {
			calls++
			if calls == 1 {
				panic("callback failed")
			}
		},
	})

	assert.PanicsWithValue(t, "callback failed", func() {
		_, _ = tr.Train(net, separable(t), nn.NewMSELoss(), newSGD(t, 0.1, 0))
	})
	assert.Equal(t, trainer.Failed, tr.State())

	require.NoError(t, tr.Reset())
	result, err := tr.Train(net, separable(t), nn.NewMSELoss(), newSGD(t, 0.1, 0))
	require.NoError(t, err)
	assert.Equal(t, trainer.StoppedByLimit, result.Outcome)
}

func TestTrain_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	net := newNet(t, nn.LayerSpec{In: 2, Out: 1, Activation: nn.Sigmoid})
	tr := newTrainer(t, trainer.Config{Epochs: 2, BatchSize: 4, Logger: logger})
	_, err := tr.Train(net, separable(t), nn.NewCrossEntropyLoss(), newSGD(t, 0.1, 0))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"epoch complete"`)
	assert.Contains(t, out, `"msg":"training finished"`)
	assert.Contains(t, out, `"outcome":"stopped_by_limit"`)
}

func TestNewDataset(t *testing.T) {
	_, err := trainer.NewDataset([][]float64{{1}}, nil)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	data, err := trainer.NewDataset([][]float64{{1, 2}}, [][]float64{{3}})
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.Equal(t, tensor.Shape{1, 2}, data[0].Input.Shape())
}

func TestTrain_AcceptsVectorSamples(t *testing.T) {
	x, err := tensor.FromSlice([]float64{1, -1}, 2)
	require.NoError(t, err)
	y, err := tensor.FromSlice([]float64{1}, 1)
	require.NoError(t, err)

	net := newNet(t, nn.LayerSpec{In: 2, Out: 1, Activation: nn.Sigmoid})
	tr := newTrainer(t, trainer.Config{Epochs: 3, BatchSize: 1})
	result, err := tr.Train(net, trainer.Dataset{{Input: x, Expected: y}}, nn.NewMSELoss(), newSGD(t, 0.5, 0))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Epochs)
}
