// Package trainer drives epochs of mini-batch gradient descent over a
// dataset: forward pass, loss, backward pass and optimizer step, in that
// order, for every batch.
package trainer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/born-ml/mlp/internal/nn"
	"github.com/born-ml/mlp/internal/optim"
	"github.com/born-ml/mlp/internal/parallel"
	"github.com/born-ml/mlp/internal/tensor"
)

// ErrBusy is returned by Train and Reset while a run is in progress.
var ErrBusy = errors.New("trainer is already running")

// shuffleStream is the second PCG word; the first is Config.Seed.
const shuffleStream = 0x6d6c70

// State is a position in the trainer's lifecycle:
// Idle → Running → (Converged | StoppedByLimit | Failed).
type State uint8

const (
	Idle State = iota
	Running
	Converged
	StoppedByLimit
	Failed
)

var stateNames = [...]string{
	Idle:           "idle",
	Running:        "running",
	Converged:      "converged",
	StoppedByLimit: "stopped_by_limit",
	Failed:         "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// TrainError locates a failure inside a run. Epoch and Batch are zero-based.
type TrainError struct {
	Epoch int
	Batch int
	Err   error
}

func (e *TrainError) Error() string {
	return fmt.Sprintf("epoch %d batch %d: %v", e.Epoch, e.Batch, e.Err)
}

func (e *TrainError) Unwrap() error {
	return e.Err
}

// EpochStats summarizes one completed epoch.
type EpochStats struct {
	Epoch    int           // Zero-based epoch index
	Loss     float64       // Mean per-sample loss over the epoch
	Batches  int           // Optimizer steps taken
	Duration time.Duration // Wall time of the epoch
}

// Result reports how a run ended.
type Result struct {
	Outcome         State     // Converged, StoppedByLimit or Failed
	Epochs          int       // Completed epochs
	EpochLosses     []float64 // Mean loss of every completed epoch
	FinalLoss       float64   // Mean loss of the last completed epoch
	BatchesPerEpoch int
}

// Trainer runs training loops with a fixed configuration.
//
// A Trainer is safe to share, but it runs one loop at a time: a Train call
// made while another is in progress fails with ErrBusy.
type Trainer struct {
	config Config
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// New creates an idle trainer.
func New(config Config) (*Trainer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Trainer{config: config, logger: logger}, nil
}

// Config returns the trainer's configuration.
func (t *Trainer) Config() Config {
	return t.config
}

// State returns the current state. After a run it stays at the run's
// outcome until the next Train or Reset.
func (t *Trainer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Reset returns a finished trainer to Idle.
func (t *Trainer) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Running {
		return ErrBusy
	}
	t.state = Idle
	return nil
}

func (t *Trainer) begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Running {
		return ErrBusy
	}
	t.state = Running
	return nil
}

func (t *Trainer) finish(outcome State) {
	t.mu.Lock()
	t.state = outcome
	t.mu.Unlock()
}

// Train fits net to data, minimizing loss with opt.
//
// On failure the returned Result covers the epochs completed before the
// failing one and the error is a *TrainError wrapping ErrShapeMismatch or
// ErrNonFiniteValue. Problems found before the first step (an empty
// dataset, samples that do not fit the network) are returned unwrapped.
// Nothing is retried. A panic from OnEpoch propagates and leaves the
// trainer Failed.
func (t *Trainer) Train(net *nn.Network, data Dataset, loss nn.Loss, opt optim.Optimizer) (*Result, error) {
	if err := t.begin(); err != nil {
		return nil, err
	}
	outcome := Failed
	defer func() { t.finish(outcome) }()

	result, err := t.run(net, data, loss, opt)
	if err != nil {
		result.Outcome = Failed
		t.logger.Error("training failed", "epoch", result.Epochs, "error", err)
	} else {
		t.logger.Info("training finished",
			"outcome", result.Outcome.String(),
			"epochs", result.Epochs,
			"loss", result.FinalLoss)
	}
	outcome = result.Outcome
	return result, err
}

func (t *Trainer) run(net *nn.Network, data Dataset, loss nn.Loss, opt optim.Optimizer) (*Result, error) {
	result := &Result{Outcome: StoppedByLimit}
	if net == nil || loss == nil || opt == nil {
		return result, fmt.Errorf("%w: network, loss and optimizer are required", tensor.ErrInvalidConfiguration)
	}

	inputs, expected, err := data.rows(net.InputSize(), net.OutputSize())
	if err != nil {
		return result, err
	}

	n := len(inputs)
	batches := Batches(n, t.config.BatchSize)
	result.BatchesPerEpoch = len(batches)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewPCG(t.config.Seed, shuffleStream)) //nolint:gosec // G404: reproducible shuffling, not security

	for epoch := range t.config.Epochs {
		start := time.Now()
		if t.config.Shuffle {
			rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		total := 0.0
		for b, batch := range batches {
			batchLoss, err := t.step(net, loss, opt, inputs, expected, order[batch.Start:batch.End])
			if err != nil {
				return result, &TrainError{Epoch: epoch, Batch: b, Err: err}
			}
			total += batchLoss * float64(batch.Size())
		}

		stats := EpochStats{
			Epoch:    epoch,
			Loss:     total / float64(n),
			Batches:  len(batches),
			Duration: time.Since(start),
		}
		result.Epochs = epoch + 1
		result.EpochLosses = append(result.EpochLosses, stats.Loss)
		result.FinalLoss = stats.Loss

		t.logger.Debug("epoch complete",
			"epoch", stats.Epoch,
			"loss", stats.Loss,
			"batches", stats.Batches,
			"duration", stats.Duration)
		if t.config.OnEpoch != nil {
			t.config.OnEpoch(stats)
		}

		if t.config.Stop == LossBelow && stats.Loss < t.config.Threshold {
			result.Outcome = Converged
			break
		}
	}
	return result, nil
}

// step trains on the samples at idx and returns the batch's mean loss.
func (t *Trainer) step(net *nn.Network, loss nn.Loss, opt optim.Optimizer, inputs, expected []*tensor.Tensor, idx []int) (float64, error) {
	var (
		batchLoss float64
		grads     *nn.Gradients
		err       error
	)
	if t.config.Workers > 1 {
		batchLoss, grads, err = sampleGradients(net, loss, inputs, expected, idx, parallel.Workers(t.config.Workers))
	} else {
		batchLoss, grads, err = batchGradients(net, loss, inputs, expected, idx)
	}
	if err != nil {
		return 0, err
	}

	if math.IsNaN(batchLoss) || math.IsInf(batchLoss, 0) {
		return 0, fmt.Errorf("%w: loss is %v", tensor.ErrNonFiniteValue, batchLoss)
	}
	if err := grads.CheckFinite(); err != nil {
		return 0, err
	}
	if err := opt.Apply(net, grads); err != nil {
		return 0, fmt.Errorf("optimizer: %w", err)
	}
	if err := net.CheckFinite(); err != nil {
		return 0, fmt.Errorf("after update: %w", err)
	}
	return batchLoss, nil
}

// batchGradients runs the whole batch through the network as one matrix.
func batchGradients(net *nn.Network, loss nn.Loss, inputs, expected []*tensor.Tensor, idx []int) (float64, *nn.Gradients, error) {
	x, err := tensor.StackRows(pick(inputs, idx)...)
	if err != nil {
		return 0, nil, err
	}
	y, err := tensor.StackRows(pick(expected, idx)...)
	if err != nil {
		return 0, nil, err
	}
	return gradients(net, loss, x, y)
}

// sampleGradients computes every sample on its own, spread across workers,
// then sums the per-sample gradients in sample order and divides by the
// batch size. The summation order never depends on scheduling, so the
// result is the same for any worker count.
func sampleGradients(net *nn.Network, loss nn.Loss, inputs, expected []*tensor.Tensor, idx []int, cfg parallel.Config) (float64, *nn.Gradients, error) {
	losses := make([]float64, len(idx))
	slots := make([]*nn.Gradients, len(idx))

	err := parallel.ForErr(len(idx), func(i int) error {
		l, g, err := gradients(net, loss, inputs[idx[i]], expected[idx[i]])
		if err != nil {
			return fmt.Errorf("sample %d: %w", idx[i], err)
		}
		losses[i], slots[i] = l, g
		return nil
	}, cfg)
	if err != nil {
		return 0, nil, err
	}

	total := slots[0]
	sum := losses[0]
	for i := 1; i < len(slots); i++ {
		if err := total.Accumulate(slots[i]); err != nil {
			return 0, nil, err
		}
		sum += losses[i]
	}
	scale := 1 / float64(len(idx))
	total.Scale(scale)
	return sum * scale, total, nil
}

func gradients(net *nn.Network, loss nn.Loss, x, y *tensor.Tensor) (float64, *nn.Gradients, error) {
	out, cache, err := net.ForwardTrain(x)
	if err != nil {
		return 0, nil, err
	}
	value, err := loss.Compute(out, y)
	if err != nil {
		return 0, nil, err
	}
	grads, err := net.BackwardLoss(loss, y, cache)
	if err != nil {
		return 0, nil, err
	}
	return value, grads, nil
}

func pick(rows []*tensor.Tensor, idx []int) []*tensor.Tensor {
	out := make([]*tensor.Tensor, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}
