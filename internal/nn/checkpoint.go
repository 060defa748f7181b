package nn

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/born-ml/mlp/internal/serialization"
	"github.com/born-ml/mlp/internal/tensor"
)

const optimizerPrefix = "optimizer."

// OptimizerState represents an optimizer that can save/load its state.
//
// This interface is used by checkpoints to serialize optimizer state
// without creating import cycles. Optimizers from the optim package
// implement this interface.
type OptimizerState interface {
	// Name identifies the optimizer type, e.g. "sgd".
	Name() string

	// Hyperparameters returns the optimizer's configuration values.
	Hyperparameters() map[string]float64

	// StateDict returns the optimizer state for serialization.
	StateDict() map[string]*tensor.Tensor

	// LoadStateDict loads optimizer state from serialization.
	LoadStateDict(stateDict map[string]*tensor.Tensor) error
}

// Checkpoint represents a complete training state snapshot.
//
// A checkpoint includes:
//   - Network topology and parameters
//   - Optimizer state (momentum buffers, Adam moments)
//   - Training metadata (epoch, loss)
//
// Example:
//
//	checkpoint := &nn.Checkpoint{
//	    Network:   net,
//	    Optimizer: optimizer,
//	    Epoch:     10,
//	    Loss:      0.123,
//	}
//	err := checkpoint.Save("epoch_10.mlpn")
//
// To resume training:
//
//	checkpoint, err := nn.LoadCheckpoint("epoch_10.mlpn", optimizer)
//	net := checkpoint.Network
type Checkpoint struct {
	Network   *Network          // The network, topology and parameters
	Optimizer OptimizerState    // The optimizer with its state
	Epoch     int               // Training epoch number
	Loss      float64           // Loss value at this checkpoint
	Metadata  map[string]string // Additional metadata
	CreatedAt time.Time         // When the checkpoint was created
}

func (c *Checkpoint) file() *serialization.File {
	tensors := c.Network.StateDict()

	state := c.Optimizer.StateDict()
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	// Map iteration order is random; keep files reproducible.
	slices.Sort(names)
	for _, name := range names {
		tensors = append(tensors, serialization.NamedTensor{Name: optimizerPrefix + name, Tensor: state[name]})
	}

	return &serialization.File{
		Layers:    c.Network.layerMeta(),
		Tensors:   tensors,
		Metadata:  c.Metadata,
		CreatedAt: c.CreatedAt,
		Checkpoint: &serialization.CheckpointMeta{
			Epoch:           c.Epoch,
			Loss:            c.Loss,
			OptimizerType:   c.Optimizer.Name(),
			OptimizerConfig: c.Optimizer.Hyperparameters(),
		},
	}
}

// Encode writes the checkpoint to w.
func (c *Checkpoint) Encode(w io.Writer) error {
	if c.Network == nil || c.Optimizer == nil {
		return fmt.Errorf("%w: checkpoint needs a network and an optimizer", tensor.ErrInvalidConfiguration)
	}
	return serialization.Encode(w, c.file())
}

// Save writes the checkpoint to path.
func (c *Checkpoint) Save(path string) error {
	if c.Network == nil || c.Optimizer == nil {
		return fmt.Errorf("%w: checkpoint needs a network and an optimizer", tensor.ErrInvalidConfiguration)
	}
	if err := serialization.WriteFile(path, c.file()); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// DecodeCheckpoint reads a checkpoint from r, restoring optimizer state into
// optimizer, which must be of the type that was saved.
func DecodeCheckpoint(r io.Reader, optimizer OptimizerState) (*Checkpoint, error) {
	f, err := serialization.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return checkpointFromFile(f, optimizer)
}

// LoadCheckpoint loads a checkpoint from path. See DecodeCheckpoint.
func LoadCheckpoint(path string, optimizer OptimizerState) (*Checkpoint, error) {
	f, err := serialization.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return checkpointFromFile(f, optimizer)
}

func checkpointFromFile(f *serialization.File, optimizer OptimizerState) (*Checkpoint, error) {
	if optimizer == nil {
		return nil, fmt.Errorf("%w: checkpoint needs an optimizer to restore into", tensor.ErrInvalidConfiguration)
	}
	if f.Checkpoint == nil {
		return nil, fmt.Errorf("%w: file is not a checkpoint", tensor.ErrInvalidConfiguration)
	}
	if f.Checkpoint.OptimizerType != optimizer.Name() {
		return nil, fmt.Errorf("%w: checkpoint holds %s state, optimizer is %s",
			tensor.ErrInvalidConfiguration, f.Checkpoint.OptimizerType, optimizer.Name())
	}

	net, err := networkFromFile(f)
	if err != nil {
		return nil, err
	}

	state := make(map[string]*tensor.Tensor)
	for _, nt := range f.Tensors {
		if name, ok := strings.CutPrefix(nt.Name, optimizerPrefix); ok {
			state[name] = nt.Tensor
		}
	}
	if err := optimizer.LoadStateDict(state); err != nil {
		return nil, fmt.Errorf("failed to load optimizer state: %w", err)
	}

	return &Checkpoint{
		Network:   net,
		Optimizer: optimizer,
		Epoch:     f.Checkpoint.Epoch,
		Loss:      f.Checkpoint.Loss,
		Metadata:  f.Metadata,
		CreatedAt: f.CreatedAt,
	}, nil
}
