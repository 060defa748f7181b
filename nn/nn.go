// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"io"
	"math/rand/v2"

	"github.com/born-ml/mlp/internal/nn"
	"github.com/born-ml/mlp/internal/serialization"
	"github.com/born-ml/mlp/internal/tensor"
)

// Activations

// Kind names an activation function.
type Kind = nn.Kind

// Activation kinds.
const (
	Identity = nn.Identity
	Sigmoid  = nn.Sigmoid
	Tanh     = nn.Tanh
	ReLU     = nn.ReLU
	Softmax  = nn.Softmax
)

// Activation is a stateless nonlinearity with its derivative.
type Activation = nn.Activation

// ActivationFor returns the shared activation for kind.
func ActivationFor(kind Kind) (Activation, error) {
	return nn.ActivationFor(kind)
}

// ParseActivation maps a name such as "relu" to its Kind.
func ParseActivation(name string) (Kind, error) {
	return nn.ParseActivation(name)
}

// Initializers

// Initializer fills a layer's weights at construction.
type Initializer = nn.Initializer

// ZeroInit sets every weight to zero.
type ZeroInit = nn.ZeroInit

// UniformInit draws weights from U(-Scale, Scale).
type UniformInit = nn.UniformInit

// NormalInit draws weights from N(Mean, StdDev²).
type NormalInit = nn.NormalInit

// XavierInit draws weights from the Glorot uniform range. It is the default.
type XavierInit = nn.XavierInit

// Layers

// LayerSpec declares one dense layer of a network.
type LayerSpec = nn.LayerSpec

// Dense is a fully connected layer followed by an activation.
type Dense = nn.Dense

// LayerCache holds one layer's forward values for its backward pass.
type LayerCache = nn.LayerCache

// NewDense creates a Dense layer, drawing initial weights from src.
func NewDense(spec LayerSpec, src rand.Source) (*Dense, error) {
	return nn.NewDense(spec, src)
}

// NewDenseFromParams creates a Dense layer from copies of existing
// parameters.
func NewDenseFromParams(weight, bias *tensor.Tensor, kind Kind) (*Dense, error) {
	return nn.NewDenseFromParams(weight, bias, kind)
}

// Networks

// Network is an ordered sequence of Dense layers.
type Network = nn.Network

// Cache carries forward values from ForwardTrain to Backward.
type Cache = nn.Cache

// Gradients is the per-layer gradient bundle produced by Backward.
type Gradients = nn.Gradients

// LayerGradients holds the parameter gradients of one layer.
type LayerGradients = nn.LayerGradients

// ErrCacheConsumed is returned when a Cache is passed to Backward twice.
var ErrCacheConsumed = nn.ErrCacheConsumed

// New builds a network from layer descriptions.
//
// Example:
//
//	net, err := nn.New(rand.NewPCG(1, 2),
//	    nn.LayerSpec{In: 2, Out: 8, Activation: nn.Tanh},
//	    nn.LayerSpec{In: 8, Out: 1, Activation: nn.Sigmoid},
//	)
func New(src rand.Source, specs ...LayerSpec) (*Network, error) {
	return nn.New(src, specs...)
}

// FromLayers assembles a network from existing layers.
func FromLayers(layers ...*Dense) (*Network, error) {
	return nn.FromLayers(layers...)
}

// Losses

// LossKind names a loss function.
type LossKind = nn.LossKind

// Loss kinds.
const (
	MSE                     = nn.MSE
	CrossEntropy            = nn.CrossEntropy
	CategoricalCrossEntropy = nn.CategoricalCrossEntropy
)

// Loss computes a scalar error and its gradient.
type Loss = nn.Loss

// OutputDeltaLoss is a Loss with a fused gradient for a matching output
// activation.
type OutputDeltaLoss = nn.OutputDeltaLoss

// MSELoss is mean squared error.
type MSELoss = nn.MSELoss

// CrossEntropyLoss is binary cross-entropy over sigmoid outputs.
type CrossEntropyLoss = nn.CrossEntropyLoss

// CategoricalCrossEntropyLoss is cross-entropy over softmax rows.
type CategoricalCrossEntropyLoss = nn.CategoricalCrossEntropyLoss

// LossFor returns the shared Loss for kind.
func LossFor(kind LossKind) (Loss, error) {
	return nn.LossFor(kind)
}

// ParseLoss maps a name such as "mse" to its LossKind.
func ParseLoss(name string) (LossKind, error) {
	return nn.ParseLoss(name)
}

// NewMSELoss creates an MSE loss.
func NewMSELoss() *MSELoss {
	return nn.NewMSELoss()
}

// NewCrossEntropyLoss creates a binary cross-entropy loss.
func NewCrossEntropyLoss() *CrossEntropyLoss {
	return nn.NewCrossEntropyLoss()
}

// NewCategoricalCrossEntropyLoss creates a categorical cross-entropy loss.
func NewCategoricalCrossEntropyLoss() *CategoricalCrossEntropyLoss {
	return nn.NewCategoricalCrossEntropyLoss()
}

// Persistence

// Checkpoint is a network plus optimizer state and training progress.
type Checkpoint = nn.Checkpoint

// OptimizerState is implemented by optimizers that can be checkpointed.
type OptimizerState = nn.OptimizerState

// Format errors returned by Load and LoadCheckpoint.
var (
	ErrInvalidMagic       = serialization.ErrInvalidMagic
	ErrUnsupportedVersion = serialization.ErrUnsupportedVersion
	ErrChecksumMismatch   = serialization.ErrChecksumMismatch
	ErrHeaderTooLarge     = serialization.ErrHeaderTooLarge
)

// ValidationError describes a structurally invalid model file.
type ValidationError = serialization.ValidationError

// Save writes the network's topology and parameters to w.
//
// Example:
//
//	f, _ := os.Create("xor.mlpn")
//	defer f.Close()
//	err := nn.Save(f, net, map[string]string{"task": "xor"})
func Save(w io.Writer, net *Network, metadata map[string]string) error {
	return nn.Save(w, net, metadata)
}

// Load reads a network written by Save. The restored network's Forward is
// bit-identical to the saved one's.
func Load(r io.Reader) (*Network, error) {
	return nn.Load(r)
}

// SaveFile writes the network to path.
func SaveFile(path string, net *Network, metadata map[string]string) error {
	return nn.SaveFile(path, net, metadata)
}

// LoadFile reads a network from path.
func LoadFile(path string) (*Network, error) {
	return nn.LoadFile(path)
}

// LoadCheckpoint reads a checkpoint from path and restores its optimizer
// state into optimizer.
func LoadCheckpoint(path string, optimizer OptimizerState) (*Checkpoint, error) {
	return nn.LoadCheckpoint(path, optimizer)
}

// DecodeCheckpoint reads a checkpoint from r. See LoadCheckpoint.
func DecodeCheckpoint(r io.Reader, optimizer OptimizerState) (*Checkpoint, error) {
	return nn.DecodeCheckpoint(r, optimizer)
}
