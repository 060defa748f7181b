// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package trainer runs mini-batch training loops over a dataset.
//
// Example:
//
//	data, _ := trainer.NewDataset(
//	    [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
//	    [][]float64{{0}, {1}, {1}, {0}},
//	)
//	tr, _ := trainer.New(trainer.Config{
//	    Epochs:    2000,
//	    BatchSize: 4,
//	    Stop:      trainer.LossBelow,
//	    Threshold: 0.01,
//	})
//	result, err := tr.Train(net, data, nn.NewCrossEntropyLoss(), optimizer)
//
// Configurations can also be read from YAML with LoadConfig.
package trainer

import (
	"io"

	"github.com/born-ml/mlp/internal/trainer"
)

// Trainer runs one training loop at a time.
type Trainer = trainer.Trainer

// Config holds the knobs of a training run.
type Config = trainer.Config

// FileConfig is the YAML document describing a complete run.
type FileConfig = trainer.FileConfig

// OptimizerConfig selects and configures an optimizer.
type OptimizerConfig = trainer.OptimizerConfig

// StopPolicy decides when a run ends before its epoch limit.
type StopPolicy = trainer.StopPolicy

// Stop policies.
const (
	FixedEpochs = trainer.FixedEpochs
	LossBelow   = trainer.LossBelow
)

// State is a position in the trainer's lifecycle.
type State = trainer.State

// Trainer states.
const (
	Idle           = trainer.Idle
	Running        = trainer.Running
	Converged      = trainer.Converged
	StoppedByLimit = trainer.StoppedByLimit
	Failed         = trainer.Failed
)

// Sample is one labeled training example.
type Sample = trainer.Sample

// Dataset is an ordered collection of samples.
type Dataset = trainer.Dataset

// Batch is a half-open range of sample positions.
type Batch = trainer.Batch

// Result reports how a run ended.
type Result = trainer.Result

// EpochStats summarizes one completed epoch.
type EpochStats = trainer.EpochStats

// TrainError locates a failure by epoch and batch.
type TrainError = trainer.TrainError

// ErrBusy is returned by Train while another run is in progress.
var ErrBusy = trainer.ErrBusy

// New creates an idle trainer.
func New(config Config) (*Trainer, error) {
	return trainer.New(config)
}

// DefaultConfig returns a 100-epoch fixed configuration with batches of 32.
func DefaultConfig() Config {
	return trainer.DefaultConfig()
}

// NewDataset pairs input rows with expected rows.
func NewDataset(inputs, expected [][]float64) (Dataset, error) {
	return trainer.NewDataset(inputs, expected)
}

// Batches partitions n samples into ceil(n/size) batches.
func Batches(n, size int) []Batch {
	return trainer.Batches(n, size)
}

// ParseStopPolicy maps "fixed_epochs" or "loss_below" to its policy.
func ParseStopPolicy(name string) (StopPolicy, error) {
	return trainer.ParseStopPolicy(name)
}

// ParseConfig decodes a YAML FileConfig from r.
func ParseConfig(r io.Reader) (*FileConfig, error) {
	return trainer.ParseConfig(r)
}

// LoadConfig reads a YAML FileConfig from path.
func LoadConfig(path string) (*FileConfig, error) {
	return trainer.LoadConfig(path)
}
