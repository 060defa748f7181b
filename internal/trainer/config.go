package trainer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/mlp/internal/nn"
	"github.com/born-ml/mlp/internal/optim"
	"github.com/born-ml/mlp/internal/tensor"
)

// StopPolicy decides when a training run ends before its epoch limit.
type StopPolicy uint8

const (
	// FixedEpochs always runs Config.Epochs epochs.
	FixedEpochs StopPolicy = iota
	// LossBelow stops as soon as an epoch's mean loss drops below
	// Config.Threshold.
	LossBelow
)

func (p StopPolicy) String() string {
	switch p {
	case FixedEpochs:
		return "fixed_epochs"
	case LossBelow:
		return "loss_below"
	default:
		return fmt.Sprintf("StopPolicy(%d)", uint8(p))
	}
}

// ParseStopPolicy maps "fixed_epochs" or "loss_below" to its policy.
func ParseStopPolicy(name string) (StopPolicy, error) {
	switch name {
	case "fixed_epochs", "":
		return FixedEpochs, nil
	case "loss_below":
		return LossBelow, nil
	default:
		return 0, fmt.Errorf("%w: unknown stop policy %q", tensor.ErrInvalidConfiguration, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p StopPolicy) MarshalText() ([]byte, error) {
	if p > LossBelow {
		return nil, fmt.Errorf("%w: unknown stop policy %d", tensor.ErrInvalidConfiguration, uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *StopPolicy) UnmarshalText(text []byte) error {
	policy, err := ParseStopPolicy(string(text))
	if err != nil {
		return err
	}
	*p = policy
	return nil
}

// Config holds the knobs of a training run.
type Config struct {
	Epochs    int        `yaml:"epochs"`     // Epoch limit (default: 100)
	BatchSize int        `yaml:"batch_size"` // Samples per optimizer step (default: 32)
	Shuffle   bool       `yaml:"shuffle"`    // Reorder samples every epoch
	Seed      uint64     `yaml:"seed"`       // Shuffle seed
	Stop      StopPolicy `yaml:"stop"`       // fixed_epochs or loss_below
	Threshold float64    `yaml:"threshold"`  // Loss threshold for loss_below

	// Workers > 1 computes each sample of a batch on its own goroutine and
	// reduces the per-sample gradients in sample order. 0 or 1 runs the
	// whole batch as one matrix pass.
	Workers int `yaml:"workers"`

	Logger  *slog.Logger     `yaml:"-"` // nil discards all records
	OnEpoch func(EpochStats) `yaml:"-"` // Called after every epoch
}

// DefaultConfig returns a fixed-epoch configuration of 100 epochs with
// batches of 32.
func DefaultConfig() Config {
	return Config{
		Epochs:    100,
		BatchSize: 32,
		Stop:      FixedEpochs,
	}
}

// Validate verifies the config is runnable.
func (c Config) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("%w: epochs must be > 0 (got %d)", tensor.ErrInvalidConfiguration, c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be > 0 (got %d)", tensor.ErrInvalidConfiguration, c.BatchSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0 (got %d)", tensor.ErrInvalidConfiguration, c.Workers)
	}
	switch c.Stop {
	case FixedEpochs:
	case LossBelow:
		if !(c.Threshold > 0) {
			return fmt.Errorf("%w: loss_below needs a positive threshold (got %v)",
				tensor.ErrInvalidConfiguration, c.Threshold)
		}
	default:
		return fmt.Errorf("%w: unknown stop policy %d", tensor.ErrInvalidConfiguration, uint8(c.Stop))
	}
	return nil
}

// OptimizerConfig selects and configures an optimizer.
type OptimizerConfig struct {
	Type string           `yaml:"type"` // "sgd" or "adam"
	SGD  optim.SGDConfig  `yaml:"sgd"`
	Adam optim.AdamConfig `yaml:"adam"`
}

// Build constructs the configured optimizer.
func (c OptimizerConfig) Build() (optim.Optimizer, error) {
	switch c.Type {
	case "sgd", "":
		sgd, err := optim.NewSGD(c.SGD)
		if err != nil {
			return nil, err
		}
		return sgd, nil
	case "adam":
		adam, err := optim.NewAdam(c.Adam)
		if err != nil {
			return nil, err
		}
		return adam, nil
	default:
		return nil, fmt.Errorf("%w: unknown optimizer %q", tensor.ErrInvalidConfiguration, c.Type)
	}
}

// FileConfig is the YAML document describing a complete run.
//
//	trainer:
//	  epochs: 500
//	  batch_size: 4
//	  stop: loss_below
//	  threshold: 0.01
//	loss: cross_entropy
//	optimizer:
//	  type: sgd
//	  sgd:
//	    lr: 0.5
//	    momentum: 0.9
type FileConfig struct {
	Trainer   Config          `yaml:"trainer"`
	Loss      nn.LossKind     `yaml:"loss"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
}

// ParseConfig decodes a FileConfig from r. Fields absent from the document
// keep their DefaultConfig values.
func ParseConfig(r io.Reader) (*FileConfig, error) {
	cfg := &FileConfig{Trainer: DefaultConfig()}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parse config: %w", tensor.ErrInvalidConfiguration, err)
	}

	if err := cfg.Trainer.Validate(); err != nil {
		return nil, err
	}
	if _, err := nn.LossFor(cfg.Loss); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads and validates a FileConfig from a YAML file.
func LoadConfig(path string) (*FileConfig, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is provided by the caller
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseConfig(f)
}
