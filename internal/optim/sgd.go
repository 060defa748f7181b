package optim

import (
	"fmt"

	"github.com/born-ml/mlp/internal/nn"
	"github.com/born-ml/mlp/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + lr * gradient
//	param = param - velocity
//
// Momentum helps accelerate SGD in relevant directions and dampens oscillations.
// Velocities start at zero and are keyed by layer position; they are rebuilt
// when the network's layer count or a layer shape changes.
//
// Example:
//
//	optimizer, err := optim.NewSGD(optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGD struct {
	lr         float64
	momentum   float64
	velocities []layerState
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 `yaml:"lr"`       // Learning rate (default: 0.01)
	Momentum float64 `yaml:"momentum"` // Momentum factor (default: 0.0, range: [0, 1))
}

// Validate checks the configuration. A zero LR is replaced by the default
// before validation.
func (c SGDConfig) Validate() error {
	if err := checkLR("sgd", c.LR); err != nil {
		return err
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return fmt.Errorf("%w: sgd momentum must be in [0, 1), got %g", tensor.ErrInvalidConfiguration, c.Momentum)
	}
	return nil
}

// NewSGD creates a new SGD optimizer.
//
// Returns an error wrapping ErrInvalidConfiguration for a negative learning
// rate or a momentum outside [0, 1).
func NewSGD(config SGDConfig) (*SGD, error) {
	// Set defaults
	if config.LR == 0 {
		config.LR = 0.01
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &SGD{
		lr:       config.LR,
		momentum: config.Momentum,
	}, nil
}

// Apply performs a single optimization step over every layer of net.
func (s *SGD) Apply(net *nn.Network, grads *nn.Gradients) error {
	if err := checkBundle(net, grads); err != nil {
		return err
	}

	if s.momentum == 0 {
		for i, g := range grads.Layers {
			l := net.Layer(i)
			// Shapes were checked above; AddScaledInPlace cannot fail here.
			_ = l.Weight().AddScaledInPlace(-s.lr, g.Weight)
			_ = l.Bias().AddScaledInPlace(-s.lr, g.Bias)
		}
		return nil
	}

	if !stateMatches(s.velocities, net) {
		s.velocities = buildState(net)
	}
	for i, g := range grads.Layers {
		l := net.Layer(i)
		v := s.velocities[i]
		updateWithMomentum(l.Weight(), v.weight, g.Weight, s.lr, s.momentum)
		updateWithMomentum(l.Bias(), v.bias, g.Bias, s.lr, s.momentum)
	}
	return nil
}

// updateWithMomentum performs v = μv + lr·g; p -= v element-wise.
func updateWithMomentum(param, velocity, grad *tensor.Tensor, lr, momentum float64) {
	p, v, g := param.Data(), velocity.Data(), grad.Data()
	for i := range p {
		v[i] = momentum*v[i] + lr*g[i]
		p[i] -= v[i]
	}
}

// Reset clears all velocities.
func (s *SGD) Reset() {
	s.velocities = nil
}

// LR returns the current learning rate.
func (s *SGD) LR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (s *SGD) SetLR(lr float64) error {
	if err := checkLR("sgd", lr); err != nil {
		return err
	}
	s.lr = lr
	return nil
}

// Momentum returns the momentum factor.
func (s *SGD) Momentum() float64 {
	return s.momentum
}

// Name returns "sgd".
func (s *SGD) Name() string {
	return "sgd"
}

// Hyperparameters returns lr and momentum.
func (s *SGD) Hyperparameters() map[string]float64 {
	return map[string]float64{"lr": s.lr, "momentum": s.momentum}
}

// StateDict returns the optimizer state for serialization.
//
// For SGD with momentum, this exports velocity buffers for each layer.
// Without momentum, or before the first step, returns an empty map.
//
// State keys: "velocity.{layer}.weight" and "velocity.{layer}.bias".
func (s *SGD) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)
	if s.momentum == 0 {
		return stateDict
	}
	exportState(stateDict, "velocity", s.velocities)
	return stateDict
}

// LoadStateDict restores velocity buffers exported by StateDict.
//
// Without momentum the state is ignored. Buffers that do not fit the next
// network passed to Apply are discarded there.
func (s *SGD) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	if s.momentum == 0 {
		return nil
	}
	velocities, err := importState(stateDict, "velocity", countLayers(stateDict, "velocity"))
	if err != nil {
		return err
	}
	s.velocities = velocities
	return nil
}
