package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/mlp/internal/nn"
	"github.com/born-ml/mlp/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Adam combines ideas from RMSprop and momentum:
//   - Maintains exponential moving averages of gradients (first moment)
//   - Maintains exponential moving averages of squared gradients (second moment)
//   - Applies bias correction to compensate for initialization at zero
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
//
// Example:
//
//	optimizer, err := optim.NewAdam(optim.AdamConfig{
//	    LR:    0.001,
//	    Betas: [2]float64{0.9, 0.999},
//	    Eps:   1e-8,
//	})
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int          // Timestep for bias correction
	m     []layerState // First moment estimates
	v     []layerState // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    `yaml:"lr"`    // Learning rate (default: 0.001)
	Betas [2]float64 `yaml:"betas"` // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    `yaml:"eps"`   // Term for numerical stability (default: 1e-8)
}

// Validate checks the configuration after defaults are applied.
func (c AdamConfig) Validate() error {
	if err := checkLR("adam", c.LR); err != nil {
		return err
	}
	for i, b := range c.Betas {
		if b < 0 || b >= 1 {
			return fmt.Errorf("%w: adam beta%d must be in [0, 1), got %g", tensor.ErrInvalidConfiguration, i+1, b)
		}
	}
	if c.Eps <= 0 {
		return fmt.Errorf("%w: adam eps must be positive, got %g", tensor.ErrInvalidConfiguration, c.Eps)
	}
	return nil
}

// NewAdam creates a new Adam optimizer.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam(config AdamConfig) (*Adam, error) {
	// Set defaults
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Adam{
		lr:    config.LR,
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
	}, nil
}

// Apply performs a single optimization step using Adam algorithm.
//
//  1. Update biased first moment estimate
//  2. Update biased second moment estimate
//  3. Compute bias-corrected moment estimates
//  4. Update parameters
func (a *Adam) Apply(net *nn.Network, grads *nn.Gradients) error {
	if err := checkBundle(net, grads); err != nil {
		return err
	}
	if !stateMatches(a.m, net) || !stateMatches(a.v, net) {
		a.m, a.v, a.t = buildState(net), buildState(net), 0
	}

	a.t++

	// bias_correction1 = 1 - beta1^t
	// bias_correction2 = 1 - beta2^t
	biasCorrection1 := 1.0 - math.Pow(a.beta1, float64(a.t))
	biasCorrection2 := 1.0 - math.Pow(a.beta2, float64(a.t))

	for i, g := range grads.Layers {
		l := net.Layer(i)
		a.updateParameter(l.Weight(), g.Weight, a.m[i].weight, a.v[i].weight, biasCorrection1, biasCorrection2)
		a.updateParameter(l.Bias(), g.Bias, a.m[i].bias, a.v[i].bias, biasCorrection1, biasCorrection2)
	}
	return nil
}

// updateParameter performs Adam update for a single parameter tensor.
func (a *Adam) updateParameter(param, grad, m, v *tensor.Tensor, biasCorrection1, biasCorrection2 float64) {
	gradData := grad.Data()
	mData := m.Data()
	vData := v.Data()
	paramData := param.Data()

	for i := range paramData {
		g := gradData[i]

		mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
		vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2

		paramData[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
	}
}

// Reset clears both moment estimates and the timestep.
func (a *Adam) Reset() {
	a.m, a.v, a.t = nil, nil, 0
}

// LR returns the current learning rate.
func (a *Adam) LR() float64 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float64) error {
	if err := checkLR("adam", lr); err != nil {
		return err
	}
	a.lr = lr
	return nil
}

// Timestep returns the number of steps taken since the last reset.
func (a *Adam) Timestep() int {
	return a.t
}

// Name returns "adam".
func (a *Adam) Name() string {
	return "adam"
}

// Hyperparameters returns lr, beta1, beta2 and eps.
func (a *Adam) Hyperparameters() map[string]float64 {
	return map[string]float64{"lr": a.lr, "beta1": a.beta1, "beta2": a.beta2, "eps": a.eps}
}

// StateDict exports both moments and the timestep.
//
// State keys: "m.{layer}.weight", "m.{layer}.bias", "v.{layer}.weight",
// "v.{layer}.bias" and "step" (a single-element tensor).
func (a *Adam) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)
	if a.t == 0 {
		return stateDict
	}
	exportState(stateDict, "m", a.m)
	exportState(stateDict, "v", a.v)
	stateDict["step"] = tensor.Full(float64(a.t), 1)
	return stateDict
}

// LoadStateDict restores state exported by StateDict. An empty map resets
// the optimizer.
func (a *Adam) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	step, ok := stateDict["step"]
	if !ok {
		a.Reset()
		return nil
	}
	if step.NumElements() != 1 || step.Data()[0] < 1 {
		return fmt.Errorf("%w: invalid adam step", tensor.ErrInvalidConfiguration)
	}

	n := countLayers(stateDict, "m")
	m, err := importState(stateDict, "m", n)
	if err != nil {
		return err
	}
	v, err := importState(stateDict, "v", n)
	if err != nil {
		return err
	}
	a.m, a.v, a.t = m, v, int(step.Data()[0])
	return nil
}
