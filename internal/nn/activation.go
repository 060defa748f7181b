package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/mlp/internal/tensor"
)

// Kind identifies a built-in activation function.
//
// Kinds are the serialized form of an activation: they appear in
// layer descriptions, configuration files and saved networks.
type Kind uint8

// Supported activation kinds.
const (
	Identity Kind = iota
	Sigmoid
	Tanh
	ReLU
	Softmax
)

var kindNames = [...]string{
	Identity: "identity",
	Sigmoid:  "sigmoid",
	Tanh:     "tanh",
	ReLU:     "relu",
	Softmax:  "softmax",
}

// String returns the canonical lowercase name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is a recognized activation kind.
func (k Kind) Valid() bool {
	return int(k) < len(kindNames)
}

// ParseActivation converts a name such as "tanh" into a Kind.
func ParseActivation(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown activation %q", tensor.ErrInvalidConfiguration, name)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: unknown activation %d", tensor.ErrInvalidConfiguration, uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseActivation(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Activation is a stateless nonlinearity applied after a layer's affine
// transform.
//
// Implementations hold no per-instance state and are shared by every layer
// that uses the same Kind.
type Activation interface {
	// Kind returns the activation's kind.
	Kind() Kind

	// Forward applies the activation to the pre-activation tensor.
	Forward(pre *tensor.Tensor) *tensor.Tensor

	// Backward maps a gradient with respect to the activation output into a
	// gradient with respect to the pre-activation. out is Forward(pre).
	//
	// For elementwise activations this is grad ⊙ f'(pre).
	Backward(pre, out, grad *tensor.Tensor) (*tensor.Tensor, error)
}

// elementwise pairs a scalar function with its derivative.
//
// The derivative receives both x and y = f(x) so sigmoid and tanh can reuse
// the forward value.
type elementwise struct {
	kind  Kind
	f     func(x float64) float64
	deriv func(x, y float64) float64
}

func (e *elementwise) Kind() Kind {
	return e.kind
}

func (e *elementwise) Forward(pre *tensor.Tensor) *tensor.Tensor {
	return pre.Apply(e.f)
}

func (e *elementwise) Backward(pre, out, grad *tensor.Tensor) (*tensor.Tensor, error) {
	if !grad.Shape().Equal(pre.Shape()) {
		return nil, tensor.NewShapeError(e.kind.String()+" backward", grad.Shape(), pre.Shape())
	}

	result := grad.Clone()
	r, x, y := result.Data(), pre.Data(), out.Data()
	for i := range r {
		r[i] *= e.deriv(x[i], y[i])
	}
	return result, nil
}

// softmax normalizes each row into a probability distribution.
type softmax struct{}

func (softmax) Kind() Kind {
	return Softmax
}

// Forward computes the row-wise softmax, subtracting the row maximum before
// exponentiating to avoid overflow.
func (softmax) Forward(pre *tensor.Tensor) *tensor.Tensor {
	out := pre.Clone()
	cols := out.Cols()
	data := out.Data()

	for lo := 0; lo < len(data); lo += cols {
		row := data[lo : lo+cols]
		maxV := row[0]
		for _, v := range row[1:] {
			if v > maxV {
				maxV = v
			}
		}
		sum := 0.0
		for i, v := range row {
			row[i] = math.Exp(v - maxV)
			sum += row[i]
		}
		for i := range row {
			row[i] /= sum
		}
	}
	return out
}

// Backward applies the softmax Jacobian row by row:
// delta_j = y_j * (g_j - Σ_k g_k y_k).
func (softmax) Backward(pre, out, grad *tensor.Tensor) (*tensor.Tensor, error) {
	if !grad.Shape().Equal(out.Shape()) {
		return nil, tensor.NewShapeError("softmax backward", grad.Shape(), out.Shape())
	}

	result := grad.Clone()
	cols := result.Cols()
	r, y := result.Data(), out.Data()

	for lo := 0; lo < len(r); lo += cols {
		dot := 0.0
		for j := lo; j < lo+cols; j++ {
			dot += r[j] * y[j]
		}
		for j := lo; j < lo+cols; j++ {
			r[j] = y[j] * (r[j] - dot)
		}
	}
	return result, nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

var activations = [...]Activation{
	Identity: &elementwise{
		kind:  Identity,
		f:     func(x float64) float64 { return x },
		deriv: func(_, _ float64) float64 { return 1 },
	},
	Sigmoid: &elementwise{
		kind:  Sigmoid,
		f:     sigmoid,
		deriv: func(_, y float64) float64 { return y * (1 - y) },
	},
	Tanh: &elementwise{
		kind:  Tanh,
		f:     math.Tanh,
		deriv: func(_, y float64) float64 { return 1 - y*y },
	},
	ReLU: &elementwise{
		kind: ReLU,
		f:    func(x float64) float64 { return math.Max(0, x) },
		deriv: func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	},
	Softmax: softmax{},
}

// ActivationFor returns the shared Activation for kind.
func ActivationFor(kind Kind) (Activation, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown activation %d", tensor.ErrInvalidConfiguration, uint8(kind))
	}
	return activations[kind], nil
}
