package nn

import (
	"fmt"

	"github.com/born-ml/mlp/internal/tensor"
)

// LossKind identifies a built-in loss function.
type LossKind uint8

// Supported loss kinds.
const (
	MSE LossKind = iota
	CrossEntropy
	CategoricalCrossEntropy
)

var lossNames = [...]string{
	MSE:                     "mse",
	CrossEntropy:            "cross_entropy",
	CategoricalCrossEntropy: "categorical_cross_entropy",
}

// String returns the canonical name of the loss kind.
func (k LossKind) String() string {
	if int(k) < len(lossNames) {
		return lossNames[k]
	}
	return fmt.Sprintf("LossKind(%d)", uint8(k))
}

// ParseLoss converts a name such as "mse" into a LossKind.
func ParseLoss(name string) (LossKind, error) {
	for k, n := range lossNames {
		if n == name {
			return LossKind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown loss %q", tensor.ErrInvalidConfiguration, name)
}

// MarshalText implements encoding.TextMarshaler.
func (k LossKind) MarshalText() ([]byte, error) {
	if int(k) >= len(lossNames) {
		return nil, fmt.Errorf("%w: unknown loss %d", tensor.ErrInvalidConfiguration, uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *LossKind) UnmarshalText(text []byte) error {
	parsed, err := ParseLoss(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Loss computes a scalar error between predictions and targets and its
// gradient with respect to the predictions.
//
// Every built-in loss is a mean over samples, so the loss of a batch equals
// the mean of per-sample losses and likewise for gradients.
type Loss interface {
	Kind() LossKind
	Compute(predicted, expected *tensor.Tensor) (float64, error)
	Gradient(predicted, expected *tensor.Tensor) (*tensor.Tensor, error)
}

// OutputDeltaLoss is implemented by losses with a closed-form gradient with
// respect to the pre-activation of an output layer using a matching
// activation. OutputDelta reports false when activation is not one it
// pairs with.
type OutputDeltaLoss interface {
	Loss
	OutputDelta(activation Kind, predicted, expected *tensor.Tensor) (*tensor.Tensor, bool, error)
}

// LossFor returns the shared Loss for kind.
func LossFor(kind LossKind) (Loss, error) {
	switch kind {
	case MSE:
		return NewMSELoss(), nil
	case CrossEntropy:
		return NewCrossEntropyLoss(), nil
	case CategoricalCrossEntropy:
		return NewCategoricalCrossEntropyLoss(), nil
	default:
		return nil, fmt.Errorf("%w: unknown loss %d", tensor.ErrInvalidConfiguration, uint8(kind))
	}
}

func checkLossShapes(name string, predicted, expected *tensor.Tensor) error {
	if !predicted.Shape().Equal(expected.Shape()) {
		return tensor.NewShapeError(name, predicted.Shape(), expected.Shape())
	}
	return nil
}

// MSELoss computes Mean Squared Error loss.
//
// Loss = mean((predictions - targets)²)
//
// MSE is commonly used for regression tasks where the goal is to predict
// continuous values.
type MSELoss struct{}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss() *MSELoss {
	return &MSELoss{}
}

// Kind implements Loss.
func (*MSELoss) Kind() LossKind {
	return MSE
}

// Compute returns mean((predicted - expected)²).
func (*MSELoss) Compute(predicted, expected *tensor.Tensor) (float64, error) {
	if err := checkLossShapes("mse", predicted, expected); err != nil {
		return 0, err
	}
	diff, err := predicted.Sub(expected)
	if err != nil {
		return 0, err
	}
	squared, err := diff.Mul(diff)
	if err != nil {
		return 0, err
	}
	return squared.Mean(), nil
}

// Gradient returns 2·(predicted - expected)/n.
func (*MSELoss) Gradient(predicted, expected *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkLossShapes("mse", predicted, expected); err != nil {
		return nil, err
	}
	diff, err := predicted.Sub(expected)
	if err != nil {
		return nil, err
	}
	return diff.Scale(2.0 / float64(diff.NumElements())), nil
}
