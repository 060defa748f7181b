package nn

import (
	"math"

	"github.com/born-ml/mlp/internal/tensor"
)

// probEpsilon keeps probabilities away from 0 and 1 so log and the
// gradient's division stay finite.
const probEpsilon = 1e-12

func clampProb(p float64) float64 {
	return math.Min(math.Max(p, probEpsilon), 1-probEpsilon)
}

// CrossEntropyLoss computes binary cross-entropy over independent
// probabilities, typically the output of a sigmoid layer.
//
// Mathematical Formulation:
//
//	Loss = -mean(y·log(p) + (1-y)·log(1-p))
//
// Gradient:
//
//	∂L/∂p = (p - y) / (p·(1-p)·n)
//
// p is clamped to [ε, 1-ε] in both, so saturated outputs produce a large
// but finite gradient. Composed with sigmoid's derivative p·(1-p) the
// backward pass reduces to (p - y)/n.
type CrossEntropyLoss struct{}

// NewCrossEntropyLoss creates a new binary cross-entropy loss function.
func NewCrossEntropyLoss() *CrossEntropyLoss {
	return &CrossEntropyLoss{}
}

// Kind implements Loss.
func (*CrossEntropyLoss) Kind() LossKind {
	return CrossEntropy
}

// Compute returns the mean binary cross-entropy.
func (*CrossEntropyLoss) Compute(predicted, expected *tensor.Tensor) (float64, error) {
	if err := checkLossShapes("cross_entropy", predicted, expected); err != nil {
		return 0, err
	}
	p, y := predicted.Data(), expected.Data()
	total := 0.0
	for i := range p {
		pi := clampProb(p[i])
		total -= y[i]*math.Log(pi) + (1-y[i])*math.Log(1-pi)
	}
	return total / float64(len(p)), nil
}

// Gradient returns ∂L/∂p on the clamped probabilities.
func (*CrossEntropyLoss) Gradient(predicted, expected *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkLossShapes("cross_entropy", predicted, expected); err != nil {
		return nil, err
	}
	grad := predicted.Clone()
	g, y := grad.Data(), expected.Data()
	n := float64(len(g))
	for i := range g {
		pi := clampProb(g[i])
		g[i] = (pi - y[i]) / (pi * (1 - pi) * n)
	}
	return grad, nil
}

// OutputDelta returns (p - y)/n for a sigmoid output layer. Unlike the
// product of Gradient and the sigmoid derivative it does not vanish when p
// rounds to exactly 0 or 1.
func (*CrossEntropyLoss) OutputDelta(activation Kind, predicted, expected *tensor.Tensor) (*tensor.Tensor, bool, error) {
	if activation != Sigmoid {
		return nil, false, nil
	}
	if err := checkLossShapes("cross_entropy", predicted, expected); err != nil {
		return nil, false, err
	}
	diff, err := predicted.Sub(expected)
	if err != nil {
		return nil, false, err
	}
	return diff.Scale(1 / float64(diff.NumElements())), true, nil
}

// CategoricalCrossEntropyLoss computes cross-entropy between rows of a
// probability distribution (a softmax output) and one-hot or soft targets.
//
//	Loss   = -(1/rows) Σ y·log(p)
//	∂L/∂p  = -y / (p·rows)
//
// Composed with the softmax Jacobian the backward pass reduces to
// (p - y)/rows for targets whose rows sum to one.
type CategoricalCrossEntropyLoss struct{}

// NewCategoricalCrossEntropyLoss creates a new categorical cross-entropy loss.
func NewCategoricalCrossEntropyLoss() *CategoricalCrossEntropyLoss {
	return &CategoricalCrossEntropyLoss{}
}

// Kind implements Loss.
func (*CategoricalCrossEntropyLoss) Kind() LossKind {
	return CategoricalCrossEntropy
}

// Compute returns the mean over rows of -Σ y·log(p).
func (*CategoricalCrossEntropyLoss) Compute(predicted, expected *tensor.Tensor) (float64, error) {
	if err := checkLossShapes("categorical_cross_entropy", predicted, expected); err != nil {
		return 0, err
	}
	p, y := predicted.Data(), expected.Data()
	total := 0.0
	for i := range p {
		if y[i] != 0 {
			total -= y[i] * math.Log(clampProb(p[i]))
		}
	}
	return total / float64(predicted.Rows()), nil
}

// Gradient returns -y/(p·rows) on the clamped probabilities.
func (*CategoricalCrossEntropyLoss) Gradient(predicted, expected *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkLossShapes("categorical_cross_entropy", predicted, expected); err != nil {
		return nil, err
	}
	grad := predicted.Clone()
	g, y := grad.Data(), expected.Data()
	rows := float64(predicted.Rows())
	for i := range g {
		g[i] = -y[i] / (clampProb(g[i]) * rows)
	}
	return grad, nil
}

// OutputDelta returns (p·Σy - y)/rows for a softmax output layer, which is
// (p - y)/rows for targets whose rows sum to one.
func (*CategoricalCrossEntropyLoss) OutputDelta(activation Kind, predicted, expected *tensor.Tensor) (*tensor.Tensor, bool, error) {
	if activation != Softmax {
		return nil, false, nil
	}
	if err := checkLossShapes("categorical_cross_entropy", predicted, expected); err != nil {
		return nil, false, err
	}
	delta := predicted.Clone()
	d, y := delta.Data(), expected.Data()
	cols := delta.Cols()
	rows := float64(delta.Rows())
	for lo := 0; lo < len(d); lo += cols {
		mass := 0.0
		for j := lo; j < lo+cols; j++ {
			mass += y[j]
		}
		for j := lo; j < lo+cols; j++ {
			d[j] = (d[j]*mass - y[j]) / rows
		}
	}
	return delta, true, nil
}
