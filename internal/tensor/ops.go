package tensor

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Add performs element-wise addition. Shapes must match exactly.
func (t *Tensor) Add(other *Tensor) (*Tensor, error) {
	if !t.shape.Equal(other.shape) {
		return nil, NewShapeError("add", t.shape, other.shape)
	}
	out := t.emptyLike()
	floats.AddTo(out.data, t.data, other.data)
	return out, nil
}

// Sub performs element-wise subtraction. Shapes must match exactly.
func (t *Tensor) Sub(other *Tensor) (*Tensor, error) {
	if !t.shape.Equal(other.shape) {
		return nil, NewShapeError("sub", t.shape, other.shape)
	}
	out := t.emptyLike()
	floats.SubTo(out.data, t.data, other.data)
	return out, nil
}

// Mul performs element-wise (Hadamard) multiplication. Shapes must match exactly.
func (t *Tensor) Mul(other *Tensor) (*Tensor, error) {
	if !t.shape.Equal(other.shape) {
		return nil, NewShapeError("mul", t.shape, other.shape)
	}
	out := t.emptyLike()
	floats.MulTo(out.data, t.data, other.data)
	return out, nil
}

// Scale multiplies every element by c.
func (t *Tensor) Scale(c float64) *Tensor {
	out := t.emptyLike()
	floats.ScaleTo(out.data, c, t.data)
	return out
}

// MatMul performs matrix multiplication: (M, K) @ (K, N) → (M, N).
//
// Example:
//
//	a := tensor.Ones(3, 4)
//	b := tensor.Ones(4, 5)
//	c, _ := a.MatMul(b) // Shape: [3, 5]
func (t *Tensor) MatMul(other *Tensor) (*Tensor, error) {
	if !t.shape.IsMatrix() || !other.shape.IsMatrix() || t.shape[1] != other.shape[0] {
		return nil, NewShapeError("matmul", t.shape, other.shape)
	}

	m, n := t.shape[0], other.shape[1]
	out := Zeros(m, n)
	dst := mat.NewDense(m, n, out.data)
	dst.Mul(t.dense(), other.dense())
	return out, nil
}

// Transpose swaps rows and columns of a matrix.
func (t *Tensor) Transpose() (*Tensor, error) {
	if !t.shape.IsMatrix() {
		return nil, NewShapeError("transpose", t.shape, Shape{0, 0})
	}

	rows, cols := t.shape[0], t.shape[1]
	out := Zeros(cols, rows)
	dst := mat.NewDense(cols, rows, out.data)
	dst.Copy(t.dense().T())
	return out, nil
}

// Apply returns a tensor with fn applied to every element.
func (t *Tensor) Apply(fn func(float64) float64) *Tensor {
	out := t.emptyLike()
	for i, v := range t.data {
		out.data[i] = fn(v)
	}
	return out
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float64 {
	return floats.Sum(t.data)
}

// Mean returns the arithmetic mean of all elements.
func (t *Tensor) Mean() float64 {
	return floats.Sum(t.data) / float64(len(t.data))
}

// AddRowVector adds an (N) vector to each row of an (M, N) matrix.
//
// This is the only broadcasting the engine performs; it implements bias
// addition.
func (t *Tensor) AddRowVector(v *Tensor) (*Tensor, error) {
	if !t.shape.IsMatrix() || !v.shape.IsVector() || v.shape[0] != t.shape[1] {
		return nil, NewShapeError("add_row_vector", t.shape, v.shape)
	}

	cols := t.shape[1]
	out := t.emptyLike()
	for r := 0; r < t.shape[0]; r++ {
		lo, hi := r*cols, (r+1)*cols
		floats.AddTo(out.data[lo:hi], t.data[lo:hi], v.data)
	}
	return out, nil
}

// SumRows reduces an (M, N) matrix to an (N) vector of column sums.
func (t *Tensor) SumRows() (*Tensor, error) {
	if !t.shape.IsMatrix() {
		return nil, NewShapeError("sum_rows", t.shape, Shape{0, 0})
	}

	cols := t.shape[1]
	out := Zeros(cols)
	for r := 0; r < t.shape[0]; r++ {
		floats.Add(out.data, t.data[r*cols:(r+1)*cols])
	}
	return out, nil
}

// AddScaledInPlace performs t += alpha * other.
func (t *Tensor) AddScaledInPlace(alpha float64, other *Tensor) error {
	if !t.shape.Equal(other.shape) {
		return NewShapeError("add_scaled", t.shape, other.shape)
	}
	floats.AddScaled(t.data, alpha, other.data)
	return nil
}

// ScaleInPlace performs t *= c.
func (t *Tensor) ScaleInPlace(c float64) {
	floats.Scale(c, t.data)
}

// CopyFrom overwrites t's values with other's. Shapes must match.
func (t *Tensor) CopyFrom(other *Tensor) error {
	if !t.shape.Equal(other.shape) {
		return NewShapeError("copy", t.shape, other.shape)
	}
	copy(t.data, other.data)
	return nil
}

// dense wraps a matrix tensor as a gonum view sharing the same memory.
func (t *Tensor) dense() *mat.Dense {
	return mat.NewDense(t.shape[0], t.shape[1], t.data)
}

func (t *Tensor) emptyLike() *Tensor {
	return &Tensor{shape: t.shape.Clone(), data: make([]float64, len(t.data))}
}
