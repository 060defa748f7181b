package tensor

import (
	"errors"
	"fmt"
)

// Error kinds shared by every layer of the engine.
//
// Lower packages return them wrapped with context; callers match with errors.Is.
var (
	ErrShapeMismatch        = errors.New("shape mismatch")
	ErrNonFiniteValue       = errors.New("non-finite value")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ShapeError describes an operation whose operands have incompatible shapes.
type ShapeError struct {
	Op    string // Operation name (e.g., "matmul", "add")
	Left  Shape  // Shape of the receiver or first operand
	Right Shape  // Shape of the second operand or expected shape
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s: %v vs %v", ErrShapeMismatch, e.Op, e.Left, e.Right)
}

// Unwrap makes errors.Is(err, ErrShapeMismatch) succeed.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// NewShapeError builds a ShapeError for op with cloned operand shapes.
func NewShapeError(op string, left, right Shape) *ShapeError {
	return &ShapeError{Op: op, Left: left.Clone(), Right: right.Clone()}
}
