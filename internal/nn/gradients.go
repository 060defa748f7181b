package nn

import (
	"fmt"

	"github.com/born-ml/mlp/internal/tensor"
)

// LayerGradients holds the parameter gradients of one Dense layer.
type LayerGradients struct {
	Weight *tensor.Tensor // [in, out]
	Bias   *tensor.Tensor // [out]
}

// Gradients is the bundle produced by one backward pass, indexed by layer
// position. It is consumed by an optimizer and then discarded.
type Gradients struct {
	Layers []LayerGradients
}

// Len returns the number of layers covered by the bundle.
func (g *Gradients) Len() int {
	return len(g.Layers)
}

// Accumulate adds other into g layer by layer.
func (g *Gradients) Accumulate(other *Gradients) error {
	if len(other.Layers) != len(g.Layers) {
		return fmt.Errorf("%w: gradient bundles cover %d and %d layers",
			tensor.ErrShapeMismatch, len(g.Layers), len(other.Layers))
	}
	for i := range g.Layers {
		if err := g.Layers[i].Weight.AddScaledInPlace(1, other.Layers[i].Weight); err != nil {
			return fmt.Errorf("layer %d weight: %w", i, err)
		}
		if err := g.Layers[i].Bias.AddScaledInPlace(1, other.Layers[i].Bias); err != nil {
			return fmt.Errorf("layer %d bias: %w", i, err)
		}
	}
	return nil
}

// Scale multiplies every gradient in place by c.
func (g *Gradients) Scale(c float64) {
	for _, lg := range g.Layers {
		lg.Weight.ScaleInPlace(c)
		lg.Bias.ScaleInPlace(c)
	}
}

// CheckFinite reports the first layer holding a NaN or infinite gradient.
func (g *Gradients) CheckFinite() error {
	for i, lg := range g.Layers {
		if err := lg.Weight.CheckFinite(); err != nil {
			return fmt.Errorf("layer %d weight gradient: %w", i, err)
		}
		if err := lg.Bias.CheckFinite(); err != nil {
			return fmt.Errorf("layer %d bias gradient: %w", i, err)
		}
	}
	return nil
}
