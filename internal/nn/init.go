package nn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/mlp/internal/tensor"
)

// Initializer fills a freshly allocated weight tensor.
//
// fanIn and fanOut are the layer's input and output sizes. src is the
// network's random source; implementations must draw all randomness from it
// so construction is reproducible for a fixed seed.
type Initializer interface {
	Init(w *tensor.Tensor, fanIn, fanOut int, src rand.Source)
	Validate() error
}

// ZeroInit sets every weight to zero.
//
// Valid, but every hidden layer then passes back zero input gradients, so
// only the last layer ever learns. Avoid it for hidden layers.
type ZeroInit struct{}

// Init implements Initializer.
func (ZeroInit) Init(w *tensor.Tensor, _, _ int, _ rand.Source) {
	clear(w.Data())
}

// Validate implements Initializer.
func (ZeroInit) Validate() error {
	return nil
}

// UniformInit draws weights from U(-Scale, Scale).
type UniformInit struct {
	Scale float64
}

// Init implements Initializer.
func (u UniformInit) Init(w *tensor.Tensor, _, _ int, src rand.Source) {
	fill(w, distuv.Uniform{Min: -u.Scale, Max: u.Scale, Src: src})
}

// Validate implements Initializer.
func (u UniformInit) Validate() error {
	if u.Scale <= 0 || math.IsInf(u.Scale, 0) || math.IsNaN(u.Scale) {
		return fmt.Errorf("%w: uniform scale must be positive and finite, got %v", tensor.ErrInvalidConfiguration, u.Scale)
	}
	return nil
}

// NormalInit draws weights from N(Mean, StdDev²).
type NormalInit struct {
	Mean   float64
	StdDev float64
}

// Init implements Initializer.
func (n NormalInit) Init(w *tensor.Tensor, _, _ int, src rand.Source) {
	fill(w, distuv.Normal{Mu: n.Mean, Sigma: n.StdDev, Src: src})
}

// Validate implements Initializer.
func (n NormalInit) Validate() error {
	if n.StdDev <= 0 || math.IsInf(n.StdDev, 0) || math.IsNaN(n.StdDev) || math.IsNaN(n.Mean) {
		return fmt.Errorf("%w: normal stddev must be positive and finite, got %v", tensor.ErrInvalidConfiguration, n.StdDev)
	}
	return nil
}

// XavierInit (Glorot) draws weights from
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
//
// This keeps activation variance roughly constant across layers and is the
// default when a LayerSpec has no initializer.
type XavierInit struct{}

// Init implements Initializer.
func (XavierInit) Init(w *tensor.Tensor, fanIn, fanOut int, src rand.Source) {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	fill(w, distuv.Uniform{Min: -bound, Max: bound, Src: src})
}

// Validate implements Initializer.
func (XavierInit) Validate() error {
	return nil
}

type sampler interface {
	Rand() float64
}

func fill(w *tensor.Tensor, dist sampler) {
	data := w.Data()
	for i := range data {
		data[i] = dist.Rand()
	}
}
