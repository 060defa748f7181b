package nn

import (
	"fmt"
	"io"

	"github.com/born-ml/mlp/internal/serialization"
)

// StateDict returns every parameter tensor named "layers.{i}.weight" and
// "layers.{i}.bias", in layer order. The tensors are the live parameters.
func (n *Network) StateDict() []serialization.NamedTensor {
	tensors := make([]serialization.NamedTensor, 0, 2*len(n.layers))
	for i, l := range n.layers {
		tensors = append(tensors,
			serialization.NamedTensor{Name: serialization.WeightName(i), Tensor: l.weight},
			serialization.NamedTensor{Name: serialization.BiasName(i), Tensor: l.bias},
		)
	}
	return tensors
}

func (n *Network) layerMeta() []serialization.LayerMeta {
	layers := make([]serialization.LayerMeta, len(n.layers))
	for i, l := range n.layers {
		layers[i] = serialization.LayerMeta{In: l.in, Out: l.out, Activation: l.activation.Kind().String()}
	}
	return layers
}

// networkFromFile rebuilds the network described by a decoded file.
func networkFromFile(f *serialization.File) (*Network, error) {
	if len(f.Layers) == 0 {
		return nil, &serialization.ValidationError{Type: "invalid_layer", Details: "file holds no layers"}
	}
	layers := make([]*Dense, len(f.Layers))
	for i, meta := range f.Layers {
		kind, err := ParseActivation(meta.Activation)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		// Presence and shapes were checked by serialization.ValidateHeader.
		layer, err := NewDenseFromParams(f.Tensor(serialization.WeightName(i)), f.Tensor(serialization.BiasName(i)), kind)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layers[i] = layer
	}
	return FromLayers(layers...)
}

// Save writes the network's topology and parameters to w.
//
// Load(Save(net)) yields a network whose Forward output is bit-identical
// to net's for every input.
func Save(w io.Writer, net *Network, metadata map[string]string) error {
	return serialization.Encode(w, &serialization.File{
		Layers:   net.layerMeta(),
		Tensors:  net.StateDict(),
		Metadata: metadata,
	})
}

// Load reads a network written by Save.
func Load(r io.Reader) (*Network, error) {
	f, err := serialization.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode network: %w", err)
	}
	return networkFromFile(f)
}

// SaveFile writes the network to path.
func SaveFile(path string, net *Network, metadata map[string]string) error {
	return serialization.WriteFile(path, &serialization.File{
		Layers:   net.layerMeta(),
		Tensors:  net.StateDict(),
		Metadata: metadata,
	})
}

// LoadFile reads a network from path. Checkpoint files load too; their
// optimizer state is ignored.
func LoadFile(path string) (*Network, error) {
	f, err := serialization.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return networkFromFile(f)
}
