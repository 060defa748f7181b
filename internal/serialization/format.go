package serialization

import (
	"time"

	"github.com/born-ml/mlp/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "MLPN"
	FormatVersion   = 1    // v1: fixed header with SHA-256 checksum
	HeaderAlignment = 64   // Align tensor data to 64 bytes
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
	bytesPerElement = 8    // float64
)

// DTypeFloat64 is the only element type the format stores.
const DTypeFloat64 = "float64"

// Flags for the fixed header.
const (
	FlagHasOptimizer uint32 = 1 << 1 // bit 1: optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // bit 2: custom metadata included
)

// Header represents the JSON header of a network file.
type Header struct {
	FormatVersion int               `json:"format_version"`       // Version of the format
	Creator       string            `json:"creator"`              // Program and version that wrote the file
	CreatedAt     time.Time         `json:"created_at"`           // When the file was created
	Layers        []LayerMeta       `json:"layers"`               // Network topology, input to output
	Tensors       []TensorMeta      `json:"tensors"`              // Tensor metadata, in data order
	Metadata      map[string]string `json:"metadata,omitempty"`   // Custom metadata
	Checkpoint    *CheckpointMeta   `json:"checkpoint,omitempty"` // Training state (optional)
}

// LayerMeta describes one dense layer.
type LayerMeta struct {
	In         int    `json:"in"`
	Out        int    `json:"out"`
	Activation string `json:"activation"`
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	Epoch           int                `json:"epoch"`            // Training epoch number
	Loss            float64            `json:"loss"`             // Loss value at checkpoint
	OptimizerType   string             `json:"optimizer_type"`   // Optimizer type ("sgd", "adam")
	OptimizerConfig map[string]float64 `json:"optimizer_config"` // Optimizer hyperparameters
}

// TensorMeta describes a tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "layers.0.weight")
	DType  string `json:"dtype"`  // Always "float64"
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section (bytes from start of tensor data)
	Size   int64  `json:"size"`   // Size in bytes
}

// NamedTensor pairs a tensor with its name in the file.
type NamedTensor struct {
	Name   string
	Tensor *tensor.Tensor
}

// File is the decoded content of a network file. Tensors keep the order in
// which they were written.
type File struct {
	Layers     []LayerMeta
	Tensors    []NamedTensor
	Metadata   map[string]string
	Checkpoint *CheckpointMeta
	Creator    string
	CreatedAt  time.Time
}

// Tensor returns the tensor stored under name, or nil.
func (f *File) Tensor(name string) *tensor.Tensor {
	for _, nt := range f.Tensors {
		if nt.Name == name {
			return nt.Tensor
		}
	}
	return nil
}

func alignedOffset(pos int64) int64 {
	return pos + (HeaderAlignment-(pos%HeaderAlignment))%HeaderAlignment
}
