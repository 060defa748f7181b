package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxDataSize      = 1 << 34           // 16GB - maximum data section size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// ValidateTensorOffsets checks for overlapping tensor offsets and out-of-bounds access.
// Malformed files could otherwise make the reader slice outside the data section.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	// Sort tensors by offset for efficient overlap detection.
	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d (negative values not allowed)", t.Offset, t.Size),
			}
		}

		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}

		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}

	return nil
}

// ValidateTensorName rejects empty, oversized or non-printable names.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains path separator or null byte",
		}
	}
	return nil
}

// maxElements bounds a tensor's element count by the data section limit.
const maxElements = MaxDataSize / bytesPerElement

// validateTensorMeta checks dtype, shape and size agreement of one entry.
func validateTensorMeta(t TensorMeta) error {
	if t.DType != DTypeFloat64 {
		return &ValidationError{
			Type:    "unsupported_dtype",
			Tensor:  t.Name,
			Details: fmt.Sprintf("got %q, want %q", t.DType, DTypeFloat64),
		}
	}
	elements := int64(1)
	for _, d := range t.Shape {
		if d <= 0 {
			return &ValidationError{
				Type:    "invalid_shape",
				Tensor:  t.Name,
				Details: fmt.Sprintf("shape %v has non-positive dimension", t.Shape),
			}
		}
		if int64(d) > maxElements/elements {
			return &ValidationError{
				Type:    "size_mismatch",
				Tensor:  t.Name,
				Details: fmt.Sprintf("shape %v exceeds %d elements", t.Shape, maxElements),
			}
		}
		elements *= int64(d)
	}
	if len(t.Shape) == 0 || elements*bytesPerElement != t.Size {
		return &ValidationError{
			Type:    "size_mismatch",
			Tensor:  t.Name,
			Details: fmt.Sprintf("shape %v needs %d bytes, header says %d", t.Shape, elements*bytesPerElement, t.Size),
		}
	}
	return nil
}

// validateLayers checks that layer sizes are positive, chain, and that each
// layer's weight and bias tensors are present with matching shapes.
func validateLayers(h *Header) error {
	byName := make(map[string]TensorMeta, len(h.Tensors))
	for _, t := range h.Tensors {
		byName[t.Name] = t
	}

	for i, l := range h.Layers {
		if l.In <= 0 || l.Out <= 0 {
			return &ValidationError{
				Type:    "invalid_layer",
				Details: fmt.Sprintf("layer %d has sizes in=%d out=%d", i, l.In, l.Out),
			}
		}
		if i > 0 && h.Layers[i-1].Out != l.In {
			return &ValidationError{
				Type:    "layer_chain",
				Details: fmt.Sprintf("layer %d out=%d does not match layer %d in=%d", i-1, h.Layers[i-1].Out, i, l.In),
			}
		}

		w, ok := byName[WeightName(i)]
		if !ok || len(w.Shape) != 2 || w.Shape[0] != l.In || w.Shape[1] != l.Out {
			return &ValidationError{
				Type:    "layer_tensor",
				Tensor:  WeightName(i),
				Details: fmt.Sprintf("want shape [%d %d], got %v", l.In, l.Out, w.Shape),
			}
		}
		b, ok := byName[BiasName(i)]
		if !ok || len(b.Shape) != 1 || b.Shape[0] != l.Out {
			return &ValidationError{
				Type:    "layer_tensor",
				Tensor:  BiasName(i),
				Details: fmt.Sprintf("want shape [%d], got %v", l.Out, b.Shape),
			}
		}
	}
	return nil
}

// ValidateHeader performs comprehensive header validation.
func ValidateHeader(h *Header, dataSize int64) error {
	if h.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: header declares version %d", ErrUnsupportedVersion, h.FormatVersion)
	}

	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}

	seen := make(map[string]bool, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if seen[t.Name] {
			return &ValidationError{Type: "duplicate_name", Tensor: t.Name, Details: "tensor listed twice"}
		}
		seen[t.Name] = true
		if err := validateTensorMeta(t); err != nil {
			return err
		}
	}

	if err := ValidateTensorOffsets(h.Tensors, dataSize); err != nil {
		return err
	}
	return validateLayers(h)
}

// WeightName returns the tensor name of layer i's weight matrix.
func WeightName(i int) string {
	return fmt.Sprintf("layers.%d.weight", i)
}

// BiasName returns the tensor name of layer i's bias vector.
func BiasName(i int) string {
	return fmt.Sprintf("layers.%d.bias", i)
}
