package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// Creator is recorded in every header written by this package.
const Creator = "mlp 0.1.0"

// Encode writes f to w.
//
// Tensors are written in the order of f.Tensors. An empty Creator or zero
// CreatedAt is filled in.
func Encode(w io.Writer, f *File) error {
	header, data, err := buildHeader(f)
	if err != nil {
		return err
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	headerSize := uint64(len(headerJSON))
	dataSize := uint64(len(data))
	checksum := ComputeChecksum(data)

	fixedHeader := make([]byte, FixedHeaderSize)

	// 0x00-0x03: Magic bytes
	copy(fixedHeader[0:4], MagicBytes)

	// 0x04-0x07: Version
	binary.LittleEndian.PutUint32(fixedHeader[4:8], uint32(FormatVersion))

	// 0x08-0x0B: Flags
	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.Checkpoint != nil {
		flags |= FlagHasOptimizer
	}
	binary.LittleEndian.PutUint32(fixedHeader[8:12], flags)

	// 0x0C-0x0F: Reserved (0)

	// 0x10-0x17: Header size
	binary.LittleEndian.PutUint64(fixedHeader[16:24], headerSize)

	// 0x18-0x1F: Data size
	binary.LittleEndian.PutUint64(fixedHeader[24:32], dataSize)

	// 0x20-0x3F: SHA-256 checksum
	copy(fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixedHeader); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	currentPos := int64(FixedHeaderSize) + int64(headerSize)
	if padding := alignedOffset(currentPos) - currentPos; padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// buildHeader lays out f's tensors back to back and returns the header and
// the encoded data section.
func buildHeader(f *File) (*Header, []byte, error) {
	header := &Header{
		FormatVersion: FormatVersion,
		Creator:       f.Creator,
		CreatedAt:     f.CreatedAt,
		Layers:        f.Layers,
		Tensors:       make([]TensorMeta, 0, len(f.Tensors)),
		Metadata:      f.Metadata,
		Checkpoint:    f.Checkpoint,
	}
	if header.Creator == "" {
		header.Creator = Creator
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}

	total := 0
	for _, nt := range f.Tensors {
		total += nt.Tensor.NumElements() * bytesPerElement
	}
	data := make([]byte, total)

	var currentOffset int64
	for _, nt := range f.Tensors {
		if err := ValidateTensorName(nt.Name); err != nil {
			return nil, nil, err
		}
		values := nt.Tensor.Data()
		size := int64(len(values) * bytesPerElement)
		for i, v := range values {
			binary.LittleEndian.PutUint64(data[currentOffset+int64(i*bytesPerElement):], math.Float64bits(v))
		}

		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   nt.Name,
			DType:  DTypeFloat64,
			Shape:  []int(nt.Tensor.Shape()),
			Offset: currentOffset,
			Size:   size,
		})
		currentOffset += size
	}

	if err := ValidateHeader(header, int64(len(data))); err != nil {
		return nil, nil, fmt.Errorf("refusing to write invalid file: %w", err)
	}
	return header, data, nil
}

// WriteFile encodes f into the file at path, replacing any existing file.
func WriteFile(path string, f *File) (err error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	buf := bufio.NewWriter(file)
	if err := Encode(buf, f); err != nil {
		return err
	}
	return buf.Flush()
}
