package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/mlp/internal/tensor"
)

// Decode reads a file written by Encode.
//
// The fixed header, JSON header and checksum are all verified before any
// tensor is materialized.
func Decode(r io.Reader) (*File, error) {
	fixedHeader := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixedHeader); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}

	// 0x00-0x03: magic
	if string(fixedHeader[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}

	// 0x04-0x07: version
	version := binary.LittleEndian.Uint32(fixedHeader[4:8])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	// 0x10-0x17: header size, 0x18-0x1F: data size
	headerSize := binary.LittleEndian.Uint64(fixedHeader[16:24])
	dataSize := binary.LittleEndian.Uint64(fixedHeader[24:32])
	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	if dataSize > MaxDataSize {
		return nil, ErrDataTooLarge
	}

	// 0x20-0x3F: SHA-256 checksum
	var stored [32]byte
	copy(stored[:], fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header JSON: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	currentPos := int64(FixedHeaderSize) + int64(headerSize)
	if padding := alignedOffset(currentPos) - currentPos; padding > 0 {
		if _, err := io.CopyN(io.Discard, r, padding); err != nil {
			return nil, fmt.Errorf("failed to skip padding: %w", err)
		}
	}

	data := make([]byte, dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if err := ValidateChecksum(ComputeChecksum(data), stored); err != nil {
		return nil, err
	}

	//nolint:gosec // G115: dataSize is bounded by MaxDataSize
	if err := ValidateHeader(&header, int64(dataSize)); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	f := &File{
		Layers:     header.Layers,
		Tensors:    make([]NamedTensor, 0, len(header.Tensors)),
		Metadata:   header.Metadata,
		Checkpoint: header.Checkpoint,
		Creator:    header.Creator,
		CreatedAt:  header.CreatedAt,
	}
	for _, meta := range header.Tensors {
		t, err := decodeTensor(data, meta)
		if err != nil {
			return nil, err
		}
		f.Tensors = append(f.Tensors, NamedTensor{Name: meta.Name, Tensor: t})
	}
	return f, nil
}

func decodeTensor(data []byte, meta TensorMeta) (*tensor.Tensor, error) {
	raw := data[meta.Offset : meta.Offset+meta.Size]
	values := make([]float64, len(raw)/bytesPerElement)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*bytesPerElement:]))
	}
	t, err := tensor.FromSlice(values, meta.Shape...)
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
	}
	return t, nil
}

// ReadFile decodes the file at path.
func ReadFile(path string) (*File, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return Decode(bufio.NewReader(file))
}
