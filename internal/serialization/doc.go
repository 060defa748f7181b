// Package serialization implements the binary file format for trained
// networks and training checkpoints.
//
//	Format Structure:
//	  0x00 [4 bytes:  Magic "MLPN"]
//	  0x04 [4 bytes:  Version (uint32 LE)]
//	  0x08 [4 bytes:  Flags (uint32 LE)]
//	  0x0C [4 bytes:  Reserved]
//	  0x10 [8 bytes:  Header Size (uint64 LE)]
//	  0x18 [8 bytes:  Data Size (uint64 LE)]
//	  0x20 [32 bytes: SHA-256 of the data section]
//	  0x40 [Header: JSON metadata]
//	       [Padding to a 64-byte boundary]
//	       [Tensor data: little-endian IEEE-754 float64, row-major]
//
// The JSON header lists the layers in order (in, out, activation) and every
// tensor's name, shape, offset and size. Network weights are stored as
// "layers.{i}.weight" followed by "layers.{i}.bias". Checkpoints add
// optimizer buffers under the "optimizer." prefix.
//
// Values are written bit for bit, so a decoded network computes exactly
// what the encoded one did.
//
// Example usage:
//
//	f := &serialization.File{Layers: layers, Tensors: tensors}
//	if err := serialization.WriteFile("model.mlpn", f); err != nil {
//	    log.Fatal(err)
//	}
//
//	f, err := serialization.ReadFile("model.mlpn")
package serialization
