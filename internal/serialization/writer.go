package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/born-ml/lowbit/internal/tensor"
)

// headerAlign is the alignment of the data section.
const headerAlign = 8

// TensorHeader represents a tensor in the SafeTensors header.
type TensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Write encodes tensors in SafeTensors format. Tensors are written in
// alphabetical order by name and metadata gains the data checksum.
func Write(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	payloads := make([][]byte, len(names))
	var offset int64
	for i, name := range names {
		raw := tensors[name]
		entry, err := entryFor(raw.DType())
		if err != nil {
			return errors.Wrapf(err, "tensor %q", name)
		}

		data := raw.Data()
		if entry.nibbles {
			data = packNibbles(data)
		}
		payloads[i] = data

		shape := make([]int64, len(raw.Shape()))
		for j, dim := range raw.Shape() {
			shape[j] = int64(dim)
		}
		size := int64(len(data))
		header[name] = TensorHeader{
			DType:       entry.name,
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[ChecksumKey] = ComputeChecksum(payloads...)
	header["__metadata__"] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}
	if pad := (headerAlign - (8+len(headerJSON))%headerAlign) % headerAlign; pad > 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte{' '}, pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return errors.Wrap(err, "failed to write header size")
	}
	if _, err := w.Write(headerJSON); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for i, data := range payloads {
		if _, err := w.Write(data); err != nil {
			return errors.Wrapf(err, "failed to write tensor %s", names[i])
		}
	}
	return nil
}

// WriteFile writes tensors to a SafeTensors file.
func WriteFile(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) (err error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for saving
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "failed to close file")
		}
	}()
	return Write(file, tensors, metadata)
}
