package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/born-ml/lowbit/internal/tensor"
)

// File is a decoded SafeTensors file.
type File struct {
	Tensors  map[string]*tensor.RawTensor
	Metadata map[string]string
}

// Names returns the tensor names in data order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Tensors))
	for name := range f.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Read decodes a SafeTensors image. Tensors own copies of their bytes.
func Read(data []byte) (*File, error) {
	if len(data) < 8 {
		return nil, &ValidationError{Err: ErrTruncated, Details: fmt.Sprintf("%d bytes", len(data))}
	}
	headerSize := binary.LittleEndian.Uint64(data[:8])
	if headerSize > MaxHeaderSize {
		return nil, &ValidationError{
			Err:     ErrHeaderTooLarge,
			Details: fmt.Sprintf("%d bytes, max %d", headerSize, MaxHeaderSize),
		}
	}
	if headerSize > uint64(len(data)-8) {
		return nil, &ValidationError{
			Err:     ErrTruncated,
			Details: fmt.Sprintf("header of %d bytes in a %d byte file", headerSize, len(data)),
		}
	}
	body := data[8+headerSize:]

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerSize], &raw); err != nil {
		return nil, errors.Wrap(err, "failed to parse header")
	}

	f := &File{Tensors: make(map[string]*tensor.RawTensor, len(raw))}
	if m, ok := raw["__metadata__"]; ok {
		if err := json.Unmarshal(m, &f.Metadata); err != nil {
			return nil, errors.Wrap(err, "failed to parse metadata")
		}
		delete(raw, "__metadata__")
	}

	headers := make(map[string]TensorHeader, len(raw))
	spans := make([]span, 0, len(raw))
	for name, msg := range raw {
		if err := ValidateTensorName(name); err != nil {
			return nil, err
		}
		var h TensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, errors.Wrapf(err, "failed to parse header of %q", name)
		}
		headers[name] = h
		spans = append(spans, span{Name: name, Offset: h.DataOffsets[0], Size: h.DataOffsets[1] - h.DataOffsets[0]})
	}
	if err := validateOffsets(spans, int64(len(body))); err != nil {
		return nil, err
	}

	if sum, ok := f.Metadata[ChecksumKey]; ok {
		if err := ValidateChecksum(body, sum); err != nil {
			return nil, err
		}
	}

	for name, h := range headers {
		t, err := decodeTensor(name, h, body[h.DataOffsets[0]:h.DataOffsets[1]])
		if err != nil {
			return nil, err
		}
		f.Tensors[name] = t
	}
	return f, nil
}

// ReadFile reads a SafeTensors file.
func ReadFile(path string) (*File, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for loading
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	return Read(data)
}

func decodeTensor(name string, h TensorHeader, data []byte) (*tensor.RawTensor, error) {
	entry, err := entryByName(h.DType)
	if err != nil {
		return nil, errors.Wrapf(err, "tensor %q", name)
	}
	dtype, err := entry.descr()
	if err != nil {
		return nil, err
	}

	shape := make(tensor.Shape, len(h.Shape))
	for i, dim := range h.Shape {
		shape[i] = int(dim)
		if int64(shape[i]) != dim {
			return nil, errors.Errorf("tensor %q: dimension %d does not fit in int", name, dim)
		}
	}
	n, err := shape.Size()
	if err != nil {
		return nil, errors.Wrapf(err, "tensor %q", name)
	}
	if want := entry.dataSize(n, dtype.ItemSize); want != int64(len(data)) {
		return nil, &ValidationError{
			Err:     ErrSizeMismatch,
			Tensor:  name,
			Details: fmt.Sprintf("%s %v needs %d bytes, header gives %d", h.DType, h.Shape, want, len(data)),
		}
	}

	var buf []byte
	if entry.nibbles {
		buf = unpackNibbles(data, n)
	} else {
		buf = append([]byte(nil), data...)
	}
	return tensor.FromBytes(shape, dtype, buf)
}
