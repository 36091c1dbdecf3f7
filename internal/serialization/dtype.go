package serialization

import (
	"github.com/born-ml/lowbit/internal/errs"
	"github.com/born-ml/lowbit/internal/registry"
	"github.com/born-ml/lowbit/internal/tensor"
)

// dtypeEntry binds a SafeTensors dtype name to a host type.
type dtypeEntry struct {
	name    string
	builtin *tensor.Descr
	ext     *registry.TypeDescriptor
	nibbles bool // two elements per byte
}

var dtypeTable = []dtypeEntry{
	{name: "BOOL", builtin: tensor.Bool},
	{name: "U8", builtin: tensor.Uint8},
	{name: "I8", builtin: tensor.Int8},
	{name: "U16", builtin: tensor.Uint16},
	{name: "I16", builtin: tensor.Int16},
	{name: "U32", builtin: tensor.Uint32},
	{name: "I32", builtin: tensor.Int32},
	{name: "U64", builtin: tensor.Uint64},
	{name: "I64", builtin: tensor.Int64},
	{name: "F16", builtin: tensor.Float16},
	{name: "F32", builtin: tensor.Float32},
	{name: "F64", builtin: tensor.Float64},
	{name: "BF16", ext: registry.BFloat16},
	{name: "F8_E5M2", ext: registry.Float8E5M2},
	{name: "F8_E4M3", ext: registry.Float8E4M3FN},
	{name: "F8_E8M0", ext: registry.Float8E8M0},
	{name: "F4", ext: registry.Float4E2M1FN, nibbles: true},
}

// descr returns the live descriptor, registering extension types on demand.
func (e dtypeEntry) descr() (*tensor.Descr, error) {
	if e.builtin != nil {
		return e.builtin, nil
	}
	h, err := registry.Register(e.ext)
	if err != nil {
		return nil, err
	}
	return h.Descr, nil
}

// dataSize is the stored byte size of n elements.
func (e dtypeEntry) dataSize(n, itemSize int) int64 {
	if e.nibbles {
		return int64(n+1) / 2
	}
	return int64(n) * int64(itemSize)
}

func entryByName(name string) (dtypeEntry, error) {
	for _, e := range dtypeTable {
		if e.name == name {
			return e, nil
		}
	}
	return dtypeEntry{}, errs.New(errs.KindUnsupportedDtype).
		Op("safetensors").
		Detail("unknown dtype %q", name).
		Build()
}

func entryFor(d *tensor.Descr) (dtypeEntry, error) {
	var ext *registry.TypeDescriptor
	if !d.IsBuiltin() {
		ext, _ = registry.DescriptorOf(d)
	}
	for _, e := range dtypeTable {
		if (e.builtin != nil && e.builtin == d) || (ext != nil && e.ext == ext) {
			return e, nil
		}
	}
	return dtypeEntry{}, errs.New(errs.KindUnsupportedDtype).
		Op("safetensors").
		Detail("no SafeTensors dtype for %s", d).
		Build()
}

// packNibbles stores one-byte F4 codes two per byte.
func packNibbles(codes []byte) []byte {
	out := make([]byte, (len(codes)+1)/2)
	for i, c := range codes {
		out[i/2] |= (c & 0x0F) << (4 * (i % 2))
	}
	return out
}

func unpackNibbles(packed []byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = (packed[i/2] >> (4 * (i % 2))) & 0x0F
	}
	return out
}
