package device

// Format is the memory layout of a tensor.
type Format int

// FormatND is a dense row-major layout.
const FormatND Format = 2

// Tensor is the device-native descriptor operators consume. It mirrors the
// shape, element type and address of memory owned elsewhere and never owns
// that memory itself.
type Tensor struct {
	shape     []int64
	strides   []int64
	dtype     DataType
	format    Format
	addr      Ptr
	destroyed bool
}

// NewTensor builds a row-major descriptor.
func NewTensor(shape []int, dtype DataType, addr Ptr) *Tensor {
	t := &Tensor{
		shape:   make([]int64, len(shape)),
		strides: make([]int64, len(shape)),
		dtype:   dtype,
		format:  FormatND,
		addr:    addr,
	}
	stride := int64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		t.shape[i] = int64(shape[i])
		t.strides[i] = stride
		stride *= int64(shape[i])
	}
	return t
}

// Shape returns the dimensions.
func (t *Tensor) Shape() []int64 { return t.shape }

// Strides returns element strides.
func (t *Tensor) Strides() []int64 { return t.strides }

// DataType returns the element type tag.
func (t *Tensor) DataType() DataType { return t.dtype }

// Format returns the layout.
func (t *Tensor) Format() Format { return t.format }

// Addr returns the bound device address.
func (t *Tensor) Addr() Ptr { return t.addr }

// NumElements returns the element count.
func (t *Tensor) NumElements() int {
	n := 1
	for _, d := range t.shape {
		n *= int(d)
	}
	return n
}

// Valid reports whether the descriptor may still be used.
func (t *Tensor) Valid() bool { return t != nil && !t.destroyed }

// Destroy invalidates the descriptor. The memory it points to is not freed.
func (t *Tensor) Destroy() {
	if t == nil {
		return
	}
	t.destroyed = true
	t.addr = 0
}
