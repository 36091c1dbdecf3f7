// Package registry installs the narrow floating-point element types into a
// host type system exactly once and hands out handles to them.
package registry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/born-ml/lowbit/internal/device"
	"github.com/born-ml/lowbit/internal/errs"
	"github.com/born-ml/lowbit/internal/minifloat"
	"github.com/born-ml/lowbit/internal/tensor"
)

// Handle is what registration publishes for one descriptor.
type Handle struct {
	TypeNum int
	Scalar  *ScalarType
	Descr   *tensor.Descr
}

// Registered reports whether h refers to an installed type.
func (h Handle) Registered() bool {
	return h.TypeNum != tensor.NoType
}

// NotRegistered is returned by lookups for descriptors that were never
// installed.
var NotRegistered = Handle{TypeNum: tensor.NoType}

// Registry maps type descriptors to their installed handles.
//
// Reads never block. Installation is serialized so a descriptor is installed
// at most once however many goroutines race to register it.
type Registry struct {
	types *tensor.TypeSystem

	mu      sync.Mutex
	order   []*TypeDescriptor
	handles sync.Map // *TypeDescriptor -> Handle
}

// New returns a registry that installs types into ts.
func New(ts *tensor.TypeSystem) *Registry {
	return &Registry{types: ts}
}

var defaultRegistry = New(tensor.DefaultTypes())

// installed maps every host descriptor created by any registry to the
// descriptor it was installed from. Type numbers are only unique within one
// type system, so host descriptors are matched by identity.
var installed sync.Map // *tensor.Descr -> *TypeDescriptor

// DescriptorOf returns the descriptor descr was installed from, in whichever
// registry installed it.
func DescriptorOf(descr *tensor.Descr) (*TypeDescriptor, bool) {
	if d, ok := installed.Load(descr); ok {
		return d.(*TypeDescriptor), true
	}
	return nil, false
}

// HostDescr returns a host descriptor for the device tag dt. The default
// registry is preferred; otherwise any registry that installed a type with
// that tag is used.
func HostDescr(dt device.DataType) (*tensor.Descr, bool) {
	if _, h, ok := defaultRegistry.ByDeviceType(dt); ok {
		return h.Descr, true
	}
	var found *tensor.Descr
	installed.Range(func(k, v any) bool {
		if v.(*TypeDescriptor).DeviceType == dt {
			found = k.(*tensor.Descr)
			return false
		}
		return true
	})
	return found, found != nil
}

// Default returns the process-wide registry backed by tensor.DefaultTypes.
func Default() *Registry {
	return defaultRegistry
}

// Types returns the host type system the registry installs into.
func (r *Registry) Types() *tensor.TypeSystem {
	return r.types
}

// Register installs d if it is not installed yet and returns its handle.
// Repeated calls return the same handle.
func (r *Registry) Register(d *TypeDescriptor) (Handle, error) {
	if h, ok := r.handles.Load(d); ok {
		return h.(Handle), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles.Load(d); ok {
		return h.(Handle), nil
	}

	if err := validate(d); err != nil {
		return NotRegistered, err
	}

	descr, err := r.types.RegisterDataType(d.descr())
	if err != nil {
		return NotRegistered, err
	}
	if err := r.installCasts(d, descr); err != nil {
		return NotRegistered, err
	}

	h := Handle{
		TypeNum: descr.TypeNum,
		Scalar:  &ScalarType{desc: d, descr: descr},
		Descr:   descr,
	}
	r.order = append(r.order, d)
	r.handles.Store(d, h)
	installed.Store(descr, d)

	Logger().Debug("registered element type",
		zap.String("name", d.QualifiedName),
		zap.Int("type_num", descr.TypeNum),
		zap.String("char", string(d.TypeChar)))
	return h, nil
}

// Lookup returns the handle of d, or NotRegistered.
func (r *Registry) Lookup(d *TypeDescriptor) Handle {
	if h, ok := r.handles.Load(d); ok {
		return h.(Handle)
	}
	return NotRegistered
}

// IsFullyRegistered reports whether every given descriptor is installed.
// With no arguments it checks the whole catalogue.
func (r *Registry) IsFullyRegistered(ds ...*TypeDescriptor) bool {
	if len(ds) == 0 {
		ds = Catalogue()
	}
	for _, d := range ds {
		if _, ok := r.handles.Load(d); !ok {
			return false
		}
	}
	return true
}

// RegisterAll installs the given descriptors in order, or the whole catalogue
// when none are given. It stops at the first failure.
func (r *Registry) RegisterAll(ds ...*TypeDescriptor) error {
	if len(ds) == 0 {
		ds = Catalogue()
	}
	for _, d := range ds {
		if _, err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// ByTypeNum finds the installed descriptor with the given host type number.
func (r *Registry) ByTypeNum(num int) (*TypeDescriptor, Handle, bool) {
	return r.find(func(_ *TypeDescriptor, h Handle) bool { return h.TypeNum == num })
}

// ByDeviceType finds the installed descriptor with the given device tag.
func (r *Registry) ByDeviceType(dt device.DataType) (*TypeDescriptor, Handle, bool) {
	return r.find(func(d *TypeDescriptor, _ Handle) bool { return d.DeviceType == dt })
}

// ByName finds the installed descriptor with the given short or qualified
// name.
func (r *Registry) ByName(name string) (*TypeDescriptor, Handle, bool) {
	return r.find(func(d *TypeDescriptor, _ Handle) bool {
		return d.Name == name || d.QualifiedName == name
	})
}

// Installed returns the installed descriptors in installation order.
func (r *Registry) Installed() []*TypeDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*TypeDescriptor(nil), r.order...)
}

func (r *Registry) find(match func(*TypeDescriptor, Handle) bool) (*TypeDescriptor, Handle, bool) {
	var (
		found *TypeDescriptor
		h     = NotRegistered
	)
	r.handles.Range(func(k, v any) bool {
		d, hv := k.(*TypeDescriptor), v.(Handle)
		if match(d, hv) {
			found, h = d, hv
			return false
		}
		return true
	})
	return found, h, found != nil
}

func validate(d *TypeDescriptor) error {
	fail := func(format string, args ...any) error {
		return errs.New(errs.KindTypeRegistrationConflict).
			Phase(errs.PhaseRegistration).
			Op(d.Name).
			Detail(format, args...).
			Build()
	}
	switch {
	case d == nil:
		return errs.New(errs.KindTypeRegistrationConflict).
			Phase(errs.PhaseRegistration).
			Detail("nil descriptor").
			Build()
	case d.Name == "" || d.Codec == nil:
		return fail("descriptor needs a name and a codec")
	case d.Kind != tensor.KindFloat:
		return fail("unsupported kind %q", d.Kind)
	case d.ItemSize != minifloat.ItemSize(d.Codec):
		return fail("item size %d does not fit %d-bit storage", d.ItemSize, d.Codec.Bits())
	}
	return nil
}

// installCasts wires conversions between descr and the builtin floats, and
// between descr and every extension type installed before it. Callers hold
// r.mu.
func (r *Registry) installCasts(d *TypeDescriptor, descr *tensor.Descr) error {
	if err := r.pair(descr, tensor.Float64); err != nil {
		return err
	}
	if err := r.types.RegisterCastFunc(descr, tensor.Float32, decodeTo32(d.Codec)); err != nil {
		return err
	}
	if err := r.types.RegisterCastFunc(tensor.Float32, descr, encodeFrom32(d.Codec)); err != nil {
		return err
	}
	for _, other := range r.order {
		h, _ := r.handles.Load(other)
		if err := r.pair(descr, h.(Handle).Descr); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) pair(a, b *tensor.Descr) error {
	if err := r.types.RegisterCastFunc(a, b, tensor.ElementwiseCast(a, b)); err != nil {
		return err
	}
	return r.types.RegisterCastFunc(b, a, tensor.ElementwiseCast(b, a))
}

func decodeTo32(c minifloat.Codec) tensor.CastFunc {
	return func(dst, src []byte, n int) {
		out := tensor.Float32Slice(dst, n)
		minifloat.DecodeSlice(c, out, src)
	}
}

func encodeFrom32(c minifloat.Codec) tensor.CastFunc {
	return func(dst, src []byte, n int) {
		in := tensor.Float32Slice(src, n)
		minifloat.EncodeSlice(c, dst, in)
	}
}

// Register installs d into the default registry.
func Register(d *TypeDescriptor) (Handle, error) {
	return defaultRegistry.Register(d)
}

// Lookup returns the handle of d in the default registry.
func Lookup(d *TypeDescriptor) Handle {
	return defaultRegistry.Lookup(d)
}

// IsFullyRegistered checks the default registry.
func IsFullyRegistered(ds ...*TypeDescriptor) bool {
	return defaultRegistry.IsFullyRegistered(ds...)
}

// Init installs the whole catalogue into the default registry.
func Init() error {
	return defaultRegistry.RegisterAll()
}
