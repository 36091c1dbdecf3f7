package array

import (
	"github.com/born-ml/lowbit/internal/device"
	"github.com/born-ml/lowbit/internal/errs"
	"github.com/born-ml/lowbit/internal/registry"
	"github.com/born-ml/lowbit/internal/tensor"
)

var builtinTags = map[*tensor.Descr]device.DataType{
	tensor.Bool:    device.Bool,
	tensor.Int8:    device.Int8,
	tensor.Uint8:   device.Uint8,
	tensor.Int16:   device.Int16,
	tensor.Uint16:  device.Uint16,
	tensor.Int32:   device.Int32,
	tensor.Uint32:  device.Uint32,
	tensor.Int64:   device.Int64,
	tensor.Uint64:  device.Uint64,
	tensor.Float16: device.Float16,
	tensor.Float32: device.Float32,
	tensor.Float64: device.Float64,
}

var builtinDescrs = func() map[device.DataType]*tensor.Descr {
	m := make(map[device.DataType]*tensor.Descr, len(builtinTags))
	for d, tag := range builtinTags {
		m[tag] = d
	}
	return m
}()

// DeviceType returns the device tag of a host element type. Extension types
// are resolved through the registry that installed them.
func DeviceType(d *tensor.Descr) (device.DataType, error) {
	if d == nil {
		return device.Undefined, errs.Unsupported("nil element type")
	}
	if tag, ok := builtinTags[d]; ok {
		return tag, nil
	}
	if td, ok := registry.DescriptorOf(d); ok {
		return td.DeviceType, nil
	}
	return device.Undefined, errs.New(errs.KindUnsupportedDtype).
		Detail("element type %s has no device representation", d).
		Build()
}

// DescrOf maps a device tag back to its host element type, preferring the
// default registry's descriptor for extension tags.
func DescrOf(dt device.DataType) (*tensor.Descr, error) {
	if d, ok := builtinDescrs[dt]; ok {
		return d, nil
	}
	if d, ok := registry.HostDescr(dt); ok {
		return d, nil
	}
	return nil, errs.New(errs.KindUnsupportedDtype).
		Detail("device type %s is not registered", dt).
		Build()
}
