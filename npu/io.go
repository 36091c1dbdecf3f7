// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package npu

import (
	"github.com/born-ml/lowbit/internal/array"
	"github.com/born-ml/lowbit/internal/serialization"
	"github.com/born-ml/lowbit/internal/tensor"
)

// ChecksumKey is the metadata key Save records the data checksum under.
const ChecksumKey = serialization.ChecksumKey

// Save downloads arrays and writes them to a SafeTensors file.
// Extension types keep their packed encoding.
func (d *Device) Save(path string, arrays map[string]*Array, metadata map[string]string) error {
	host := make(map[string]*tensor.RawTensor, len(arrays))
	for name, a := range arrays {
		raw, err := a.ToHost()
		if err != nil {
			return err
		}
		host[name] = raw
	}
	return serialization.WriteFile(path, host, metadata)
}

// Load reads a SafeTensors file onto the device. On error no arrays are
// left allocated.
func (d *Device) Load(path string) (map[string]*Array, map[string]string, error) {
	f, err := serialization.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	out := make(map[string]*Array, len(f.Tensors))
	for _, name := range f.Names() {
		a, err := array.FromHost(d.dev, f.Tensors[name], nil)
		if err != nil {
			for _, loaded := range out {
				loaded.Release()
			}
			return nil, nil, err
		}
		out[name] = a
	}
	return out, f.Metadata, nil
}
