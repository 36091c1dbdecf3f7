// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package npu runs elementwise kernels over device arrays with broadcasting,
// mixed element types and scoped scratch memory.
//
// Example:
//
//	dev, err := npu.Open(npu.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	a, _ := dev.Upload(colRaw, nil) // shape (4, 1)
//	b, _ := dev.Upload(rowRaw, nil) // shape (1, 3)
//	sum, _ := dev.Add(a, b, 1)      // shape (4, 3)
//	defer sum.Release()
package npu

import (
	"go.uber.org/zap"

	"github.com/born-ml/lowbit/internal/array"
	"github.com/born-ml/lowbit/internal/device/simdev"
	"github.com/born-ml/lowbit/internal/dispatch"
	"github.com/born-ml/lowbit/internal/kernels"
	"github.com/born-ml/lowbit/internal/ops"
	"github.com/born-ml/lowbit/internal/parallel"
	"github.com/born-ml/lowbit/internal/registry"
	"github.com/born-ml/lowbit/internal/tensor"
)

// Config configures the simulated device.
type Config = simdev.Config

// MemoryStats reports device memory usage.
type MemoryStats = simdev.MemoryStats

// ParallelConfig controls how kernels split their loops.
type ParallelConfig = parallel.Config

// Array is an array in device memory. Release it when done.
type Array = array.Array

// Session runs operators; Device embeds one.
type Session = ops.Session

// Phase is a dispatch state.
type Phase = dispatch.Phase

// Dispatch states.
const (
	ShapeResolved     = dispatch.ShapeResolved
	SizeQueried       = dispatch.SizeQueried
	WorkspaceAcquired = dispatch.WorkspaceAcquired
	Executed          = dispatch.Executed
	Synchronized      = dispatch.Synchronized
	Done              = dispatch.Done
	Failed            = dispatch.Failed
)

// DefaultConfig returns the default device configuration.
func DefaultConfig() Config {
	return simdev.DefaultConfig()
}

// DefaultParallelConfig returns kernel parallelism sized to the host.
func DefaultParallelConfig() ParallelConfig {
	return parallel.DefaultConfig()
}

type options struct {
	par      parallel.Config
	dispatch []dispatch.Option
}

// Option configures Open.
type Option func(*options)

// WithParallel sets kernel parallelism.
func WithParallel(cfg ParallelConfig) Option {
	return func(o *options) { o.par = cfg }
}

// WithObserver reports every dispatch transition to fn.
func WithObserver(fn func(op string, p Phase)) Option {
	return func(o *options) { o.dispatch = append(o.dispatch, dispatch.WithObserver(fn)) }
}

// WithLogger logs dispatches of this device to l.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.dispatch = append(o.dispatch, dispatch.WithLogger(l)) }
}

// Device is an open device with its operator session.
type Device struct {
	*ops.Session
	dev *simdev.Device
}

// Open registers the extension types and starts a device.
func Open(cfg Config, opts ...Option) (*Device, error) {
	if err := registry.Init(); err != nil {
		return nil, err
	}
	o := options{par: parallel.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	dev := simdev.New(cfg)
	lib := kernels.New(dev, kernels.WithParallel(o.par))
	return &Device{Session: ops.NewSession(dev, lib, o.dispatch...), dev: dev}, nil
}

// Upload copies a host buffer to the device, converting it to dtype unless
// dtype is nil.
func (d *Device) Upload(raw *tensor.RawTensor, dtype *tensor.Descr) (*Array, error) {
	return array.FromHost(d.dev, raw, dtype)
}

// Download copies an array back to the host. Extension types come back
// packed; use tensor.DefaultTypes().Cast to decode.
func (d *Device) Download(a *Array) (*tensor.RawTensor, error) {
	return a.ToHost()
}

// Stats returns memory statistics.
func (d *Device) Stats() MemoryStats {
	return d.dev.Stats()
}

// Close waits for queued work and reports leaked arrays.
func (d *Device) Close() error {
	return d.dev.Close()
}

// SetLogger sets the logger of the registry, the dispatcher and the device.
func SetLogger(l *zap.Logger) {
	registry.SetLogger(l)
	dispatch.SetLogger(l)
	simdev.SetLogger(l)
}
