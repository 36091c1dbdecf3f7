// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package npu

import "github.com/born-ml/lowbit/internal/errs"

// Error is the error type of every failed operation. It names the operation,
// the phase that failed, the device status and the device diagnostic.
type Error = errs.Error

// Kind categorizes an Error.
type Kind = errs.Kind

// Sentinels for errors.Is.
var (
	ErrAllocationFailure        = errs.ErrAllocationFailure
	ErrOperatorQueryFailure     = errs.ErrOperatorQueryFailure
	ErrOperatorExecutionFailure = errs.ErrOperatorExecutionFailure
	ErrSynchronizationFailure   = errs.ErrSynchronizationFailure
	ErrBroadcastIncompatible    = errs.ErrBroadcastIncompatible
	ErrTypeRegistrationConflict = errs.ErrTypeRegistrationConflict
	ErrUnsupportedDtype         = errs.ErrUnsupportedDtype
	ErrShapeOverflow            = errs.ErrShapeOverflow
	ErrInvalidShape             = errs.ErrInvalidShape
	ErrReleased                 = errs.ErrReleased
)

// KindOf returns the kind of err, or "" if it is not an Error.
func KindOf(err error) Kind {
	return errs.KindOf(err)
}
