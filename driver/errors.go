// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package driver

import "errors"

// ErrDriverNotRunning is returned by Enqueue, IsTransmitting and
// IsRepeating when called before Start or after Shutdown.
var ErrDriverNotRunning = errors.New("driver: not running")

// ErrAlreadyRunning is returned by Start when called a second time
// without an intervening Shutdown.
var ErrAlreadyRunning = errors.New("driver: already running")

// AllocationFailedError wraps a failure to obtain DMA-visible memory from
// the Peripheral, keeping the underlying cause available via Unwrap.
type AllocationFailedError struct {
	Err error
}

func (e *AllocationFailedError) Error() string {
	return "driver: allocating DMA memory: " + e.Err.Error()
}

func (e *AllocationFailedError) Unwrap() error { return e.Err }
