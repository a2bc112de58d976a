// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package qbitstream

import (
	"errors"
	"fmt"
)

// ErrContainsNoData is returned by Parse when a bitstream produced zero
// Data control blocks — a Start/End pair with nothing to transmit.
var ErrContainsNoData = errors.New("qbitstream: bitstream contains no data")

// ErrCommitOnceOnly is the panic value Commit raises on a second call
// against the same QueuedBitstream.
var ErrCommitOnceOnly = errors.New("qbitstream: Commit called more than once")

// errAlreadyParsed is returned by Parse when called a second time on the
// same QueuedBitstream.
var errAlreadyParsed = errors.New("qbitstream: Parse already closed this QueuedBitstream's loop")

// errLoopNeverClosed signals the maxPasses safety valve tripped; a correct
// compiler never returns this.
var errLoopNeverClosed = errors.New("qbitstream: compiler failed to converge on a loop target")

// ContainsNoDataError wraps ErrContainsNoData with the offending bitstream
// length, so callers can tell an empty loop from a genuinely malformed one.
type ContainsNoDataError struct {
	EventCount int
}

func (e *ContainsNoDataError) Error() string {
	return fmt.Sprintf("qbitstream: bitstream contains no data (scanned %d events, found zero Data words)", e.EventCount)
}

func (e *ContainsNoDataError) Unwrap() error { return ErrContainsNoData }
