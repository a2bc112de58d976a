// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package qbitstream

import "errors"

// ErrNotCommitted is returned by TransferAtBreakpoint when either
// QueuedBitstream involved hasn't had Commit called yet.
var ErrNotCommitted = errors.New("qbitstream: both bitstreams must be committed before transferring")

// ErrBreakpointNotEndOfLoop is returned by TransferAtBreakpoint when the
// predecessor's last control block isn't the End block the breakpoint
// state was captured against.
var ErrBreakpointNotEndOfLoop = errors.New("qbitstream: predecessor's final control block is not an End block")

// NewFromBreakpoint returns a QueuedBitstream seeded with the PWM range
// and pending delayed events recorded at bp, so a call to Parse compiles
// as a true continuation of whatever bitstream the breakpoint came from —
// the supplemented driver operation that lets one train's command queue
// hand off to another's without a glitch in the PWM range or a dropped
// RailCom/debug marker.
func NewFromBreakpoint(layout Layout, bp BreakpointRecord) *QueuedBitstream {
	qb := New(layout)
	qb.rng = bp.Range
	qb.delayedEvents = cloneDelayed(bp.DelayedEvents)
	return qb
}

// TransferAtBreakpoint redirects predecessor's End block to jump into
// successor's Start block instead of looping back on itself, completing a
// breakpoint-based hand-off. Both QueuedBitstreams must already be
// committed, since the redirection writes a real bus address.
func TransferAtBreakpoint(predecessor, successor *QueuedBitstream) error {
	if !predecessor.committed || !successor.committed {
		return ErrNotCommitted
	}
	n := len(predecessor.ControlBlocks)
	if n == 0 || predecessor.ControlBlocks[n-1].Kind != KindEnd {
		return ErrBreakpointNotEndOfLoop
	}
	predecessor.ControlBlocks[n-1].NextControlBlock = successor.BusAddress()
	return nil
}
