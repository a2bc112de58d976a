// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package qbitstream

import "github.com/railwire/dcc/bitstream"

// EventDelay is the number of Data words a marker event (RailCom cutout or
// debug strobe) sits pending before it takes effect, giving the DMA engine
// time to queue the GPIO control block alongside the data it brackets
// (GLOSSARY: Breakpoint delay).
const EventDelay = 2

// delayedEvent is a marker event counting down to the word at which its
// GPIO effect must be emitted.
type delayedEvent struct {
	kind  bitstream.EventKind
	delay int
}

// compilerState is the snapshot spec.md §4.6 compares to detect that the
// compiler has returned to a bitstream position in a state it has already
// produced control blocks for — the basis of loop-target detection. Two
// states are equivalent exactly when their range and pending delayed
// events match (spec.md §8, "Loop-target correctness").
type compilerState struct {
	rng           uint32
	delayedEvents []delayedEvent
}

func (s compilerState) equal(o compilerState) bool {
	if s.rng != o.rng || len(s.delayedEvents) != len(o.delayedEvents) {
		return false
	}
	for i := range s.delayedEvents {
		if s.delayedEvents[i] != o.delayedEvents[i] {
			return false
		}
	}
	return true
}

func (s compilerState) clone() compilerState {
	cp := make([]delayedEvent, len(s.delayedEvents))
	copy(cp, s.delayedEvents)
	return compilerState{rng: s.rng, delayedEvents: cp}
}
