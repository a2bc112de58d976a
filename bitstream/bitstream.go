// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bitstream assembles DCC packets into an ordered sequence of
// PWM-word-aligned events ready for the qbitstream compiler, per spec.md
// §3 and §4.5.
package bitstream

import (
	"fmt"

	"github.com/railwire/dcc/packet"
	"github.com/railwire/dcc/timing"
)

// EventKind identifies which variant a BitstreamEvent is.
type EventKind int

const (
	EventData EventKind = iota
	EventRailComCutoutStart
	EventRailComCutoutEnd
	EventDebugStart
	EventDebugEnd
	EventLoopStart
	EventBreakpoint
)

func (k EventKind) String() string {
	switch k {
	case EventData:
		return "Data"
	case EventRailComCutoutStart:
		return "RailComCutoutStart"
	case EventRailComCutoutEnd:
		return "RailComCutoutEnd"
	case EventDebugStart:
		return "DebugStart"
	case EventDebugEnd:
		return "DebugEnd"
	case EventLoopStart:
		return "LoopStart"
	case EventBreakpoint:
		return "Breakpoint"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a single BitstreamEvent (spec.md §3). Word and Size are only
// meaningful when Kind == EventData.
type Event struct {
	Kind EventKind
	Word uint32
	Size int
}

// Bitstream is an ordered, append-only sequence of Events plus the derived
// SignalTiming used to translate logical bits and packets into physical
// pulse counts. Invariant: no two adjacent events are both Data with the
// first's Size < WordSize (spec.md §3, §8 coalescence invariant).
type Bitstream struct {
	wordSize int
	timing   *timing.SignalTiming
	events   []Event
}

// New returns an empty Bitstream with the given word size (bits per Data
// event, e.g. 32 for a bcm283x PWM FIFO word) and physical pulse width.
func New(wordSize int, pulseWidthUs float64) (*Bitstream, error) {
	if wordSize < 1 || wordSize > 32 {
		return nil, fmt.Errorf("bitstream: invalid word size %d", wordSize)
	}
	st, err := timing.New(pulseWidthUs)
	if err != nil {
		return nil, err
	}
	return &Bitstream{wordSize: wordSize, timing: st}, nil
}

// WordSize returns the configured Data event word width, in bits.
func (b *Bitstream) WordSize() int { return b.wordSize }

// Timing returns the SignalTiming this Bitstream was constructed with.
func (b *Bitstream) Timing() *timing.SignalTiming { return b.timing }

// Events returns the events appended so far. The slice is shared with the
// Bitstream's internal state and must not be mutated.
func (b *Bitstream) Events() []Event { return b.events }

// Len reports the number of events.
func (b *Bitstream) Len() int { return len(b.events) }

// Last returns the last appended event and whether one exists.
func (b *Bitstream) Last() (Event, bool) {
	if len(b.events) == 0 {
		return Event{}, false
	}
	return b.events[len(b.events)-1], true
}

// AppendPhysicalBits appends the least-significant count bits of bits,
// msb-aligned, extending the last event in place if it is a Data event
// with room, or pushing new Data events otherwise (spec.md §4.5).
func (b *Bitstream) AppendPhysicalBits(bits uint32, count int) error {
	if count <= 0 {
		return fmt.Errorf("bitstream: physical bit count must be > 0, got %d", count)
	}
	remaining := count
	for remaining > 0 {
		var curWord uint32
		var curSize int
		extending := false
		if n := len(b.events); n > 0 && b.events[n-1].Kind == EventData && b.events[n-1].Size < b.wordSize {
			curWord = b.events[n-1].Word
			curSize = b.events[n-1].Size
			extending = true
		}
		free := b.wordSize - curSize
		take := free
		if take > remaining {
			take = remaining
		}
		shift := uint(remaining - take)
		mask := uint32((1 << uint(take)) - 1)
		chunk := (bits >> shift) & mask
		place := uint(b.wordSize - curSize - take)
		curWord |= chunk << place
		curSize += take
		remaining -= take
		if extending {
			b.events[len(b.events)-1].Word = curWord
			b.events[len(b.events)-1].Size = curSize
		} else {
			b.events = append(b.events, Event{Kind: EventData, Word: curWord, Size: curSize})
		}
	}
	return nil
}

const (
	allOnes32 = 0xFFFFFFFF
)

func (b *Bitstream) appendPhysicalRun(value int, count int) error {
	if count <= 0 {
		return nil
	}
	var bits uint32
	if value != 0 {
		bits = allOnes32
	}
	return b.AppendPhysicalBits(bits, count)
}

// AppendLogicalBit appends one logical bit: a 1 is one_bit_length physical
// 1s then one_bit_length physical 0s; a 0 uses zero_bit_length for both
// halves (spec.md §4.5, GLOSSARY).
func (b *Bitstream) AppendLogicalBit(bit int) error {
	var n int
	if bit != 0 {
		n = b.timing.OneBitLength()
	} else {
		n = b.timing.ZeroBitLength()
	}
	if err := b.appendPhysicalRun(1, n); err != nil {
		return err
	}
	return b.appendPhysicalRun(0, n)
}

// AppendPreamble appends length logical 1s; the caller always supplies
// length (spec.md §4.5 / GLOSSARY "Preamble" use 14).
func (b *Bitstream) AppendPreamble(length int) error {
	for i := 0; i < length; i++ {
		if err := b.AppendLogicalBit(1); err != nil {
			return err
		}
	}
	return nil
}

// AppendPacket appends a framed packet: for each byte, a logical-0 start
// bit then 8 logical bits msb-first; finally a logical-1 end bit (spec.md
// §4.5).
func (b *Bitstream) AppendPacket(bytes []byte) error {
	for _, by := range bytes {
		if err := b.AppendLogicalBit(0); err != nil {
			return err
		}
		for i := 7; i >= 0; i-- {
			if err := b.AppendLogicalBit(int((by >> uint(i)) & 1)); err != nil {
				return err
			}
		}
	}
	return b.AppendLogicalBit(1)
}

// AppendDebugStart marks the start of a debug-strobe window, independent
// of any packet transmission.
func (b *Bitstream) AppendDebugStart() {
	b.events = append(b.events, Event{Kind: EventDebugStart})
}

// AppendDebugEnd marks the end of a debug-strobe window.
func (b *Bitstream) AppendDebugEnd() {
	b.events = append(b.events, Event{Kind: EventDebugEnd})
}

// AppendLoopStart marks the beginning of the repeating section.
func (b *Bitstream) AppendLoopStart() {
	b.events = append(b.events, Event{Kind: EventLoopStart})
}

// AppendBreakpoint marks a point where the bitstream's transmission may
// transfer onto another queued bitstream.
func (b *Bitstream) AppendBreakpoint() {
	b.events = append(b.events, Event{Kind: EventBreakpoint})
}

// AppendRailComCutout emits one-bit pairs up to the timing's RailCom
// length, splicing a RailComCutoutStart marker at exactly
// railcom_delay_length physical bits from the start of this call and a
// RailComCutoutEnd marker at exactly railcom_length physical bits
// (spec.md §4.5).
func (b *Bitstream) AppendRailComCutout() error {
	delay := b.timing.RailComDelayLength()
	total := b.timing.RailComLength()
	oneBit := b.timing.OneBitLength()
	if oneBit <= 0 || total <= 0 {
		return fmt.Errorf("bitstream: invalid RailCom timing (one_bit_length=%d, railcom_length=%d)", oneBit, total)
	}
	for pos := 0; pos < total; pos++ {
		if pos == delay {
			b.events = append(b.events, Event{Kind: EventRailComCutoutStart})
		}
		seg := pos / oneBit
		value := 0
		if seg%2 == 0 {
			value = 1
		}
		if err := b.appendPhysicalRun(value, 1); err != nil {
			return err
		}
	}
	b.events = append(b.events, Event{Kind: EventRailComCutoutEnd})
	return nil
}

// AppendOperationsModePacket appends a complete operations-mode
// transmission: preamble, an optional DebugStart marker, the packet, the
// RailCom cutout, and an optional DebugEnd marker (spec.md §4.5).
func (b *Bitstream) AppendOperationsModePacket(pkt packet.Packet, preambleLength int, debug bool) error {
	if err := b.AppendPreamble(preambleLength); err != nil {
		return err
	}
	if debug {
		b.events = append(b.events, Event{Kind: EventDebugStart})
	}
	raw, err := pkt.Bytes()
	if err != nil {
		return err
	}
	if err := b.AppendPacket(raw); err != nil {
		return err
	}
	if err := b.AppendRailComCutout(); err != nil {
		return err
	}
	if debug {
		b.events = append(b.events, Event{Kind: EventDebugEnd})
	}
	return nil
}
