// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package qbitstream

// Data buffer slot conventions: index 0 is the flag cell the driver polls
// to tell a completed lap from one still in flight; index 1 holds the
// literal 1 the Start block writes into it; index 2 holds the literal
// 0xFFFFFFFF the End block writes into it.
const (
	flagCellIndex  = 0
	startConstIndex = 1
	endConstIndex  = 2
	reservedDataWords = 3
)

// QueuedBitstream is the compiled, DMA-ready form of one or more
// bitstream.Bitstream values: a chain of ControlBlocks plus the Data words
// they reference, per spec.md §4.6/§4.7.
type QueuedBitstream struct {
	Layout        Layout
	ControlBlocks []ControlBlock
	Data          []uint32

	committed              bool
	controlBlockBusAddress uint32
	dataBusAddress         uint32

	// compiler state used by Parse; NewFromBreakpoint seeds rng and
	// delayedEvents from a predecessor's breakpoint.
	rng           uint32
	delayedEvents []delayedEvent
	pendingWords  []uint32
	pendingIndex  int
	pendingValid  bool
	restartFrom   int
	loopTarget    int
	loopClosed    bool

	stateAt   map[int]compilerState
	cbIndexAt map[int]int

	breakpoints []BreakpointRecord
}

// BreakpointRecord is the state snapshot taken at a bitstream.EventBreakpoint,
// per SPEC_FULL.md's supplemented transfer API: enough to let a successor
// QueuedBitstream resume compiling as though it were a continuation of this
// one (spec.md §4.6 "breakpoints").
type BreakpointRecord struct {
	ControlBlockOffset int
	Range              uint32
	DelayedEvents       []delayedEvent
}

// New returns an empty QueuedBitstream with its flag cell and Start block
// already in place.
func New(layout Layout) *QueuedBitstream {
	qb := &QueuedBitstream{
		Layout:    layout,
		Data:      make([]uint32, reservedDataWords),
		stateAt:   make(map[int]compilerState),
		cbIndexAt: make(map[int]int),
		loopTarget: -1,
	}
	qb.Data[startConstIndex] = 1
	qb.Data[endConstIndex] = 0xFFFFFFFF
	qb.appendBlock(ControlBlock{
		Kind:               KindStart,
		TransferInfo:       TIWaitResp | TISrcInc,
		SourceAddress:      dataByteOffset(startConstIndex),
		DestinationAddress: dataByteOffset(flagCellIndex),
		DestInData:         true,
		TransferLength:     4,
	})
	return qb
}

func dataByteOffset(wordIndex int) uint32 { return uint32(wordIndex) * 4 }

// appendBlock appends cb, chaining the previous tail block's
// NextControlBlock to point at it, and returns cb's index.
func (qb *QueuedBitstream) appendBlock(cb ControlBlock) int {
	idx := len(qb.ControlBlocks)
	if idx > 0 {
		qb.ControlBlocks[idx-1].NextControlBlock = cbByteOffset(idx)
	}
	qb.ControlBlocks = append(qb.ControlBlocks, cb)
	return idx
}

func cbByteOffset(index int) uint32 { return uint32(index) * ControlBlockWords * 4 }

// appendData appends words to the Data buffer and returns the byte offset
// of the first one.
func (qb *QueuedBitstream) appendData(words ...uint32) uint32 {
	off := dataByteOffset(len(qb.Data))
	qb.Data = append(qb.Data, words...)
	return off
}

// Breakpoints returns the state captured at every bitstream.EventBreakpoint
// Parse encountered, in order, for use with NewFromBreakpoint.
func (qb *QueuedBitstream) Breakpoints() []BreakpointRecord { return qb.breakpoints }
