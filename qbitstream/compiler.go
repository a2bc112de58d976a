// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package qbitstream

import "github.com/railwire/dcc/bitstream"

// maxPasses bounds the number of times Parse re-scans from restartFrom
// before giving up. The state space (range x pending delayed events) is
// finite, so a correct bitstream always closes its loop in far fewer
// passes than this; it exists only to turn a latent bug into a returned
// error instead of a hang.
const maxPasses = 100000

// Parse compiles bs's events onto qb, appending ControlBlocks and Data
// words, and finishes by emitting the End block once it detects the
// bitstream has returned to a control-block state it has already produced
// (spec.md §4.6). It may be called only once per QueuedBitstream.
func (qb *QueuedBitstream) Parse(bs *bitstream.Bitstream) error {
	if qb.loopClosed {
		return errAlreadyParsed
	}
	events := bs.Events()
	hasData := false
	for _, e := range events {
		if e.Kind == bitstream.EventData {
			hasData = true
			break
		}
	}
	if !hasData {
		return &ContainsNoDataError{EventCount: len(events)}
	}

	for pass := 0; pass < maxPasses; pass++ {
		for i := qb.restartFrom; i < len(events); i++ {
			ev := events[i]
			switch ev.Kind {
			case bitstream.EventData:
				exit, err := qb.processData(i, ev)
				if err != nil {
					return err
				}
				if exit {
					qb.emitEnd()
					qb.loopClosed = true
					return nil
				}
			case bitstream.EventRailComCutoutStart, bitstream.EventRailComCutoutEnd,
				bitstream.EventDebugStart, bitstream.EventDebugEnd:
				qb.delayedEvents = append(qb.delayedEvents, delayedEvent{kind: ev.Kind, delay: EventDelay})
			case bitstream.EventLoopStart:
				if qb.pendingValid {
					qb.flushPending()
				}
				qb.restartFrom = i + 1
			case bitstream.EventBreakpoint:
				qb.breakpoints = append(qb.breakpoints, BreakpointRecord{
					ControlBlockOffset: len(qb.ControlBlocks),
					Range:              qb.rng,
					DelayedEvents:      cloneDelayed(qb.delayedEvents),
				})
			}
		}
	}
	return errLoopNeverClosed
}

// processData runs the per-Data-word decision (spec.md §4.6 steps 1-5). It
// returns exit=true once it detects the compiler has returned to a state
// it has already produced a control block for.
func (qb *QueuedBitstream) processData(i int, ev bitstream.Event) (exit bool, err error) {
	cur := compilerState{rng: qb.rng, delayedEvents: qb.delayedEvents}
	if hist, ok := qb.stateAt[i]; ok && hist.equal(cur) {
		if cbIdx, ok2 := qb.cbIndexAt[i]; ok2 {
			qb.loopTarget = cbIdx
			return true, nil
		}
		if qb.pendingValid && qb.pendingIndex == i {
			qb.loopTarget = qb.flushPending()
			return true, nil
		}
	}

	if !qb.pendingValid {
		qb.pendingIndex = i
		qb.pendingValid = true
		qb.stateAt[i] = cur.clone()
	}
	qb.pendingWords = append(qb.pendingWords, ev.Word)

	var due []delayedEvent
	kept := qb.delayedEvents[:0:0]
	for _, de := range qb.delayedEvents {
		de.delay--
		if de.delay <= 0 {
			due = append(due, de)
		} else {
			kept = append(kept, de)
		}
	}
	qb.delayedEvents = kept

	size := uint32(ev.Size)
	if size == qb.rng && len(due) == 0 {
		return false, nil
	}
	return false, qb.flush(size, due)
}

// flushPending appends the accumulated pendingWords as a Data block and
// returns its control-block index, clearing the pending run. It is the
// immediate-flush path used wherever there's no size-change/due-event
// context to pass to flush: LoopStart, and closing the loop onto a state
// whose pending run was never flushed by an ordinary size/delay trigger.
func (qb *QueuedBitstream) flushPending() int {
	off := qb.appendData(qb.pendingWords...)
	n := uint32(len(qb.pendingWords))
	cbIdx := qb.appendBlock(ControlBlock{
		Kind:               KindData,
		TransferInfo:       TIWaitResp | TISrcInc | TIDstDReq | PerMapPWM(),
		SourceAddress:      off,
		DestinationAddress: qb.Layout.PWMFIFOAddress,
		TransferLength:     n * 4,
	})
	qb.cbIndexAt[qb.pendingIndex] = cbIdx
	qb.pendingWords = nil
	qb.pendingValid = false
	return cbIdx
}

func (qb *QueuedBitstream) flush(size uint32, due []delayedEvent) error {
	qb.flushPending()

	if size != qb.rng {
		qb.emitRange(size)
		qb.rng = size
	}
	if len(due) > 0 {
		qb.emitGPIO(due)
	}
	return nil
}

func (qb *QueuedBitstream) emitRange(size uint32) {
	off := qb.appendData(size)
	qb.appendBlock(ControlBlock{
		Kind:               KindRange,
		TransferInfo:       TIWaitResp | TISrcInc,
		SourceAddress:      off,
		DestinationAddress: qb.Layout.PWMRangeAddress,
		TransferLength:     4,
	})
}

// emitGPIO combines every due marker into one GPIO control block. When two
// due markers target the same pin, the one appearing later in due (i.e.
// that fired more recently) wins (spec.md §9 open question (b)).
func (qb *QueuedBitstream) emitGPIO(due []delayedEvent) {
	var setMask, clearMask [2]uint32
	for _, de := range due {
		bank, mask := qb.pinFor(de.kind)
		setMask[bank] &^= mask
		clearMask[bank] &^= mask
		if setsPinHigh(de.kind) {
			setMask[bank] |= mask
		} else {
			clearMask[bank] |= mask
		}
	}
	off := qb.appendData(setMask[0], setMask[1], clearMask[0], clearMask[1])
	qb.appendBlock(ControlBlock{
		Kind:               KindGPIO,
		TransferInfo:       TIWaitResp | TISrcInc | TIDstInc | TITransfer2DMode,
		SourceAddress:      off,
		DestinationAddress: qb.Layout.GPIOSetAddress,
		TransferLength:     8 | (2 << 16), // 8 bytes (2 words) per row, 2 rows (set row, clear row)
		// One-word (4-byte) destination stride (none at the source) bridges
		// the reserved register between GPSET0/1 and GPCLR0/1, landing the
		// clear row exactly on GPCLR0 instead of the reserved word.
		Stride: 4 << 16,
	})
}

func (qb *QueuedBitstream) pinFor(kind bitstream.EventKind) (bank int, mask uint32) {
	switch kind {
	case bitstream.EventRailComCutoutStart, bitstream.EventRailComCutoutEnd:
		return pinBank(qb.Layout.RailComPin)
	default:
		return pinBank(qb.Layout.DebugPin)
	}
}

// setsPinHigh decides the set/clear polarity for each marker kind: a
// cutout start pulls the signal pin low (silencing the track driver for
// RailCom), its end restores it; a debug strobe goes high for the
// duration it brackets.
func setsPinHigh(kind bitstream.EventKind) bool {
	switch kind {
	case bitstream.EventRailComCutoutEnd, bitstream.EventDebugStart:
		return true
	default:
		return false
	}
}

func (qb *QueuedBitstream) emitEnd() {
	idx := qb.appendBlock(ControlBlock{
		Kind:               KindEnd,
		TransferInfo:       TIWaitResp | TISrcInc,
		SourceAddress:      dataByteOffset(endConstIndex),
		DestinationAddress: dataByteOffset(flagCellIndex),
		DestInData:         true,
		TransferLength:     4,
	})
	target := qb.loopTarget
	if target < 0 {
		target = idx
	}
	qb.ControlBlocks[idx].NextControlBlock = cbByteOffset(target)
}

func cloneDelayed(in []delayedEvent) []delayedEvent {
	out := make([]delayedEvent, len(in))
	copy(out, in)
	return out
}
