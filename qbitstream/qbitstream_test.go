// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package qbitstream

import (
	"testing"

	"github.com/railwire/dcc/bitstream"
)

func testLayout() Layout {
	return Layout{
		PWMFIFOAddress:  0x7E20C000,
		PWMRangeAddress: 0x7E20C010,
		GPIOSetAddress:  0x7E20001C,
		RailComPin:      17,
		DebugPin:        19,
	}
}

func blockKinds(qb *QueuedBitstream) []ControlBlockKind {
	out := make([]ControlBlockKind, len(qb.ControlBlocks))
	for i, cb := range qb.ControlBlocks {
		out[i] = cb.Kind
	}
	return out
}

// TestSingleDataEventCompilesToFourBlocks exercises the minimal case:
// Start, Data, Range, End, with End looping back to Data.
func TestSingleDataEventCompilesToFourBlocks(t *testing.T) {
	bs, err := bitstream.New(32, 14.5)
	if err != nil {
		t.Fatalf("bitstream.New: %v", err)
	}
	if err := bs.AppendPhysicalBits(0xDEADBEEF, 32); err != nil {
		t.Fatalf("AppendPhysicalBits: %v", err)
	}

	qb := New(testLayout())
	if err := qb.Parse(bs); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	kinds := blockKinds(qb)
	want := []ControlBlockKind{KindStart, KindData, KindRange, KindEnd}
	if len(kinds) != len(want) {
		t.Fatalf("control blocks = %v, want kinds %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("control blocks = %v, want kinds %v", kinds, want)
		}
	}
	end := qb.ControlBlocks[3]
	if end.NextControlBlock != cbByteOffset(1) {
		t.Fatalf("End.NextControlBlock = %d, want offset of Data block (index 1) = %d", end.NextControlBlock, cbByteOffset(1))
	}
}

// TestDebugMarkerInsertsGPIOBlock exercises a bitstream whose steady state
// includes a debug strobe: Start, Data([w0]), Range, Data([w1,w2]), GPIO,
// End -> looping back to the second Data block.
func TestDebugMarkerInsertsGPIOBlock(t *testing.T) {
	bs, err := bitstream.New(32, 14.5)
	if err != nil {
		t.Fatalf("bitstream.New: %v", err)
	}
	if err := bs.AppendPhysicalBits(1, 32); err != nil {
		t.Fatalf("AppendPhysicalBits w0: %v", err)
	}
	bs.AppendDebugStart()
	if err := bs.AppendPhysicalBits(2, 32); err != nil {
		t.Fatalf("AppendPhysicalBits w1: %v", err)
	}
	if err := bs.AppendPhysicalBits(3, 32); err != nil {
		t.Fatalf("AppendPhysicalBits w2: %v", err)
	}

	qb := New(testLayout())
	if err := qb.Parse(bs); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	kinds := blockKinds(qb)
	want := []ControlBlockKind{KindStart, KindData, KindRange, KindData, KindGPIO, KindEnd}
	if len(kinds) != len(want) {
		t.Fatalf("control blocks = %v, want kinds %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("control blocks = %v, want kinds %v", kinds, want)
		}
	}
	end := qb.ControlBlocks[5]
	if end.NextControlBlock != cbByteOffset(3) {
		t.Fatalf("End.NextControlBlock = %d, want offset of the [w1,w2] Data block (index 3) = %d", end.NextControlBlock, cbByteOffset(3))
	}

	// The Data block at index 3 should hold exactly the two words [2, 3].
	dataCB := qb.ControlBlocks[3]
	wordIdx := dataCB.SourceAddress / 4
	if qb.Data[wordIdx] != 2 || qb.Data[wordIdx+1] != 3 {
		t.Fatalf("second Data block words = [%d, %d], want [2, 3]", qb.Data[wordIdx], qb.Data[wordIdx+1])
	}

	// The GPIO block's 2D transfer must write the set row then the clear
	// row with a one-word destination stride, so the clear row lands on
	// GPCLR0 instead of the reserved register between GPSET1 and GPCLR0.
	gpio := qb.ControlBlocks[4]
	if gpio.DestinationAddress != testLayout().GPIOSetAddress {
		t.Fatalf("GPIO block DestinationAddress = %#x, want GPIOSetAddress %#x", gpio.DestinationAddress, testLayout().GPIOSetAddress)
	}
	if gpio.TransferLength != 8|(2<<16) {
		t.Fatalf("GPIO block TransferLength = %#x, want 2 words (8 bytes) per row, 2 rows", gpio.TransferLength)
	}
	if gpio.Stride != 4<<16 {
		t.Fatalf("GPIO block Stride = %#x, want a one-word destination stride (4<<16 bytes) and none at the source", gpio.Stride)
	}
}

// TestLoopDetectionFlushesPendingWordsWithoutAMarker exercises a steady
// state with no RailCom/Debug marker at all: three same-size Data events
// whose repeating period only becomes apparent once the compiler has
// wrapped around past the initial Range-setting transient. This used to
// exit without ever flushing the still-open pending Data run, producing an
// End block whose NextControlBlock pointed at itself instead of at the
// words the run accumulated.
func TestLoopDetectionFlushesPendingWordsWithoutAMarker(t *testing.T) {
	bs, err := bitstream.New(32, 14.5)
	if err != nil {
		t.Fatalf("bitstream.New: %v", err)
	}
	for _, w := range []uint32{0xAAAAAAAA, 0xBBBBBBBB, 0xCCCCCCCC} {
		if err := bs.AppendPhysicalBits(w, 32); err != nil {
			t.Fatalf("AppendPhysicalBits(%#x): %v", w, err)
		}
	}

	qb := New(testLayout())
	if err := qb.Parse(bs); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	kinds := blockKinds(qb)
	want := []ControlBlockKind{KindStart, KindData, KindRange, KindData, KindEnd}
	if len(kinds) != len(want) {
		t.Fatalf("control blocks = %v, want kinds %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("control blocks = %v, want kinds %v", kinds, want)
		}
	}

	endIdx := len(qb.ControlBlocks) - 1
	end := qb.ControlBlocks[endIdx]
	if end.NextControlBlock == cbByteOffset(endIdx) {
		t.Fatal("End.NextControlBlock loops onto itself; the pending Data run was dropped")
	}
	if end.NextControlBlock != cbByteOffset(3) {
		t.Fatalf("End.NextControlBlock = %d, want offset of the repeating Data block (index 3) = %d", end.NextControlBlock, cbByteOffset(3))
	}

	loopCB := qb.ControlBlocks[3]
	wordIdx := loopCB.SourceAddress / 4
	got := []uint32{qb.Data[wordIdx], qb.Data[wordIdx+1], qb.Data[wordIdx+2]}
	want2 := []uint32{0xBBBBBBBB, 0xCCCCCCCC, 0xAAAAAAAA}
	for i := range want2 {
		if got[i] != want2[i] {
			t.Fatalf("repeating Data block words = %#v, want %#v", got, want2)
		}
	}
}

func TestParseRejectsBitstreamWithNoData(t *testing.T) {
	bs, err := bitstream.New(32, 14.5)
	if err != nil {
		t.Fatalf("bitstream.New: %v", err)
	}
	bs.AppendLoopStart()
	qb := New(testLayout())
	err = qb.Parse(bs)
	var cnd *ContainsNoDataError
	if err == nil {
		t.Fatal("expected ContainsNoDataError")
	}
	if !errorsAs(err, &cnd) {
		t.Fatalf("expected *ContainsNoDataError, got %T: %v", err, err)
	}
}

func errorsAs(err error, target **ContainsNoDataError) bool {
	if e, ok := err.(*ContainsNoDataError); ok {
		*target = e
		return true
	}
	return false
}

func TestCommitRebasesAddressesAndForbidsSecondCall(t *testing.T) {
	bs, err := bitstream.New(32, 14.5)
	if err != nil {
		t.Fatalf("bitstream.New: %v", err)
	}
	if err := bs.AppendPhysicalBits(0x11111111, 32); err != nil {
		t.Fatalf("AppendPhysicalBits: %v", err)
	}
	qb := New(testLayout())
	if err := qb.Parse(bs); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	const cbBase, dataBase = 0x40000000, 0x40001000
	dataOffsetBefore := qb.ControlBlocks[1].SourceAddress
	qb.Commit(cbBase, dataBase)

	if got, want := qb.ControlBlocks[1].SourceAddress, dataOffsetBefore+dataBase; got != want {
		t.Fatalf("Data block SourceAddress = %#x, want %#x", got, want)
	}
	if got, want := qb.ControlBlocks[0].DestinationAddress, dataByteOffset(flagCellIndex)+dataBase; got != want {
		t.Fatalf("Start block DestinationAddress = %#x, want %#x (flag cell rebased)", got, want)
	}
	if got, want := qb.ControlBlocks[1].DestinationAddress, testLayout().PWMFIFOAddress; got != want {
		t.Fatalf("Data block DestinationAddress = %#x, want untouched PWM FIFO address %#x", got, want)
	}
	if got, want := qb.ControlBlocks[0].NextControlBlock, cbByteOffset(1)+cbBase; got != want {
		t.Fatalf("Start.NextControlBlock = %#x, want %#x", got, want)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected Commit to panic on second call")
		}
	}()
	qb.Commit(cbBase, dataBase)
}
