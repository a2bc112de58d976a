// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package qbitstream compiles a bitstream.Bitstream into a linked list of
// DMA control blocks plus a shared data buffer, per spec.md §4.6/§4.7 — the
// hard part of this module (C6, the largest single share of spec.md's
// component budget).
package qbitstream

import "fmt"

// TransferInfo flags, laid bit-for-bit per the BCM2835 DMA controller (the
// same register the teacher's host/bcm283x/dma.go documents); only the
// subset this compiler ever sets is named.
type TransferInfo uint32

const (
	TINoWideBursts     TransferInfo = 1 << 26
	TIWaitResp         TransferInfo = 1 << 3 // DMA waits for the AXI write response
	TIDstInc           TransferInfo = 1 << 4
	TIDstWidth128      TransferInfo = 1 << 5
	TIDstDReq          TransferInfo = 1 << 6
	TIDstIgnore        TransferInfo = 1 << 7
	TISrcInc           TransferInfo = 1 << 8
	TISrcWidth128      TransferInfo = 1 << 9
	TISrcDReq          TransferInfo = 1 << 10
	TISrcIgnore        TransferInfo = 1 << 11
	TITransfer2DMode   TransferInfo = 1 << 1
	TIInterruptEnable  TransferInfo = 1 << 0
	tiPerMapShift                   = 16
)

// PerMapPWM returns the TransferInfo bits that pace a transfer off the PWM
// peripheral's DREQ signal.
func PerMapPWM() TransferInfo { return TransferInfo(5) << tiPerMapShift }

// ControlBlockKind annotates what role a ControlBlock plays; it has no
// hardware meaning (the DMA engine only sees the fields below it) and
// exists purely so tests and debugging tools can name a block the way
// spec.md §4.6 does ("Start", "Data", "Range", "GPIO", "End").
type ControlBlockKind int

const (
	KindStart ControlBlockKind = iota
	KindData
	KindRange
	KindGPIO
	KindEnd
)

func (k ControlBlockKind) String() string {
	switch k {
	case KindStart:
		return "Start"
	case KindData:
		return "Data"
	case KindRange:
		return "Range"
	case KindGPIO:
		return "GPIO"
	case KindEnd:
		return "End"
	default:
		return fmt.Sprintf("ControlBlockKind(%d)", int(k))
	}
}

// ControlBlock is a DMA engine descriptor (spec.md §3, §6). Addresses are
// offsets relative to the owning QueuedBitstream's buffer start until
// Commit runs, after which they are bus addresses. The layout mirrors the
// real BCM2835 descriptor bit-for-bit (TransferInfo, SourceAddress,
// DestinationAddress, TransferLength, Stride, NextControlBlock, two
// reserved words) so Marshal32 can write it directly into the 32-byte
// aligned wire format the DMA engine reads.
type ControlBlock struct {
	Kind ControlBlockKind

	TransferInfo      TransferInfo
	SourceAddress     uint32
	DestinationAddress uint32
	// DestInData is true when DestinationAddress is a Data-buffer offset
	// (the Start/End flag cell) rather than a peripheral register; Commit
	// rebases it against the data buffer's bus address instead of leaving
	// it untouched.
	DestInData bool
	// TransferLength is either a linear byte count, or (2D mode) x|y<<16.
	TransferLength uint32
	// Stride is (srcStride|dstStride<<16) for 2D mode, each a signed
	// 16-bit byte increment applied after each row.
	Stride           uint32
	NextControlBlock uint32
	Reserved         [2]uint32
}

// Marshal32 writes the control block's 8 32-bit words in wire order
// (TransferInfo, SourceAddress, DestinationAddress, TransferLength,
// Stride, NextControlBlock, Reserved[0], Reserved[1]) into dst, which must
// have length >= 8.
func (cb *ControlBlock) Marshal32(dst []uint32) {
	dst[0] = uint32(cb.TransferInfo)
	dst[1] = cb.SourceAddress
	dst[2] = cb.DestinationAddress
	dst[3] = cb.TransferLength
	dst[4] = cb.Stride
	dst[5] = cb.NextControlBlock
	dst[6] = cb.Reserved[0]
	dst[7] = cb.Reserved[1]
}

// ControlBlockWords is the number of 32-bit words a marshaled ControlBlock
// occupies (32 bytes, the BCM2835-mandated alignment).
const ControlBlockWords = 8
