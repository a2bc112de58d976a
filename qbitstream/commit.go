// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package qbitstream

// Commit rebases every ControlBlock's offsets into bus addresses: source
// addresses and in-data destination addresses (the flag cell) against
// dataBusAddress, and next-control-block links against
// controlBlockBusAddress. Peripheral register destinations are already
// absolute bus addresses and are left untouched (spec.md §4.7). Commit
// panics if called more than once on the same QueuedBitstream — rebasing
// twice would corrupt the offsets beyond recovery, and a caller that needs
// to commit twice almost certainly holds a stale QueuedBitstream by
// mistake.
func (qb *QueuedBitstream) Commit(controlBlockBusAddress, dataBusAddress uint32) {
	if qb.committed {
		panic(ErrCommitOnceOnly)
	}
	for i := range qb.ControlBlocks {
		cb := &qb.ControlBlocks[i]
		cb.SourceAddress += dataBusAddress
		if cb.DestInData {
			cb.DestinationAddress += dataBusAddress
		}
		cb.NextControlBlock += controlBlockBusAddress
	}
	qb.controlBlockBusAddress = controlBlockBusAddress
	qb.dataBusAddress = dataBusAddress
	qb.committed = true
}

// BusAddress returns the bus address of the Start block — where a DMA
// channel, or a predecessor QueuedBitstream's End block, should point to
// begin this QueuedBitstream. Valid only after Commit.
func (qb *QueuedBitstream) BusAddress() uint32 { return qb.controlBlockBusAddress }

// Committed reports whether Commit has run.
func (qb *QueuedBitstream) Committed() bool { return qb.committed }

// FirstControlBlockOffset is the byte offset, within the control-block
// buffer, of the block a DMA channel should be pointed at to start this
// QueuedBitstream (always the Start block).
func (qb *QueuedBitstream) FirstControlBlockOffset() uint32 { return 0 }

// ByteSize returns the number of bytes the ControlBlocks and Data buffers
// occupy, in that order, so a caller can size a single allocation to hold
// both (host/pmem.Alloc).
func (qb *QueuedBitstream) ByteSize() (controlBlocks, data int) {
	return len(qb.ControlBlocks) * ControlBlockWords * 4, len(qb.Data) * 4
}
