// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pmem allocates uncached, physically-contiguous memory for use by
// the DMA engine, via the VideoCore GPU's mailbox property interface
// (spec.md §6, GLOSSARY "Uncached memory"). The allocation and mapping
// calls use golang.org/x/sys/unix rather than the standard library's
// syscall package (SPEC_FULL.md §3).
package pmem

import "fmt"

// Mem is a chunk of physically-contiguous, cache-inhibited memory mapped
// into this process, suitable for a qbitstream.QueuedBitstream's
// ControlBlocks and Data buffers.
type Mem interface {
	// Words is the user-space view of the memory, as 32-bit words — the
	// same granularity qbitstream.ControlBlock and Data use.
	Words() []uint32
	// BusAddress is the address the DMA engine must be given to reach
	// this memory. For Alloc it is the GPU bus address the mailbox lock
	// returned, alias bits included; for MapRegisters it is the physical
	// address that was mapped.
	BusAddress() uint32
	Close() error
}

// roundUpPage rounds size up to the next multiple of the MMU page size.
func roundUpPage(size int) int {
	const pageSize = 4096
	if size <= 0 {
		return pageSize
	}
	return (size + pageSize - 1) &^ (pageSize - 1)
}

// byteSizeForWords returns how many bytes wordCount 32-bit words occupy,
// rounded up to a whole number of pages.
func byteSizeForWords(wordCount int) int {
	return roundUpPage(wordCount * 4)
}

func wrapf(format string, args ...interface{}) error {
	return fmt.Errorf("pmem: "+format, args...)
}
