// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pmem

import (
	"os"

	"golang.org/x/sys/unix"
)

// busAddressMask strips the GPU's alias bits from a locked-memory address
// to recover the plain physical address /dev/mem is indexed by.
const busAddressMask = 0xC0000000

// mem is the concrete Mem: a GPU-mailbox allocation, mmap'd via /dev/mem.
type mem struct {
	words      []uint32
	busAddress uint32
	handle     uint32
	mb         *mailbox
	devMem     *os.File
}

func (m *mem) Words() []uint32    { return m.words }
func (m *mem) BusAddress() uint32 { return m.busAddress }

func (m *mem) Close() error {
	if err := unix.Munmap(byteView(m.words)); err != nil {
		return wrapf("munmap: %v", err)
	}
	if _, err := m.mb.tx32(mbUnlockMemory, m.handle); err != nil {
		return err
	}
	if _, err := m.mb.tx32(mbReleaseMemory, m.handle); err != nil {
		return err
	}
	if err := m.devMem.Close(); err != nil {
		return wrapf("closing /dev/mem: %v", err)
	}
	return m.mb.close()
}

// Alloc allocates wordCount 32-bit words of physically-contiguous,
// cache-inhibited memory, rounded up to a whole number of pages, and
// returns it mapped into this process. The caller must call Close when
// done, or the allocation remains locked until reboot (spec.md §6).
func Alloc(wordCount int) (Mem, error) {
	if wordCount <= 0 {
		return nil, wrapf("word count must be > 0")
	}
	size := byteSizeForWords(wordCount)

	mb, err := openMailbox()
	if err != nil {
		return nil, err
	}
	handle, err := mb.tx32(mbAllocateMemory, uint32(size), 4096, flagDirect)
	if err != nil {
		mb.close()
		return nil, err
	}
	if handle == 0 {
		mb.close()
		return nil, wrapf("GPU refused to allocate %d bytes", size)
	}
	busAddr, err := mb.tx32(mbLockMemory, handle)
	if err != nil || busAddr == 0 {
		mb.tx32(mbReleaseMemory, handle)
		mb.close()
		return nil, wrapf("locking allocation: %v", err)
	}

	devMem, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		mb.tx32(mbUnlockMemory, handle)
		mb.tx32(mbReleaseMemory, handle)
		mb.close()
		return nil, wrapf("opening /dev/mem: %v", err)
	}
	physAddr := int64(busAddr &^ busAddressMask)
	b, err := unix.Mmap(int(devMem.Fd()), physAddr, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		devMem.Close()
		mb.tx32(mbUnlockMemory, handle)
		mb.tx32(mbReleaseMemory, handle)
		mb.close()
		return nil, wrapf("mmap: %v", err)
	}

	return &mem{
		words:      wordsView(b),
		busAddress: busAddr,
		handle:     handle,
		mb:         mb,
		devMem:     devMem,
	}, nil
}
