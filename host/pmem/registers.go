// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pmem

import (
	"os"

	"golang.org/x/sys/unix"
)

// registerWindow is a direct /dev/mem mapping of an existing peripheral
// register block — no GPU allocation involved, unlike Alloc. Grounded on
// the teacher's pmem.Map/pmem.View (host/pmem/view.go), rewritten against
// golang.org/x/sys/unix.
type registerWindow struct {
	words   []uint32
	physAddr uint32
	devMem  *os.File
}

func (w *registerWindow) Words() []uint32    { return w.words }
func (w *registerWindow) BusAddress() uint32 { return w.physAddr }

func (w *registerWindow) Close() error {
	if err := unix.Munmap(byteView(w.words)); err != nil {
		return wrapf("munmap register window: %v", err)
	}
	return w.devMem.Close()
}

// MapRegisters maps size bytes of the peripheral address space starting at
// physAddr directly into this process via /dev/mem, for use as a live
// register window (GPIO, PWM, Clock Manager, DMA). physAddr must already
// be the peripheral's physical (not bus) address; size is rounded up to a
// whole number of pages.
func MapRegisters(physAddr uint32, size int) (Mem, error) {
	devMem, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, wrapf("opening /dev/mem: %v", err)
	}
	pageSize := roundUpPage(size)
	b, err := unix.Mmap(int(devMem.Fd()), int64(physAddr), pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		devMem.Close()
		return nil, wrapf("mmap register window at %#x: %v", physAddr, err)
	}
	return &registerWindow{words: wordsView(b), physAddr: physAddr, devMem: devMem}, nil
}
