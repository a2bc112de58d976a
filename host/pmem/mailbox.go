// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pmem

import (
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mailbox talks to the VideoCore GPU's property-channel interface at
// /dev/vcio to allocate and lock physically-contiguous memory — the only
// memory a DMA control block can safely reference (spec.md §6). Grounded
// on the same mailbox protocol the teacher's host/videocore package
// speaks, rewritten against golang.org/x/sys/unix instead of syscall.
type mailbox struct {
	mu   sync.Mutex
	file *os.File
}

const (
	mbIoctl = 0xc0046400 // _IOWR(100, 0, char *)

	mbAllocateMemory = 0x3000c
	mbLockMemory     = 0x3000d
	mbUnlockMemory   = 0x3000e
	mbReleaseMemory  = 0x3000f
	mbReply          = 0x80000000

	flagDirect = 1 << 2 // uncached ("C alias"), required for DMA-visible memory
)

func openMailbox() (*mailbox, error) {
	f, err := os.OpenFile("/dev/vcio", os.O_RDWR, 0)
	if err != nil {
		return nil, wrapf("opening /dev/vcio: %v", err)
	}
	return &mailbox{file: f}, nil
}

func (m *mailbox) close() error { return m.file.Close() }

// genPacket builds a mailbox property-channel message; it must start on a
// 16-byte boundary, hence the padding dance (the GPU only sees the top 28
// bits of the message pointer — the low 4 select a channel).
func genPacket(cmd uint32, replyLen uint32, args ...uint32) []uint32 {
	p := make([]uint32, 48)
	offset := uintptr(unsafe.Pointer(&p[0])) & 15
	b := p[16-offset : 32+16-offset]
	max := uint32(len(args)) * 4
	if replyLen > max {
		max = replyLen
	}
	max = ((max + 3) / 4) * 4
	b[0] = uint32(6*4) + max
	b[2] = cmd
	b[3] = uint32(len(args)) * 4
	b[4] = replyLen
	copy(b[5:], args)
	return b[:6+max/4]
}

func (m *mailbox) send(b []uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, m.file.Fd(), uintptr(mbIoctl), uintptr(unsafe.Pointer(&b[0])))
	if errno != 0 {
		return wrapf("mailbox ioctl: %v", errno)
	}
	if b[1] != mbReply {
		return wrapf("mailbox: unexpected reply flag 0x%08x", b[1])
	}
	return nil
}

func (m *mailbox) tx32(cmd uint32, args ...uint32) (uint32, error) {
	b := genPacket(cmd, 4, args...)
	if err := m.send(b); err != nil {
		return 0, err
	}
	if b[4] != mbReply|4 {
		return 0, wrapf("mailbox: unexpected reply size 0x%08x", b[4])
	}
	return b[5], nil
}
