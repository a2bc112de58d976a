// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package drivertest provides an in-memory driver.Peripheral for
// exercising the driver package without any BCM283x hardware — the
// dependency-free unit-testing stand-in the driver package's own tests,
// and any caller's, can build on (SPEC_FULL.md's supplemented testing
// story, in the teacher's periphtest/periphmock spirit).
package drivertest

import (
	"sync"

	"github.com/railwire/dcc/host/pmem"
)

// fakeMem is an in-process pmem.Mem: a plain Go slice standing in for
// mmap'd, physically-contiguous memory. Its "bus address" is just its
// index in the fake peripheral's address space, so DMA redirection
// between two fakeMem allocations behaves the same as the real thing.
type fakeMem struct {
	words  []uint32
	busAddr uint32
	closed  bool
}

func (m *fakeMem) Words() []uint32    { return m.words }
func (m *fakeMem) BusAddress() uint32 { return m.busAddr }
func (m *fakeMem) Close() error       { m.closed = true; return nil }

// Peripheral is a driver.Peripheral that keeps all "DMA memory" as plain
// Go slices and records what the driver asked of it, for assertions in
// tests.
type Peripheral struct {
	mu sync.Mutex

	PWMFIFOAddress  uint32
	PWMRangeAddress uint32
	GPIOSetAddress  uint32

	nextBusAddress uint32

	// Observed state, inspectable after exercising a driver.Driver.
	ConfiguredPins             bool
	DCCPin, RailComPin, DebugPin uint
	ConfiguredPulseWidthUs     float64
	PWMEnabled                 bool
	RunningDMAChannel          *uint
	DMAControlBlockBusAddress  uint32
	Closed                     bool

	allocs []*fakeMem
}

// New returns a Peripheral with made-up but distinguishable register
// addresses.
func New() *Peripheral {
	return &Peripheral{
		PWMFIFOAddress:  0x7e20c000,
		PWMRangeAddress: 0x7e20c010,
		GPIOSetAddress:  0x7e20001c,
		nextBusAddress:  0x1000_0000,
	}
}

func (p *Peripheral) Addresses() (pwmFIFO, pwmRange, gpioSet uint32) {
	return p.PWMFIFOAddress, p.PWMRangeAddress, p.GPIOSetAddress
}

func (p *Peripheral) ConfigurePins(dccPin, railComPin, debugPin uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConfiguredPins = true
	p.DCCPin, p.RailComPin, p.DebugPin = dccPin, railComPin, debugPin
	return nil
}

func (p *Peripheral) ConfigureClock(pulseWidthUs float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConfiguredPulseWidthUs = pulseWidthUs
	return nil
}

func (p *Peripheral) EnablePWM() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PWMEnabled = true
	return nil
}

func (p *Peripheral) DisablePWM() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PWMEnabled = false
	return nil
}

// AllocateUncached hands back a freshly zeroed slice at a fresh,
// monotonically increasing fake bus address — good enough to exercise
// Commit's rebasing and TransferAtBreakpoint's redirection.
func (p *Peripheral) AllocateUncached(wordCount int) (pmem.Mem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := &fakeMem{words: make([]uint32, wordCount), busAddr: p.nextBusAddress}
	p.nextBusAddress += uint32(wordCount)*4 + 4096
	p.allocs = append(p.allocs, m)
	return m, nil
}

func (p *Peripheral) StartDMA(channel uint, controlBlockBusAddress uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := channel
	p.RunningDMAChannel = &c
	p.DMAControlBlockBusAddress = controlBlockBusAddress
	return nil
}

func (p *Peripheral) StopDMA(channel uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RunningDMAChannel = nil
	return nil
}

func (p *Peripheral) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// ClosedAllocations returns how many of the allocations handed out so far
// have had Close called on them.
func (p *Peripheral) ClosedAllocations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.allocs {
		if m.closed {
			n++
		}
	}
	return n
}

// TotalAllocations returns how many allocations AllocateUncached has
// handed out so far.
func (p *Peripheral) TotalAllocations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.allocs)
}

// FindMemByBusAddress returns whichever allocation addr falls within, so
// a test can read/write words at a known bus address (e.g. poll the flag
// cell, or walk the control-block chain DMAControlBlockBusAddress points
// at) without the driver package exposing its internal generation type.
func (p *Peripheral) FindMemByBusAddress(addr uint32) pmem.Mem {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.allocs {
		lo := m.busAddr
		hi := lo + uint32(len(m.words))*4
		if addr >= lo && addr < hi {
			return m
		}
	}
	return nil
}
