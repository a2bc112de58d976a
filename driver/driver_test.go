// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package driver

import (
	"errors"
	"testing"

	"github.com/railwire/dcc/bitstream"
	"github.com/railwire/dcc/driver/drivertest"
	"github.com/railwire/dcc/qbitstream"
)

func newTestDriver(t *testing.T) (*Driver, *drivertest.Peripheral) {
	t.Helper()
	p := drivertest.New()
	cfg := DefaultConfig()
	d := New(p, cfg)
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { d.Shutdown() })
	return d, p
}

func dataBitstream(t *testing.T, words ...uint32) *bitstream.Bitstream {
	t.Helper()
	bs, err := bitstream.New(32, 14.5)
	if err != nil {
		t.Fatalf("bitstream.New: %v", err)
	}
	for _, w := range words {
		if err := bs.AppendPhysicalBits(w, 32); err != nil {
			t.Fatalf("AppendPhysicalBits: %v", err)
		}
	}
	return bs
}

func TestStartConfiguresPeripheral(t *testing.T) {
	_, p := newTestDriver(t)
	if !p.ConfiguredPins {
		t.Fatal("expected pins to be configured")
	}
	if p.DCCPin != 18 || p.RailComPin != 17 || p.DebugPin != 19 {
		t.Fatalf("unexpected pin assignment: dcc=%d railcom=%d debug=%d", p.DCCPin, p.RailComPin, p.DebugPin)
	}
	if p.ConfiguredPulseWidthUs != 14.5 {
		t.Fatalf("pulse width = %v, want 14.5", p.ConfiguredPulseWidthUs)
	}
	if !p.PWMEnabled {
		t.Fatal("expected PWM to be enabled")
	}
}

func TestStartTwiceFails(t *testing.T) {
	d, _ := newTestDriver(t)
	if err := d.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start: err = %v, want ErrAlreadyRunning", err)
	}
}

func TestEnqueueWithoutStartFails(t *testing.T) {
	p := drivertest.New()
	d := New(p, DefaultConfig())
	bs := dataBitstream(t, 1)
	if err := d.Enqueue(bs); !errors.Is(err, ErrDriverNotRunning) {
		t.Fatalf("Enqueue before Start: err = %v, want ErrDriverNotRunning", err)
	}
}

func TestEnqueueRejectsBitstreamWithNoData(t *testing.T) {
	d, _ := newTestDriver(t)
	bs, err := bitstream.New(32, 14.5)
	if err != nil {
		t.Fatalf("bitstream.New: %v", err)
	}
	bs.AppendLoopStart()

	err = d.Enqueue(bs)
	var noData *qbitstream.ContainsNoDataError
	if !errors.As(err, &noData) {
		t.Fatalf("Enqueue: err = %v, want *ContainsNoDataError", err)
	}
}

func TestEnqueueStartsDMAOnFirstCall(t *testing.T) {
	d, p := newTestDriver(t)
	bs := dataBitstream(t, 0xDEADBEEF)

	if err := d.Enqueue(bs); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if p.RunningDMAChannel == nil || *p.RunningDMAChannel != d.cfg.DMAChannel {
		t.Fatalf("RunningDMAChannel = %v, want %d", p.RunningDMAChannel, d.cfg.DMAChannel)
	}
	if p.DMAControlBlockBusAddress != d.current.qb.BusAddress() {
		t.Fatalf("DMAControlBlockBusAddress = %#x, want %#x", p.DMAControlBlockBusAddress, d.current.qb.BusAddress())
	}
}

func TestEnqueueSplicesSecondTransferWithoutRestartingDMA(t *testing.T) {
	d, p := newTestDriver(t)
	if err := d.Enqueue(dataBitstream(t, 1)); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	first := d.current
	firstStartAddr := p.DMAControlBlockBusAddress

	if err := d.Enqueue(dataBitstream(t, 2)); err != nil {
		t.Fatalf("second Enqueue: %v", err)
	}
	if p.DMAControlBlockBusAddress != firstStartAddr {
		t.Fatalf("DMA was redirected on second Enqueue: now %#x, want unchanged %#x", p.DMAControlBlockBusAddress, firstStartAddr)
	}
	if d.previous != first {
		t.Fatal("expected first generation to become previous")
	}
	n := len(first.qb.ControlBlocks)
	if first.qb.ControlBlocks[n-1].NextControlBlock != d.current.qb.BusAddress() {
		t.Fatalf("first generation's End block was not spliced into the second: next = %#x, want %#x",
			first.qb.ControlBlocks[n-1].NextControlBlock, d.current.qb.BusAddress())
	}
}

func TestEnqueueRetiresOlderGenerationsAfterSplicing(t *testing.T) {
	d, p := newTestDriver(t)
	for i := 0; i < 3; i++ {
		if err := d.Enqueue(dataBitstream(t, uint32(i+1))); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}
	// Three generations allocated; the oldest (neither current nor
	// previous) must already have been closed.
	if got, want := p.TotalAllocations(), 3; got != want {
		t.Fatalf("TotalAllocations = %d, want %d", got, want)
	}
	if got, want := p.ClosedAllocations(), 1; got != want {
		t.Fatalf("ClosedAllocations = %d, want %d", got, want)
	}
}

func TestIsTransmittingAndIsRepeatingTrackFlagCell(t *testing.T) {
	d, _ := newTestDriver(t)
	if err := d.Enqueue(dataBitstream(t, 1)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	transmitting, err := d.IsTransmitting()
	if err != nil {
		t.Fatalf("IsTransmitting: %v", err)
	}
	if transmitting {
		t.Fatal("expected not transmitting before the DMA engine has run anything")
	}

	d.current.mem.Words()[d.current.flagWordIndex] = 1
	transmitting, err = d.IsTransmitting()
	if err != nil || !transmitting {
		t.Fatalf("IsTransmitting after Start block = %v, %v, want true, nil", transmitting, err)
	}
	repeating, err := d.IsRepeating()
	if err != nil || repeating {
		t.Fatalf("IsRepeating after Start block = %v, %v, want false, nil", repeating, err)
	}

	d.current.mem.Words()[d.current.flagWordIndex] = 0xFFFFFFFF
	repeating, err = d.IsRepeating()
	if err != nil || !repeating {
		t.Fatalf("IsRepeating after End block = %v, %v, want true, nil", repeating, err)
	}
}

func TestShutdownStopsDMAAndReleasesMemory(t *testing.T) {
	p := drivertest.New()
	d := New(p, DefaultConfig())
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Enqueue(dataBitstream(t, 1)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := d.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if p.RunningDMAChannel != nil {
		t.Fatal("expected DMA to be stopped")
	}
	if p.PWMEnabled {
		t.Fatal("expected PWM to be disabled")
	}
	if !p.Closed {
		t.Fatal("expected peripheral to be closed")
	}
	if got, want := p.ClosedAllocations(), 1; got != want {
		t.Fatalf("ClosedAllocations = %d, want %d", got, want)
	}
	if err := d.Shutdown(); !errors.Is(err, ErrDriverNotRunning) {
		t.Fatalf("second Shutdown: err = %v, want ErrDriverNotRunning", err)
	}
}

func TestWatchdogReportsStallAfterTransmissionStops(t *testing.T) {
	p := drivertest.New()
	cfg := DefaultConfig()
	reports := make(chan error, 4)
	cfg.ErrorReporter = func(err error) { reports <- err }
	d := New(p, cfg)
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Shutdown()
	if err := d.Enqueue(dataBitstream(t, 1)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	d.current.mem.Words()[d.current.flagWordIndex] = 1
	d.checkOnce()
	d.current.mem.Words()[d.current.flagWordIndex] = 0
	d.checkOnce()

	select {
	case err := <-reports:
		if !errors.Is(err, ErrWatchdogStalled) {
			t.Fatalf("reported err = %v, want ErrWatchdogStalled", err)
		}
	default:
		t.Fatal("expected watchdog to report a stall")
	}
}
