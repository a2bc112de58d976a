// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package driver

import (
	"errors"
	"sync"
	"time"

	"github.com/railwire/dcc/bitstream"
	"github.com/railwire/dcc/host/pmem"
	"github.com/railwire/dcc/qbitstream"
)

// ErrWatchdogStalled is passed to Config.ErrorReporter when the watchdog
// finds a transfer has gone from transmitting to not-transmitting on its
// own — the DMA engine has stopped, almost certainly because something
// external reset or disabled it.
var ErrWatchdogStalled = errors.New("driver: DMA transfer stalled")

// watchdogInterval is how often Driver polls the flag cell once a
// transfer is running.
const watchdogInterval = 50 * time.Millisecond

// generation is one compiled, committed, DMA-resident QueuedBitstream.
type generation struct {
	qb            *qbitstream.QueuedBitstream
	mem           pmem.Mem
	flagWordIndex int
}

func (g *generation) flag() uint32 { return g.mem.Words()[g.flagWordIndex] }

// Driver runs the startup/enqueue/transmission-check/repetition-check/
// watchdog/shutdown lifecycle: it owns one Peripheral, compiles each
// enqueued bitstream.Bitstream into DMA-visible memory, and splices
// successive transfers together so the DCC signal never glitches between
// them.
type Driver struct {
	peripheral Peripheral
	cfg        Config

	mu       sync.Mutex
	running  bool
	current  *generation
	previous *generation

	stopWatchdog chan struct{}
	watchdogDone chan struct{}
	sawRunning   bool
}

// New returns a Driver bound to peripheral, configured per cfg. Start must
// be called before Enqueue.
func New(peripheral Peripheral, cfg Config) *Driver {
	return &Driver{peripheral: peripheral, cfg: cfg}
}

// Start brings the peripheral up (pin mux, PWM clock) and launches the
// watchdog goroutine. It does not itself start a DMA transfer — that
// happens on the first Enqueue.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return ErrAlreadyRunning
	}
	if err := d.peripheral.ConfigurePins(d.cfg.DCCPin, d.cfg.RailComPin, d.cfg.DebugPin); err != nil {
		return err
	}
	if err := d.peripheral.ConfigureClock(d.cfg.PulseWidthUs); err != nil {
		return err
	}
	if err := d.peripheral.EnablePWM(); err != nil {
		return err
	}
	d.running = true
	d.stopWatchdog = make(chan struct{})
	d.watchdogDone = make(chan struct{})
	go d.watchdog()
	d.cfg.logger().Printf("driver: started (dcc=%d railcom=%d debug=%d dma=%d pulse=%.2fus)",
		d.cfg.DCCPin, d.cfg.RailComPin, d.cfg.DebugPin, d.cfg.DMAChannel, d.cfg.PulseWidthUs)
	return nil
}

// Shutdown stops the DMA transfer, disables PWM, releases every allocation
// this Driver still holds and closes the Peripheral. A later Start reuses
// that same, already closed Peripheral.
func (d *Driver) Shutdown() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return ErrDriverNotRunning
	}
	d.running = false
	close(d.stopWatchdog)
	d.mu.Unlock()

	<-d.watchdogDone

	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(d.peripheral.StopDMA(d.cfg.DMAChannel))
	record(d.peripheral.DisablePWM())
	if d.current != nil {
		record(d.current.mem.Close())
	}
	if d.previous != nil {
		record(d.previous.mem.Close())
	}
	d.current = nil
	d.previous = nil
	record(d.peripheral.Close())
	d.cfg.logger().Printf("driver: shut down")
	return firstErr
}

// Enqueue compiles bs and splices it onto the end of whatever transfer is
// currently running, so the track signal never glitches between the two:
// the first call starts the DMA channel outright; every later call
// redirects the previous transfer's End block to jump straight into the
// new one instead of looping on itself (qbitstream.TransferAtBreakpoint).
func (d *Driver) Enqueue(bs *bitstream.Bitstream) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return ErrDriverNotRunning
	}

	fifo, rng, gpioSet := d.peripheral.Addresses()
	layout := qbitstream.Layout{
		PWMFIFOAddress:  fifo,
		PWMRangeAddress: rng,
		GPIOSetAddress:  gpioSet,
		RailComPin:      d.cfg.RailComPin,
		DebugPin:        d.cfg.DebugPin,
	}

	qb := qbitstream.New(layout)
	if err := qb.Parse(bs); err != nil {
		return err
	}

	cbBytes, dataBytes := qb.ByteSize()
	cbWords := cbBytes / 4
	totalWords := cbWords + dataBytes/4

	mem, err := d.peripheral.AllocateUncached(totalWords)
	if err != nil {
		return &AllocationFailedError{Err: err}
	}

	cbBusAddress := mem.BusAddress()
	dataBusAddress := cbBusAddress + uint32(cbBytes)
	qb.Commit(cbBusAddress, dataBusAddress)

	words := mem.Words()
	for i := range qb.ControlBlocks {
		qb.ControlBlocks[i].Marshal32(words[i*qbitstream.ControlBlockWords:])
	}
	copy(words[cbWords:], qb.Data)

	next := &generation{qb: qb, mem: mem, flagWordIndex: cbWords}

	if d.current == nil {
		if err := d.peripheral.StartDMA(d.cfg.DMAChannel, qb.BusAddress()); err != nil {
			mem.Close()
			return err
		}
		d.cfg.logger().Printf("driver: DMA channel %d started at %#x", d.cfg.DMAChannel, qb.BusAddress())
	} else if err := qbitstream.TransferAtBreakpoint(d.current.qb, next.qb); err != nil {
		mem.Close()
		return err
	} else {
		end := len(d.current.qb.ControlBlocks) - 1
		d.current.qb.ControlBlocks[end].Marshal32(d.current.mem.Words()[end*qbitstream.ControlBlockWords:])
		d.cfg.logger().Printf("driver: spliced next transfer at %#x", qb.BusAddress())
	}

	stale := d.previous
	d.previous = d.current
	d.current = next
	if stale != nil {
		stale.mem.Close()
	}
	return nil
}

// IsTransmitting reports whether the current transfer has started
// executing (its Start block has run at least once).
func (d *Driver) IsTransmitting() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running || d.current == nil {
		return false, ErrDriverNotRunning
	}
	return d.current.flag() != 0, nil
}

// IsRepeating reports whether the current transfer has completed at
// least one full lap and is now looping (the End block has run at least
// once).
func (d *Driver) IsRepeating() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running || d.current == nil {
		return false, ErrDriverNotRunning
	}
	return d.current.flag() == 0xFFFFFFFF, nil
}

// watchdog polls the running transfer's flag cell and reports to
// Config.ErrorReporter if a transfer that was transmitting is observed to
// have gone idle on its own.
func (d *Driver) watchdog() {
	defer close(d.watchdogDone)
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopWatchdog:
			return
		case <-ticker.C:
			d.checkOnce()
		}
	}
}

func (d *Driver) checkOnce() {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := d.current
	if cur == nil {
		return
	}
	running := cur.flag() != 0
	if d.sawRunning && !running {
		d.cfg.logger().Printf("driver: watchdog detected stalled transfer")
		if reporter := d.cfg.ErrorReporter; reporter != nil {
			reporter(ErrWatchdogStalled)
		}
	}
	d.sawRunning = running
}
