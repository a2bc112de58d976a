// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package driver runs the startup/enqueue/transmission-check/
// repetition-check/watchdog/shutdown lifecycle that turns a compiled
// qbitstream.QueuedBitstream into a continuously-repeating DMA transfer.
package driver

import "log"

// Config holds the pin assignment and signal timing a Driver is built
// with. The zero value is not valid; use DefaultConfig as a starting
// point.
type Config struct {
	// DCCPin carries the PWM-modulated DCC signal.
	DCCPin uint
	// RailComPin switches the booster off during the RailCom cutout.
	RailComPin uint
	// DebugPin strobes high for the duration named by bitstream Debug
	// markers, for scope-triggering during development.
	DebugPin uint
	// DMAChannel is the BCM283x DMA engine channel this Driver drives.
	DMAChannel uint
	// PulseWidthUs is the PWM pulse width fed to timing.New.
	PulseWidthUs float64

	// ErrorReporter, if set, is called from the watchdog goroutine
	// whenever it observes the transfer has stopped repeating
	// (SPEC_FULL.md's supplemented error-reporting hook). It must not
	// block.
	ErrorReporter func(error)

	// Logger receives startup and shutdown milestones, DMA start and
	// splice addresses, and watchdog-detected stalls, in the teacher's style of
	// logging diagnostic events with the standard library rather than a
	// structured logger. Defaults to log.Default() if nil.
	Logger *log.Logger
}

func (c Config) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// DefaultConfig returns a sensible default pin assignment and pulse
// width: DCC=18, RailCom=17, Debug=19, DMA channel=5, pulse width=14.5us.
func DefaultConfig() Config {
	return Config{
		DCCPin:       18,
		RailComPin:   17,
		DebugPin:     19,
		DMAChannel:   5,
		PulseWidthUs: 14.5,
	}
}
