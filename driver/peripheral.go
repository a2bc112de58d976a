// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package driver

import "github.com/railwire/dcc/host/pmem"

// Peripheral is everything a Driver needs from the underlying hardware.
// host/bcm283x implements this against the real BCM283x register set;
// driver/drivertest implements it in memory for tests.
type Peripheral interface {
	// Addresses returns the bus addresses of the PWM FIFO register, the
	// PWM range register, and the GPIO output-set register, in that
	// order. A qbitstream.Layout is built from these plus the Driver's
	// configured pins.
	Addresses() (pwmFIFO, pwmRange, gpioSet uint32)

	// ConfigurePins switches dccPin to the PWM peripheral's alternate
	// function and railComPin/debugPin to plain digital outputs, driven
	// low.
	ConfigurePins(dccPin, railComPin, debugPin uint) error

	// ConfigureClock sets the PWM clock's divisor so that one PWM range
	// tick lasts pulseWidthUs microseconds.
	ConfigureClock(pulseWidthUs float64) error

	// EnablePWM starts the PWM channel consuming FIFO words via DREQ.
	EnablePWM() error
	// DisablePWM stops it.
	DisablePWM() error

	// AllocateUncached returns wordCount words of DMA-visible memory.
	AllocateUncached(wordCount int) (pmem.Mem, error)

	// StartDMA points DMA channel at the control block living at
	// controlBlockBusAddress and starts it running.
	StartDMA(channel uint, controlBlockBusAddress uint32) error
	// StopDMA halts the channel.
	StopDMA(channel uint) error

	// Close releases any peripheral-wide resources (register mappings)
	// held outside of individual Mem allocations.
	Close() error
}
