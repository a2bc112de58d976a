// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package qbitstream

// Layout gives the compiler the bus addresses its control blocks transfer
// to, and the GPIO pins its RailCom/debug markers toggle. These are all
// peripheral register addresses (already >= the peripheral bus base), so
// Commit never rebases them (spec.md §4.7).
type Layout struct {
	PWMFIFOAddress  uint32
	PWMRangeAddress uint32
	// GPIOSetAddress is the GPSET0 register; GPSET1, GPCLR0 and GPCLR1
	// are assumed to follow it at +1, +3 and +4 words respectively (the
	// real BCM283x register layout, with a reserved word between each
	// pair), the convention the GPIO control block's 2D transfer relies
	// on: the transferred 2-word row plus a 1-word destination stride
	// bridges the reserved gap from GPSET0/1 to GPCLR0/1.
	GPIOSetAddress uint32

	RailComPin uint
	DebugPin   uint
}

func pinBank(pin uint) (bank int, mask uint32) {
	return int(pin / 32), uint32(1) << (pin % 32)
}
