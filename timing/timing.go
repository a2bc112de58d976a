// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package timing derives the integer pulse counts that drive the PWM
// serializer from a configured physical pulse width, per spec.md §4.4.
package timing

import (
	"errors"
	"fmt"
	"math"
)

// ErrIncompatiblePulseWidth is the sentinel wrapped when a pulse width
// cannot satisfy one of the NMRA-derived envelopes below.
var ErrIncompatiblePulseWidth = errors.New("timing: incompatible pulse width")

// IncompatiblePulseWidthError names which derived quantity couldn't be
// satisfied.
type IncompatiblePulseWidthError struct {
	Quantity   string
	PulseWidth float64
}

func (e *IncompatiblePulseWidthError) Error() string {
	return fmt.Sprintf("timing: pulse width %.3fus can't satisfy %s", e.PulseWidth, e.Quantity)
}

func (e *IncompatiblePulseWidthError) Unwrap() error { return ErrIncompatiblePulseWidth }

// SignalTiming holds the integer pulse counts derived from a physical pulse
// width, per spec.md §4.4. It is immutable after construction.
type SignalTiming struct {
	pulseWidthUs       float64
	oneBitLength       int
	zeroBitLength      int
	railComDelayLength int
	railComLength      int
}

// New derives a SignalTiming from pulseWidthUs (the duration, in
// microseconds, of a single PWM serializer pulse).
func New(pulseWidthUs float64) (*SignalTiming, error) {
	if pulseWidthUs <= 0 {
		return nil, &IncompatiblePulseWidthError{Quantity: "pulse_width_us", PulseWidth: pulseWidthUs}
	}

	one, err := smallestNInWindow(pulseWidthUs, 55, 61, 58)
	if err != nil {
		return nil, &IncompatiblePulseWidthError{Quantity: "one_bit_length", PulseWidth: pulseWidthUs}
	}

	zero, err := zeroBitLength(pulseWidthUs)
	if err != nil {
		return nil, &IncompatiblePulseWidthError{Quantity: "zero_bit_length", PulseWidth: pulseWidthUs}
	}

	delay, err := smallestNInWindow(pulseWidthUs, 26, 32, 29)
	if err != nil {
		return nil, &IncompatiblePulseWidthError{Quantity: "railcom_delay_length", PulseWidth: pulseWidthUs}
	}

	length, err := railComLength(pulseWidthUs, one)
	if err != nil {
		return nil, &IncompatiblePulseWidthError{Quantity: "railcom_length", PulseWidth: pulseWidthUs}
	}

	return &SignalTiming{
		pulseWidthUs:       pulseWidthUs,
		oneBitLength:       one,
		zeroBitLength:      zero,
		railComDelayLength: delay,
		railComLength:      length,
	}, nil
}

// PulseWidthUs returns the configured pulse width.
func (t *SignalTiming) PulseWidthUs() float64 { return t.pulseWidthUs }

// OneBitLength returns the number of physical pulses in a logical 1 half-bit.
func (t *SignalTiming) OneBitLength() int { return t.oneBitLength }

// ZeroBitLength returns the number of physical pulses in a logical 0 half-bit.
func (t *SignalTiming) ZeroBitLength() int { return t.zeroBitLength }

// RailComDelayLength returns the number of physical pulses between the
// packet end bit and the start of the RailCom cutout.
func (t *SignalTiming) RailComDelayLength() int { return t.railComDelayLength }

// RailComLength returns the total number of physical pulses the RailCom
// cutout occupies.
func (t *SignalTiming) RailComLength() int { return t.railComLength }

// smallestNInWindow returns a positive n with n*pulseWidthUs in [lo, hi]:
// of the n that satisfy the window, the one nearest round(target /
// pulseWidthUs), taking the lower n when two are equally near. When
// several n satisfy the window this is not necessarily the smallest.
func smallestNInWindow(pulseWidthUs, lo, hi, target float64) (int, error) {
	start := int(math.Round(target / pulseWidthUs))
	if start < 1 {
		start = 1
	}
	// Search outward from the rounded target; n*pulseWidthUs is monotonic
	// in n so at most a handful of steps are ever needed in practice.
	for delta := 0; delta < 1<<16; delta++ {
		for _, n := range []int{start - delta, start + delta} {
			if n < 1 {
				continue
			}
			v := float64(n) * pulseWidthUs
			if v >= lo && v <= hi {
				return n, nil
			}
		}
	}
	return 0, fmt.Errorf("timing: no n satisfies [%g, %g] at pulse width %g", lo, hi, pulseWidthUs)
}

// zeroBitLength implements spec.md §4.4's rounding rule: round 100us to the
// nearest whole number of pulses; if that falls below 95us, round up
// instead of down; if the result is still outside [95, 6000]us, fall back
// to smallestNInWindow.
func zeroBitLength(pulseWidthUs float64) (int, error) {
	n := int(math.Round(100 / pulseWidthUs))
	if n < 1 {
		n = 1
	}
	if float64(n)*pulseWidthUs < 95 {
		n++
	}
	v := float64(n) * pulseWidthUs
	if v < 95 || v > 6000 {
		return smallestNInWindow(pulseWidthUs, 95, 6000, 100)
	}
	return n, nil
}

// railComLength implements spec.md §4.4: the smallest multiple of
// 2*oneBitLength whose total falls in [454, 488]us; if no pure multiple
// fits, the pulse count rounds up to the next full one-bit pair and the
// length is adjusted accordingly (i.e. the same rounded-up multiple is
// returned even though it may sit just outside the window — the caller has
// no finer-grained unit to work with).
func railComLength(pulseWidthUs float64, oneBitLength int) (int, error) {
	if oneBitLength <= 0 {
		return 0, fmt.Errorf("timing: invalid one_bit_length %d", oneBitLength)
	}
	pairUs := float64(2*oneBitLength) * pulseWidthUs
	if pairUs <= 0 {
		return 0, fmt.Errorf("timing: non-positive one-bit-pair duration")
	}
	count := int(math.Ceil(454 / pairUs))
	if count < 1 {
		count = 1
	}
	length := count * 2 * oneBitLength
	total := float64(length) * pulseWidthUs
	if total > 488 {
		// No pure multiple lands inside the window; round up to the next
		// full one-bit pair per spec.md §4.4 and accept the overrun.
		return length, nil
	}
	if total < 454 {
		count++
		length = count * 2 * oneBitLength
	}
	return length, nil
}
