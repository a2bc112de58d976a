// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package timing

import "testing"

// TestDefaultPulseWidth exercises spec.md §6's nominal 14.5us pulse width
// figures: one bit = 4 pulses (58us), zero bit = 7 pulses (101.5us),
// RailCom delay = 2 pulses (29us), RailCom total = 32 pulses (464us).
func TestDefaultPulseWidth(t *testing.T) {
	st, err := New(14.5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if st.OneBitLength() != 4 {
		t.Errorf("OneBitLength() = %d, want 4", st.OneBitLength())
	}
	if st.ZeroBitLength() != 7 {
		t.Errorf("ZeroBitLength() = %d, want 7", st.ZeroBitLength())
	}
	if st.RailComDelayLength() != 2 {
		t.Errorf("RailComDelayLength() = %d, want 2", st.RailComDelayLength())
	}
	if st.RailComLength() != 32 {
		t.Errorf("RailComLength() = %d, want 32", st.RailComLength())
	}
}

func TestEnvelopesHonored(t *testing.T) {
	widths := []float64{10, 12.5, 14.5, 14.48, 14.52, 20}
	for _, w := range widths {
		st, err := New(w)
		if err != nil {
			// Some widths legitimately can't satisfy every window; that's
			// fine as long as New reports it rather than returning a bad
			// SignalTiming.
			continue
		}
		one := float64(st.OneBitLength()) * w
		if one < 55 || one > 61 {
			t.Errorf("pulse width %g: one_bit_length*w = %g, outside [55,61]", w, one)
		}
		zero := float64(st.ZeroBitLength()) * w
		if zero < 95 || zero > 6000 {
			t.Errorf("pulse width %g: zero_bit_length*w = %g, outside [95,6000]", w, zero)
		}
		delay := float64(st.RailComDelayLength()) * w
		if delay < 26 || delay > 32 {
			t.Errorf("pulse width %g: railcom_delay_length*w = %g, outside [26,32]", w, delay)
		}
	}
}

func TestRejectsNonPositivePulseWidth(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero pulse width")
	}
	if _, err := New(-1); err == nil {
		t.Fatal("expected error for negative pulse width")
	}
}
