// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package packet

import "testing"

func TestBitPackerRoundTrip(t *testing.T) {
	type write struct {
		value  uint32
		length int
	}
	writes := []write{
		{0b1, 1},
		{0b011, 3},
		{0b10110110, 8},
		{0b101, 3},
		{0b1, 1},
	}
	bp := NewBitPacker(8)
	var wantBits []byte
	for _, w := range writes {
		if err := bp.Add(w.value, w.length); err != nil {
			t.Fatalf("Add(%b, %d): %v", w.value, w.length, err)
		}
		for i := w.length - 1; i >= 0; i-- {
			wantBits = append(wantBits, byte((w.value>>uint(i))&1))
		}
	}
	var gotBits []byte
	for _, word := range bp.Words() {
		for i := 7; i >= 0; i-- {
			gotBits = append(gotBits, byte((word>>uint(i))&1))
		}
	}
	pending, n := bp.Pending()
	for i := 0; i < n; i++ {
		gotBits = append(gotBits, byte((pending>>uint(7-i))&1))
	}
	if len(gotBits) != len(wantBits) {
		t.Fatalf("bit count = %d, want %d", len(gotBits), len(wantBits))
	}
	for i := range wantBits {
		if gotBits[i] != wantBits[i] {
			t.Fatalf("bit[%d] = %d, want %d", i, gotBits[i], wantBits[i])
		}
	}
}

func TestBitPackerRejectsZeroLength(t *testing.T) {
	bp := NewBitPacker(8)
	if err := bp.Add(1, 0); err == nil {
		t.Fatal("expected error for zero-length field")
	}
}

func TestBitPackerMsbAlignedPartialWord(t *testing.T) {
	bp := NewBitPacker(32)
	if err := bp.Add(1, 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	word, bits := bp.Pending()
	if bits != 1 {
		t.Fatalf("bits = %d, want 1", bits)
	}
	if word != 0x80000000 {
		t.Fatalf("word = %#x, want 0x80000000", word)
	}
}
