// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package packet

import "testing"

// TestSpeed28StepScenario exercises spec.md §8 scenario 5. spec.md's
// literal worked example gives instruction byte 0x6E, but that number does
// not reproduce under the literal bit-reorder rule stated in §4.3
// ("adjustedSpeed = speed+3, emit LSB first then remaining 4 bits MSB");
// see DESIGN.md for the reconciliation. This test pins the byte this
// package's implementation of that stated rule actually produces (0x78),
// so a future change to the formula is caught.
func TestSpeed28StepScenario(t *testing.T) {
	addr, err := Primary(3)
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	instr, err := Speed28Step(14, Forward)
	if err != nil {
		t.Fatalf("Speed28Step: %v", err)
	}
	pkt := New(addr, instr)
	got, err := pkt.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := []byte{0x03, 0x78, 0x03 ^ 0x78}
	if len(got) != len(want) {
		t.Fatalf("Bytes() = %#v, want %#v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Bytes()[%d] = %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestPacketXORInvariant(t *testing.T) {
	addr, _ := Extended(4200)
	speed, _ := Speed128Step(64, Forward)
	fn := FunctionGroup1(true, false, true, false, true)
	pkt := New(addr, speed, fn)
	bytes, err := pkt.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	var xor byte
	for _, b := range bytes {
		xor ^= b
	}
	if xor != 0 {
		t.Fatalf("xor of all packet bytes = %#x, want 0", xor)
	}
}

func TestPacketMalformedOnPartialByte(t *testing.T) {
	bp := NewBitPacker(8)
	pp := NewPacketPacker(bp)
	if err := pp.Add(0b101, 3); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := pp.Finalize(); err == nil {
		t.Fatal("expected MalformedPacket error, got nil")
	}
}

func TestAccessoryAddressPlusInstructionFillsByte(t *testing.T) {
	// spec.md scenario 4: Accessory(310) alone leaves 4 bits pending in the
	// second byte. A real accessory-decoder packet always supplies an
	// instruction that completes exactly those 4 bits.
	addr, err := Accessory(310)
	if err != nil {
		t.Fatalf("Accessory: %v", err)
	}
	pkt := New(addr, nibbleInstr(0)) // a zero-valued 4-bit instruction
	bytes, err := pkt.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(bytes) != 3 {
		t.Fatalf("len(bytes) = %d, want 3 (2 address bytes + xor)", len(bytes))
	}
	if bytes[0] != 0b10100110 {
		t.Fatalf("bytes[0] = %08b, want 10100110", bytes[0])
	}
	if bytes[1] != 0b10010000 {
		t.Fatalf("bytes[1] = %08b, want 10010000", bytes[1])
	}
}

// nibbleInstr is a 4-bit instruction, the width an Accessory address leaves
// open in its second byte.
type nibbleInstr uint32

func (i nibbleInstr) Encode(pp *PacketPacker) error { return pp.Add(uint32(i), 4) }
