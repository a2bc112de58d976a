// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package packet

import "fmt"

// AddressKind identifies which partition of the DCC address space an
// Address belongs to.
type AddressKind int

// The address partitions, ordered per spec.md §3: broadcast < primary <
// accessory < accessoryBroadcast < signal < signalBroadcast < extended.
// This ordering is inter-partition by fiat and intra-partition by numeric
// value; Compare and Less implement it directly.
const (
	KindBroadcast AddressKind = iota
	KindPrimary
	KindAccessory
	KindAccessoryBroadcast
	KindSignal
	KindSignalBroadcast
	KindExtended
)

func (k AddressKind) String() string {
	switch k {
	case KindBroadcast:
		return "Broadcast"
	case KindPrimary:
		return "Primary"
	case KindAccessory:
		return "Accessory"
	case KindAccessoryBroadcast:
		return "AccessoryBroadcast"
	case KindSignal:
		return "Signal"
	case KindSignalBroadcast:
		return "SignalBroadcast"
	case KindExtended:
		return "Extended"
	default:
		return fmt.Sprintf("AddressKind(%d)", int(k))
	}
}

// Reserved 9-bit and 11-bit all-ones patterns used for the broadcast forms
// of the accessory and signal address partitions (spec.md §9 open question
// (a): pick the split-broadcast design).
const (
	accessoryBroadcastValue = 0x1FF
	signalBroadcastValue    = 0x7FF
)

// Address is a DCC address, one of the seven partitions spec.md §3
// describes. The zero value is Address.Broadcast().
type Address struct {
	kind  AddressKind
	value int
}

// Broadcast returns the broadcast address (all decoders).
func Broadcast() Address { return Address{kind: KindBroadcast} }

// Primary returns a short-address (1..127) locomotive address.
func Primary(n int) (Address, error) {
	if n < 1 || n > 127 {
		return Address{}, outOfRange("Address.Primary", n, 1, 127)
	}
	return Address{kind: KindPrimary, value: n}, nil
}

// Extended returns a long-address (0..10239) locomotive address.
func Extended(n int) (Address, error) {
	if n < 0 || n > 10239 {
		return Address{}, outOfRange("Address.Extended", n, 0, 10239)
	}
	return Address{kind: KindExtended, value: n}, nil
}

// Accessory returns a basic accessory decoder address (1..510).
func Accessory(n int) (Address, error) {
	if n < 1 || n > 510 {
		return Address{}, outOfRange("Address.Accessory", n, 1, 510)
	}
	return Address{kind: KindAccessory, value: n}, nil
}

// AccessoryBroadcast returns the broadcast address for accessory decoders.
func AccessoryBroadcast() Address {
	return Address{kind: KindAccessoryBroadcast, value: accessoryBroadcastValue}
}

// Signal returns an extended (signal/advanced accessory) decoder address
// (1..2046).
func Signal(n int) (Address, error) {
	if n < 1 || n > 2046 {
		return Address{}, outOfRange("Address.Signal", n, 1, 2046)
	}
	return Address{kind: KindSignal, value: n}, nil
}

// SignalBroadcast returns the broadcast address for signal decoders.
func SignalBroadcast() Address {
	return Address{kind: KindSignalBroadcast, value: signalBroadcastValue}
}

// Kind reports which address partition a belongs to.
func (a Address) Kind() AddressKind { return a.kind }

// Value reports the numeric address within its partition. It is
// meaningless for Broadcast, AccessoryBroadcast and SignalBroadcast.
func (a Address) Value() int { return a.value }

// partitionRank gives the inter-partition ordering spec.md §3 mandates.
func (k AddressKind) partitionRank() int {
	switch k {
	case KindBroadcast:
		return 0
	case KindPrimary:
		return 1
	case KindAccessory:
		return 2
	case KindAccessoryBroadcast:
		return 3
	case KindSignal:
		return 4
	case KindSignalBroadcast:
		return 5
	case KindExtended:
		return 6
	default:
		return -1
	}
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater than
// b, per the ordering in spec.md §3.
func (a Address) Compare(b Address) int {
	ra, rb := a.kind.partitionRank(), b.kind.partitionRank()
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	if a.value != b.value {
		if a.value < b.value {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether a sorts before b.
func (a Address) Less(b Address) bool { return a.Compare(b) < 0 }

// Encode serializes a into pp, per the exact bit layouts in spec.md §4.3.
func (a Address) Encode(pp *PacketPacker) error {
	switch a.kind {
	case KindBroadcast:
		return pp.Add(0, 8)
	case KindPrimary:
		if err := pp.Add(0, 1); err != nil {
			return err
		}
		return pp.Add(uint32(a.value), 7)
	case KindExtended:
		if err := pp.Add(0b11, 2); err != nil {
			return err
		}
		return pp.Add(uint32(a.value), 14)
	case KindAccessory, KindAccessoryBroadcast:
		return encodeAccessoryAddress(pp, a.value)
	case KindSignal, KindSignalBroadcast:
		return encodeSignalAddress(pp, a.value)
	default:
		return fmt.Errorf("packet: unknown address kind %v", a.kind)
	}
}

// encodeAccessoryAddress implements `10, high 6 bits of n, 1,
// ones-complement of low 3 bits` (spec.md §4.3). It emits the first full
// byte and the leading nibble of the second; the instruction contributes
// the remaining 4 bits of the second byte.
func encodeAccessoryAddress(pp *PacketPacker, n int) error {
	high6 := uint32((n >> 3) & 0x3F)
	low3 := uint32(n & 0x7)
	complement3 := (^low3) & 0x7
	if err := pp.Add(0b10, 2); err != nil {
		return err
	}
	if err := pp.Add(high6, 6); err != nil {
		return err
	}
	if err := pp.Add(1, 1); err != nil {
		return err
	}
	return pp.Add(complement3, 3)
}

// encodeSignalAddress implements `10, bits 10-5 of n, 0, ones-complement of
// bits 4-2, 0, bits 1-0, 1` (spec.md §4.3). Unlike Accessory, this fully
// consumes 2 bytes on its own; the instruction that follows starts a fresh
// byte (the signal aspect data byte).
func encodeSignalAddress(pp *PacketPacker, n int) error {
	bits10_5 := uint32((n >> 5) & 0x3F)
	bits4_2 := uint32((n >> 2) & 0x7)
	complement3 := (^bits4_2) & 0x7
	bits1_0 := uint32(n & 0x3)
	if err := pp.Add(0b10, 2); err != nil {
		return err
	}
	if err := pp.Add(bits10_5, 6); err != nil {
		return err
	}
	if err := pp.Add(0, 1); err != nil {
		return err
	}
	if err := pp.Add(complement3, 3); err != nil {
		return err
	}
	if err := pp.Add(0, 1); err != nil {
		return err
	}
	if err := pp.Add(bits1_0, 2); err != nil {
		return err
	}
	return pp.Add(1, 1)
}
