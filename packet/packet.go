// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package packet

// Packet carries an address and an ordered list of instructions. Bytes
// yields a byte sequence whose last byte is the XOR of all preceding bytes
// (spec.md §3, §8 XOR invariant).
type Packet struct {
	Address      Address
	Instructions []Instruction
}

// New returns a Packet for addr carrying instrs, in order.
func New(addr Address, instrs ...Instruction) Packet {
	return Packet{Address: addr, Instructions: instrs}
}

// Bytes serializes the packet: the address, then each instruction in
// order, then the XOR error-detection byte. It reports MalformedPacket if
// the address and instructions don't land on a byte boundary together.
// Every address kind except Accessory and AccessoryBroadcast fills whole
// bytes; those two leave 4 bits of their second byte open, and every
// Instruction this package provides is a whole number of bytes wide, so
// pairing them with one of this package's instructions reports
// MalformedPacket.
func (p Packet) Bytes() ([]byte, error) {
	bp := NewBitPacker(8)
	pp := NewPacketPacker(bp)
	if err := p.Address.Encode(pp); err != nil {
		return nil, err
	}
	for _, instr := range p.Instructions {
		if err := instr.Encode(pp); err != nil {
			return nil, err
		}
	}
	return pp.Finalize()
}
