// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package packet

// PacketPacker wraps an inner BitAppender (normally a byte-width BitPacker)
// and assembles a DCC packet's wire-framed bit sequence from a series of
// address/instruction bit-field writes.
//
// It tracks an 8-bit-byte cursor: every time a new byte begins it emits the
// NMRA `0` separator bit into the inner packer before the byte's own data
// bits, and it accumulates a running XOR of every completed data byte (the
// error-detection byte appended by Finalize). Alongside the framed inner
// stream it keeps its own record of the plain data bytes (no separator, no
// trailer) so callers that only want Packet.Bytes() — the clean
// address/instruction/XOR byte sequence — don't have to re-derive it from
// the framed bit stream.
type PacketPacker struct {
	inner        BitAppender
	bitsInByte   int
	curByte      byte
	xor          byte
	dataBytes    []byte
	finalized    bool
}

// NewPacketPacker returns a PacketPacker that frames its output into inner.
func NewPacketPacker(inner BitAppender) *PacketPacker {
	return &PacketPacker{inner: inner}
}

// Add appends the least-significant length bits of value, exactly like
// BitPacker.Add, inserting the separator bit whenever a new byte begins and
// folding completed bytes into the running XOR accumulator.
func (p *PacketPacker) Add(value uint32, length int) error {
	if length <= 0 || length > 32 {
		return outOfRangeLength(length)
	}
	remaining := length
	for remaining > 0 {
		if p.bitsInByte == 0 {
			if err := p.inner.Add(0, 1); err != nil {
				return err
			}
		}
		free := 8 - p.bitsInByte
		take := free
		if take > remaining {
			take = remaining
		}
		shift := uint(remaining - take)
		mask := uint32((1 << uint(take)) - 1)
		chunk := (value >> shift) & mask
		if err := p.inner.Add(chunk, take); err != nil {
			return err
		}
		p.curByte = (p.curByte << uint(take)) | byte(chunk)
		p.bitsInByte += take
		remaining -= take
		if p.bitsInByte == 8 {
			p.xor ^= p.curByte
			p.dataBytes = append(p.dataBytes, p.curByte)
			p.curByte = 0
			p.bitsInByte = 0
		}
	}
	return nil
}

// AtByteBoundary reports whether no partial byte is pending.
func (p *PacketPacker) AtByteBoundary() bool {
	return p.bitsInByte == 0
}

// Bytes returns the clean data bytes written so far (address and
// instruction bytes), without the XOR trailer and without any separator or
// end bit. Safe to call before Finalize.
func (p *PacketPacker) Bytes() []byte {
	out := make([]byte, len(p.dataBytes))
	copy(out, p.dataBytes)
	return out
}

// Finalize requires the cursor to sit at a byte boundary, then appends `0`,
// the XOR byte, and the packet end-bit `1` to the inner packer. It returns
// the complete packet bytes (data bytes plus the XOR byte) — the value
// Packet.Bytes exposes.
func (p *PacketPacker) Finalize() ([]byte, error) {
	if p.finalized {
		return nil, &MalformedPacketError{BitsIntoByte: p.bitsInByte}
	}
	if p.bitsInByte != 0 {
		return nil, &MalformedPacketError{BitsIntoByte: p.bitsInByte}
	}
	if err := p.inner.Add(0, 1); err != nil {
		return nil, err
	}
	if err := p.inner.Add(uint32(p.xor), 8); err != nil {
		return nil, err
	}
	if err := p.inner.Add(1, 1); err != nil {
		return nil, err
	}
	p.finalized = true
	out := make([]byte, len(p.dataBytes)+1)
	copy(out, p.dataBytes)
	out[len(p.dataBytes)] = p.xor
	return out, nil
}

func outOfRangeLength(length int) error {
	return outOfRange("bit field length", length, 1, 32)
}
