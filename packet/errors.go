// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package packet

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is the sentinel wrapped by every range violation raised by
// an address or instruction encoder. Use errors.Is(err, ErrOutOfRange) to
// test for the category without caring which field failed.
var ErrOutOfRange = errors.New("packet: value out of range")

// ErrMalformedPacket is the sentinel wrapped when a PacketPacker is
// finalized with a partial byte pending.
var ErrMalformedPacket = errors.New("packet: malformed packet")

// OutOfRangeError reports that a field's value fell outside the range the
// DCC standard permits for it.
type OutOfRangeError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("packet: %s value %d out of range [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}

// Unwrap lets callers test OutOfRangeError with errors.Is(err, ErrOutOfRange).
func (e *OutOfRangeError) Unwrap() error {
	return ErrOutOfRange
}

func outOfRange(field string, value, min, max int) error {
	return &OutOfRangeError{Field: field, Value: value, Min: min, Max: max}
}

// MalformedPacketError reports that a PacketPacker was finalized with a
// partial byte still pending — a caller bug, since a packet's address and
// instructions must fill a whole number of bytes together.
type MalformedPacketError struct {
	BitsIntoByte int
}

func (e *MalformedPacketError) Error() string {
	return fmt.Sprintf("packet: finalize called %d bits into a byte", e.BitsIntoByte)
}

func (e *MalformedPacketError) Unwrap() error {
	return ErrMalformedPacket
}
