// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pmem

import "unsafe"

// wordsView reinterprets an mmap'd byte slice as a uint32 slice over the
// same memory, the same casting trick the teacher's pmem.Slice.Uint32 uses
// (spec.md §9 design note: "a read-only view of a single machine word at
// a fixed offset in the MemoryRegion").
func wordsView(b []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// byteView is wordsView's inverse, needed to hand the original byte slice
// back to unix.Munmap.
func byteView(w []uint32) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&w[0])), len(w)*4)
}
