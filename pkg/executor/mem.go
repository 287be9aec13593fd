// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package executor

import (
	"encoding/binary"
)

// GuestMem is the memory region programs operate on. All addresses coming
// from a program are translated against the region base and bounds-checked;
// an access outside the region is the swallowed fault from the executor's
// point of view: stores become no-ops and loads return the default value.
// On linux the region is mapped at the fixed base the program builder
// encodes, so syscalls receive real pointers into it.
type GuestMem struct {
	base uint64
	data []byte
}

// NewGuestMem creates a region backed by a plain allocation.
// Syscalls cannot dereference addresses in such a region, but copyin,
// copyout and checksum handling work, which is all tests need.
func NewGuestMem(base uint64, size int) *GuestMem {
	return &GuestMem{base: base, data: make([]byte, size)}
}

func (m *GuestMem) Base() uint64 { return m.base }
func (m *GuestMem) Size() int    { return len(m.data) }

func (m *GuestMem) slice(addr, size uint64) ([]byte, bool) {
	if addr < m.base {
		return nil, false
	}
	off := addr - m.base
	if off > uint64(len(m.data)) || size > uint64(len(m.data))-off {
		return nil, false
	}
	return m.data[off : off+size], true
}

// Load reads size bytes (1, 2, 4 or 8) at addr as a little-endian value.
// Reports false on fault.
func (m *GuestMem) Load(addr, size uint64) (uint64, bool) {
	s, ok := m.slice(addr, size)
	if !ok {
		return 0, false
	}
	switch size {
	case 1:
		return uint64(s[0]), true
	case 2:
		return uint64(binary.LittleEndian.Uint16(s)), true
	case 4:
		return uint64(binary.LittleEndian.Uint32(s)), true
	case 8:
		return binary.LittleEndian.Uint64(s), true
	}
	return 0, false
}

// Store writes exactly size bytes (1, 2, 4 or 8) of val at addr,
// preserving bits outside [bfOff, bfOff+bfLen) when bfLen != 0.
// Reports false on fault. Size validation is the caller's job.
func (m *GuestMem) Store(addr, val, size, bfOff, bfLen uint64) bool {
	s, ok := m.slice(addr, size)
	if !ok {
		return false
	}
	if bfLen != 0 {
		cur, _ := m.Load(addr, size)
		mask := bitmaskLenOff(bfOff, bfLen)
		val = cur&^mask | (val&bitmaskLen(bfLen))<<bfOff
	}
	switch size {
	case 1:
		s[0] = byte(val)
	case 2:
		binary.LittleEndian.PutUint16(s, uint16(val))
	case 4:
		binary.LittleEndian.PutUint32(s, uint32(val))
	case 8:
		binary.LittleEndian.PutUint64(s, val)
	default:
		return false
	}
	return true
}

// StoreBytes copies data to addr. Reports false on fault.
func (m *GuestMem) StoreBytes(addr uint64, data []byte) bool {
	s, ok := m.slice(addr, uint64(len(data)))
	if !ok {
		return false
	}
	copy(s, data)
	return true
}

// Bytes returns the raw bytes at [addr, addr+size). Reports false on fault.
func (m *GuestMem) Bytes(addr, size uint64) ([]byte, bool) {
	return m.slice(addr, size)
}

func bitmaskLen(bfLen uint64) uint64 {
	if bfLen >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<bfLen - 1
}

func bitmaskLenOff(bfOff, bfLen uint64) uint64 {
	return bitmaskLen(bfLen) << bfOff
}
