// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build linux

package executor

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// NewFixedGuestMem maps the guest region at the fixed base the program
// builder encodes addresses against, so that call arguments are real
// pointers into it.
func NewFixedGuestMem(base uint64, size int) (*GuestMem, error) {
	addr, _, errno := unix.Syscall6(unix.SYS_MMAP,
		uintptr(base), uintptr(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_FIXED,
		^uintptr(0), 0)
	if errno != 0 {
		return nil, fmt.Errorf("failed to mmap guest memory at %#x: %v", base, errno)
	}
	if uint64(addr) != base {
		return nil, fmt.Errorf("guest memory mapped at %#x instead of %#x", addr, base)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return &GuestMem{base: base, data: data}, nil
}
