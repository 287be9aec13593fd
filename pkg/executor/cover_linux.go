// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build linux

package executor

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const kcovPath = "/sys/kernel/debug/kcov"

// KCOV ioctl values, see Documentation/dev-tools/kcov.rst.
const (
	kcovInitTrace = uintptr(0x80086301) // _IOR('c', 1, unsigned long)
	kcovEnable    = uintptr(0x6364)     // _IO('c', 100)
	kcovTracePC   = 0
	kcovTraceCMP  = 1
)

// kcovCover drives the kernel KCOV facility. Each Enable call opens its
// own kcov descriptor and pins collection to the calling thread.
type kcovCover struct{}

func NewKcovCover() Cover {
	return kcovCover{}
}

func (kcovCover) Enable(comps bool) (CoverBuf, error) {
	f, err := os.OpenFile(kcovPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open kcov: %v", err)
	}
	fd := int(f.Fd())
	if err := unix.IoctlSetInt(fd, uint(kcovInitTrace), CoverSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("kcov init trace failed: %v", err)
	}
	mem, err := unix.Mmap(fd, 0, CoverSize*8, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("kcov mmap failed: %v", err)
	}
	mode := kcovTracePC
	if comps {
		mode = kcovTraceCMP
	}
	if err := unix.IoctlSetInt(fd, uint(kcovEnable), mode); err != nil {
		unix.Munmap(mem)
		f.Close()
		return nil, fmt.Errorf("kcov enable failed: %v", err)
	}
	// The first word of the mapping holds the entry count,
	// the rest is the payload.
	words := unsafe.Slice((*uint64)(unsafe.Pointer(&mem[0])), CoverSize)
	return &kcovBuf{file: f, words: words}, nil
}

type kcovBuf struct {
	file  *os.File
	words []uint64
}

func (b *kcovBuf) Reset() {
	atomic.StoreUint64(&b.words[0], 0)
}

func (b *kcovBuf) Count() uint64 {
	return atomic.LoadUint64(&b.words[0])
}

func (b *kcovBuf) Data() []uint64 {
	return b.words[1:]
}
