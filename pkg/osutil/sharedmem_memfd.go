// Copyright 2021 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build linux

package osutil

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CreateMemMappedFile creates an anonymous shared memory file of the given
// size and maps it read-write. The file descriptor is passed to child
// processes, which map the same memory.
func CreateMemMappedFile(size int) (*os.File, []byte, error) {
	// The name is irrelevant and can even be the same for all such files.
	fd, err := unix.MemfdCreate("syz-shared-mem", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to do memfd_create: %v", err)
	}
	f := os.NewFile(uintptr(fd), fmt.Sprintf("/proc/self/fd/%d", fd))
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to truncate shared mem file: %v", err)
	}
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to mmap shared mem file: %v", err)
	}
	return f, mem, nil
}

// CloseMemMappedFile destroys the memory mapping created by CreateMemMappedFile.
func CloseMemMappedFile(f *os.File, mem []byte) error {
	err1 := unix.Munmap(mem)
	err2 := f.Close()
	switch {
	case err1 != nil:
		return err1
	case err2 != nil:
		return err2
	default:
		return nil
	}
}
