// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build linux

package executor

import (
	"golang.org/x/sys/unix"
)

// rawTable dispatches calls as raw kernel syscalls. The kernel consumes at
// most six register arguments on linux, the trailing slots of the program
// ABI are ignored.
type rawTable struct {
	calls []Syscall
}

func NewRawTable(calls []Syscall) CallTable {
	return &rawTable{calls: calls}
}

func (t *rawTable) Count() int {
	return len(t.calls)
}

func (t *rawTable) Name(num int) string {
	return t.calls[num].Name
}

func (t *rawTable) Do(num int, args *[9]uint64) (uint64, int) {
	r1, _, errno := unix.Syscall6(t.calls[num].NR,
		uintptr(args[0]), uintptr(args[1]), uintptr(args[2]),
		uintptr(args[3]), uintptr(args[4]), uintptr(args[5]))
	if errno != 0 {
		return defaultValue, int(errno)
	}
	return uint64(r1), 0
}
