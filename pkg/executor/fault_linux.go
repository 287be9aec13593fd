// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build linux

package executor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const failNthPath = "/proc/thread-self/fail-nth"

// procFault arms kernel fault injection through the fail-nth interface.
// The file is per-thread, so Arm must run on the thread that will make
// the syscall, which executeCall guarantees.
type procFault struct{}

func NewProcFault() FaultInjector {
	return procFault{}
}

func (procFault) Arm(nth int) (FaultHandle, error) {
	f, err := os.OpenFile(failNthPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %v: %v", failNthPath, err)
	}
	if _, err := f.WriteString(strconv.Itoa(nth + 1)); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to arm fault: %v", err)
	}
	return &procFaultHandle{f: f}, nil
}

type procFaultHandle struct {
	f *os.File
}

// Fired reports whether the armed fault triggered: the counter reaches
// zero once the nth operation has failed.
func (h *procFaultHandle) Fired() bool {
	var buf [16]byte
	n, err := h.f.ReadAt(buf[:], 0)
	if n == 0 && err != nil {
		return false
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	return err == nil && v == 0
}

func (h *procFaultHandle) Close() {
	h.f.Close()
}
