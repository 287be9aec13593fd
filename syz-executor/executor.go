// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build linux

// syz-executor is the in-VM binary that executes programs on behalf of
// the parent fuzzer. It talks to the parent over two control pipes and
// writes per-call results into the shared output mapping.
package main

import (
	"fmt"
	"os"

	"github.com/XiaoyuHe/syzkaller/pkg/executor"
	"github.com/XiaoyuHe/syzkaller/pkg/log"
	"github.com/XiaoyuHe/syzkaller/prog"
	"github.com/XiaoyuHe/syzkaller/sys"
	"golang.org/x/sys/unix"
)

const (
	// Control pipes are remapped from stdin/stdout so that a stray
	// print cannot corrupt the protocol.
	inPipeFd  = 250
	outPipeFd = 251

	// The shared output mapping arrives as the first extra file.
	outShmFd = 3

	guestMemSize = 16 << 20
)

func main() {
	log.SetVerbosity(0)
	in, out := setupControlPipes()

	outShm := os.NewFile(uintptr(outShmFd), "out-shm")
	outData, err := unix.Mmap(int(outShm.Fd()), 0, executor.OutputSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		failf("failed to mmap output file: %v", err)
	}

	mem, err := executor.NewFixedGuestMem(prog.DataOffset, guestMemSize)
	if err != nil {
		failf("%v", err)
	}

	ex, err := executor.New(executor.Config{
		In:         in,
		Out:        out,
		OutputData: outData,
		Mem:        mem,
		Table:      executor.NewRawTable(sys.Calls),
		Cover:      executor.NewKcovCover(),
		Fault:      executor.NewProcFault(),
	})
	if err != nil {
		failf("%v", err)
	}
	if err := ex.Loop(); err != nil {
		failf("%v", err)
	}
}

func setupControlPipes() (*os.File, *os.File) {
	if err := unix.Dup2(0, inPipeFd); err != nil {
		failf("dup2(0, inPipeFd) failed: %v", err)
	}
	if err := unix.Dup2(1, outPipeFd); err != nil {
		failf("dup2(1, outPipeFd) failed: %v", err)
	}
	if err := unix.Dup2(2, 1); err != nil {
		failf("dup2(2, 1) failed: %v", err)
	}
	if err := unix.Close(0); err != nil {
		failf("close(0) failed: %v", err)
	}
	return os.NewFile(inPipeFd, "in-pipe"), os.NewFile(outPipeFd, "out-pipe")
}

func failf(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(executor.StatusFail)
}
