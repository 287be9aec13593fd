// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package executor

// FaultInjector arms a one-shot fault on the calling thread.
// Arm(nth) makes the nth internal operation of the next syscall fail;
// Fired reports whether the fault actually triggered.
// Arm is called on the worker thread right before the syscall.
type FaultInjector interface {
	Arm(nth int) (FaultHandle, error)
}

type FaultHandle interface {
	Fired() bool
	Close()
}
