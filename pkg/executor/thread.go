// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package executor

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/XiaoyuHe/syzkaller/pkg/log"
)

// thread is one worker slot. The slot fields are handed off single-writer:
// the scheduler fills them and sets ready; the worker reads them, clears
// ready, writes the results and sets done; the scheduler reads the results
// and marks the slot handled. A slot is free for scheduling iff done is set.
type thread struct {
	created bool
	id      int
	cover   CoverBuf

	ready   *event
	done    *event
	handled bool

	copyoutPos   inputStream
	copyoutIndex uint64
	callIndex    int
	callNum      int
	numArgs      int
	args         [maxArgs]uint64

	res           uint64
	errno         int
	coverSize     uint64
	faultInjected bool
}

// scheduleCall hands the call off to the first free worker slot,
// draining an unhandled completion if the slot has one pending.
func (ex *Executor) scheduleCall(callIndex, callNum int, copyoutIndex uint64,
	numArgs int, args [maxArgs]uint64, pos inputStream) *thread {
	var i int
	for i = 0; i < maxThreads; i++ {
		th := &ex.threads[i]
		if !th.created {
			ex.threadCreate(th, i)
		}
		if th.done.isSet() {
			if !th.handled {
				ex.handleCompletion(th)
			}
			break
		}
	}
	if i == maxThreads {
		ex.failf("out of threads")
	}
	th := &ex.threads[i]
	ex.debugf("scheduling call %v [%v] on thread %v", callIndex, ex.cfg.Table.Name(callNum), th.id)
	if th.ready.isSet() || !th.done.isSet() || !th.handled {
		ex.failf("bad thread state in schedule: ready=%v done=%v handled=%v",
			th.ready.isSet(), th.done.isSet(), th.handled)
	}
	th.copyoutPos = pos
	th.copyoutIndex = copyoutIndex
	th.done.reset()
	th.handled = false
	th.callIndex = callIndex
	th.callNum = callNum
	th.numArgs = numArgs
	th.args = args
	th.ready.set()
	ex.running++
	return th
}

func (ex *Executor) threadCreate(th *thread, id int) {
	th.created = true
	th.id = id
	th.handled = true
	th.ready = newEvent()
	th.done = newEvent()
	th.done.set()
	if ex.flagThreaded {
		go ex.workerThread(th)
	}
}

// workerThread serves one slot for the life of the process. Coverage is
// pinned to the OS thread, so the goroutine locks itself first.
func (ex *Executor) workerThread(th *thread) {
	runtime.LockOSThread()
	th.cover = ex.coverEnable()
	for {
		th.ready.wait()
		ex.executeCall(th)
	}
}

// coverEnable returns the coverage buffer for the calling thread,
// or the zero fallback when coverage is off or no driver is configured.
func (ex *Executor) coverEnable() CoverBuf {
	if !ex.flagCover || ex.cfg.Cover == nil {
		return zeroCoverBuf{}
	}
	buf, err := ex.cfg.Cover.Enable(ex.flagCollectComps)
	if err != nil {
		exitf("failed to enable coverage: %v", err)
	}
	return buf
}

// executeCall runs the slot's call on the current thread.
func (ex *Executor) executeCall(th *thread) {
	th.ready.reset()
	if ex.flagDebug {
		args := make([]string, th.numArgs)
		for i := range args {
			args[i] = fmt.Sprintf("0x%x", th.args[i])
		}
		log.Logf(0, "#%v: %v(%v)", th.id, ex.cfg.Table.Name(th.callNum), strings.Join(args, ", "))
	}

	var fault FaultHandle
	if ex.flagInjectFault && th.callIndex == ex.faultCall {
		if ex.collide {
			exitf("both collide and fault injection are enabled")
		}
		if ex.cfg.Fault == nil {
			exitf("fault injection is requested but not available")
		}
		ex.debugf("injecting fault into %v-th operation", ex.faultNth)
		h, err := ex.cfg.Fault.Arm(ex.faultNth)
		if err != nil {
			exitf("failed to inject fault: %v", err)
		}
		fault = h
	}

	th.cover.Reset()
	th.res, th.errno = ex.cfg.Table.Do(th.callNum, &th.args)
	th.coverSize = th.cover.Count()
	th.faultInjected = false

	if fault != nil {
		th.faultInjected = fault.Fired()
		fault.Close()
		ex.debugf("fault injected: %v", th.faultInjected)
	}

	if th.res == defaultValue {
		ex.debugf("#%v: %v = errno(%v)", th.id, ex.cfg.Table.Name(th.callNum), th.errno)
	} else {
		ex.debugf("#%v: %v = 0x%x", th.id, ex.cfg.Table.Name(th.callNum), th.res)
	}
	th.done.set()
}
