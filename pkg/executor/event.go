// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package executor

import (
	"sync"
	"time"
)

// event is a level-triggered synchronization flag with the same semantics
// as the per-slot ready/done events the scheduler relies on: once set it
// stays set until reset, waiters observe the level rather than an edge.
type event struct {
	mu sync.Mutex
	on bool
	ch chan struct{}
}

func newEvent() *event {
	return &event{ch: make(chan struct{})}
}

func (e *event) set() {
	e.mu.Lock()
	if !e.on {
		e.on = true
		close(e.ch)
	}
	e.mu.Unlock()
}

func (e *event) reset() {
	e.mu.Lock()
	if e.on {
		e.on = false
		e.ch = make(chan struct{})
	}
	e.mu.Unlock()
}

func (e *event) isSet() bool {
	e.mu.Lock()
	on := e.on
	e.mu.Unlock()
	return on
}

func (e *event) wait() {
	e.mu.Lock()
	ch := e.ch
	e.mu.Unlock()
	<-ch
}

// timedWait waits for the event for at most timeout and reports whether
// the event was set.
func (e *event) timedWait(timeout time.Duration) bool {
	e.mu.Lock()
	ch := e.ch
	e.mu.Unlock()
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return e.isSet()
	}
}
