// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventLevels(t *testing.T) {
	e := newEvent()
	assert.False(t, e.isSet())
	e.set()
	assert.True(t, e.isSet())
	e.set() // setting twice is fine
	assert.True(t, e.isSet())
	e.wait() // an already-set event does not block
	e.reset()
	assert.False(t, e.isSet())
	e.reset()
	assert.False(t, e.isSet())
}

func TestEventTimedWait(t *testing.T) {
	e := newEvent()
	start := time.Now()
	assert.False(t, e.timedWait(10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	go func() {
		time.Sleep(5 * time.Millisecond)
		e.set()
	}()
	assert.True(t, e.timedWait(10*time.Second))
}

func TestEventHandoff(t *testing.T) {
	ready, done := newEvent(), newEvent()
	var val int
	go func() {
		for i := 0; i < 100; i++ {
			ready.wait()
			ready.reset()
			val++
			done.set()
		}
	}()
	for i := 0; i < 100; i++ {
		ready.set()
		done.wait()
		done.reset()
		assert.Equal(t, i+1, val)
	}
}
