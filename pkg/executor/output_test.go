// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package executor

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputBackpatch(t *testing.T) {
	w := &outputWriter{buf: make([]byte, 64), fail: func(msg string, args ...interface{}) {
		t.Fatalf(msg, args...)
	}}
	w.write(0) // header
	countPos := w.write(0)
	n := uint32(0)
	for _, v := range []uint32{10, 20, 30} {
		w.write(v)
		n++
	}
	w.patch(countPos, n)
	w.writeCompleted(1)

	assert.EqualValues(t, 1, binary.LittleEndian.Uint32(w.buf[0:]))
	assert.EqualValues(t, 3, binary.LittleEndian.Uint32(w.buf[4:]))
	assert.EqualValues(t, 10, binary.LittleEndian.Uint32(w.buf[8:]))
	assert.EqualValues(t, 30, binary.LittleEndian.Uint32(w.buf[16:]))
}

func TestOutputOverflow(t *testing.T) {
	w := &outputWriter{buf: make([]byte, 8), fail: func(msg string, args ...interface{}) {
		panic(fmt.Sprintf(msg, args...))
	}}
	w.write(1)
	w.write(2)
	assert.Panics(t, func() { w.write(3) })
	w.reset()
	w.write(4)
	assert.EqualValues(t, 4, binary.LittleEndian.Uint32(w.buf[0:]))
}
