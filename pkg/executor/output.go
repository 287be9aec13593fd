// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package executor

import (
	"encoding/binary"
)

// outputWriter appends little-endian 32-bit words to the shared output
// mapping. Word 0 is the completed-calls counter, updated via patch as
// records are emitted. Positions returned by write are stable, which is
// what the count back-patching in the completion handler relies on.
type outputWriter struct {
	buf  []byte
	pos  int
	fail func(msg string, args ...interface{})
}

func (w *outputWriter) reset() {
	w.pos = 0
}

// write appends v and returns its position for later patching.
func (w *outputWriter) write(v uint32) int {
	if w.pos+4 > len(w.buf) {
		w.fail("output buffer overflow at %v", w.pos)
	}
	binary.LittleEndian.PutUint32(w.buf[w.pos:], v)
	pos := w.pos
	w.pos += 4
	return pos
}

func (w *outputWriter) patch(pos int, v uint32) {
	binary.LittleEndian.PutUint32(w.buf[pos:], v)
}

// writeCompleted updates the completed-calls counter in the header.
func (w *outputWriter) writeCompleted(completed uint32) {
	binary.LittleEndian.PutUint32(w.buf[0:], completed)
}
