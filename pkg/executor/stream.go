// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package executor

import (
	"encoding/binary"
)

// inputStream is a position-advancing cursor over the 64-bit words of the
// program buffer. Completion handlers hold value copies of the stream so
// that reading trailing copyout records does not disturb the interpreter
// cursor.
type inputStream struct {
	data []byte
	pos  int
	fail func(msg string, args ...interface{})
}

// read returns the current word and advances.
func (s *inputStream) read() uint64 {
	v := s.peek()
	s.pos += 8
	return v
}

// peek returns the current word without advancing.
func (s *inputStream) peek() uint64 {
	if s.pos+8 > len(s.data) {
		s.fail("input command overflows input")
	}
	return binary.LittleEndian.Uint64(s.data[s.pos:])
}

// bytes returns size raw bytes at the cursor and advances by the padded
// word count, the consumption rule for embedded data arguments.
func (s *inputStream) bytes(size uint64) []byte {
	padded := (size + 7) / 8 * 8
	if uint64(s.pos)+padded > uint64(len(s.data)) {
		s.fail("input data overflows input")
	}
	data := s.data[uint64(s.pos) : uint64(s.pos)+size]
	s.pos += int(padded)
	return data
}
