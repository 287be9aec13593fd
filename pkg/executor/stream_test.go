// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package executor

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStream(t *testing.T, words ...uint64) *inputStream {
	data := make([]byte, len(words)*8)
	for i, w := range words {
		binary.LittleEndian.PutUint64(data[i*8:], w)
	}
	return &inputStream{
		data: data,
		fail: func(msg string, args ...interface{}) {
			panic(fmt.Sprintf(msg, args...))
		},
	}
}

func TestStreamReadPeek(t *testing.T) {
	s := testStream(t, 1, 2, 3)
	assert.EqualValues(t, 1, s.peek())
	assert.EqualValues(t, 1, s.read())
	assert.EqualValues(t, 2, s.read())
	assert.EqualValues(t, 3, s.peek())
	assert.EqualValues(t, 3, s.read())
}

func TestStreamOverflow(t *testing.T) {
	s := testStream(t, 1)
	s.read()
	assert.PanicsWithValue(t, "input command overflows input", func() { s.read() })
}

func TestStreamCursorCopy(t *testing.T) {
	s := testStream(t, 1, 2, 3, 4)
	s.read()
	copyPos := *s
	s.read()
	s.read()
	// The copy keeps its own position.
	assert.EqualValues(t, 2, copyPos.read())
	assert.EqualValues(t, 4, s.read())
}

func TestStreamBytes(t *testing.T) {
	s := testStream(t, 0, 0)
	copy(s.data, "abcde")
	got := s.bytes(5)
	require.Equal(t, []byte("abcde"), got)
	// The cursor advances by whole words.
	assert.Equal(t, 8, s.pos)
}
