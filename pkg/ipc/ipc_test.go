// Copyright 2015 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ipc

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outputBuilder struct {
	buf []byte
}

func (b *outputBuilder) word(v uint32) *outputBuilder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

func (b *outputBuilder) bytes() []byte {
	// Pad the way the real mapping is: larger than the payload.
	return append(b.buf, make([]byte, 4096)...)
}

func TestParseOutputEmpty(t *testing.T) {
	out := new(outputBuilder).word(0).bytes()
	info, err := ParseOutput(out)
	require.NoError(t, err)
	assert.Empty(t, info)
}

func TestParseOutputSingleCall(t *testing.T) {
	b := new(outputBuilder)
	b.word(1)      // completed
	b.word(0)      // call index
	b.word(7)      // call num
	b.word(2)      // errno
	b.word(1)      // fault injected
	b.word(2)      // nsig
	b.word(1)      // ncover
	b.word(0)      // ncomps
	b.word(0x111)  // signal
	b.word(0x222)  // signal
	b.word(0xc0de) // cover
	info, err := ParseOutput(b.bytes())
	require.NoError(t, err)
	require.Len(t, info, 1)
	assert.Equal(t, 0, info[0].Index)
	assert.Equal(t, 7, info[0].Num)
	assert.Equal(t, 2, info[0].Errno)
	assert.True(t, info[0].FaultInjected)
	assert.Equal(t, []uint32{0x111, 0x222}, info[0].Signal)
	assert.Equal(t, []uint32{0xc0de}, info[0].Cover)
	assert.Empty(t, info[0].Comps)
}

func TestParseOutputComps(t *testing.T) {
	b := new(outputBuilder)
	b.word(1) // completed
	b.word(0).word(0).word(0).word(0)
	b.word(0) // nsig
	b.word(0) // ncover
	b.word(3) // ncomps
	// 4-byte non-const comparison: both directions are stored.
	b.word(4).word(10).word(20)
	// Const comparison: only var->const direction is stored.
	b.word(4 | 1).word(5).word(6)
	// 8-byte comparison with equal operands: dropped.
	b.word(6).word(1).word(0).word(1).word(0)
	info, err := ParseOutput(b.bytes())
	require.NoError(t, err)
	require.Len(t, info, 1)
	comps := info[0].Comps
	assert.True(t, comps[20][10])
	assert.True(t, comps[10][20])
	assert.True(t, comps[6][5])
	_, ok := comps[5]
	assert.False(t, ok)
	assert.Len(t, comps, 3)
}

func TestParseOutputTruncated(t *testing.T) {
	b := new(outputBuilder)
	b.word(1) // completed, but no record follows
	_, err := ParseOutput(b.buf)
	assert.Error(t, err)

	b = new(outputBuilder)
	b.word(1)
	b.word(0).word(0).word(0).word(0)
	b.word(2000) // nsig larger than the buffer
	b.word(0).word(0)
	_, err = ParseOutput(b.bytes())
	assert.Error(t, err)
}

func TestParseOutputBadCompType(t *testing.T) {
	b := new(outputBuilder)
	b.word(1)
	b.word(0).word(0).word(0).word(0)
	b.word(0).word(0)
	b.word(1)  // ncomps
	b.word(42) // bad comparison type
	_, err := ParseOutput(b.bytes())
	assert.Error(t, err)
}

func TestCompMap(t *testing.T) {
	cm := make(CompMap)
	cm.AddComp(1, 2)
	cm.AddComp(1, 3)
	cm.AddComp(4, 5)
	assert.True(t, cm[1][2])
	assert.True(t, cm[1][3])
	assert.True(t, cm[4][5])
	assert.False(t, cm[2][1])
}
