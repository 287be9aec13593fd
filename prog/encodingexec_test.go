// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog_test

import (
	"encoding/binary"
	"testing"

	"github.com/XiaoyuHe/syzkaller/prog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(t *testing.T, data []byte) []uint64 {
	require.Equal(t, 0, len(data)%8)
	res := make([]uint64, len(data)/8)
	for i := range res {
		res[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return res
}

func TestBuilderCall(t *testing.T) {
	b := new(prog.Builder)
	b.Call(5, 7, prog.ArgConst(4, 42), prog.ArgResult(8, 3, 2, 1))
	data, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, []uint64{
		5, 7, 2, // num, copyout index, num args
		prog.ExecArgConst, 4, 42, 0, 0,
		prog.ExecArgResult, 8, 3, 2, 1,
		prog.ExecInstrEOF,
	}, words(t, data))
}

func TestBuilderCopyin(t *testing.T) {
	b := new(prog.Builder)
	b.CopyinConst(0x1000, 2, 0xbeef, 4, 8)
	data, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, []uint64{
		prog.ExecInstrCopyin, 0x1000,
		prog.ExecArgConst, 2, 0xbeef, 4, 8,
		prog.ExecInstrEOF,
	}, words(t, data))
}

func TestBuilderData(t *testing.T) {
	b := new(prog.Builder)
	b.CopyinData(0x2000, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	data, err := b.Finalize()
	require.NoError(t, err)
	// 9 bytes of payload occupy two words.
	assert.Equal(t, []uint64{
		prog.ExecInstrCopyin, 0x2000,
		prog.ExecArgData, 9,
		0x0807060504030201, 0x09,
		prog.ExecInstrEOF,
	}, words(t, data))
}

func TestBuilderCopyout(t *testing.T) {
	b := new(prog.Builder)
	b.Call(1, prog.ExecNoCopyout)
	b.Copyout(3, 0x3000, 4)
	data, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, []uint64{
		1, prog.ExecNoCopyout, 0,
		prog.ExecInstrCopyout, 3, 0x3000, 4,
		prog.ExecInstrEOF,
	}, words(t, data))
}

func TestBuilderCsum(t *testing.T) {
	b := new(prog.Builder)
	b.CopyinCsumInet(0x4000, []prog.CsumChunk{
		{Kind: prog.ExecArgCsumChunkData, Value: 0x5000, Size: 20},
		{Kind: prog.ExecArgCsumChunkConst, Value: 0x0800, Size: 2},
	})
	data, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, []uint64{
		prog.ExecInstrCopyin, 0x4000,
		prog.ExecArgCsum, 2, prog.ExecArgCsumInet, 2,
		prog.ExecArgCsumChunkData, 0x5000, 20,
		prog.ExecArgCsumChunkConst, 0x0800, 2,
		prog.ExecInstrEOF,
	}, words(t, data))
}

func TestBuilderBadIndex(t *testing.T) {
	b := new(prog.Builder)
	b.Copyout(prog.ExecMaxCommands, 0x1000, 4)
	_, err := b.Finalize()
	assert.Error(t, err)

	b = new(prog.Builder)
	b.Result(8, prog.ExecMaxCommands+1, 0, 0)
	_, err = b.Finalize()
	assert.Error(t, err)
}

func TestBuilderTooManyArgs(t *testing.T) {
	b := new(prog.Builder)
	var args []prog.CallArg
	for i := 0; i < prog.ExecMaxArgs+1; i++ {
		args = append(args, prog.ArgConst(8, 0))
	}
	b.Call(0, prog.ExecNoCopyout, args...)
	_, err := b.Finalize()
	assert.Error(t, err)
}
