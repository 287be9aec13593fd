// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// This file defines the binary exec format understood by the executor
// and a builder for constructing programs in that format.
// The format aims at simple parsing: binary and irreversible.

package prog

import (
	"encoding/binary"
	"fmt"
)

const (
	// Instruction opcodes. Any other leading word is a syscall number.
	ExecInstrEOF = ^uint64(iota)
	ExecInstrCopyin
	ExecInstrCopyout
)

const (
	// Argument descriptor types.
	ExecArgConst = uint64(iota)
	ExecArgResult
	ExecArgData
	ExecArgCsum
)

const (
	// Checksum kinds.
	ExecArgCsumInet = uint64(iota)
)

const (
	// Checksum chunk kinds.
	ExecArgCsumChunkData = uint64(iota)
	ExecArgCsumChunkConst
)

const (
	ExecNoCopyout = ^uint64(0)

	// ExecBufferSize is the maximum size of an encoded program
	// accepted by the executor.
	ExecBufferSize = 2 << 20

	// ExecMaxCommands bounds copyout indices (the result table size).
	ExecMaxCommands = 1000

	// ExecMaxArgs is the maximum number of syscall arguments.
	ExecMaxArgs = 9
)

const (
	PtrSize    = 8
	PageSize   = 4 << 10
	DataOffset = 512 << 20
)

// Builder serializes a program into the exec format.
// The zero value is ready to use.
type Builder struct {
	buf []byte
	err error
}

func (w *Builder) write(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// Const appends a const argument descriptor.
// Size must be 1, 2, 4 or 8; bfOff/bfLen describe an optional bitfield.
func (w *Builder) Const(size, val, bfOff, bfLen uint64) {
	w.write(ExecArgConst)
	w.write(size)
	w.write(val)
	w.write(bfOff)
	w.write(bfLen)
}

// Result appends a back-reference to the result of a previous call.
func (w *Builder) Result(size, idx, div, add uint64) {
	if idx >= ExecMaxCommands {
		w.setErr(fmt.Errorf("result index %v overflows max commands", idx))
		return
	}
	w.write(ExecArgResult)
	w.write(size)
	w.write(idx)
	w.write(div)
	w.write(add)
}

// Data appends an embedded data argument, padded to a multiple of 8 bytes.
func (w *Builder) Data(data []byte) {
	w.write(ExecArgData)
	w.write(uint64(len(data)))
	for i := 0; i < len(data); i += 8 {
		var v uint64
		for j := 0; j < 8 && i+j < len(data); j++ {
			v |= uint64(data[i+j]) << uint(j*8)
		}
		w.write(v)
	}
}

// CsumChunk is one input region of a checksum computation.
type CsumChunk struct {
	Kind  uint64 // ExecArgCsumChunkData or ExecArgCsumChunkConst
	Value uint64 // address for data chunks, value for const chunks
	Size  uint64
}

// CopyinConst emits a copyin instruction storing a const at addr.
func (w *Builder) CopyinConst(addr, size, val, bfOff, bfLen uint64) {
	w.write(ExecInstrCopyin)
	w.write(addr)
	w.Const(size, val, bfOff, bfLen)
}

// CopyinResult emits a copyin instruction storing a prior result at addr.
func (w *Builder) CopyinResult(addr, size, idx, div, add uint64) {
	w.write(ExecInstrCopyin)
	w.write(addr)
	w.Result(size, idx, div, add)
}

// CopyinData emits a copyin instruction storing raw bytes at addr.
func (w *Builder) CopyinData(addr uint64, data []byte) {
	w.write(ExecInstrCopyin)
	w.write(addr)
	w.Data(data)
}

// CopyinCsumInet emits a copyin instruction that computes an inet checksum
// over chunks and stores the 16-bit digest at addr.
func (w *Builder) CopyinCsumInet(addr uint64, chunks []CsumChunk) {
	w.write(ExecInstrCopyin)
	w.write(addr)
	w.write(ExecArgCsum)
	w.write(2) // inet checksum is always 2 bytes
	w.write(ExecArgCsumInet)
	w.write(uint64(len(chunks)))
	for _, c := range chunks {
		w.write(c.Kind)
		w.write(c.Value)
		w.write(c.Size)
	}
}

// Copyout emits a copyout marker; the executor performs the read after the
// owning call completes. Must immediately follow the owning call.
func (w *Builder) Copyout(idx, addr, size uint64) {
	if idx >= ExecMaxCommands {
		w.setErr(fmt.Errorf("copyout index %v overflows max commands", idx))
		return
	}
	w.write(ExecInstrCopyout)
	w.write(idx)
	w.write(addr)
	w.write(size)
}

// CallArg is a single already-encoded call argument,
// produced by the Arg* helpers below.
type CallArg []uint64

func ArgConst(size, val uint64) CallArg {
	return CallArg{ExecArgConst, size, val, 0, 0}
}

func ArgResult(size, idx, div, add uint64) CallArg {
	return CallArg{ExecArgResult, size, idx, div, add}
}

// Call emits a syscall instruction.
// copyoutIdx is ExecNoCopyout if the return value is to be discarded.
func (w *Builder) Call(num, copyoutIdx uint64, args ...CallArg) {
	if len(args) > ExecMaxArgs {
		w.setErr(fmt.Errorf("call has too many arguments: %v", len(args)))
		return
	}
	w.write(num)
	w.write(copyoutIdx)
	w.write(uint64(len(args)))
	for _, arg := range args {
		for _, v := range arg {
			w.write(v)
		}
	}
}

func (w *Builder) setErr(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Finalize appends the EOF sentinel and returns the encoded program.
func (w *Builder) Finalize() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.write(ExecInstrEOF)
	buf := w.buf
	w.buf = nil
	if len(buf) > ExecBufferSize {
		return nil, fmt.Errorf("program of %v bytes exceeds buffer size", len(buf))
	}
	return buf, nil
}
