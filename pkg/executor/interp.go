// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package executor

import (
	"encoding/binary"
	"sort"
	"time"

	"github.com/XiaoyuHe/syzkaller/prog"
)

// executeOne executes the program stored in the input buffer, then replays
// it once with the collide flag set if the request asked for that.
func (ex *Executor) executeOne() {
	ex.out.reset()
	ex.results = [maxCommands]res{}
	ex.completed = 0
	for {
		ex.executePass()
		if ex.flagCollide && !ex.flagInjectFault && !ex.collide {
			ex.debugf("enabling collider")
			ex.collide = true
			continue
		}
		break
	}
	ex.collide = false
}

func (ex *Executor) executePass() {
	input := inputStream{data: ex.input, fail: ex.failf}
	ex.out.write(0) // Number of executed syscalls (updated later).

	if !ex.collide && !ex.flagThreaded {
		th := &ex.threads[0]
		if th.cover == nil {
			th.cover = ex.coverEnable()
		}
	}

	callIndex := 0
	for {
		callNum := input.read()
		if callNum == prog.ExecInstrEOF {
			break
		}
		if callNum == prog.ExecInstrCopyin {
			ex.execCopyin(&input)
			continue
		}
		if callNum == prog.ExecInstrCopyout {
			// The copyout will happen when/if the call completes.
			input.read() // index
			input.read() // addr
			input.read() // size
			continue
		}

		// Normal syscall.
		if callNum >= uint64(ex.cfg.Table.Count()) {
			ex.failf("invalid command number %v", callNum)
		}
		copyoutIndex := input.read()
		numArgs := input.read()
		if numArgs > maxArgs {
			ex.failf("command has bad number of arguments %v", numArgs)
		}
		var args [maxArgs]uint64
		for i := uint64(0); i < numArgs; i++ {
			args[i] = ex.readArg(&input)
		}
		th := ex.scheduleCall(callIndex, int(callNum), copyoutIndex, int(numArgs), args, input)
		callIndex++

		if ex.collide && callIndex%2 == 0 {
			// Don't wait for every other call.
			// We already have results from the previous execution.
		} else if ex.flagThreaded {
			// Wait for call completion.
			// Note: program generation knows about this 20ms timeout when
			// it generates timespec/timeval values.
			timeout := 20 * time.Millisecond
			if ex.flagDebug {
				timeout = 500 * time.Millisecond
			}
			if th.done.timedWait(timeout) {
				ex.handleCompletion(th)
			}
			// Check if any of the previous calls have completed.
			// Give them some additional time, because they could have been
			// just unblocked by the current call.
			if ex.running < 0 {
				ex.failf("running = %v", ex.running)
			}
			if ex.running > 0 {
				sleep := time.Millisecond
				if input.peek() == prog.ExecInstrEOF {
					sleep = 10 * time.Millisecond
				}
				time.Sleep(sleep)
				for i := 0; i < maxThreads; i++ {
					th := &ex.threads[i]
					if th.created && !th.handled && th.done.isSet() {
						ex.handleCompletion(th)
					}
				}
			}
		} else {
			// Execute directly.
			if th != &ex.threads[0] {
				ex.failf("using non-main thread in non-thread mode")
			}
			ex.executeCall(th)
			ex.handleCompletion(th)
		}
	}
}

func (ex *Executor) execCopyin(input *inputStream) {
	addr := input.read()
	typ := input.read()
	size := input.read()
	ex.debugf("copyin to %#x", addr)
	switch typ {
	case prog.ExecArgConst:
		arg := input.read()
		bfOff := input.read()
		bfLen := input.read()
		ex.copyin(addr, arg, size, bfOff, bfLen)
	case prog.ExecArgResult:
		val := ex.readResult(input)
		ex.copyin(addr, val, size, 0, 0)
	case prog.ExecArgData:
		// A fault on the target address is swallowed; the cursor advances
		// over the data words either way.
		ex.cfg.Mem.StoreBytes(addr, input.bytes(size))
	case prog.ExecArgCsum:
		ex.execCsum(input, addr, size)
	default:
		ex.failf("bad argument type %v", typ)
	}
}

func (ex *Executor) execCsum(input *inputStream, addr, size uint64) {
	ex.debugf("checksum found at %#x", addr)
	kind := input.read()
	switch kind {
	case prog.ExecArgCsumInet:
		if size != 2 {
			ex.failf("inet checksum must be 2 bytes, not %v", size)
		}
		var csum prog.IPChecksum
		chunksNum := input.read()
		for chunk := uint64(0); chunk < chunksNum; chunk++ {
			chunkKind := input.read()
			chunkValue := input.read()
			chunkSize := input.read()
			switch chunkKind {
			case prog.ExecArgCsumChunkData:
				ex.debugf("#%v: data chunk, addr: %#x, size: %v", chunk, chunkValue, chunkSize)
				if data, ok := ex.cfg.Mem.Bytes(chunkValue, chunkSize); ok {
					csum.Update(data)
				}
			case prog.ExecArgCsumChunkConst:
				if chunkSize != 2 && chunkSize != 4 && chunkSize != 8 {
					ex.failf("bad checksum const chunk size %v", chunkSize)
				}
				// Const values come to us big endian in the low bytes.
				var buf [8]byte
				binary.LittleEndian.PutUint64(buf[:], chunkValue)
				ex.debugf("#%v: const chunk, value: %#x, size: %v", chunk, chunkValue, chunkSize)
				csum.Update(buf[:chunkSize])
			default:
				ex.failf("bad checksum chunk kind %v", chunkKind)
			}
		}
		// The digest is in network byte order.
		var digest [2]byte
		binary.BigEndian.PutUint16(digest[:], csum.Digest())
		ex.debugf("writing inet checksum %#x to %#x", csum.Digest(), addr)
		ex.cfg.Mem.StoreBytes(addr, digest[:])
	default:
		ex.failf("bad checksum kind %v", kind)
	}
}

// copyin writes val into guest memory. A fault on the target address is
// swallowed; a bad size is a fatal input error.
func (ex *Executor) copyin(addr, val, size, bfOff, bfLen uint64) {
	switch size {
	case 1, 2, 4, 8:
	default:
		ex.failf("copyin: bad argument size %v", size)
	}
	ex.cfg.Mem.Store(addr, val, size, bfOff, bfLen)
}

// copyout reads size bytes from guest memory, returning the default value
// on fault.
func (ex *Executor) copyout(addr, size uint64) uint64 {
	switch size {
	case 1, 2, 4, 8:
	default:
		ex.failf("copyout: bad argument size %v", size)
	}
	if val, ok := ex.cfg.Mem.Load(addr, size); ok {
		return val
	}
	return defaultValue
}

// readArg resolves one call argument descriptor.
func (ex *Executor) readArg(input *inputStream) uint64 {
	typ := input.read()
	input.read() // size; unused for call arguments
	var arg uint64
	switch typ {
	case prog.ExecArgConst:
		arg = input.read()
		// Bitfields can't be args of a normal syscall, so just ignore them.
		input.read() // bit field offset
		input.read() // bit field length
	case prog.ExecArgResult:
		arg = ex.readResult(input)
	default:
		ex.failf("bad argument type %v", typ)
	}
	return arg
}

// readResult resolves a back-reference to a previous call's result.
func (ex *Executor) readResult(input *inputStream) uint64 {
	idx := input.read()
	opDiv := input.read()
	opAdd := input.read()
	if idx >= maxCommands {
		ex.failf("command refers to bad result %v", idx)
	}
	arg := defaultValue
	if ex.results[idx].executed {
		arg = ex.results[idx].val
		if opDiv != 0 {
			arg = arg / opDiv
		}
		arg += opAdd
	}
	return arg
}

// handleCompletion drains one finished slot: records copyouts into the
// result table and, unless this is the collide pass, appends the output
// record with signal, coverage and comparison payloads.
func (ex *Executor) handleCompletion(th *thread) {
	ex.debugf("completion of call %v [%v] on thread %v", th.callIndex, ex.cfg.Table.Name(th.callNum), th.id)
	if th.ready.isSet() || !th.done.isSet() || th.handled {
		ex.failf("bad thread state in completion: ready=%v done=%v handled=%v",
			th.ready.isSet(), th.done.isSet(), th.handled)
	}
	if th.res != defaultValue {
		if th.copyoutIndex != prog.ExecNoCopyout {
			if th.copyoutIndex >= maxCommands {
				ex.failf("result idx %v overflows max commands", th.copyoutIndex)
			}
			ex.results[th.copyoutIndex] = res{executed: true, val: th.res}
		}
		// Consume the copyout records that immediately follow the call in
		// the program; the run is terminated by the first other opcode,
		// which is peeked, not consumed.
		for th.copyoutPos.peek() == prog.ExecInstrCopyout {
			th.copyoutPos.read() // opcode
			index := th.copyoutPos.read()
			addr := th.copyoutPos.read()
			size := th.copyoutPos.read()
			val := ex.copyout(addr, size)
			if index >= maxCommands {
				ex.failf("result idx %v overflows max commands", index)
			}
			ex.results[index] = res{executed: true, val: val}
			ex.debugf("copyout from %#x", addr)
		}
	}
	if !ex.collide {
		ex.writeCallOutput(th)
	}
	th.handled = true
	ex.running--
	if ex.running < 0 {
		ex.failf("running = %v", ex.running)
	}
}

func (ex *Executor) writeCallOutput(th *thread) {
	out := &ex.out
	out.write(uint32(th.callIndex))
	out.write(uint32(th.callNum))
	reserrno := uint32(0)
	if th.res == defaultValue {
		reserrno = uint32(th.errno)
	}
	out.write(reserrno)
	fault := uint32(0)
	if th.faultInjected {
		fault = 1
	}
	out.write(fault)
	signalCountPos := out.write(0) // filled in later
	coverCountPos := out.write(0)  // filled in later
	compsCountPos := out.write(0)  // filled in later
	var nsig, coverSize, compsSize uint32

	if ex.flagCollectComps {
		// Collect only the comparisons.
		ncomps := th.coverSize
		data := th.cover.Data()
		if ncomps*4 > uint64(len(data)) {
			ex.failf("too many comparisons %v", ncomps)
		}
		comps := sortAndDedupComps(parseComparisons(data, ncomps))
		for _, c := range comps {
			if c.ignore() {
				continue
			}
			compsSize++
			c.write(out)
		}
	} else {
		// Write out feedback signals.
		// Currently it is code edges computed as xor of two subsequent
		// basic block PCs.
		data := th.cover.Data()
		if th.coverSize > uint64(len(data)) {
			ex.failf("bad cover size %v", th.coverSize)
		}
		cover := data[:th.coverSize]
		prev := uint32(0)
		for _, pc64 := range cover {
			pc := uint32(pc64)
			sig := pc ^ prev
			prev = hash(pc)
			if ex.dedup(sig) {
				continue
			}
			out.write(sig)
			nsig++
		}
		if ex.flagCollectCover {
			// Write out real coverage (basic block PCs).
			if ex.flagDedupCover {
				sort.Slice(cover, func(i, j int) bool { return cover[i] < cover[j] })
				uniq := cover[:0]
				for i, pc := range cover {
					if i > 0 && pc == uniq[len(uniq)-1] {
						continue
					}
					uniq = append(uniq, pc)
				}
				cover = uniq
			}
			// Truncate PCs to uint32 assuming that they fit into 32 bits.
			// True for x86_64 and arm64 without KASLR.
			for _, pc := range cover {
				out.write(uint32(pc))
			}
			coverSize = uint32(len(cover))
		}
	}
	out.patch(coverCountPos, coverSize)
	out.patch(compsCountPos, compsSize)
	out.patch(signalCountPos, nsig)
	ex.debugf("out #%v: index=%v num=%v errno=%v sig=%v cover=%v comps=%v",
		ex.completed, th.callIndex, th.callNum, reserrno, nsig, coverSize, compsSize)
	ex.completed++
	out.writeCompleted(ex.completed)
}
