// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package executor

import (
	"encoding/binary"
	"io"
)

// Wire framing of the control protocol. All records are little-endian
// and guarded by magic numbers; anything malformed is fatal.

const (
	handshakeReqSize   = 24
	handshakeReplySize = 4
	executeReqSize     = 56
	executeReplySize   = 12
)

func (ex *Executor) receiveHandshake() {
	var buf [handshakeReqSize]byte
	if _, err := io.ReadFull(ex.cfg.In, buf[:]); err != nil {
		ex.failf("handshake read failed: %v", err)
	}
	magic := binary.LittleEndian.Uint64(buf[0:])
	if magic != inMagic {
		ex.failf("bad handshake magic 0x%x", magic)
	}
	ex.parseEnvFlags(binary.LittleEndian.Uint64(buf[8:]))
	ex.pid = int(binary.LittleEndian.Uint64(buf[16:]))
}

func (ex *Executor) replyHandshake() {
	var buf [handshakeReplySize]byte
	binary.LittleEndian.PutUint32(buf[0:], outMagic)
	if _, err := ex.cfg.Out.Write(buf[:]); err != nil {
		ex.failf("control pipe write failed: %v", err)
	}
}

// receiveExecute reads the next execute request and the program that
// follows it. It reports false when the parent has closed the channel.
func (ex *Executor) receiveExecute() bool {
	var buf [executeReqSize]byte
	if _, err := io.ReadFull(ex.cfg.In, buf[:]); err != nil {
		if err == io.EOF {
			return false
		}
		ex.failf("control pipe read failed: %v", err)
	}
	magic := binary.LittleEndian.Uint64(buf[0:])
	if magic != inMagic {
		ex.failf("bad execute request magic 0x%x", magic)
	}
	ex.parseEnvFlags(binary.LittleEndian.Uint64(buf[8:]))
	execFlags := binary.LittleEndian.Uint64(buf[16:])
	ex.pid = int(binary.LittleEndian.Uint64(buf[24:]))
	ex.faultCall = int(binary.LittleEndian.Uint64(buf[32:]))
	ex.faultNth = int(binary.LittleEndian.Uint64(buf[40:]))
	progSize := binary.LittleEndian.Uint64(buf[48:])

	ex.flagCollectCover = execFlags&(1<<0) != 0
	ex.flagDedupCover = execFlags&(1<<1) != 0
	ex.flagInjectFault = execFlags&(1<<2) != 0
	ex.flagCollectComps = execFlags&(1<<3) != 0
	ex.flagThreaded = execFlags&(1<<4) != 0
	ex.flagCollide = execFlags&(1<<5) != 0
	if !ex.flagThreaded {
		ex.flagCollide = false
	}
	if progSize > maxInput {
		ex.failf("bad execute prog size 0x%x", progSize)
	}
	ex.debugf("exec opts: pid=%v threaded=%v collide=%v cover=%v comps=%v dedup=%v fault=%v/%v/%v prog=%v",
		ex.pid, ex.flagThreaded, ex.flagCollide, ex.flagCollectCover, ex.flagCollectComps,
		ex.flagDedupCover, ex.flagInjectFault, ex.faultCall, ex.faultNth, progSize)
	if progSize == 0 {
		ex.failf("need_prog: no program")
	}
	if _, err := io.ReadFull(ex.cfg.In, ex.input[:progSize]); err != nil {
		ex.failf("bad input size: %v", err)
	}
	return true
}

func (ex *Executor) replyExecute(status int) {
	var buf [executeReplySize]byte
	binary.LittleEndian.PutUint32(buf[0:], outMagic)
	binary.LittleEndian.PutUint32(buf[4:], 1) // done
	binary.LittleEndian.PutUint32(buf[8:], uint32(status))
	if _, err := ex.cfg.Out.Write(buf[:]); err != nil {
		ex.failf("control pipe write failed: %v", err)
	}
}
