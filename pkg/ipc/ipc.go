// Copyright 2015 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package ipc is the parent side of the executor control protocol: it
// spawns executor processes, feeds them programs over the control pipes
// and parses per-call results out of the shared output mapping.
package ipc

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/XiaoyuHe/syzkaller/pkg/osutil"
)

// EnvFlags are the per-process configuration flags.
// The bit values are part of the wire protocol.
type EnvFlags uint64

const (
	FlagDebug            EnvFlags = 1 << iota // debug output from executor
	FlagCover                                 // collect coverage
	FlagSandboxSetuid                         // impersonate nobody user
	FlagSandboxNamespace                      // use namespaces for sandboxing
	FlagEnableTun                             // initialize and use tun in executor
	FlagEnableFault                           // enable fault injection support
)

// ExecFlags are the per-execution flags.
// The bit values are part of the wire protocol.
type ExecFlags uint64

const (
	FlagCollectCover ExecFlags = 1 << iota // collect per-call coverage
	FlagDedupCover                         // deduplicate coverage in executor
	FlagInjectFault                        // inject a fault in this execution
	FlagCollectComps                       // collect KCOV comparisons
	FlagThreaded                           // use multiple threads to mitigate blocked syscalls
	FlagCollide                            // collide syscalls to provoke data races
)

type ExecOpts struct {
	Flags     ExecFlags
	FaultCall int // call index for fault injection (0-based)
	FaultNth  int // fault n-th operation in the call (0-based)
}

// Config is the configuration for Env.
type Config struct {
	// Executor is the path to the executor binary.
	Executor string

	// Flags are the configuration flags, defined above.
	Flags EnvFlags

	// Timeout is the execution timeout for a single program.
	Timeout time.Duration
}

// ExecutorFailure is returned from Env.Exec when the executor terminates
// with its failure status. This is a logical error (a failed invariant).
type ExecutorFailure string

func (err ExecutorFailure) Error() string {
	return string(err)
}

// CallInfo is the result of one completed call, in completion order.
type CallInfo struct {
	Index         int // call index in the program
	Num           int // operation number (for cross-checking)
	Errno         int // 0 if the call succeeded
	FaultInjected bool
	Signal        []uint32 // feedback signal
	Cover         []uint32 // per-call coverage PCs
	Comps         CompMap  // per-call comparison operands
}

// CompMap maps comparison operands to the values they were compared with.
type CompMap map[uint64]map[uint64]bool

func (cm CompMap) AddComp(arg1, arg2 uint64) {
	if cm[arg1] == nil {
		cm[arg1] = make(map[uint64]bool)
	}
	cm[arg1][arg2] = true
}

// Env holds one executor process and its shared output mapping.
type Env struct {
	out []byte

	cmd       *command
	outFile   *os.File
	bin       []string
	linkedBin string
	pid       int
	config    *Config

	StatExecs    uint64
	StatRestarts uint64
}

const (
	outputSize = 16 << 20

	statusFail  = 67
	statusError = 68

	// Comparison type masks, taken from KCOV headers.
	compSizeMask  = 6
	compSize8     = 6
	compConstMask = 1

	inMagic  = uint64(0xbadc0ffeebadface)
	outMagic = uint32(0xbadf00d)
)

func MakeEnv(config *Config, pid int) (*Env, error) {
	outFile, outmem, err := osutil.CreateMemMappedFile(outputSize)
	if err != nil {
		return nil, err
	}
	env := &Env{
		out:     outmem,
		outFile: outFile,
		bin:     strings.Split(config.Executor, " "),
		pid:     pid,
		config:  config,
	}
	if len(env.bin) == 0 || env.bin[0] == "" {
		osutil.CloseMemMappedFile(outFile, outmem)
		return nil, fmt.Errorf("binary is empty string")
	}
	env.bin[0] = osutil.Abs(env.bin[0]) // we are going to chdir
	// Append pid to the binary name: if the binary is 'syz-executor' and
	// pid=15, we create a link 'syz-executor15' and use it as the binary.
	// This makes the program easy to identify in crash logs.
	base := filepath.Base(env.bin[0])
	pidStr := fmt.Sprint(pid)
	const maxLen = 16 // TASK_COMM_LEN
	if len(base)+len(pidStr) >= maxLen {
		base = base[:maxLen-1-len(pidStr)]
	}
	binCopy := filepath.Join(filepath.Dir(env.bin[0]), base+pidStr)
	if err := os.Link(env.bin[0], binCopy); err == nil {
		env.bin[0] = binCopy
		env.linkedBin = binCopy
	}
	return env, nil
}

func (env *Env) Close() error {
	if env.cmd != nil {
		env.cmd.close()
		env.cmd = nil
	}
	if env.linkedBin != "" {
		os.Remove(env.linkedBin)
	}
	return osutil.CloseMemMappedFile(env.outFile, env.out)
}

// Exec sends progData (a program in the exec wire format) to the executor
// and returns information about the execution:
// output: process stderr output
// info: per-call results in completion order
// failed: true if the executor has detected a kernel bug
// hanged: program hanged and was killed
// err0: failed to start the process, or the executor failed an invariant
func (env *Env) Exec(opts *ExecOpts, progData []byte) (
	output []byte, info []CallInfo, failed, hanged bool, err0 error) {
	// Zero out the completed counter, so that we don't read garbage
	// if the executor crashes before writing it.
	for i := 0; i < 4; i++ {
		env.out[i] = 0
	}
	atomic.AddUint64(&env.StatExecs, 1)
	if env.cmd == nil {
		atomic.AddUint64(&env.StatRestarts, 1)
		env.cmd, err0 = makeCommand(env.pid, env.bin, env.config, env.outFile)
		if err0 != nil {
			return
		}
	}
	var restart bool
	output, failed, hanged, restart, err0 = env.cmd.exec(opts, progData)
	if err0 != nil {
		env.cmd.close()
		env.cmd = nil
		return
	}
	info, err0 = env.parseOutput()
	if restart {
		env.cmd.close()
		env.cmd = nil
	}
	return
}

func (env *Env) parseOutput() ([]CallInfo, error) {
	return ParseOutput(env.out)
}

// ParseOutput decodes the output buffer layout produced by the executor:
// the completed-calls counter followed by per-call records in completion
// order.
func ParseOutput(out []byte) ([]CallInfo, error) {
	ncmd, ok := readUint32(&out)
	if !ok {
		return nil, fmt.Errorf("failed to read number of calls")
	}
	var info []CallInfo
	for i := uint32(0); i < ncmd; i++ {
		callIndex, ok1 := readUint32(&out)
		callNum, ok2 := readUint32(&out)
		errno, ok3 := readUint32(&out)
		faultInjected, ok4 := readUint32(&out)
		signalSize, ok5 := readUint32(&out)
		coverSize, ok6 := readUint32(&out)
		compsSize, ok7 := readUint32(&out)
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 || !ok7 {
			return nil, fmt.Errorf("failed to read call %v reply", i)
		}
		inf := CallInfo{
			Index:         int(callIndex),
			Num:           int(callNum),
			Errno:         int(errno),
			FaultInjected: faultInjected != 0,
		}
		if inf.Signal, ok = readUint32Array(&out, signalSize); !ok {
			return nil, fmt.Errorf("call %v/%v: signal overflow: %v/%v",
				i, callIndex, signalSize, len(out))
		}
		if inf.Cover, ok = readUint32Array(&out, coverSize); !ok {
			return nil, fmt.Errorf("call %v/%v: cover overflow: %v/%v",
				i, callIndex, coverSize, len(out))
		}
		comps, err := readComps(&out, compsSize)
		if err != nil {
			return nil, fmt.Errorf("call %v/%v: %v", i, callIndex, err)
		}
		inf.Comps = comps
		info = append(info, inf)
	}
	return info, nil
}

func readComps(outp *[]byte, compsSize uint32) (CompMap, error) {
	if compsSize == 0 {
		return nil, nil
	}
	compMap := make(CompMap)
	for i := uint32(0); i < compsSize; i++ {
		typ, ok := readUint32(outp)
		if !ok {
			return nil, fmt.Errorf("failed to read comp %v", i)
		}
		if typ > compConstMask|compSizeMask {
			return nil, fmt.Errorf("bad comp %v type %v", i, typ)
		}
		var op1, op2 uint64
		var ok1, ok2 bool
		if typ&compSizeMask == compSize8 {
			op1, ok1 = readUint64(outp)
			op2, ok2 = readUint64(outp)
		} else {
			var tmp1, tmp2 uint32
			tmp1, ok1 = readUint32(outp)
			tmp2, ok2 = readUint32(outp)
			op1, op2 = uint64(tmp1), uint64(tmp2)
		}
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("failed to read comp %v op", i)
		}
		if op1 == op2 {
			continue // it's useless to store such comparisons
		}
		compMap.AddComp(op2, op1)
		if typ&compConstMask != 0 {
			// If one of the operands was const, then this operand is
			// always placed first in the instrumented callbacks. Such an
			// operand can't be an argument of our calls, so we ignore it.
			continue
		}
		compMap.AddComp(op1, op2)
	}
	return compMap, nil
}

func readUint32(outp *[]byte) (uint32, bool) {
	out := *outp
	if len(out) < 4 {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(out)
	*outp = out[4:]
	return v, true
}

func readUint64(outp *[]byte) (uint64, bool) {
	out := *outp
	if len(out) < 8 {
		return 0, false
	}
	v := binary.LittleEndian.Uint64(out)
	*outp = out[8:]
	return v, true
}

func readUint32Array(outp *[]byte, size uint32) ([]uint32, bool) {
	if size == 0 {
		return nil, true
	}
	out := *outp
	if uint64(size)*4 > uint64(len(out)) {
		return nil, false
	}
	res := make([]uint32, size)
	for i := range res {
		res[i] = binary.LittleEndian.Uint32(out[i*4:])
	}
	*outp = out[size*4:]
	return res, true
}

type command struct {
	pid      int
	config   *Config
	timeout  time.Duration
	cmd      *exec.Cmd
	waitErr  error
	waited   bool
	dir      string
	readDone chan []byte
	inrp     *os.File
	outwp    *os.File
}

func (c *command) kill() {
	osutil.KillPgroup(c.cmd)
	c.cmd.Process.Kill()
}

func (c *command) wait() error {
	if !c.waited {
		c.waitErr = c.cmd.Wait()
		c.waited = true
	}
	return c.waitErr
}

func makeCommand(pid int, bin []string, config *Config, outFile *os.File) (*command, error) {
	dir, err := os.MkdirTemp("./", "syzkaller-testdir")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %v", err)
	}
	dir = osutil.Abs(dir)

	c := &command{
		pid:     pid,
		config:  config,
		timeout: sanitizeTimeout(config),
		dir:     dir,
	}
	defer func() {
		if c != nil {
			c.close()
		}
	}()

	if config.Flags&(FlagSandboxSetuid|FlagSandboxNamespace) != 0 {
		if err := os.Chmod(dir, 0777); err != nil {
			return nil, fmt.Errorf("failed to chmod temp dir: %v", err)
		}
	}

	// Output capture pipe.
	rp, wp, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %v", err)
	}
	defer wp.Close()

	// executor->ipc control pipe.
	inrp, inwp, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %v", err)
	}
	defer inwp.Close()
	c.inrp = inrp

	// ipc->executor control pipe.
	outrp, outwp, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %v", err)
	}
	defer outrp.Close()
	c.outwp = outwp

	c.readDone = make(chan []byte, 1)

	cmd := osutil.Command(bin[0], bin[1:]...)
	cmd.ExtraFiles = []*os.File{outFile}
	cmd.Env = []string{}
	cmd.Dir = dir
	cmd.Stdin = outrp
	cmd.Stdout = inwp
	if config.Flags&FlagDebug != 0 {
		close(c.readDone)
		cmd.Stderr = os.Stdout
	} else {
		cmd.Stderr = wp
		go func(c *command) {
			// Read out stderr in case the executor constantly prints
			// something; keep only the tail.
			const bufSize = 128 << 10
			output := make([]byte, bufSize)
			var size uint64
			for {
				n, err := rp.Read(output[size:])
				if n > 0 {
					size += uint64(n)
					if size >= bufSize*3/4 {
						copy(output, output[size-bufSize/2:size])
						size = bufSize / 2
					}
				}
				if err != nil {
					rp.Close()
					c.readDone <- output[:size]
					close(c.readDone)
					return
				}
			}
		}(c)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start executor binary: %v", err)
	}
	c.cmd = cmd
	wp.Close()
	inwp.Close()

	if err := c.handshake(); err != nil {
		return nil, err
	}
	tmp := c
	c = nil // disable the defer above
	return tmp, nil
}

func sanitizeTimeout(config *Config) time.Duration {
	const minTimeout = 3 * time.Second
	timeout := config.Timeout
	if timeout < minTimeout {
		timeout = minTimeout
	}
	return timeout
}

func (c *command) close() {
	if c.cmd != nil {
		c.kill()
		c.wait()
	}
	osutil.RemoveAll(c.dir)
	if c.inrp != nil {
		c.inrp.Close()
	}
	if c.outwp != nil {
		c.outwp.Close()
	}
}

// handshake sends the handshake request and waits for the reply
// (sandbox setup can take significant time).
func (c *command) handshake() error {
	var req [24]byte
	binary.LittleEndian.PutUint64(req[0:], inMagic)
	binary.LittleEndian.PutUint64(req[8:], uint64(c.config.Flags))
	binary.LittleEndian.PutUint64(req[16:], uint64(c.pid))
	if _, err := c.outwp.Write(req[:]); err != nil {
		return c.handshakeError(fmt.Errorf("failed to write control pipe: %v", err))
	}

	read := make(chan error, 1)
	go func() {
		var reply [4]byte
		if _, err := io.ReadFull(c.inrp, reply[:]); err != nil {
			read <- err
			return
		}
		if magic := binary.LittleEndian.Uint32(reply[:]); magic != outMagic {
			read <- fmt.Errorf("bad handshake reply magic 0x%x", magic)
			return
		}
		read <- nil
	}()
	timeout := time.NewTimer(time.Minute)
	select {
	case err := <-read:
		timeout.Stop()
		if err != nil {
			return c.handshakeError(err)
		}
		return nil
	case <-timeout.C:
		return c.handshakeError(fmt.Errorf("not serving"))
	}
}

func (c *command) handshakeError(err error) error {
	c.kill()
	output := <-c.readDone
	err = fmt.Errorf("executor %v: %v\n%s", c.pid, err, output)
	c.wait()
	if ps := c.cmd.ProcessState; ps != nil {
		if osutil.ProcessExitStatus(ps) == statusFail {
			err = ExecutorFailure(err.Error())
		}
	}
	return err
}

func (c *command) exec(opts *ExecOpts, progData []byte) (
	output []byte, failed, hanged, restart bool, err0 error) {
	if len(progData) == 0 {
		err0 = fmt.Errorf("empty program")
		return
	}
	var req [56]byte
	binary.LittleEndian.PutUint64(req[0:], inMagic)
	binary.LittleEndian.PutUint64(req[8:], uint64(c.config.Flags))
	binary.LittleEndian.PutUint64(req[16:], uint64(opts.Flags))
	binary.LittleEndian.PutUint64(req[24:], uint64(c.pid))
	binary.LittleEndian.PutUint64(req[32:], uint64(opts.FaultCall))
	binary.LittleEndian.PutUint64(req[40:], uint64(opts.FaultNth))
	binary.LittleEndian.PutUint64(req[48:], uint64(len(progData)))
	if _, err := c.outwp.Write(req[:]); err != nil {
		output = <-c.readDone
		err0 = fmt.Errorf("executor %v: failed to write control pipe: %v", c.pid, err)
		return
	}
	if _, err := c.outwp.Write(progData); err != nil {
		output = <-c.readDone
		err0 = fmt.Errorf("executor %v: failed to write control pipe: %v", c.pid, err)
		return
	}
	// At this point the program is executing.

	done := make(chan bool)
	hang := make(chan bool)
	go func() {
		t := time.NewTimer(c.timeout)
		select {
		case <-t.C:
			c.kill()
			hang <- true
		case <-done:
			t.Stop()
			hang <- false
		}
	}()
	exitStatus := -1
	var reply [12]byte
	_, readErr := io.ReadFull(c.inrp, reply[:])
	close(done)
	if readErr == nil {
		if magic := binary.LittleEndian.Uint32(reply[0:]); magic != outMagic {
			err0 = fmt.Errorf("executor %v: got bad reply magic 0x%x", c.pid, magic)
			<-hang
			return
		}
		if binary.LittleEndian.Uint32(reply[4:]) != 1 {
			err0 = fmt.Errorf("executor %v: got unexpected reply", c.pid)
			<-hang
			return
		}
		exitStatus = int(binary.LittleEndian.Uint32(reply[8:]))
	}
	if exitStatus == 0 {
		// The program was executed OK.
		<-hang
		return
	}
	c.kill()
	output = <-c.readDone
	if err := c.wait(); <-hang {
		hanged = true
		if err != nil {
			output = append(output, err.Error()...)
			output = append(output, '\n')
		}
		return
	}
	restart = true
	if exitStatus == -1 {
		exitStatus = osutil.ProcessExitStatus(c.cmd.ProcessState)
	}
	switch exitStatus {
	case statusFail:
		err0 = ExecutorFailure(fmt.Sprintf("executor %v: failed: %s", c.pid, output))
	case statusError:
		failed = true
	default:
		err0 = fmt.Errorf("executor %v: exit status %d\n%s", c.pid, exitStatus, output)
	}
	return
}
