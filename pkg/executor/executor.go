// Copyright 2019 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package executor implements the in-process engine that receives encoded
// programs from the parent fuzzer, materializes their arguments in memory,
// dispatches calls through a pool of worker threads, extracts coverage
// signal and streams structured results back into the shared output buffer.
package executor

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/XiaoyuHe/syzkaller/pkg/log"
	"github.com/XiaoyuHe/syzkaller/prog"
)

const (
	maxInput    = prog.ExecBufferSize
	maxThreads  = 16
	maxCommands = prog.ExecMaxCommands
	maxArgs     = prog.ExecMaxArgs

	inMagic  = uint64(0xbadc0ffeebadface)
	outMagic = uint32(0xbadf00d)

	// OutputSize is the size of the shared output mapping.
	OutputSize = 16 << 20

	// StatusOK and friends are the process exit codes the parent
	// distinguishes.
	StatusOK    = 0
	StatusFail  = 67 // logical failure (failed invariant, bad input)
	StatusError = 68 // kernel bug detected
)

// defaultValue is used instead of results of failed syscalls.
// -1 is an invalid fd and an invalid address and deterministic,
// so good enough for our purposes.
const defaultValue = ^uint64(0)

// SandboxType is the sandbox the parent requested via env flags.
// Constructing the sandbox is the Config.Sandbox collaborator's job.
type SandboxType int

const (
	SandboxNone SandboxType = iota
	SandboxSetuid
	SandboxNamespace
)

// Config carries the collaborators the engine depends on.
type Config struct {
	// In/Out are the two control channels (fds 250/251 in the default
	// binding). Handshake and execute requests arrive on In, the program
	// bytes follow the execute request on the same channel.
	In  io.Reader
	Out io.Writer

	// OutputData is the shared output mapping the parent reads records
	// from; it must be at least OutputSize bytes.
	OutputData []byte

	// Mem is the guest memory region program addresses refer to.
	Mem *GuestMem

	// Table is the registry of callable operations.
	Table CallTable

	// Cover is the kernel coverage facility; may be nil when unavailable,
	// in which case every call reports zero coverage entries.
	Cover Cover

	// Fault is the fault injection facility; may be nil.
	Fault FaultInjector

	// Sandbox, if set, is invoked after the handshake and before the
	// handshake reply with the sandbox type the parent requested.
	Sandbox func(SandboxType) error
}

type res struct {
	executed bool
	val      uint64
}

// Executor owns all mutable state of one executor process: the parsed
// flags, the input and output buffers, the result table, the worker slots
// and the signal dedup table.
type Executor struct {
	cfg Config
	pid int

	// Env flags, reparsed on every request.
	flagDebug       bool
	flagCover       bool
	sandbox         SandboxType
	flagEnableTun   bool
	flagEnableFault bool

	// Exec flags, reparsed on every execute request.
	flagCollectCover bool
	flagDedupCover   bool
	flagInjectFault  bool
	flagCollectComps bool
	flagThreaded     bool
	flagCollide      bool
	faultCall        int
	faultNth         int

	input      []byte
	out        outputWriter
	threads    [maxThreads]thread
	results    [maxCommands]res
	dedupTable [dedupTableSize]uint32
	running    int
	completed  uint32
	collide    bool
}

// New creates an executor. The configuration must carry In, Out,
// OutputData, Mem and Table; the remaining collaborators are optional.
func New(cfg Config) (*Executor, error) {
	if cfg.In == nil || cfg.Out == nil {
		return nil, fmt.Errorf("executor: control channels are not set")
	}
	if len(cfg.OutputData) < OutputSize {
		return nil, fmt.Errorf("executor: output mapping is too small: %v", len(cfg.OutputData))
	}
	if cfg.Mem == nil {
		return nil, fmt.Errorf("executor: guest memory is not set")
	}
	if cfg.Table == nil {
		return nil, fmt.Errorf("executor: syscall table is not set")
	}
	ex := &Executor{
		cfg:   cfg,
		input: make([]byte, maxInput),
	}
	ex.out = outputWriter{buf: cfg.OutputData, fail: ex.failf}
	return ex, nil
}

// Loop runs the handshake and then serves execute requests until the
// parent closes the control channel. All protocol, input and scheduling
// violations terminate the loop with an error; the parent is the recovery
// authority and restarts the process.
func (ex *Executor) Loop() (err error) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(*failure)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("%s", f.msg)
		}
	}()
	// Coverage is pinned per OS thread; in non-threaded mode calls run on
	// this very goroutine, so keep it on one thread for the process life.
	runtime.LockOSThread()
	ex.receiveHandshake()
	if ex.cfg.Sandbox != nil {
		if err := ex.cfg.Sandbox(ex.sandbox); err != nil {
			ex.failf("sandbox setup failed: %v", err)
		}
	}
	ex.replyHandshake()
	for {
		if !ex.receiveExecute() {
			return nil
		}
		ex.executeOne()
		ex.replyExecute(StatusOK)
	}
}

func (ex *Executor) parseEnvFlags(flags uint64) {
	ex.flagDebug = flags&(1<<0) != 0
	ex.flagCover = flags&(1<<1) != 0
	ex.sandbox = SandboxNone
	if flags&(1<<2) != 0 {
		ex.sandbox = SandboxSetuid
	} else if flags&(1<<3) != 0 {
		ex.sandbox = SandboxNamespace
	}
	ex.flagEnableTun = flags&(1<<4) != 0
	ex.flagEnableFault = flags&(1<<5) != 0
}

func (ex *Executor) debugf(msg string, args ...interface{}) {
	if ex.flagDebug {
		log.Logf(0, msg, args...)
	}
}

type failure struct {
	msg string
}

// failf reports a fatal error on the interpreter path; Loop converts it
// into the returned error.
func (ex *Executor) failf(msg string, args ...interface{}) {
	panic(&failure{msg: fmt.Sprintf(msg, args...)})
}

// exitf reports a fatal error from a worker thread, where there is no
// frame to unwind to; it terminates the process with the failure status.
func exitf(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(StatusFail)
}
