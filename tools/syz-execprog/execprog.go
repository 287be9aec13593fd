// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// syz-execprog executes programs in the exec wire format through the
// executor binary. It is the main debugging and benchmarking harness:
// it can replay a program repeatedly across several executor processes
// and report aggregated signal and execution stats.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/XiaoyuHe/syzkaller/pkg/ipc"
	"github.com/XiaoyuHe/syzkaller/pkg/log"
	"github.com/XiaoyuHe/syzkaller/pkg/signal"
	"github.com/XiaoyuHe/syzkaller/pkg/stat"
	"github.com/XiaoyuHe/syzkaller/pkg/tool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

var (
	flagExecutor  = flag.String("executor", "./syz-executor", "path to executor binary")
	flagProcs     = flag.Int("procs", 1, "number of parallel processes")
	flagRepeat    = flag.Int("repeat", 1, "repeat execution that many times (0 for infinite)")
	flagThreaded  = flag.Bool("threaded", true, "use threaded mode in executor")
	flagCollide   = flag.Bool("collide", true, "collide syscalls to provoke data races")
	flagCover     = flag.Bool("cover", false, "collect feedback signals (coverage)")
	flagComps     = flag.Bool("comps", false, "collect comparison operands")
	flagDedup     = flag.Bool("dedup", false, "deduplicate coverage in executor")
	flagFaultCall = flag.Int("fault_call", -1, "inject fault into this call (0-based)")
	flagFaultNth  = flag.Int("fault_nth", 0, "inject fault on n-th operation (0-based)")
	flagDebug     = flag.Bool("debug", false, "debug output from executor")
	flagOutput    = flag.Bool("output", false, "print per-call results")
	flagMetrics   = flag.String("metrics", "", "serve prometheus metrics on this address")
)

var (
	statExecs    = stat.New("exec total", "Number of program executions")
	statRestarts = stat.New("executor restarts", "Number of executor process restarts")
	execLatency  = stat.NewHistogram(255)
)

func main() {
	flag.Parse()
	if len(flag.Args()) == 0 {
		fmt.Fprintf(os.Stderr, "usage: syz-execprog [flags] program.exec...\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	var progs [][]byte
	for _, fn := range flag.Args() {
		data, err := os.ReadFile(fn)
		if err != nil {
			tool.Failf("failed to read program file: %v", err)
		}
		progs = append(progs, data)
	}
	log.Logf(0, "loaded %v programs", len(progs))

	if *flagMetrics != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*flagMetrics, nil); err != nil {
				log.Fatalf("failed to serve metrics: %v", err)
			}
		}()
	}

	config := &ipc.Config{
		Executor: *flagExecutor,
		Timeout:  10 * time.Second,
	}
	if *flagDebug {
		config.Flags |= ipc.FlagDebug
	}
	if *flagCover || *flagComps {
		config.Flags |= ipc.FlagCover
	}
	if *flagFaultCall >= 0 {
		config.Flags |= ipc.FlagEnableFault
	}

	ctx := &Context{
		progs:  progs,
		config: config,
		gate:   ipc.NewGate(2 * *flagProcs),
	}
	var eg errgroup.Group
	for p := 0; p < *flagProcs; p++ {
		pid := p
		eg.Go(func() error {
			return ctx.run(pid)
		})
	}
	if err := eg.Wait(); err != nil {
		tool.Fail(err)
	}
	log.Logf(0, "executed %v programs, %v restarts, %v distinct signals, latency p50=%.3fms",
		statExecs.Val(), statRestarts.Val(), ctx.signalLen(), execLatency.Quantile(0.5)*1e3)
}

type Context struct {
	progs  [][]byte
	config *ipc.Config
	gate   *ipc.Gate

	signalMu sync.Mutex
	signal   signal.Signal

	posMu sync.Mutex
	pos   int
}

func (ctx *Context) run(pid int) error {
	env, err := ipc.MakeEnv(ctx.config, pid)
	if err != nil {
		return fmt.Errorf("failed to create ipc env: %v", err)
	}
	defer func() {
		statRestarts.Add(int(atomic.LoadUint64(&env.StatRestarts)))
		env.Close()
	}()
	for {
		data, ok := ctx.nextProg()
		if !ok {
			return nil
		}
		if err := ctx.execute(pid, env, data); err != nil {
			return err
		}
	}
}

func (ctx *Context) nextProg() ([]byte, bool) {
	ctx.posMu.Lock()
	defer ctx.posMu.Unlock()
	if *flagRepeat > 0 && ctx.pos >= len(ctx.progs)*(*flagRepeat) {
		return nil, false
	}
	data := ctx.progs[ctx.pos%len(ctx.progs)]
	ctx.pos++
	return data, true
}

func (ctx *Context) execute(pid int, env *ipc.Env, data []byte) error {
	opts := &ipc.ExecOpts{}
	if *flagThreaded {
		opts.Flags |= ipc.FlagThreaded
	}
	if *flagCollide {
		opts.Flags |= ipc.FlagCollide
	}
	if *flagCover {
		opts.Flags |= ipc.FlagCollectCover
	}
	if *flagDedup {
		opts.Flags |= ipc.FlagDedupCover
	}
	if *flagComps {
		opts.Flags |= ipc.FlagCollectComps
	}
	if *flagFaultCall >= 0 {
		opts.Flags |= ipc.FlagInjectFault
		opts.FaultCall = *flagFaultCall
		opts.FaultNth = *flagFaultNth
	}
	slot := ctx.gate.Enter()
	defer ctx.gate.Leave(slot)

	start := time.Now()
	output, info, failed, hanged, err := env.Exec(opts, data)
	execLatency.Add(time.Since(start).Seconds())
	statExecs.Add(1)
	if err != nil {
		if _, ok := err.(ipc.ExecutorFailure); ok {
			return fmt.Errorf("executor failed: %v", err)
		}
		log.Logf(0, "proc %v: exec failed: %v", pid, err)
		return nil
	}
	if failed {
		log.Logf(0, "proc %v: BUG detected:\n%s", pid, output)
	}
	if hanged {
		log.Logf(0, "proc %v: program hanged", pid)
	}
	var raw []uint32
	for _, inf := range info {
		raw = append(raw, inf.Signal...)
		if *flagOutput {
			log.Logf(0, "proc %v: call #%v num=%v errno=%v fault=%v sig=%v cover=%v comps=%v",
				pid, inf.Index, inf.Num, inf.Errno, inf.FaultInjected,
				len(inf.Signal), len(inf.Cover), len(inf.Comps))
		}
	}
	if len(raw) != 0 {
		ctx.signalMu.Lock()
		ctx.signal.Merge(signal.FromRaw(raw))
		ctx.signalMu.Unlock()
	}
	return nil
}

func (ctx *Context) signalLen() int {
	ctx.signalMu.Lock()
	defer ctx.signalMu.Unlock()
	return ctx.signal.Len()
}
