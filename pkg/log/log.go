// Copyright 2016 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides functionality similar to standard log package with some extensions:
//   - verbosity levels
//   - global verbosity setting that can be used by multiple packages
package log

import (
	"flag"
	golog "log"
	"sync/atomic"
)

var (
	flagV          = flag.Int("vv", 0, "verbosity")
	override int64 = -1
)

// SetVerbosity overrides the -vv flag; binaries that learn their debug
// setting over the control channel use it instead of the flag.
func SetVerbosity(v int) {
	atomic.StoreInt64(&override, int64(v))
}

func verbosity() int {
	if v := atomic.LoadInt64(&override); v >= 0 {
		return int(v)
	}
	return *flagV
}

func Logf(v int, msg string, args ...interface{}) {
	if v <= verbosity() {
		golog.Printf(msg, args...)
	}
}

func Fatal(err error) {
	golog.Fatal(err)
}

func Fatalf(msg string, args ...interface{}) {
	golog.Fatalf(msg, args...)
}

// VerboseWriter is an io.Writer that logs at the given verbosity.
type VerboseWriter int

func (w VerboseWriter) Write(data []byte) (int, error) {
	Logf(int(w), "%s", data)
	return len(data), nil
}
