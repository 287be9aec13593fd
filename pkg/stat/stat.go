// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package stat provides prometheus/streamz style metrics (Val type) for
// instrumenting code for monitoring, plus a registry that exports all
// registered metrics as prometheus gauges.
//
// Simple use:
//
//	statExecs := stat.New("executions", "Number of executed programs")
//	statExecs.Add(1)
package stat

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/VividCortex/gohistogram"
	"github.com/prometheus/client_golang/prometheus"
)

// Val is a single named counter.
type Val struct {
	name  string
	desc  string
	v     atomic.Int64
	gauge prometheus.Gauge
}

func (v *Val) Add(n int) {
	v.v.Add(int64(n))
	v.gauge.Add(float64(n))
}

func (v *Val) Val() int {
	return int(v.v.Load())
}

func (v *Val) Name() string {
	return v.name
}

type set struct {
	mu   sync.Mutex
	vals map[string]*Val
}

var global = &set{vals: make(map[string]*Val)}

// New registers a new metric in the global registry. Registering the same
// name twice returns the existing metric.
func New(name, desc string) *Val {
	global.mu.Lock()
	defer global.mu.Unlock()
	if v := global.vals[name]; v != nil {
		return v
	}
	v := &Val{
		name: name,
		desc: desc,
		gauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "syz",
			Name:      sanitize(name),
			Help:      desc,
		}),
	}
	prometheus.DefaultRegisterer.MustRegister(v.gauge)
	global.vals[name] = v
	return v
}

// UI is a point-in-time snapshot of one metric for display.
type UI struct {
	Name  string
	Desc  string
	Value int
}

// Collect returns snapshots of all registered metrics sorted by name.
func Collect() []UI {
	global.mu.Lock()
	defer global.mu.Unlock()
	res := make([]UI, 0, len(global.vals))
	for _, v := range global.vals {
		res = append(res, UI{Name: v.name, Desc: v.desc, Value: v.Val()})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

func sanitize(name string) string {
	out := []byte(name)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}

// Histogram tracks a streaming distribution of a value (e.g. execution
// latency) with bounded memory.
type Histogram struct {
	mu   sync.Mutex
	hist *gohistogram.NumericHistogram
}

func NewHistogram(buckets int) *Histogram {
	return &Histogram{hist: gohistogram.NewHistogram(buckets)}
}

func (h *Histogram) Add(v float64) {
	h.mu.Lock()
	h.hist.Add(v)
	h.mu.Unlock()
}

func (h *Histogram) Quantile(q float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Quantile(q)
}
