//
// Copyright 2019 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS-IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
//
// Package engine wires the parser, analyzer, filter engine, navigator,
// scaling pool, exporter and colorizer into the single external-facing API
// described by SPEC_FULL §6: open/close/process a trace file, query its
// analyzed state, adjust filters, navigate it, scale its displayed series,
// and export it.
package engine

import (
	"context"
	"os"
	"sync"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/cunctator/traceshark-sub002/analysis"
	"github.com/cunctator/traceshark-sub002/color"
	"github.com/cunctator/traceshark-sub002/dialect"
	"github.com/cunctator/traceshark-sub002/errs"
	"github.com/cunctator/traceshark-sub002/eventdict"
	"github.com/cunctator/traceshark-sub002/export"
	"github.com/cunctator/traceshark-sub002/filter"
	"github.com/cunctator/traceshark-sub002/iopipeline"
	"github.com/cunctator/traceshark-sub002/navigate"
	"github.com/cunctator/traceshark-sub002/scale"
	"github.com/cunctator/traceshark-sub002/tracedata"
)

// Options configures a trace's I/O pipeline and analyzer, gathering the
// settings scattered across iopipeline.Options and analysis.Option behind
// a single engine-level entry point.
type Options struct {
	BufferSize           int
	RingSize             int
	VoteConfidenceFactor int
	DialectHint          dialect.Dialect
	FakeDelta            tracedata.Timestamp
	RolloverCorrection   tracedata.Timestamp
}

// Option mutates an Options value, following the functional-option pattern
// used throughout this lineage (see analysis.Option).
type Option func(*Options)

// WithBufferSize overrides the loader's chunk size.
func WithBufferSize(n int) Option { return func(o *Options) { o.BufferSize = n } }

// WithRingSize overrides the loader/tokenizer ring depth.
func WithRingSize(n int) Option { return func(o *Options) { o.RingSize = n } }

// WithVoteConfidenceFactor overrides the dialect voter's confidence factor.
func WithVoteConfidenceFactor(n int) Option { return func(o *Options) { o.VoteConfidenceFactor = n } }

// WithDialectHint forces the parser to only attempt the named dialect.
func WithDialectHint(d dialect.Dialect) Option { return func(o *Options) { o.DialectHint = d } }

// WithFakeDelta overrides the analyzer's edge-splitting offset.
func WithFakeDelta(d tracedata.Timestamp) Option { return func(o *Options) { o.FakeDelta = d } }

// WithRolloverCorrection overrides the analyzer's timestamp-rollover fixup.
func WithRolloverCorrection(d tracedata.Timestamp) Option {
	return func(o *Options) { o.RolloverCorrection = d }
}

func defaultOptions() Options {
	return Options{
		BufferSize:           iopipeline.DefaultBufferSize,
		RingSize:             iopipeline.DefaultRingSize,
		VoteConfidenceFactor: dialect.DefaultConfidenceFactor,
		DialectHint:          dialect.Unknown,
		FakeDelta:            analysis.FAKEDelta,
		RolloverCorrection:   analysis.RolloverFixup,
	}
}

// Engine owns one open trace: its source file, parsed collection, analyzed
// state, filter and navigation views, and pending scale configuration.
// A zero Engine is not usable; construct one with Open.
type Engine struct {
	mu sync.Mutex

	handle uuid.UUID
	path   string
	file   *os.File
	snap   export.FileSnapshot
	opts   Options

	open      bool
	processed bool

	coll      *tracedata.Collection
	analyzer  *analysis.Analyzer
	filterEng *filter.Engine
	nav       *navigate.Navigator
	traceType dialect.Dialect
	colors    map[tracedata.PID]color.RGB

	scaleCfg map[string]scaleConfig
}

type scaleConfig struct {
	scale, offset float64
}

// Handle returns this engine's trace handle, minted once at Open.
func (e *Engine) Handle() uuid.UUID { return e.handle }

// Open opens path read-only, snapshots its size/mtime for later
// intact-file export checks, and mints a trace handle. It does not parse
// the file; call ProcessTrace for that.
func Open(path string, opts ...Option) (*Engine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Errorf(errs.OPEN, "engine: open %s: %v", path, err)
	}
	snap, err := export.Snapshot(path)
	if err != nil {
		f.Close()
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		handle:   uuid.New(),
		path:     path,
		file:     f,
		snap:     snap,
		opts:     o,
		open:     true,
		coll:     tracedata.New(),
		scaleCfg: make(map[string]scaleConfig),
	}
	glog.V(1).Infof("engine: opened %s as trace %s", path, e.handle)
	return e, nil
}

// IsOpen reports whether the engine still holds an open file.
func (e *Engine) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// Close releases the underlying file. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return nil
	}
	e.open = false
	if err := e.file.Close(); err != nil {
		return errs.Errorf(errs.FILE_RESOURCE, "engine: close %s: %v", e.path, err)
	}
	e.coll.Close()
	return nil
}

// ProcessTrace runs the full pipeline: parses every line through
// iopipeline, feeds the resulting events to the analyzer in order, then
// builds the filter engine, navigator, and color assignment over the
// analyzed result. It blocks until the whole trace has been consumed.
func (e *Engine) ProcessTrace(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return errs.New(errs.ABORT, "engine: trace is not open")
	}
	if e.processed {
		return nil
	}

	if _, err := e.file.Seek(0, 0); err != nil {
		return errs.Errorf(errs.FILE_READ, "engine: seek %s: %v", e.path, err)
	}

	p := iopipeline.New(iopipeline.Options{
		BufferSize:       e.opts.BufferSize,
		RingSize:         e.opts.RingSize,
		ConfidenceFactor: e.opts.VoteConfidenceFactor,
		ForceDialect:     e.opts.DialectHint,
	})
	d, err := p.Run(ctx, e.file, e.coll)
	if err != nil {
		return err
	}
	e.traceType = d

	a := analysis.New(e.coll.Strings,
		analysis.WithFakeDelta(e.opts.FakeDelta),
		analysis.WithRolloverCorrection(e.opts.RolloverCorrection))
	for i := 0; i < e.coll.Len(); i++ {
		a.Process(e.coll.EventByIndex(i))
	}
	a.PostProcess()
	e.analyzer = a

	e.filterEng = filter.NewEngine(e.coll)
	e.nav = navigate.New(e.coll)
	e.colors = color.Assign(color.SortedPIDs(a.TaskPIDs()))

	e.processed = true
	glog.V(1).Infof("engine: trace %s processed %d events as %v", e.handle, e.coll.Len(), d)
	return nil
}

// TraceType reports the dialect the voter settled on.
func (e *Engine) TraceType() dialect.Dialect { return e.traceType }

// Events returns every committed event index, in file order.
func (e *Engine) Events() []int {
	out := make([]int, e.coll.Len())
	for i := range out {
		out[i] = i
	}
	return out
}

// FilteredEvents returns the materialized AND/OR filtered view.
func (e *Engine) FilteredEvents() []int { return e.filterEng.Materialize() }

// Migrations returns every recorded process migration/fork/exit.
func (e *Engine) Migrations() []analysis.Migration { return e.analyzer.Migrations }

// SchedLatencies returns every recorded scheduling latency, ranked.
func (e *Engine) SchedLatencies() []analysis.Latency { return e.analyzer.SchedLatencies }

// WakeLatencies returns every recorded wake latency, ranked.
func (e *Engine) WakeLatencies() []analysis.Latency { return e.analyzer.WakeLatencies }

// CPUTaskMap returns the pid -> CPUTask map observed on cpu.
func (e *Engine) CPUTaskMap(cpu tracedata.CPU) map[tracedata.PID]*analysis.CPUTask {
	return e.analyzer.CPUTasksForCPU(cpu)
}

// TaskMap returns the pid -> Task map for the whole trace.
func (e *Engine) TaskMap() map[tracedata.PID]*analysis.Task { return e.analyzer.Tasks() }

// Colors returns the deterministic pid -> RGB assignment computed at the
// end of ProcessTrace.
func (e *Engine) Colors() map[tracedata.PID]color.RGB { return e.colors }

// Collection exposes the parsed event collection for callers (navigate,
// export) that need direct access beyond this API's index-based views.
func (e *Engine) Collection() *tracedata.Collection { return e.coll }

// Analyzer exposes the underlying analyzer for callers that need a field
// this API doesn't wrap directly.
func (e *Engine) Analyzer() *analysis.Analyzer { return e.analyzer }

// IsCPUIdleAt reports whether cpu was idle at time t, and whether any
// idle-state data was recorded for cpu at all.
func (e *Engine) IsCPUIdleAt(cpu tracedata.CPU, t tracedata.Timestamp) (idle, known bool) {
	return e.analyzer.IdleAt(cpu, t)
}

// IsUninterruptibleAt reports whether pid was in an uninterruptible sleep
// at time t.
func (e *Engine) IsUninterruptibleAt(pid tracedata.PID, t tracedata.Timestamp) bool {
	return e.analyzer.UninterruptibleAt(pid, t)
}

// CreateCPUFilter installs a CPU-set predicate, in the AND set if or is
// false, the OR set if or is true.
func (e *Engine) CreateCPUFilter(cpus []tracedata.CPU, or bool) {
	e.stateFor(or).SetCPUs(cpus...)
}

// CreatePIDFilter installs a PID-set predicate.
func (e *Engine) CreatePIDFilter(pids []tracedata.PID, or, inclusive bool) {
	e.stateFor(or).SetPIDs(inclusive, pids...)
}

// CreateEventFilter installs an event-id-set predicate.
func (e *Engine) CreateEventFilter(ids []eventdict.ID, or bool) {
	e.stateFor(or).SetEvents(ids...)
}

// CreateTimeFilter installs a [low, high] time-window predicate.
func (e *Engine) CreateTimeFilter(low, high tracedata.Timestamp, or bool) {
	e.stateFor(or).SetTimeRange(low, high)
}

// CreateRegexFilter compiles pattern as a POSIX extended regular
// expression and installs it as a regex-vector predicate. On a compile
// error the existing filter state is left unchanged, per SPEC_FULL §7.
func (e *Engine) CreateRegexFilter(pattern string, pos filter.PosMode, index int, invert bool, join filter.JoinOp, or bool) error {
	entry, err := filter.CompileRegex(pattern, pos, index, invert, join)
	if err != nil {
		return err
	}
	s := e.stateFor(or)
	s.SetRegexes(append(s.Regexes, entry)...)
	return nil
}

// DisableFilter clears a single predicate kind from the AND or OR set.
func (e *Engine) DisableFilter(pred filter.Predicate, or bool) {
	s := e.stateFor(or)
	s.Active &^= pred
}

// DisableAllFilters clears both the AND and OR predicate sets entirely.
func (e *Engine) DisableAllFilters() {
	e.filterEng.And.Clear()
	e.filterEng.Or.Clear()
}

func (e *Engine) stateFor(or bool) *filter.State {
	if or {
		return e.filterEng.Or
	}
	return e.filterEng.And
}

// FindPreviousSched returns the index of the nearest sched_switch event at
// or before t that scheduled pid in.
func (e *Engine) FindPreviousSched(t tracedata.Timestamp, pid tracedata.PID) int {
	return e.nav.FindPreviousSched(t, pid)
}

// FindNextSchedSleep returns the index of the nearest sched_switch event
// at or after t that scheduled pid out into a non-runnable sleep state.
func (e *Engine) FindNextSchedSleep(t tracedata.Timestamp, pid tracedata.PID) int {
	return e.nav.FindNextSchedSleep(t, pid)
}

// FindPreviousWake returns the index of the nearest qualifying wake event
// for pid at or before startIdx.
func (e *Engine) FindPreviousWake(startIdx int, pid tracedata.PID, want navigate.WakeKind) int {
	return e.nav.FindPreviousWake(startIdx, pid, want)
}

// FindWaking returns the index of the sched_waking event that precedes and
// pairs with the wakeup event at wakeupIdx.
func (e *Engine) FindWaking(wakeupIdx int) int {
	return e.nav.FindWaking(wakeupIdx)
}

// SetScale registers the affine transform (scale, offset) to apply to the
// named series the next time DoScale runs. Recognized series keys are
// "cpu.freq:<cpu>", "cpu.idle:<cpu>", "cpu.scheddelay:<cpu>",
// "cpu.wakedelay:<cpu>", and "task.<series>:<pid>" where series is one of
// "scheduling", "running", "preempted", "uninterruptible", "delay",
// "wakedelay".
func (e *Engine) SetScale(seriesKey string, scale, offset float64) {
	e.scaleCfg[seriesKey] = scaleConfig{scale: scale, offset: offset}
}

// DoScale dispatches one scale.Unit per configured series to the scaling
// worker pool and returns the scaled result for every configured key whose
// series resolves, keyed the same way SetScale's keys were; keys that do
// not resolve to a series are absent from the result.
func (e *Engine) DoScale() map[string][]float64 {
	keys := make([]string, 0, len(e.scaleCfg))
	units := make([]*scale.Unit, 0, len(e.scaleCfg))
	for key, cfg := range e.scaleCfg {
		raw := e.rawSeriesFor(key)
		if raw == nil {
			continue
		}
		keys = append(keys, key)
		units = append(units, &scale.Unit{Raw: raw, Scale: cfg.scale, Offset: cfg.offset})
	}
	scale.Run(units)

	out := make(map[string][]float64, len(keys))
	for i, key := range keys {
		out[key] = units[i].Scaled
	}
	return out
}
