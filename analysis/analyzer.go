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
package sched

import (
	"sort"
	"sync"

	"github.com/Workiva/go-datastructures/augmentedtree"
	"github.com/golang/glog"

	"github.com/cunctator/traceshark-sub002/dialect"
	"github.com/cunctator/traceshark-sub002/eventdict"
	"github.com/cunctator/traceshark-sub002/stringpool"
	"github.com/cunctator/traceshark-sub002/tracedata"
)

// Analyzer consumes tracedata.Events in file order and builds the per-CPU
// and per-task timelines, migrations, and latency records described in
// SPEC_FULL §4.7. The zero Analyzer is not usable; construct one with New.
type Analyzer struct {
	pool *stringpool.Pool

	tasks    map[tracedata.PID]*Task
	cpus     map[tracedata.CPU]*CPU
	cpuTasks map[tracedata.CPU]map[tracedata.PID]*CPUTask

	Migrations     []Migration
	SchedLatencies []Latency
	WakeLatencies  []Latency

	started     bool
	startTime   tracedata.Timestamp
	endTime     tracedata.Timestamp
	lastEventAt tracedata.Timestamp
	finalized   bool

	// FakeDelta and RolloverCorrection default to FAKEDelta and
	// RolloverFixup, but may be overridden by callers through Option.
	FakeDelta          tracedata.Timestamp
	RolloverCorrection tracedata.Timestamp

	// idleTrees and uninterruptibleTrees cache the interval trees built
	// lazily by IdleAt/UninterruptibleAt, keyed by CPU/PID respectively.
	treeMu               sync.Mutex
	idleTrees            map[tracedata.CPU]augmentedtree.Tree
	uninterruptibleTrees map[tracedata.PID]augmentedtree.Tree
}

// Option configures an Analyzer at construction time, mirroring the
// functional-option pattern the collection layer this package replaces
// used for its own Options.
type Option func(*Analyzer)

// WithFakeDelta overrides the edge-splitting offset used by handleSwitch.
func WithFakeDelta(d tracedata.Timestamp) Option {
	return func(a *Analyzer) { a.FakeDelta = d }
}

// WithRolloverCorrection overrides the timestamp-rollover fixup constant.
func WithRolloverCorrection(d tracedata.Timestamp) Option {
	return func(a *Analyzer) { a.RolloverCorrection = d }
}

// New constructs an Analyzer whose string arguments are resolved against
// pool.
func New(pool *stringpool.Pool, opts ...Option) *Analyzer {
	a := &Analyzer{
		pool:               pool,
		tasks:              make(map[tracedata.PID]*Task),
		cpus:               make(map[tracedata.CPU]*CPU),
		cpuTasks:           make(map[tracedata.CPU]map[tracedata.PID]*CPUTask),
		FakeDelta:          FAKEDelta,
		RolloverCorrection: RolloverFixup,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// StartTime returns the timestamp of the first event processed.
func (a *Analyzer) StartTime() tracedata.Timestamp { return a.startTime }

// EndTime returns the timestamp of the last event processed (before
// PostProcess tail extension).
func (a *Analyzer) EndTime() tracedata.Timestamp { return a.endTime }

// Task returns the task state for pid, or nil if unknown.
func (a *Analyzer) Task(pid tracedata.PID) *Task { return a.tasks[pid] }

// CPUState returns the per-CPU state machine for cpu, or nil if unknown.
func (a *Analyzer) CPUState(cpu tracedata.CPU) *CPU { return a.cpus[cpu] }

// CPUTaskState returns the (task, cpu) scheduling series, or nil if the
// pair has never been observed together.
func (a *Analyzer) CPUTaskState(cpu tracedata.CPU, pid tracedata.PID) *CPUTask {
	m, ok := a.cpuTasks[cpu]
	if !ok {
		return nil
	}
	return m[pid]
}

// TaskPIDs returns every PID seen so far, in no particular order.
func (a *Analyzer) TaskPIDs() []tracedata.PID {
	pids := make([]tracedata.PID, 0, len(a.tasks))
	for pid := range a.tasks {
		pids = append(pids, pid)
	}
	return pids
}

// Tasks returns a shallow copy of the full pid -> Task map.
func (a *Analyzer) Tasks() map[tracedata.PID]*Task {
	out := make(map[tracedata.PID]*Task, len(a.tasks))
	for pid, t := range a.tasks {
		out[pid] = t
	}
	return out
}

// CPUs returns every CPU seen so far, in no particular order.
func (a *Analyzer) CPUs() []tracedata.CPU {
	cpus := make([]tracedata.CPU, 0, len(a.cpus))
	for cpu := range a.cpus {
		cpus = append(cpus, cpu)
	}
	return cpus
}

// CPUTasksForCPU returns a shallow copy of the pid -> CPUTask map observed
// on cpu, or an empty map if cpu has never been scheduled.
func (a *Analyzer) CPUTasksForCPU(cpu tracedata.CPU) map[tracedata.PID]*CPUTask {
	m, ok := a.cpuTasks[cpu]
	if !ok {
		return map[tracedata.PID]*CPUTask{}
	}
	out := make(map[tracedata.PID]*CPUTask, len(m))
	for pid, ct := range m {
		out[pid] = ct
	}
	return out
}

func (a *Analyzer) getOrCreateTask(pid tracedata.PID, name stringpool.Ref, at tracedata.Timestamp) *Task {
	t, ok := a.tasks[pid]
	if ok {
		return t
	}
	t = &Task{
		PID:          pid,
		Name:         name,
		CreatedAt:    at,
		LastRunnable: tracedata.UnknownTimestamp,
	}
	t.DisplayName = a.pool.String(name) + " (" + itoa(int64(pid)) + ")"
	a.tasks[pid] = t
	return t
}

func (a *Analyzer) getOrCreateCPU(cpu tracedata.CPU) *CPU {
	c, ok := a.cpus[cpu]
	if ok {
		return c
	}
	c = &CPU{ID: cpu, PidOnCPU: tracedata.PID(-1)}
	a.cpus[cpu] = c
	return c
}

func (a *Analyzer) getOrCreateCPUTask(cpu tracedata.CPU, pid tracedata.PID) *CPUTask {
	m, ok := a.cpuTasks[cpu]
	if !ok {
		m = make(map[tracedata.PID]*CPUTask)
		a.cpuTasks[cpu] = m
	}
	ct, ok := m[pid]
	if !ok {
		ct = &CPUTask{PID: pid, CPU: cpu}
		m[pid] = ct
	}
	return ct
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Process advances the analyzer's state machines by one event, which must
// be handed to successive Process calls in non-decreasing file order
// (modulo the rollover fixup it performs itself).
func (a *Analyzer) Process(ev *tracedata.Event) {
	ev.Time = a.fixupRollover(ev.Time)

	if !a.started {
		a.started = true
		a.startTime = ev.Time
	}
	a.endTime = ev.Time
	a.lastEventAt = ev.Time

	switch ev.EventID {
	case eventdict.CPUFrequency:
		a.handleFrequency(ev)
	case eventdict.CPUIdle:
		a.handleIdle(ev)
	case eventdict.SchedMigrateTask:
		a.handleMigrateTask(ev)
	case eventdict.SchedProcessFork:
		a.handleFork(ev)
	case eventdict.SchedProcessExit:
		a.handleExit(ev)
	case eventdict.SchedSwitch:
		a.handleSwitch(ev, ev.Index)
	case eventdict.SchedWakeup, eventdict.SchedWakeupNew, eventdict.SchedWaking:
		a.handleWakeup(ev, ev.Index)
	default:
		glog.V(3).Infof("sched: ignoring event id %d", ev.EventID)
	}
}

// fixupRollover applies the 0.9s correction described in SPEC_FULL §4.7 if
// t appears to precede the last-seen event's timestamp, accepting the
// correction only if the resulting delta lies in [0, 10ms].
func (a *Analyzer) fixupRollover(t tracedata.Timestamp) tracedata.Timestamp {
	if !a.started || t >= a.lastEventAt {
		return t
	}
	fixed := t + a.RolloverCorrection
	delta := fixed - a.lastEventAt
	if delta >= 0 && delta <= RolloverWindowMax {
		return fixed
	}
	return t
}

func (a *Analyzer) handleFrequency(ev *tracedata.Event) {
	cpuID, ok := dialect.ArgInt(a.pool, ev.Argv, "cpu_id")
	if !ok {
		return
	}
	freq, ok := dialect.ArgInt(a.pool, ev.Argv, "state")
	if !ok {
		return
	}
	c := a.getOrCreateCPU(tracedata.CPU(cpuID))
	if len(c.FrequencySeries) == 0 {
		c.FrequencySeries = append(c.FrequencySeries, Sample{Time: a.startTime, Value: freq})
		c.MinFreq, c.MaxFreq = freq, freq
	}
	c.FrequencySeries = append(c.FrequencySeries, Sample{Time: ev.Time, Value: freq})
	if freq < c.MinFreq {
		c.MinFreq = freq
	}
	if freq > c.MaxFreq {
		c.MaxFreq = freq
	}
}

func (a *Analyzer) handleIdle(ev *tracedata.Event) {
	cpuID, ok := dialect.ArgInt(a.pool, ev.Argv, "cpu_id")
	if !ok {
		return
	}
	state, ok := dialect.ArgInt(a.pool, ev.Argv, "state")
	if !ok {
		return
	}
	c := a.getOrCreateCPU(tracedata.CPU(cpuID))
	// state is a u32 in the trace; the exit state 4294967295 wraps to 0.
	v := int64(uint32(state) + 1)
	c.IdleSeries = append(c.IdleSeries, Sample{Time: ev.Time, Value: v})
	if len(c.IdleSeries) == 1 || v < c.MinIdle {
		c.MinIdle = v
	}
	if v > c.MaxIdle {
		c.MaxIdle = v
	}
}

func (a *Analyzer) handleMigrateTask(ev *tracedata.Event) {
	pid, ok := dialect.ArgInt(a.pool, ev.Argv, "pid")
	if !ok {
		return
	}
	oldCPU, _ := dialect.ArgInt(a.pool, ev.Argv, "orig_cpu")
	newCPU, _ := dialect.ArgInt(a.pool, ev.Argv, "dest_cpu")
	a.Migrations = append(a.Migrations, Migration{
		PID:    tracedata.PID(pid),
		OldCPU: tracedata.CPU(oldCPU),
		NewCPU: tracedata.CPU(newCPU),
		Time:   ev.Time,
	})
}

func (a *Analyzer) handleFork(ev *tracedata.Event) {
	childPid, ok := dialect.ArgInt(a.pool, ev.Argv, "child_pid")
	if !ok {
		return
	}
	a.Migrations = append(a.Migrations, Migration{
		PID:    tracedata.PID(childPid),
		OldCPU: -1,
		NewCPU: ev.CPU,
		Time:   ev.Time,
	})
	if _, exists := a.tasks[tracedata.PID(childPid)]; !exists {
		childName, _ := dialect.ArgValue(a.pool, ev.Argv, "child_comm")
		nameRef := a.pool.InternString(childName, 0)
		t := a.getOrCreateTask(tracedata.PID(childPid), nameRef, ev.Time)
		t.Scheduling = append(t.Scheduling, Sample{Time: ev.Time, State: Floor})
	}
}

func (a *Analyzer) handleExit(ev *tracedata.Event) {
	pid, ok := dialect.ArgInt(a.pool, ev.Argv, "pid")
	if !ok {
		return
	}
	a.Migrations = append(a.Migrations, Migration{
		PID:    tracedata.PID(pid),
		OldCPU: ev.CPU,
		NewCPU: -1,
		Time:   ev.Time,
	})
	if t, ok := a.tasks[tracedata.PID(pid)]; ok {
		t.Exit = ExitCalled
	}
}

func (a *Analyzer) handleWakeup(ev *tracedata.Event, idx int) {
	pid, ok := dialect.ArgInt(a.pool, ev.Argv, "pid")
	if !ok {
		return
	}
	if s, ok := dialect.ArgValue(a.pool, ev.Argv, "success"); ok && s != "1" {
		return
	}
	comm, _ := dialect.ArgValue(a.pool, ev.Argv, "comm")
	nameRef := a.pool.InternString(comm, 0)
	t := a.getOrCreateTask(tracedata.PID(pid), nameRef, ev.Time)
	t.LastRunnable = ev.Time
	t.LastRunnableIdx = idx
	t.RunStatus = StatusWakeup
}

// handleSwitch is the central sched-switch algorithm of SPEC_FULL §4.7.
func (a *Analyzer) handleSwitch(ev *tracedata.Event, idx int) {
	prevPid, ok := dialect.ArgInt(a.pool, ev.Argv, "prev_pid")
	if !ok {
		return
	}
	nextPid, ok := dialect.ArgInt(a.pool, ev.Argv, "next_pid")
	if !ok {
		return
	}
	prevStateStr, _ := dialect.ArgValue(a.pool, ev.Argv, "prev_state")
	prevState := dialect.ParseSleepState(prevStateStr)

	Po := tracedata.PID(prevPid)
	Pn := tracedata.PID(nextPid)
	t := ev.Time
	cpu := a.getOrCreateCPU(ev.CPU)

	oldTime := t - a.FakeDelta
	newTime := t + a.FakeDelta

	if !cpu.HasBeenScheduled {
		// Bootstrap: the outgoing task was already occupying this CPU
		// before the trace began; synthesize its initial SCHED edge.
		if Po > 0 {
			prevComm, _ := dialect.ArgValue(a.pool, ev.Argv, "prev_comm")
			pt := a.getOrCreateTask(Po, a.pool.InternString(prevComm, 0), a.startTime)
			pct := a.getOrCreateCPUTask(ev.CPU, Po)
			pt.Scheduling = append(pt.Scheduling, Sample{Time: a.startTime, State: Sched, Value: 1})
			pct.Scheduling = append(pct.Scheduling, Sample{Time: a.startTime, State: Sched, Value: 1})
		}
	} else if cpu.PidOnCPU != Po && Po > 0 {
		// Step 2: fake-delta correction for a dropped event. The pid this
		// CPU last switched in is closed out just after that switch, and Po
		// is reopened just before this one; both are signal-edge
		// (FLOOR/SCHED) samples.
		glog.Warningf("sched: cpu %d: switch from pid %d while pid %d was on the CPU; repairing", ev.CPU, Po, cpu.PidOnCPU)
		closeAt := cpu.LastSched + a.FakeDelta
		openAt := oldTime - a.FakeDelta
		if stale := cpu.PidOnCPU; stale > 0 {
			if st, ok := a.tasks[stale]; ok {
				st.Scheduling = append(st.Scheduling, Sample{Time: closeAt, State: Floor})
			}
			sct := a.getOrCreateCPUTask(ev.CPU, stale)
			sct.Scheduling = append(sct.Scheduling, Sample{Time: closeAt, State: Floor})
		}
		prevComm, _ := dialect.ArgValue(a.pool, ev.Argv, "prev_comm")
		pt := a.getOrCreateTask(Po, a.pool.InternString(prevComm, 0), t)
		pct := a.getOrCreateCPUTask(ev.CPU, Po)
		pt.Scheduling = append(pt.Scheduling, Sample{Time: openAt, State: Sched, Value: 1})
		pct.Scheduling = append(pct.Scheduling, Sample{Time: openAt, State: Sched, Value: 1})
	}

	// Step 3: near-identical timestamps relocate midtime forward.
	if cpu.HasBeenScheduled && (t-cpu.LastSched) <= a.FakeDelta {
		mid := cpu.LastSched + 2*a.FakeDelta
		oldTime = mid - a.FakeDelta
		newTime = mid + a.FakeDelta
	}

	if Po > 0 {
		prevComm, _ := dialect.ArgValue(a.pool, ev.Argv, "prev_comm")
		pt := a.getOrCreateTask(Po, a.pool.InternString(prevComm, 0), t)
		pct := a.getOrCreateCPUTask(ev.CPU, Po)

		pt.Scheduling = append(pt.Scheduling, Sample{Time: oldTime, State: Floor})
		pct.Scheduling = append(pct.Scheduling, Sample{Time: oldTime, State: Floor})

		if prevState.IsRunnable() {
			if prevState.IsPreempted() {
				pt.Preempted = append(pt.Preempted, Sample{Time: oldTime, State: Preempted, Value: 1})
				pct.Preempted = append(pct.Preempted, Sample{Time: oldTime, State: Preempted, Value: 1})
			} else {
				pt.Running = append(pt.Running, Sample{Time: oldTime, State: Running, Value: 1})
				pct.Running = append(pct.Running, Sample{Time: oldTime, State: Running, Value: 1})
			}
			pt.LastRunnable = oldTime
			pt.LastRunnableIdx = idx
			pt.RunStatus = StatusSched
		} else if prevState.IsUninterruptible() {
			pt.Uninterruptible = append(pt.Uninterruptible, Sample{Time: oldTime, State: Uninterruptible, Value: 1})
			pct.Uninterruptible = append(pct.Uninterruptible, Sample{Time: oldTime, State: Uninterruptible, Value: 1})
			pt.LastSleepEntry = oldTime
			pt.RunStatus = StatusInvalid
		}
	}

	if Pn > 0 {
		nextComm, _ := dialect.ArgValue(a.pool, ev.Argv, "next_comm")
		nt := a.getOrCreateTask(Pn, a.pool.InternString(nextComm, 0), t)
		nct := a.getOrCreateCPUTask(ev.CPU, Pn)

		schedDelayValid := nt.RunStatus != StatusInvalid &&
			(nt.LastRunnable == tracedata.UnknownTimestamp || nt.LastRunnable >= nt.LastSleepEntry)
		if nt.LastRunnable == tracedata.UnknownTimestamp &&
			(!cpu.HasBeenScheduled || cpu.LastExitIdle > cpu.LastEnterIdle) {
			nt.LastRunnable = a.startTime
			nt.LastRunnableIdx = 0
			schedDelayValid = true
		}
		wakeDelayValid := nt.RunStatus == StatusWakeup && nt.LastRunnable != tracedata.UnknownTimestamp && nt.LastRunnable >= nt.LastSleepEntry

		if schedDelayValid && nt.LastRunnable != tracedata.UnknownTimestamp {
			mid := (oldTime + newTime) / 2
			delay := mid - nt.LastRunnable
			cpu.SchedDelays = append(cpu.SchedDelays, Sample{Time: mid, Value: int64(delay)})
			nt.Delays = append(nt.Delays, Sample{Time: mid, Value: int64(delay)})
			a.SchedLatencies = append(a.SchedLatencies, Latency{
				PID:           Pn,
				SwitchIndex:   idx,
				RunnableIndex: nt.LastRunnableIdx,
				Delay:         delay,
			})
		}
		if wakeDelayValid {
			mid := (oldTime + newTime) / 2
			delay := mid - nt.LastRunnable
			cpu.WakeDelays = append(cpu.WakeDelays, Sample{Time: mid, Value: int64(delay)})
			nt.WakeDelays = append(nt.WakeDelays, Sample{Time: mid, Value: int64(delay)})
			a.WakeLatencies = append(a.WakeLatencies, Latency{
				PID:           Pn,
				SwitchIndex:   idx,
				RunnableIndex: nt.LastRunnableIdx,
				Delay:         delay,
			})
		}

		nt.Scheduling = append(nt.Scheduling, Sample{Time: newTime, State: Sched, Value: 1})
		nct.Scheduling = append(nct.Scheduling, Sample{Time: newTime, State: Sched, Value: 1})
	}

	cpu.HasBeenScheduled = true
	cpu.PidOnCPU = Pn
	cpu.LastSched = newTime
	cpu.LastSchedIdx = idx
	if Po == 0 {
		cpu.LastExitIdle = oldTime
	}
	if Pn == 0 {
		cpu.LastEnterIdle = newTime
	}
}

// PostProcess finalizes tail extension, frequency tails, latency ranking,
// and display names after every event has been Processed. It is
// idempotent.
func (a *Analyzer) PostProcess() {
	if a.finalized {
		return
	}
	a.finalized = true

	for _, t := range a.tasks {
		if t.Exit == ExitFinal {
			continue
		}
		if len(t.Scheduling) == 0 || t.Scheduling[len(t.Scheduling)-1].Time < a.endTime {
			last := Sample{State: Floor}
			if len(t.Scheduling) > 0 {
				last = t.Scheduling[len(t.Scheduling)-1]
			}
			t.Scheduling = append(t.Scheduling, Sample{Time: a.endTime, State: last.State, Value: last.Value})
		}
	}
	for _, m := range a.cpuTasks {
		for _, ct := range m {
			if len(ct.Scheduling) == 0 || ct.Scheduling[len(ct.Scheduling)-1].Time < a.endTime {
				last := Sample{State: Floor}
				if len(ct.Scheduling) > 0 {
					last = ct.Scheduling[len(ct.Scheduling)-1]
				}
				ct.Scheduling = append(ct.Scheduling, Sample{Time: a.endTime, State: last.State, Value: last.Value})
			}
		}
	}
	for _, c := range a.cpus {
		if len(c.FrequencySeries) > 0 {
			last := c.FrequencySeries[len(c.FrequencySeries)-1]
			if last.Time < a.endTime {
				c.FrequencySeries = append(c.FrequencySeries, Sample{Time: a.endTime, Value: last.Value})
			}
		}
	}

	rankLatencies(a.SchedLatencies)
	rankLatencies(a.WakeLatencies)

	for _, t := range a.tasks {
		t.DisplayName = a.pool.String(t.Name) + " (" + itoa(int64(t.PID)) + ")"
	}
}

// rankLatencies sorts a stable copy of lat by descending delay and assigns
// Place = rank (0 is largest), per SPEC_FULL §4.7 ("latency ranking").
func rankLatencies(lat []Latency) {
	order := make([]int, len(lat))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return lat[order[i]].Delay > lat[order[j]].Delay
	})
	for rank, origIdx := range order {
		lat[origIdx].Place = rank
	}
}
