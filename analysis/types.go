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
// Package sched reconstructs per-CPU and per-task scheduling timelines,
// migrations, and wake/sched latencies from a stream of parsed trace
// events, per SPEC_FULL §4.7.
package sched

import (
	"github.com/cunctator/traceshark-sub002/stringpool"
	"github.com/cunctator/traceshark-sub002/tracedata"
)

// FAKEDelta is the nanosecond offset used to split a sched_switch event
// into an outgoing-task FLOOR edge slightly before t and an incoming-task
// SCHED edge slightly after t, so otherwise-simultaneous segments don't
// collide.
const FAKEDelta tracedata.Timestamp = 20

// RolloverFixup is the correction applied to a timestamp that appears to
// have gone backwards, to compensate for a known ring-buffer wrap bug.
const RolloverFixup tracedata.Timestamp = 900_000_000 // 0.9s in nanoseconds

// RolloverWindowMax bounds the corrected delta that licenses accepting a
// rollover fixup.
const RolloverWindowMax tracedata.Timestamp = 10_000_000 // 10ms

// SignalState is a single sample's scheduling signal.
type SignalState int8

const (
	Unknown SignalState = iota
	Floor
	Sched
	Running
	Preempted
	Uninterruptible
)

func (s SignalState) String() string {
	switch s {
	case Floor:
		return "floor"
	case Sched:
		return "sched"
	case Running:
		return "running"
	case Preempted:
		return "preempted"
	case Uninterruptible:
		return "uninterruptible"
	default:
		return "unknown"
	}
}

// Sample is one point of a scheduling, state, frequency, or idle series.
type Sample struct {
	Time  tracedata.Timestamp
	State SignalState
	Value int64 // frequency in kHz, idle state + 1, delay in ns, the scheduling signal's bit (0=FLOOR, 1=SCHED), or a state-sample's presence indicator (1).
}

// RunStatus tracks why a task last became runnable, used to validate
// sched_delay/wake_delay computation.
type RunStatus int8

const (
	StatusInvalid RunStatus = iota
	StatusWakeup
	StatusSched
)

// ExitStatus tracks a task's lifecycle.
type ExitStatus int8

const (
	ExitRunning ExitStatus = iota
	ExitCalled
	ExitFinal
)

// Task is the global (cross-CPU) view of a single PID's scheduling
// activity. Per SPEC_FULL §3, it carries six independent parallel
// vectors rather than one merged stream: Scheduling is strictly
// two-valued (FLOOR, SCHED); Running, Preempted, and Uninterruptible
// each record only their own state-entry samples; Delays and WakeDelays
// record sched_delay/wake_delay measurements.
type Task struct {
	PID             tracedata.PID
	Name            stringpool.Ref
	DisplayName     string
	CreatedAt       tracedata.Timestamp
	Scheduling      []Sample
	Running         []Sample
	Preempted       []Sample
	Uninterruptible []Sample
	Delays          []Sample
	WakeDelays      []Sample
	LastRunnable    tracedata.Timestamp
	LastRunnableIdx int
	LastSleepEntry  tracedata.Timestamp
	RunStatus       RunStatus
	Exit            ExitStatus
}

// CPUTask carries the same vector fields as Task (see above), but only
// the portion observed on one CPU.
type CPUTask struct {
	PID             tracedata.PID
	CPU             tracedata.CPU
	Scheduling      []Sample
	Running         []Sample
	Preempted       []Sample
	Uninterruptible []Sample
	Delays          []Sample
	WakeDelays      []Sample
}

// CPU is the per-CPU state machine driven by sched_switch, plus its
// frequency and idle series.
type CPU struct {
	ID               tracedata.CPU
	HasBeenScheduled bool
	PidOnCPU         tracedata.PID
	LastSched        tracedata.Timestamp
	LastSchedIdx     int
	LastExitIdle     tracedata.Timestamp
	LastEnterIdle    tracedata.Timestamp
	FrequencySeries  []Sample
	IdleSeries       []Sample
	SchedDelays      []Sample
	WakeDelays       []Sample
	MinFreq, MaxFreq int64
	MinIdle, MaxIdle int64
}

// Migration records a task's move between CPUs (or into/out of the
// scheduler entirely, via fork/exit, signalled by OldCPU/NewCPU == -1).
type Migration struct {
	PID    tracedata.PID
	OldCPU tracedata.CPU
	NewCPU tracedata.CPU
	Time   tracedata.Timestamp
}

// Latency is a single sched-delay or wake-delay record. PID is the task
// the delay was measured for: the incoming (next_pid) side of the
// SCHED_SWITCH named by SwitchIndex, not that event's own logging-context
// pid (which is the outgoing task).
type Latency struct {
	PID           tracedata.PID
	SwitchIndex   int
	RunnableIndex int
	Delay         tracedata.Timestamp
	Place         int
}
