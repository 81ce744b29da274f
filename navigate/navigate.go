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
// Package navigate implements binary-search event lookup and the
// wake/sched cross-linking queries of SPEC_FULL §4.9, over either the raw
// event list or a filtered view of event indices.
package navigate

import (
	"sort"

	"github.com/cunctator/traceshark-sub002/dialect"
	"github.com/cunctator/traceshark-sub002/eventdict"
	"github.com/cunctator/traceshark-sub002/tracedata"
)

// Navigator answers index/time queries over coll, optionally restricted
// to a filtered view (a strictly increasing subsequence of event indices).
type Navigator struct {
	coll *tracedata.Collection
}

// New constructs a Navigator over coll.
func New(coll *tracedata.Collection) *Navigator {
	return &Navigator{coll: coll}
}

func (n *Navigator) timeAt(i int) tracedata.Timestamp {
	return n.coll.EventByIndex(i).Time
}

// FindIndexBefore returns the largest event index whose timestamp is <= t,
// or -1 if every event is after t.
func (n *Navigator) FindIndexBefore(t tracedata.Timestamp) int {
	size := n.coll.Len()
	i := sort.Search(size, func(i int) bool { return n.timeAt(i) > t })
	return i - 1
}

// FindIndexAfter returns the smallest event index whose timestamp is >= t,
// or size if every event is before t.
func (n *Navigator) FindIndexAfter(t tracedata.Timestamp) int {
	size := n.coll.Len()
	return sort.Search(size, func(i int) bool { return n.timeAt(i) >= t })
}

// FindIndexBeforeView is FindIndexBefore restricted to view, a strictly
// increasing subsequence of event indices (e.g. a materialized filter).
func (n *Navigator) FindIndexBeforeView(view []int, t tracedata.Timestamp) int {
	j := sort.Search(len(view), func(j int) bool { return n.timeAt(view[j]) > t })
	return j - 1
}

// FindIndexAfterView is FindIndexAfter restricted to view.
func (n *Navigator) FindIndexAfterView(view []int, t tracedata.Timestamp) int {
	return sort.Search(len(view), func(j int) bool { return n.timeAt(view[j]) >= t })
}

// FindPreviousSched scans backward from FindIndexBefore(t) for the last
// sched_switch whose incoming pid (next_pid) equals pid, returning its
// index or -1.
func (n *Navigator) FindPreviousSched(t tracedata.Timestamp, pid tracedata.PID) int {
	for i := n.FindIndexBefore(t); i >= 0; i-- {
		ev := n.coll.EventByIndex(i)
		if ev.EventID != eventdict.SchedSwitch {
			continue
		}
		if nextPid, ok := dialect.ArgInt(n.coll.Strings, ev.Argv, "next_pid"); ok && tracedata.PID(nextPid) == pid {
			return i
		}
	}
	return -1
}

// FindNextSchedSleep scans forward from t for the next sched_switch whose
// outgoing pid (prev_pid) equals pid and whose prev_state is non-runnable,
// returning its index or -1.
func (n *Navigator) FindNextSchedSleep(t tracedata.Timestamp, pid tracedata.PID) int {
	size := n.coll.Len()
	for i := n.FindIndexAfter(t); i < size; i++ {
		ev := n.coll.EventByIndex(i)
		if ev.EventID != eventdict.SchedSwitch {
			continue
		}
		prevPid, ok := dialect.ArgInt(n.coll.Strings, ev.Argv, "prev_pid")
		if !ok || tracedata.PID(prevPid) != pid {
			continue
		}
		stateStr, _ := dialect.ArgValue(n.coll.Strings, ev.Argv, "prev_state")
		if !dialect.ParseSleepState(stateStr).IsRunnable() {
			return i
		}
	}
	return -1
}

// WakeKind selects which wakeup-family event FindPreviousWake looks for.
type WakeKind int

const (
	WantWakeup WakeKind = iota
	WantWakeupNew
	WantWaking
)

// FindPreviousWake scans backward from startIdx for a wakeup-family event
// referencing pid matching want (WantWakeup also matches
// sched_wakeup_new), returning its index or -1.
func (n *Navigator) FindPreviousWake(startIdx int, pid tracedata.PID, want WakeKind) int {
	for i := startIdx; i >= 0; i-- {
		ev := n.coll.EventByIndex(i)
		var matchID bool
		switch want {
		case WantWakeup:
			matchID = ev.EventID == eventdict.SchedWakeup || ev.EventID == eventdict.SchedWakeupNew
		case WantWakeupNew:
			matchID = ev.EventID == eventdict.SchedWakeupNew
		case WantWaking:
			matchID = ev.EventID == eventdict.SchedWaking
		}
		if !matchID {
			continue
		}
		if p, ok := dialect.ArgInt(n.coll.Strings, ev.Argv, "pid"); ok && tracedata.PID(p) == pid {
			return i
		}
	}
	return -1
}

// FindWaking scans backward from a wakeup event's index for the
// sched_waking event for the same pid, stopping at the first sched_waking
// event whose pid field is unparseable.
func (n *Navigator) FindWaking(wakeupIdx int) int {
	wakeup := n.coll.EventByIndex(wakeupIdx)
	pid, ok := dialect.ArgInt(n.coll.Strings, wakeup.Argv, "pid")
	if !ok {
		return -1
	}
	for i := wakeupIdx - 1; i >= 0; i-- {
		ev := n.coll.EventByIndex(i)
		if ev.EventID != eventdict.SchedWaking {
			continue
		}
		p, ok := dialect.ArgInt(n.coll.Strings, ev.Argv, "pid")
		if !ok {
			return -1
		}
		if tracedata.PID(p) == tracedata.PID(pid) {
			return i
		}
	}
	return -1
}
