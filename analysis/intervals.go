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

	"github.com/Workiva/go-datastructures/augmentedtree"

	"github.com/cunctator/traceshark-sub002/tracedata"
)

// span is a half-open [start, end) interval backing both the per-CPU idle
// trees and the per-task uninterruptible trees. id distinguishes otherwise
// identical intervals within one augmentedtree.Tree, which requires a
// unique ID per added interval.
type span struct {
	start, end tracedata.Timestamp
	// on is the span's state: "is idle" for an idle tree (from the
	// predicate spansFromSeries was given), "is uninterruptible" for an
	// uninterruptible tree (always true, see uninterruptibleSpansFor).
	on bool
	id uint64
}

// LowAtDimension returns the interval's start, to satisfy
// augmentedtree.Interval.
func (s *span) LowAtDimension(d uint64) int64 { return int64(s.start) }

// HighAtDimension returns the interval's end, to satisfy
// augmentedtree.Interval.
func (s *span) HighAtDimension(d uint64) int64 { return int64(s.end) }

// OverlapsAtDimension reports whether j overlaps s, to satisfy
// augmentedtree.Interval.
func (s *span) OverlapsAtDimension(j augmentedtree.Interval, d uint64) bool {
	return s.HighAtDimension(d) >= j.LowAtDimension(d) &&
		j.HighAtDimension(d) >= s.LowAtDimension(d)
}

// ID returns the interval's unique identifier, to satisfy
// augmentedtree.Interval.
func (s *span) ID() uint64 { return s.id }

// spansFromSeries turns a series of point samples into the half-open
// intervals between consecutive samples, each carrying the state sampled
// at its start.
func spansFromSeries(series []Sample, idleOf func(Sample) bool) []*span {
	if len(series) < 2 {
		return nil
	}
	out := make([]*span, 0, len(series)-1)
	for i := 0; i < len(series)-1; i++ {
		out = append(out, &span{
			start: series[i].Time,
			end:   series[i+1].Time,
			on:    idleOf(series[i]),
			id:    uint64(i),
		})
	}
	return out
}

func buildTree(spans []*span) augmentedtree.Tree {
	tree := augmentedtree.New(1)
	for _, s := range spans {
		tree.Add(s)
	}
	return tree
}

// idleTreeFor returns (building and caching, if necessary) the interval
// tree of cpu's idle/non-idle spans, derived from its IdleSeries.
func (a *Analyzer) idleTreeFor(cpu tracedata.CPU) augmentedtree.Tree {
	a.treeMu.Lock()
	defer a.treeMu.Unlock()
	if a.idleTrees == nil {
		a.idleTrees = make(map[tracedata.CPU]augmentedtree.Tree)
	}
	if t, ok := a.idleTrees[cpu]; ok {
		return t
	}
	c := a.cpus[cpu]
	var spans []*span
	if c != nil {
		spans = spansFromSeries(c.IdleSeries, func(s Sample) bool { return s.Value > 0 })
	}
	t := buildTree(spans)
	a.idleTrees[cpu] = t
	return t
}

// uninterruptibleSpansFor pairs each of task's Uninterruptible entry
// samples with the next SCHED edge in its Scheduling vector, to build the
// half-open span the task actually spent asleep. A sleep still open at
// end (no later SCHED edge) runs to end.
func uninterruptibleSpansFor(task *Task, end tracedata.Timestamp) []*span {
	if len(task.Uninterruptible) == 0 {
		return nil
	}
	scheds := make([]tracedata.Timestamp, 0, len(task.Scheduling))
	for _, s := range task.Scheduling {
		if s.State == Sched {
			scheds = append(scheds, s.Time)
		}
	}
	sort.Slice(scheds, func(i, j int) bool { return scheds[i] < scheds[j] })

	out := make([]*span, 0, len(task.Uninterruptible))
	for i, u := range task.Uninterruptible {
		stop := end
		if idx := sort.Search(len(scheds), func(j int) bool { return scheds[j] > u.Time }); idx < len(scheds) {
			stop = scheds[idx]
		}
		out = append(out, &span{start: u.Time, end: stop, on: true, id: uint64(i)})
	}
	return out
}

// uninterruptibleTreeFor returns (building and caching, if necessary) the
// interval tree of pid's uninterruptible-sleep spans, derived from its
// Uninterruptible and Scheduling vectors.
func (a *Analyzer) uninterruptibleTreeFor(pid tracedata.PID) augmentedtree.Tree {
	a.treeMu.Lock()
	defer a.treeMu.Unlock()
	if a.uninterruptibleTrees == nil {
		a.uninterruptibleTrees = make(map[tracedata.PID]augmentedtree.Tree)
	}
	if t, ok := a.uninterruptibleTrees[pid]; ok {
		return t
	}
	task := a.tasks[pid]
	var spans []*span
	if task != nil {
		spans = uninterruptibleSpansFor(task, a.endTime)
	}
	t := buildTree(spans)
	a.uninterruptibleTrees[pid] = t
	return t
}

func queryPoint(t tracedata.Timestamp) *span {
	return &span{start: t, end: t}
}

// IdleAt reports whether cpu was idle at time t, and whether any idle-state
// data was recorded for cpu at all.
func (a *Analyzer) IdleAt(cpu tracedata.CPU, t tracedata.Timestamp) (idle, known bool) {
	hits := a.idleTreeFor(cpu).Query(queryPoint(t))
	if len(hits) > 0 {
		return hits[0].(*span).on, true
	}
	c := a.cpus[cpu]
	if c == nil || len(c.IdleSeries) == 0 {
		return false, false
	}
	// Outside every span: after the last sample its state still holds;
	// before the first sample nothing marks the CPU idle.
	if last := c.IdleSeries[len(c.IdleSeries)-1]; t >= last.Time {
		return last.Value > 0, true
	}
	return false, true
}

// UninterruptibleAt reports whether pid was in an uninterruptible sleep at
// time t.
func (a *Analyzer) UninterruptibleAt(pid tracedata.PID, t tracedata.Timestamp) bool {
	hits := a.uninterruptibleTreeFor(pid).Query(queryPoint(t))
	for _, hit := range hits {
		if hit.(*span).on {
			return true
		}
	}
	return false
}
