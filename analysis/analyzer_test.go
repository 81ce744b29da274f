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
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cunctator/traceshark-sub002/iopipeline"
	"github.com/cunctator/traceshark-sub002/tracedata"
)

func runTrace(t *testing.T, lines string) (*tracedata.Collection, *Analyzer) {
	t.Helper()
	coll := tracedata.New()
	p := iopipeline.New(iopipeline.Options{})
	if _, err := p.Run(context.Background(), strings.NewReader(lines), coll); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	a := New(coll.Strings)
	coll.Events.Each(func(i int, ev *tracedata.Event) bool {
		a.Process(ev)
		return true
	})
	a.PostProcess()
	return coll, a
}

// Scenario A (SPEC_FULL §8): single context switch pair.
func TestScenarioASingleContextSwitch(t *testing.T) {
	const trace = ` A-100   [001] 0.000010: sched_switch: prev_comm=A prev_pid=100 prev_prio=120 prev_state=S ==> next_comm=B next_pid=200 next_prio=120
 B-200   [001] 0.002000: sched_switch: prev_comm=B prev_pid=200 prev_prio=120 prev_state=S ==> next_comm=A next_pid=100 next_prio=120
`
	_, a := runTrace(t, trace)

	if a.Task(100) == nil || a.Task(200) == nil {
		t.Fatalf("expected tasks 100 and 200 to exist")
	}

	ct100 := a.CPUTaskState(1, 100)
	ct200 := a.CPUTaskState(1, 200)
	if ct100 == nil || ct200 == nil {
		t.Fatalf("expected CPU 1 to have scheduling series for both tasks")
	}

	if len(ct100.Scheduling) == 0 || ct100.Scheduling[0].State != Sched {
		t.Errorf("PID 100's first scheduling sample on CPU 1 should be SCHED (bootstrap), got %+v", ct100.Scheduling)
	}

	tenUs := tracedata.Timestamp(10000)
	twoMs := tracedata.Timestamp(2000000)
	foundFloorAt100Minus20 := false
	for _, s := range ct100.Scheduling {
		if s.Time == tenUs-FAKEDelta && s.State == Floor {
			foundFloorAt100Minus20 = true
		}
	}
	if !foundFloorAt100Minus20 {
		t.Errorf("expected a FLOOR sample for PID 100 at %d, got %+v", tenUs-FAKEDelta, ct100.Scheduling)
	}

	foundSchedAt200Plus20 := false
	for _, s := range ct200.Scheduling {
		if s.Time == tenUs+FAKEDelta && s.State == Sched {
			foundSchedAt200Plus20 = true
		}
	}
	if !foundSchedAt200Plus20 {
		t.Errorf("expected a SCHED sample for PID 200 at %d, got %+v", tenUs+FAKEDelta, ct200.Scheduling)
	}

	foundSchedAt100AtTwoMs := false
	for _, s := range ct100.Scheduling {
		if s.Time == twoMs+FAKEDelta && s.State == Sched {
			foundSchedAt100AtTwoMs = true
		}
	}
	if !foundSchedAt100AtTwoMs {
		t.Errorf("expected a SCHED sample for PID 100 at %d, got %+v", twoMs+FAKEDelta, ct100.Scheduling)
	}
}

// Scenario E (SPEC_FULL §8): wakeup -> switch pairing.
func TestScenarioEWakeupSwitchPairing(t *testing.T) {
	const trace = ` swapper-0   [000] 1.000000: sched_wakeup: comm=worker pid=42 prio=120 target_cpu=000 success=1
 swapper-0   [000] 1.005000: sched_switch: prev_comm=swapper prev_pid=0 prev_prio=120 prev_state=R ==> next_comm=worker next_pid=42 next_prio=120
`
	_, a := runTrace(t, trace)

	if len(a.WakeLatencies) != 1 {
		t.Fatalf("WakeLatencies = %d entries, want 1: %+v", len(a.WakeLatencies), a.WakeLatencies)
	}
	lat := a.WakeLatencies[0]
	want := tracedata.Timestamp(5000000)
	diff := lat.Delay - want
	if diff < -tracedata.Timestamp(20) || diff > tracedata.Timestamp(20) {
		t.Errorf("wake delay = %d, want %d +/- 20ns rounding", lat.Delay, want)
	}
}

// Scenario F (SPEC_FULL §8): latency ranking.
func TestScenarioFLatencyRanking(t *testing.T) {
	lat := []Latency{
		{Delay: 30000},
		{Delay: 10000},
		{Delay: 20000},
	}
	rankLatencies(lat)
	if lat[0].Place != 0 || lat[1].Place != 2 || lat[2].Place != 1 {
		t.Errorf("places = %d, %d, %d, want 0, 2, 1", lat[0].Place, lat[1].Place, lat[2].Place)
	}
}

// Scenario B (SPEC_FULL §8): rollover fixup.
func TestScenarioBRolloverFixup(t *testing.T) {
	a := New(nil)
	a.started = true
	a.lastEventAt = 1_100_000_000

	got := a.fixupRollover(205_000_000)
	want := tracedata.Timestamp(1_105_000_000)
	if got != want {
		t.Errorf("fixupRollover() = %d, want %d", got, want)
	}
}

func TestMigrationRecordedOnMigrateTaskEvent(t *testing.T) {
	const trace = ` A-100   [000] 0.000020: sched_migrate_task: comm=A pid=100 prio=120 orig_cpu=0 dest_cpu=1
`
	_, a := runTrace(t, trace)

	want := []Migration{
		{PID: 100, OldCPU: 0, NewCPU: 1, Time: 20000},
	}
	if diff := cmp.Diff(want, a.Migrations); diff != "" {
		t.Errorf("Migrations mismatch (-want +got):\n%s", diff)
	}
}
