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
package dialect

import (
	"strings"
	"testing"

	"github.com/cunctator/traceshark-sub002/tracedata"
)

func tokenize(line string) []string {
	return strings.Fields(line)
}

// Scenario A (SPEC_FULL §8): a single sched_switch line in the kernel
// ring-buffer dialect parses into a matching sched_switch event.
func TestParseKernelRingSchedSwitch(t *testing.T) {
	coll := tracedata.New()
	defer coll.Close()

	line := `migration/0-10    [000] d..3  1234.567890: sched_switch: prev_comm=migration/0 prev_pid=10 prev_prio=0 prev_state=S ==> next_comm=swapper/0 next_pid=0 next_prio=120`
	ev, d, ok := Parse(Unknown, tokenize(line), coll)
	if !ok {
		t.Fatalf("Parse() did not match")
	}
	if d != KernelRing {
		t.Errorf("matched dialect = %v, want KernelRing", d)
	}
	if got, want := coll.Strings.String(ev.Task), "migration/0"; got != want {
		t.Errorf("Task = %q, want %q", got, want)
	}
	if ev.PID != 10 {
		t.Errorf("PID = %d, want 10", ev.PID)
	}
	if ev.CPU != 0 {
		t.Errorf("CPU = %d, want 0", ev.CPU)
	}
	if name, ok := coll.Dict.Lookup(ev.EventID); !ok || name != "sched_switch" {
		t.Errorf("event name = %q, ok=%v, want sched_switch", name, ok)
	}
	prevState, ok := ArgValue(coll.Strings, ev.Argv, "prev_state")
	if !ok || prevState != "S" {
		t.Errorf("prev_state = %q, ok=%v, want S", prevState, ok)
	}
}

// A task name containing spaces must still be parsed correctly.
func TestParseKernelRingMultiTokenTaskName(t *testing.T) {
	coll := tracedata.New()
	defer coll.Close()

	line := `Chrome IOThread-512   [002] ...1 100.000000: sched_wakeup: comm=Chrome_IOThread pid=512 prio=120 target_cpu=002`
	ev, d, ok := Parse(Unknown, tokenize(line), coll)
	if !ok || d != KernelRing {
		t.Fatalf("Parse() = (%v, %v, %v), want matched KernelRing", ev, d, ok)
	}
	if got, want := coll.Strings.String(ev.Task), "Chrome IOThread"; got != want {
		t.Errorf("Task = %q, want %q", got, want)
	}
	if ev.PID != 512 {
		t.Errorf("PID = %d, want 512", ev.PID)
	}
}

func TestParseSamplingProfiler(t *testing.T) {
	coll := tracedata.New()
	defer coll.Close()

	line := `swapper 0 [001] 42.100000: [3] sched:sched_switch: prev_pid=0 next_pid=55`
	ev, d, ok := Parse(Unknown, tokenize(line), coll)
	if !ok {
		t.Fatalf("Parse() did not match")
	}
	if d != SamplingProfiler {
		t.Errorf("matched dialect = %v, want SamplingProfiler", d)
	}
	if got, want := coll.Strings.String(ev.Task), "swapper"; got != want {
		t.Errorf("Task = %q, want %q", got, want)
	}
	if ev.CPU != 1 {
		t.Errorf("CPU = %d, want 1", ev.CPU)
	}
	if !ev.HasArg || ev.Arg != 3 {
		t.Errorf("Arg = %d, HasArg = %v, want 3, true", ev.Arg, ev.HasArg)
	}
	name, ok := coll.Dict.Lookup(ev.EventID)
	if !ok || name != "sched_switch" {
		t.Errorf("event name = %q, ok=%v, want sched_switch (namespaced prefix stripped)", name, ok)
	}
}

// Scenario C (SPEC_FULL §8): 5 kernel-ring lines against 500
// sampling-profiler lines must vote for sampling-profiler.
func TestVoterScenarioC(t *testing.T) {
	v := NewVoter(DefaultConfidenceFactor)
	for i := 0; i < 5; i++ {
		v.Observe(KernelRing)
	}
	if _, decided := v.Decided(); decided {
		t.Fatalf("voter decided early after only kernel-ring votes")
	}
	for i := 0; i < 500; i++ {
		v.Observe(SamplingProfiler)
		if d, decided := v.Decided(); decided && d != SamplingProfiler {
			t.Fatalf("voter decided %v, want SamplingProfiler", d)
		}
	}
	final := v.Finalize()
	if final != SamplingProfiler {
		t.Errorf("Finalize() = %v, want SamplingProfiler", final)
	}
}

func TestVoterTieBreaksToSamplingProfiler(t *testing.T) {
	v := NewVoter(DefaultConfidenceFactor)
	v.Observe(KernelRing)
	v.Observe(SamplingProfiler)
	if got := v.Finalize(); got != SamplingProfiler {
		t.Errorf("Finalize() on tie = %v, want SamplingProfiler", got)
	}
}

func TestVoterNoVotesDefaultsToSamplingProfiler(t *testing.T) {
	v := NewVoter(DefaultConfidenceFactor)
	if got := v.Finalize(); got != SamplingProfiler {
		t.Errorf("Finalize() with no votes = %v, want SamplingProfiler", got)
	}
}
