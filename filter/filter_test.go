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
package filter

import (
	"testing"

	"github.com/cunctator/traceshark-sub002/tracedata"
)

func buildCollection(t *testing.T) *tracedata.Collection {
	t.Helper()
	coll := tracedata.New()
	taskRef := coll.Strings.InternString("A", 0)
	events := []tracedata.Event{
		{PID: 123, CPU: 0, Time: 1, Task: taskRef},
		{PID: 456, CPU: 0, Time: 2, Task: taskRef},
		{PID: 123, CPU: 1, Time: 3, Task: taskRef},
		{PID: 789, CPU: 1, Time: 4, Task: taskRef},
	}
	for i := range events {
		events[i].Index = i
		coll.Events.Append(events[i])
	}
	return coll
}

// Scenario D (SPEC_FULL §8): CPU-AND / pid-OR filter.
func TestScenarioDCPUAndPidOr(t *testing.T) {
	coll := buildCollection(t)
	e := NewEngine(coll)
	e.And.SetCPUs(0)
	e.Or.SetPIDs(false, 123)

	got := e.Materialize()
	// event 0 (pid 123, cpu 0): matched by OR.
	// event 1 (pid 456, cpu 0): matched by AND (cpu==0).
	// event 2 (pid 123, cpu 1): matched by OR (pid==123) even though cpu!=0.
	// event 3 (pid 789, cpu 1): matches neither.
	want := []int{0, 1, 2}
	if !intSliceEqual(got, want) {
		t.Errorf("Materialize() = %v, want %v", got, want)
	}
}

func TestCPUOnlyFilterWithoutOR(t *testing.T) {
	coll := buildCollection(t)
	e := NewEngine(coll)
	e.And.SetCPUs(0)

	got := e.Materialize()
	want := []int{0, 1}
	if !intSliceEqual(got, want) {
		t.Errorf("Materialize() = %v, want %v", got, want)
	}
}

func TestMaterializeCached(t *testing.T) {
	coll := buildCollection(t)
	e := NewEngine(coll)
	e.And.SetCPUs(1)

	first := e.Materialize()
	second := e.Materialize()
	if !intSliceEqual(first, second) {
		t.Errorf("cached Materialize() mismatch: %v vs %v", first, second)
	}
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
