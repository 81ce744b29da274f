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
package iopipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/cunctator/traceshark-sub002/dialect"
	"github.com/cunctator/traceshark-sub002/tracedata"
)

const kernelRingSample = `          <idle>-0     [000] d..3  1000.000001: sched_switch: prev_comm=swapper/0 prev_pid=0 prev_prio=120 prev_state=R ==> next_comm=task-a next_pid=100 next_prio=120
             task-a-100   [000] d..3  1000.000050: sched_switch: prev_comm=task-a prev_pid=100 prev_prio=120 prev_state=S ==> next_comm=swapper/0 next_pid=0 next_prio=120
`

// Run over a tiny buffer size so that the sample is split across several
// ring buffers, exercising both the carry-over and multi-cycle paths.
func TestRunKernelRingSmallBuffers(t *testing.T) {
	coll := tracedata.New()
	defer coll.Close()

	p := New(Options{BufferSize: 64, RingSize: 3})
	d, err := p.Run(context.Background(), strings.NewReader(kernelRingSample), coll)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if d != dialect.KernelRing {
		t.Errorf("decided dialect = %v, want KernelRing", d)
	}
	if got, want := coll.Len(), 2; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
	ev0 := coll.EventByIndex(0)
	if got, want := coll.Strings.String(ev0.Task), "<idle>"; got != want {
		t.Errorf("event 0 Task = %q, want %q", got, want)
	}
	ev1 := coll.EventByIndex(1)
	if ev1.PID != 100 {
		t.Errorf("event 1 PID = %d, want 100", ev1.PID)
	}
}

func TestRunEmptyInput(t *testing.T) {
	coll := tracedata.New()
	defer coll.Close()

	p := New(Options{})
	_, err := p.Run(context.Background(), strings.NewReader(""), coll)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if coll.Len() != 0 {
		t.Errorf("Len() = %d, want 0", coll.Len())
	}
}

func TestRunContextCancellation(t *testing.T) {
	coll := tracedata.New()
	defer coll.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(Options{})
	_, err := p.Run(ctx, strings.NewReader(kernelRingSample), coll)
	if err == nil {
		t.Fatalf("Run() with cancelled context: want error, got nil")
	}
}
