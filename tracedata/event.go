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
package tracedata

import (
	"github.com/cunctator/traceshark-sub002/eventdict"
	"github.com/cunctator/traceshark-sub002/stringpool"
)

// PID identifies a task. 0 is the idle task on the CPU it is observed on;
// negative values (principally -1) denote "no task" (e.g. a CPU's
// PidOnCPU before its first sched_switch).
type PID int64

// CPU identifies a logical CPU.
type CPU int64

// MaxArgc is the fixed cap on the number of arguments a single Event may
// carry (SPEC_FULL §3).
const MaxArgc = 128

// FileSpan locates a run of bytes in the original trace file, used to carry
// verbatim post-event annotations (such as a captured backtrace) through to
// export without re-encoding them.
type FileSpan struct {
	Offset int64
	Length int64
}

// Event is the fixed, small record produced by the dialect parsers and
// consumed by the analyzer. Event is intentionally copy-friendly: it holds
// no Go pointers into the string pool or the file, only stable references
// and indices (SPEC_FULL §9 "Ownership / lifecycle").
type Event struct {
	// Index is this event's position in the owning Collection's event list.
	Index int
	// Task is the interned task-name reference ("comm" in ftrace parlance).
	Task stringpool.Ref
	PID  PID
	CPU  CPU
	Time Timestamp
	// Arg is an optional single integer argument outside argv -- the
	// sampling-profiler dialect's bracketed sample count (SPEC_FULL §4.5).
	// HasArg is false if no such value was present on this line.
	Arg    int64
	HasArg bool

	EventID eventdict.ID

	// Argv holds interned references to this event's argument tokens, in
	// argument order. The Argc method returns len(Argv); there is no
	// separate count field.
	Argv []stringpool.Ref

	// Annotation, if HasAnnotation is set, locates verbatim bytes following this event's
	// line in the original file (e.g. a captured backtrace) that the
	// exporter must reproduce unchanged.
	Annotation    FileSpan
	HasAnnotation bool
}

// Argc returns the number of arguments carried by e.
func (e *Event) Argc() int {
	return len(e.Argv)
}

// Name returns the event's type name, resolved through dict.
func (e *Event) Name(dict *eventdict.Dict) string {
	name, ok := dict.Lookup(e.EventID)
	if !ok {
		return "<unknown>"
	}
	return name
}
