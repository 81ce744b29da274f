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
// Package eventdict maintains the bijection between tracepoint event names
// and the small integer event ids the rest of the core indexes on.
package eventdict

// ID identifies an event's type.
type ID int32

// The 11 well-known event names, pre-seeded into every new Dict with ids
// fixed by this order (SPEC_FULL §4.2).
const (
	CPUFrequency ID = iota
	CPUIdle
	SchedMigrateTask
	SchedSwitch
	SchedWakeup
	SchedWakeupNew
	SchedWaking
	SchedProcessFork
	SchedProcessExit
	IRQHandlerEntry
	IRQHandlerExit

	numWellKnown
)

var wellKnownNames = [numWellKnown]string{
	CPUFrequency:     "cpu_frequency",
	CPUIdle:          "cpu_idle",
	SchedMigrateTask: "sched_migrate_task",
	SchedSwitch:      "sched_switch",
	SchedWakeup:      "sched_wakeup",
	SchedWakeupNew:   "sched_wakeup_new",
	SchedWaking:      "sched_waking",
	SchedProcessFork: "sched_process_fork",
	SchedProcessExit: "sched_process_exit",
	IRQHandlerEntry:  "irq_handler_entry",
	IRQHandlerExit:   "irq_handler_exit",
}

// Dict is a bijection between event names and event ids. The zero Dict is
// not usable; construct one with New.
type Dict struct {
	names []string
	ids   map[string]ID
	maxID ID
}

// New returns a Dict pre-seeded with the well-known event names.
func New() *Dict {
	d := &Dict{
		names: append([]string(nil), wellKnownNames[:]...),
		ids:   make(map[string]ID, numWellKnown),
	}
	for id, name := range d.names {
		d.ids[name] = ID(id)
	}
	d.maxID = ID(len(d.names) - 1)
	return d
}

// Lookup returns the name associated with id, and whether it was found.
func (d *Dict) Lookup(id ID) (string, bool) {
	if id < 0 || int(id) >= len(d.names) {
		return "", false
	}
	return d.names[id], true
}

// InternOrAssign returns name's existing id if known, or assigns it the next
// unused id, growing the dense id->name table and advancing MaxID.
func (d *Dict) InternOrAssign(name string) ID {
	if id, ok := d.ids[name]; ok {
		return id
	}
	id := ID(len(d.names))
	d.names = append(d.names, name)
	d.ids[name] = id
	d.maxID = id
	return id
}

// IDFor returns name's id and whether it is already known, without
// assigning a new one.
func (d *Dict) IDFor(name string) (ID, bool) {
	id, ok := d.ids[name]
	return id, ok
}

// MaxID returns the largest id assigned so far.
func (d *Dict) MaxID() ID {
	return d.maxID
}

// Len returns the number of distinct event names known to the dictionary.
func (d *Dict) Len() int {
	return len(d.names)
}
