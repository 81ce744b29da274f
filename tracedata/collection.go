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
	"sort"

	"github.com/cunctator/traceshark-sub002/chunklist"
	"github.com/cunctator/traceshark-sub002/eventdict"
	"github.com/cunctator/traceshark-sub002/stringpool"
)

// Collection owns a trace's full event list plus the interned pools that
// back it. It is append-only during parsing; once the parse completes, the
// event list and every string/argv reference into it are stable until
// Close (SPEC_FULL §3 "Ownership / lifecycle").
type Collection struct {
	Events  *chunklist.List[Event]
	Strings *stringpool.Pool
	Dict    *eventdict.Dict
}

// New returns an empty Collection, ready to receive events from the dialect
// parsers.
func New() *Collection {
	return &Collection{
		Events:  chunklist.New[Event](),
		Strings: stringpool.New(),
		Dict:    eventdict.New(),
	}
}

// EventByIndex returns a pointer to the ith committed event.
func (c *Collection) EventByIndex(i int) *Event {
	return c.Events.At(i)
}

// Len returns the number of committed events.
func (c *Collection) Len() int {
	return c.Events.Size()
}

// Interval returns the timestamps of the first and last events, or
// (UnknownTimestamp, UnknownTimestamp) if the collection is empty.
func (c *Collection) Interval() (start, end Timestamp) {
	if c.Len() == 0 {
		return UnknownTimestamp, UnknownTimestamp
	}
	return c.EventByIndex(0).Time, c.EventByIndex(c.Len() - 1).Time
}

// InferPrecision returns the maximum of the given display precisions (for
// example those of the first, middle, and last events' source timestamp
// strings, per SPEC_FULL §4.7), or 0 if none are given.
func InferPrecision(samples ...int) int {
	max := 0
	for _, p := range samples {
		if p > max {
			max = p
		}
	}
	return max
}

// Close releases the collection's backing storage. Every Ref, index, and
// *Event previously obtained from c becomes invalid.
func (c *Collection) Close() {
	c.Events.Clear()
	c.Strings.Reset()
}

// SortEventsByTime is a defensive, stable re-sort of an already-nearly-sorted
// event slice by timestamp. Production parsing does not call it; it appends
// in file (i.e. near-timestamp) order directly.
func SortEventsByTime(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time < events[j].Time
	})
}
