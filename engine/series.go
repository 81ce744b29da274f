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
package engine

import (
	"strconv"
	"strings"

	"github.com/cunctator/traceshark-sub002/analysis"
	"github.com/cunctator/traceshark-sub002/tracedata"
)

// rawSeriesFor resolves a SetScale series key (see DoScale's doc comment)
// to the raw int64 vector it names, or nil if the key is malformed or
// names a CPU/task that hasn't been observed.
func (e *Engine) rawSeriesFor(key string) []int64 {
	category, idStr, ok := strings.Cut(key, ":")
	if !ok {
		return nil
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil
	}

	switch category {
	case "cpu.freq":
		if c := e.analyzer.CPUState(tracedata.CPU(id)); c != nil {
			return sampleValues(c.FrequencySeries)
		}
	case "cpu.idle":
		if c := e.analyzer.CPUState(tracedata.CPU(id)); c != nil {
			return sampleValues(c.IdleSeries)
		}
	case "cpu.scheddelay":
		if c := e.analyzer.CPUState(tracedata.CPU(id)); c != nil {
			return sampleValues(c.SchedDelays)
		}
	case "cpu.wakedelay":
		if c := e.analyzer.CPUState(tracedata.CPU(id)); c != nil {
			return sampleValues(c.WakeDelays)
		}
	case "task.scheduling":
		if t := e.analyzer.Task(tracedata.PID(id)); t != nil {
			return sampleValues(t.Scheduling)
		}
	case "task.running":
		if t := e.analyzer.Task(tracedata.PID(id)); t != nil {
			return sampleValues(t.Running)
		}
	case "task.preempted":
		if t := e.analyzer.Task(tracedata.PID(id)); t != nil {
			return sampleValues(t.Preempted)
		}
	case "task.uninterruptible":
		if t := e.analyzer.Task(tracedata.PID(id)); t != nil {
			return sampleValues(t.Uninterruptible)
		}
	case "task.delay":
		if t := e.analyzer.Task(tracedata.PID(id)); t != nil {
			return sampleValues(t.Delays)
		}
	case "task.wakedelay":
		if t := e.analyzer.Task(tracedata.PID(id)); t != nil {
			return sampleValues(t.WakeDelays)
		}
	}
	return nil
}

func sampleValues(s []analysis.Sample) []int64 {
	out := make([]int64, len(s))
	for i, v := range s {
		out[i] = v.Value
	}
	return out
}
