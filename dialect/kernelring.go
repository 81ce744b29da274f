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
	"strconv"
	"strings"

	"github.com/cunctator/traceshark-sub002/eventdict"
	"github.com/cunctator/traceshark-sub002/stringpool"
	"github.com/cunctator/traceshark-sub002/tracedata"
)

// parseKernelRing matches the kernel ring-buffer dialect:
//
//	TASKNAME-PID [CPU] [FLAGS] TIMESTAMP: EVENT_NAME: args...
//
// where TASKNAME-PID may be split across several tokens if the task name
// itself contains spaces (SPEC_FULL §4.5), and FLAGS is an optional
// irq-flags token (e.g. "d..3") that is skipped.
func parseKernelRing(tokens []string, pool *stringpool.Pool, dict *eventdict.Dict) (tracedata.Event, bool) {
	cpuIdx := findCPUMarker(tokens)
	if cpuIdx < 1 || cpuIdx+2 >= len(tokens) {
		return tracedata.Event{}, false
	}
	cpu, _ := bracketedInt(tokens[cpuIdx])

	nameAndPid := strings.Join(tokens[:cpuIdx], " ")
	dash := strings.LastIndexByte(nameAndPid, '-')
	if dash < 0 || dash == len(nameAndPid)-1 {
		return tracedata.Event{}, false
	}
	name, pidStr := nameAndPid[:dash], nameAndPid[dash+1:]
	pid, err := strconv.ParseInt(pidStr, 10, 64)
	if err != nil {
		return tracedata.Event{}, false
	}

	tsIdx := cpuIdx + 1
	if !strings.HasSuffix(tokens[tsIdx], ":") {
		// Optional irq-flags token between the CPU marker and the timestamp.
		tsIdx++
	}
	if tsIdx+1 >= len(tokens) {
		return tracedata.Event{}, false
	}

	tsTok := tokens[tsIdx]
	if !strings.HasSuffix(tsTok, ":") {
		return tracedata.Event{}, false
	}
	ts, err := tracedata.ParseTimestamp(tsTok)
	if err != nil {
		return tracedata.Event{}, false
	}

	evNameTok := tokens[tsIdx+1]
	if !strings.HasSuffix(evNameTok, ":") {
		return tracedata.Event{}, false
	}
	evName := strings.TrimSuffix(evNameTok, ":")
	if evName == "" {
		return tracedata.Event{}, false
	}

	argvTokens := tokens[tsIdx+2:]

	return tracedata.Event{
		Task:    pool.InternString(name, 0),
		PID:     tracedata.PID(pid),
		CPU:     tracedata.CPU(cpu),
		Time:    ts,
		EventID: eventName(dict, evName),
		Argv:    internArgv(pool, argvTokens),
	}, true
}
