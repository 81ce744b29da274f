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

// parseSamplingProfiler matches the sampling-profiler dialect:
//
//	NAME PID [CPU] TIMESTAMP: [INTEGER] EVENT_NAME: args...
//
// with an optional leading "comm:...:evname" namespaced event-name form
// (SPEC_FULL §4.5). NAME, like the kernel-ring dialect's TASKNAME, may be
// split across multiple tokens.
func parseSamplingProfiler(tokens []string, pool *stringpool.Pool, dict *eventdict.Dict) (tracedata.Event, bool) {
	cpuIdx := findCPUMarker(tokens)
	// Need at least NAME, PID, [CPU], TIMESTAMP:, [INTEGER], EVENT_NAME:
	if cpuIdx < 2 || cpuIdx+3 >= len(tokens) {
		return tracedata.Event{}, false
	}
	cpu, _ := bracketedInt(tokens[cpuIdx])

	pidStr := tokens[cpuIdx-1]
	pid, err := strconv.ParseInt(pidStr, 10, 64)
	if err != nil {
		return tracedata.Event{}, false
	}
	name := strings.Join(tokens[:cpuIdx-1], " ")
	if name == "" {
		return tracedata.Event{}, false
	}

	tsTok := tokens[cpuIdx+1]
	if !strings.HasSuffix(tsTok, ":") {
		return tracedata.Event{}, false
	}
	ts, err := tracedata.ParseTimestamp(tsTok)
	if err != nil {
		return tracedata.Event{}, false
	}

	sampleCount, isBracketed := bracketedInt(tokens[cpuIdx+2])
	if !isBracketed {
		return tracedata.Event{}, false
	}

	evNameTok := tokens[cpuIdx+3]
	if !strings.HasSuffix(evNameTok, ":") {
		return tracedata.Event{}, false
	}
	evName := strings.TrimSuffix(evNameTok, ":")
	if idx := strings.LastIndexByte(evName, ':'); idx >= 0 {
		evName = evName[idx+1:]
	}
	if evName == "" {
		return tracedata.Event{}, false
	}

	argvTokens := tokens[cpuIdx+4:]

	return tracedata.Event{
		Task:    pool.InternString(name, 0),
		PID:     tracedata.PID(pid),
		CPU:     tracedata.CPU(cpu),
		Time:    ts,
		Arg:     sampleCount,
		HasArg:  true,
		EventID: eventName(dict, evName),
		Argv:    internArgv(pool, argvTokens),
	}, true
}
