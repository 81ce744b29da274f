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
	"fmt"
	"sort"
	"strings"

	"github.com/cunctator/traceshark-sub002/eventdict"
	"github.com/cunctator/traceshark-sub002/tracedata"
)

// stateKey builds a deterministic string key for the engine's current
// (And, Or) State pair, so identical filter configurations hit the same
// LRU cache entry (SPEC_FULL §8 invariant 8, idempotent materialization).
func (e *Engine) stateKey() string {
	var b strings.Builder
	writeState(&b, e.And)
	b.WriteByte('|')
	writeState(&b, e.Or)
	return b.String()
}

func writeState(b *strings.Builder, s *State) {
	fmt.Fprintf(b, "a%d", s.Active)
	if s.Active&PredCPU != 0 {
		fmt.Fprintf(b, ";cpu=%v", sortedInts(keysOfCPU(s.CPUs)))
	}
	if s.Active&PredPID != 0 {
		fmt.Fprintf(b, ";pid=%v,incl=%v", sortedInts(keysOfPID(s.PIDs)), s.Inclusive)
	}
	if s.Active&PredEvent != 0 {
		fmt.Fprintf(b, ";ev=%v", sortedInts(keysOfEvent(s.Events)))
	}
	if s.Active&PredTime != 0 {
		fmt.Fprintf(b, ";t=%d-%d", s.TimeStart, s.TimeEnd)
	}
	if s.Active&PredRegex != 0 {
		for _, re := range s.Regexes {
			fmt.Fprintf(b, ";re=%s,pos=%d,idx=%d,inv=%v,join=%d", re.Pattern.String(), re.Pos, re.Index, re.Invert, re.Join)
		}
	}
}

func sortedInts(in []int64) []int64 {
	sort.Slice(in, func(i, j int) bool { return in[i] < in[j] })
	return in
}

func keysOfCPU(m map[tracedata.CPU]struct{}) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, int64(k))
	}
	return out
}

func keysOfPID(m map[tracedata.PID]struct{}) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, int64(k))
	}
	return out
}

func keysOfEvent(m map[eventdict.ID]struct{}) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, int64(k))
	}
	return out
}
