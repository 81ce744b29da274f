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
// Package dialect implements the two textual trace-line grammars (kernel
// ring-buffer and sampling-profiler) and the voter that chooses between
// them, per SPEC_FULL §4.5-§4.6. Both grammars share a line tokenization
// (whitespace-split) performed upstream by the iopipeline tokenizer stage.
package dialect

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cunctator/traceshark-sub002/eventdict"
	"github.com/cunctator/traceshark-sub002/stringpool"
	"github.com/cunctator/traceshark-sub002/tracedata"
)

// Dialect identifies which of the two line grammars produced (or is
// expected to produce) an event.
type Dialect int

const (
	Unknown Dialect = iota
	KernelRing
	SamplingProfiler
)

func (d Dialect) String() string {
	switch d {
	case KernelRing:
		return "kernel-ring"
	case SamplingProfiler:
		return "sampling-profiler"
	default:
		return "unknown"
	}
}

var bracketedIntRe = regexp.MustCompile(`^\[\s*(-?\d+)\s*\]$`)

// bracketedInt parses a "[N]" token (the CPU marker in both dialects, and
// the sampling-profiler's sample-count token), returning the enclosed
// integer and whether tok matched the bracketed form at all.
func bracketedInt(tok string) (int64, bool) {
	m := bracketedIntRe.FindStringSubmatch(tok)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// findCPUMarker scans tokens for the first "[N]" token, returning its
// index, or -1 if none is present. Per SPEC_FULL §4.5, everything before it
// is the task-name/pid run (which may itself have been split across
// several tokens if the task name contains spaces).
func findCPUMarker(tokens []string) int {
	for i, tok := range tokens {
		if _, ok := bracketedInt(tok); ok {
			return i
		}
	}
	return -1
}

// internArgv interns each of tokens (capped at tracedata.MaxArgc) into
// pool, returning the resulting Refs.
func internArgv(pool *stringpool.Pool, tokens []string) []stringpool.Ref {
	if len(tokens) > tracedata.MaxArgc {
		tokens = tokens[:tracedata.MaxArgc]
	}
	refs := make([]stringpool.Ref, len(tokens))
	for i, tok := range tokens {
		refs[i] = pool.InternString(tok, 0)
	}
	return refs
}

// ArgValue scans an event's already-interned argv for a "key=value" token
// and returns its value.
func ArgValue(pool *stringpool.Pool, argv []stringpool.Ref, key string) (string, bool) {
	prefix := key + "="
	for _, ref := range argv {
		s := pool.String(ref)
		if strings.HasPrefix(s, prefix) {
			return s[len(prefix):], true
		}
	}
	return "", false
}

// ArgInt is ArgValue followed by integer parsing.
func ArgInt(pool *stringpool.Pool, argv []stringpool.Ref, key string) (int64, bool) {
	v, ok := ArgValue(pool, argv, key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Parse runs the grammar named by want (or, for Unknown, both, trying
// KernelRing then SamplingProfiler)
// against a single line's tokens, populating ev on a match.
func Parse(want Dialect, tokens []string, coll *tracedata.Collection) (ev tracedata.Event, matchedDialect Dialect, ok bool) {
	if want == Unknown || want == KernelRing {
		if e, ok := parseKernelRing(tokens, coll.Strings, coll.Dict); ok {
			return e, KernelRing, true
		}
	}
	if want == Unknown || want == SamplingProfiler {
		if e, ok := parseSamplingProfiler(tokens, coll.Strings, coll.Dict); ok {
			return e, SamplingProfiler, true
		}
	}
	return tracedata.Event{}, Unknown, false
}

func eventName(dict *eventdict.Dict, raw string) eventdict.ID {
	return dict.InternOrAssign(raw)
}
