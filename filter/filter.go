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
// Package filter implements the AND-set/OR-set predicate engine and its
// LRU-cached materialization, per SPEC_FULL §4.8.
package filter

import (
	"regexp"

	lru "github.com/hashicorp/golang-lru/simplelru"

	"github.com/cunctator/traceshark-sub002/dialect"
	"github.com/cunctator/traceshark-sub002/errs"
	"github.com/cunctator/traceshark-sub002/eventdict"
	"github.com/cunctator/traceshark-sub002/stringpool"
	"github.com/cunctator/traceshark-sub002/tracedata"
)

// Predicate is a bitmask of the predicate kinds a State may enable.
type Predicate uint8

const (
	PredCPU Predicate = 1 << iota
	PredPID
	PredEvent
	PredTime
	PredRegex
)

// PosMode selects where a RegexEntry's pattern is matched against an
// event's argv.
type PosMode int

const (
	PosAny PosMode = iota
	PosAbsolute
	PosRelative
)

// JoinOp combines a RegexEntry's match result into the running sum.
type JoinOp int

const (
	JoinAnd JoinOp = iota
	JoinOr
	JoinNand
	JoinNor
	JoinXor
	JoinXnor
)

// RegexEntry is one step of a regex-predicate vector.
type RegexEntry struct {
	Pattern *regexp.Regexp
	Pos     PosMode
	Index   int
	Invert  bool
	Join    JoinOp
}

// CompileRegex builds a RegexEntry from a POSIX extended regular
// expression, translating *syntax.Error into the closed REG_* error-kind
// enumeration (SPEC_FULL §7).
func CompileRegex(pattern string, pos PosMode, index int, invert bool, join JoinOp) (RegexEntry, error) {
	re, err := regexp.CompilePOSIX(pattern)
	if err != nil {
		return RegexEntry{}, errs.New(errs.FromRegexSyntaxError(err), err.Error())
	}
	return RegexEntry{Pattern: re, Pos: pos, Index: index, Invert: invert, Join: join}, nil
}

// State is one of the two independent predicate sets (AND or OR).
type State struct {
	Active Predicate

	CPUs map[tracedata.CPU]struct{}

	PIDs     map[tracedata.PID]struct{}
	Inclusive bool

	Events map[eventdict.ID]struct{}

	TimeStart, TimeEnd tracedata.Timestamp

	Regexes []RegexEntry
}

// NewState returns an empty, inactive State.
func NewState() *State {
	return &State{
		CPUs:   make(map[tracedata.CPU]struct{}),
		PIDs:   make(map[tracedata.PID]struct{}),
		Events: make(map[eventdict.ID]struct{}),
	}
}

// SetCPUs enables the CPU predicate with the given set.
func (s *State) SetCPUs(cpus ...tracedata.CPU) {
	s.CPUs = make(map[tracedata.CPU]struct{}, len(cpus))
	for _, c := range cpus {
		s.CPUs[c] = struct{}{}
	}
	s.Active |= PredCPU
}

// SetPIDs enables the PID predicate, optionally inclusive (following
// referenced PIDs in wakeup/fork/switch events).
func (s *State) SetPIDs(inclusive bool, pids ...tracedata.PID) {
	s.PIDs = make(map[tracedata.PID]struct{}, len(pids))
	for _, p := range pids {
		s.PIDs[p] = struct{}{}
	}
	s.Inclusive = inclusive
	s.Active |= PredPID
}

// SetEvents enables the event-id predicate.
func (s *State) SetEvents(ids ...eventdict.ID) {
	s.Events = make(map[eventdict.ID]struct{}, len(ids))
	for _, id := range ids {
		s.Events[id] = struct{}{}
	}
	s.Active |= PredEvent
}

// SetTimeRange enables the time-window predicate.
func (s *State) SetTimeRange(start, end tracedata.Timestamp) {
	s.TimeStart, s.TimeEnd = start, end
	s.Active |= PredTime
}

// SetRegexes enables the regex predicate.
func (s *State) SetRegexes(entries ...RegexEntry) {
	s.Regexes = entries
	s.Active |= PredRegex
}

// Clear disables every predicate.
func (s *State) Clear() {
	*s = *NewState()
}

var inclusivePidEvents = map[eventdict.ID]struct{}{
	eventdict.SchedWakeup:       {},
	eventdict.SchedWakeupNew:    {},
	eventdict.SchedWaking:       {},
	eventdict.SchedProcessFork:  {},
	eventdict.SchedSwitch:       {},
}

func referencedPIDs(pool *stringpool.Pool, ev *tracedata.Event) []tracedata.PID {
	if _, ok := inclusivePidEvents[ev.EventID]; !ok {
		return nil
	}
	var pids []tracedata.PID
	for _, key := range []string{"pid", "prev_pid", "next_pid", "child_pid"} {
		if v, ok := dialect.ArgInt(pool, ev.Argv, key); ok {
			pids = append(pids, tracedata.PID(v))
		}
	}
	return pids
}

// matches reports whether ev satisfies every predicate enabled in s, when
// and is true (AND-set semantics); when and is false, it reports whether
// any enabled predicate matches (OR-set semantics).
func (s *State) matches(pool *stringpool.Pool, ev *tracedata.Event, and bool) bool {
	if s.Active == 0 {
		return false
	}
	checks := []struct {
		enabled bool
		ok      bool
	}{
		{s.Active&PredCPU != 0, s.matchCPU(ev)},
		{s.Active&PredPID != 0, s.matchPID(pool, ev)},
		{s.Active&PredEvent != 0, s.matchEvent(ev)},
		{s.Active&PredTime != 0, s.matchTime(ev)},
		{s.Active&PredRegex != 0, s.matchRegex(pool, ev)},
	}
	any := false
	for _, c := range checks {
		if !c.enabled {
			continue
		}
		any = true
		if and && !c.ok {
			return false
		}
		if !and && c.ok {
			return true
		}
	}
	if and {
		return any
	}
	return false
}

func (s *State) matchCPU(ev *tracedata.Event) bool {
	_, ok := s.CPUs[ev.CPU]
	return ok
}

func (s *State) matchPID(pool *stringpool.Pool, ev *tracedata.Event) bool {
	if _, ok := s.PIDs[ev.PID]; ok {
		return true
	}
	if !s.Inclusive {
		return false
	}
	for _, pid := range referencedPIDs(pool, ev) {
		if _, ok := s.PIDs[pid]; ok {
			return true
		}
	}
	return false
}

func (s *State) matchEvent(ev *tracedata.Event) bool {
	_, ok := s.Events[ev.EventID]
	return ok
}

func (s *State) matchTime(ev *tracedata.Event) bool {
	return ev.Time >= s.TimeStart && ev.Time <= s.TimeEnd
}

func (s *State) matchRegex(pool *stringpool.Pool, ev *tracedata.Event) bool {
	sum := true
	lastMatch := -1
	for _, re := range s.Regexes {
		matched, at := matchRegexEntry(pool, ev, re, lastMatch)
		if matched {
			lastMatch = at
		}
		if re.Invert {
			matched = !matched
		}
		sum = joinResult(re.Join, sum, matched)
	}
	return sum
}

func matchRegexEntry(pool *stringpool.Pool, ev *tracedata.Event, re RegexEntry, lastMatch int) (bool, int) {
	switch re.Pos {
	case PosAbsolute:
		if re.Index < 0 || re.Index >= len(ev.Argv) {
			return false, lastMatch
		}
		if re.Pattern.MatchString(pool.String(ev.Argv[re.Index])) {
			return true, re.Index
		}
		return false, lastMatch
	case PosRelative:
		idx := lastMatch + re.Index
		if idx < 0 || idx >= len(ev.Argv) {
			return false, lastMatch
		}
		if re.Pattern.MatchString(pool.String(ev.Argv[idx])) {
			return true, idx
		}
		return false, lastMatch
	default: // PosAny
		for i, ref := range ev.Argv {
			if re.Pattern.MatchString(pool.String(ref)) {
				return true, i
			}
		}
		return false, lastMatch
	}
}

func joinResult(op JoinOp, sum, v bool) bool {
	switch op {
	case JoinAnd:
		return sum && v
	case JoinOr:
		return sum || v
	case JoinNand:
		return !(sum && v)
	case JoinNor:
		return !(sum || v)
	case JoinXor:
		return sum != v
	case JoinXnor:
		return sum == v
	default:
		return sum
	}
}

// Engine materializes filtered views of a Collection's events, caching
// results keyed by the (and, or) State pair's content hash.
type Engine struct {
	coll  *tracedata.Collection
	And   *State
	Or    *State
	cache *lru.LRU
}

// DefaultCacheSize bounds the number of distinct filter materializations
// kept resident at once.
const DefaultCacheSize = 16

// NewEngine constructs a filter Engine over coll.
func NewEngine(coll *tracedata.Collection) *Engine {
	cache, _ := lru.NewLRU(DefaultCacheSize, nil)
	return &Engine{
		coll:  coll,
		And:   NewState(),
		Or:    NewState(),
		cache: cache,
	}
}

// Materialize walks the event list once, returning the indices of events
// that pass the OR-set (short-circuiting) or, failing that, the AND-set.
// Results are cached by the current (And, Or) state's structural key.
func (e *Engine) Materialize() []int {
	key := e.stateKey()
	if v, ok := e.cache.Get(key); ok {
		return v.([]int)
	}
	var out []int
	for i := 0; i < e.coll.Len(); i++ {
		ev := e.coll.EventByIndex(i)
		if e.Or.Active != 0 && e.Or.matches(e.coll.Strings, ev, false) {
			out = append(out, i)
			continue
		}
		if e.And.Active != 0 && e.And.matches(e.coll.Strings, ev, true) {
			out = append(out, i)
		}
	}
	e.cache.Add(key, out)
	return out
}
