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

import "strings"

// SleepState is a bitmask of the flags carried by a sched_switch event's
// prev_state field, per SPEC_FULL §4.5.
type SleepState uint16

const (
	Runnable SleepState = 1 << iota
	Interruptible
	Uninterruptible
	Stopped
	Traced
	ExitDead
	ExitZombie
	Dead
	WakeKill
	Waking
	Parked
	NoLoad
	Preempt
)

var sleepStateChars = map[byte]SleepState{
	'R': Runnable,
	'S': Interruptible,
	'D': Uninterruptible,
	'T': Stopped,
	't': Traced,
	'X': ExitDead,
	'Z': ExitZombie,
	'x': Dead,
	'K': WakeKill,
	'W': Waking,
	'P': Parked,
	'N': NoLoad,
	'+': Preempt,
	'I': Runnable, // idle/runnable-without-load variant, treated as runnable.
}

// ParseSleepState decodes a prev_state field such as "S" or "R+" (possibly
// '|'-separated) into the corresponding SleepState bitmask.
func ParseSleepState(s string) SleepState {
	var state SleepState
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		for i := 0; i < len(part); i++ {
			if flag, ok := sleepStateChars[part[i]]; ok {
				state |= flag
			}
		}
	}
	return state
}

// IsRunnable reports whether s has the Runnable bit set (other bits are
// not consulted) -- i.e. the outgoing task in a sched_switch should be
// resumed as WAITING rather than SLEEPING (SPEC_FULL §4.7 step 4).
func (s SleepState) IsRunnable() bool {
	return s&Runnable != 0
}

// IsUninterruptible reports whether s has the Uninterruptible bit set.
func (s SleepState) IsUninterruptible() bool {
	return s&Uninterruptible != 0
}

// IsPreempted reports whether s carries the preemption flag.
func (s SleepState) IsPreempted() bool {
	return s&Preempt != 0
}
