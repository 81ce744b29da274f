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

// DefaultConfidenceFactor is the vote-margin multiple at which a dialect is
// declared the winner outright, per SPEC_FULL §4.6.
const DefaultConfidenceFactor = 100

// Voter accumulates per-dialect match counts while the iopipeline's parser
// stage probes early lines against both grammars, and resolves which
// dialect the rest of the file should be parsed as.
type Voter struct {
	confidenceFactor int
	counts           [3]int // indexed by Dialect
	decided          Dialect
}

// NewVoter constructs a Voter using factor as the confidence multiple, or
// DefaultConfidenceFactor if factor <= 0.
func NewVoter(factor int) *Voter {
	if factor <= 0 {
		factor = DefaultConfidenceFactor
	}
	return &Voter{confidenceFactor: factor}
}

// Observe records that a line matched which (KernelRing or
// SamplingProfiler). Unknown is ignored.
func (v *Voter) Observe(which Dialect) {
	if v.decided != Unknown {
		return
	}
	if which != KernelRing && which != SamplingProfiler {
		return
	}
	v.counts[which]++
	v.tryDecide()
}

func (v *Voter) tryDecide() {
	kr, sp := v.counts[KernelRing], v.counts[SamplingProfiler]
	if kr > 0 && sp >= kr*v.confidenceFactor {
		v.decided = SamplingProfiler
	} else if sp > 0 && kr >= sp*v.confidenceFactor {
		v.decided = KernelRing
	}
}

// Decided reports the dialect the voter has committed to, if any. Once
// Decided returns true, further Observe calls are no-ops.
func (v *Voter) Decided() (Dialect, bool) {
	return v.decided, v.decided != Unknown
}

// Finalize forces a decision at end-of-file: whichever dialect has more
// votes wins; a tie (including 0-0) resolves to SamplingProfiler, per
// SPEC_FULL §4.6.
func (v *Voter) Finalize() Dialect {
	if v.decided != Unknown {
		return v.decided
	}
	kr, sp := v.counts[KernelRing], v.counts[SamplingProfiler]
	if kr > sp {
		v.decided = KernelRing
	} else {
		v.decided = SamplingProfiler
	}
	return v.decided
}

// Counts returns the current (kernelRing, samplingProfiler) vote tallies,
// primarily for testing and diagnostics.
func (v *Voter) Counts() (kernelRing, samplingProfiler int) {
	return v.counts[KernelRing], v.counts[SamplingProfiler]
}
