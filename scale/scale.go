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
// Package scale applies affine transforms to displayed series (CPU
// frequency, CPU idle, and per-task scheduling/running/preempted/
// uninterruptible/delay vectors) using a fixed-size worker pool, per
// SPEC_FULL §4.10.
package scale

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// FallbackWorkers is used when the host's logical CPU count can't be
// determined.
const FallbackWorkers = 6

// Unit is one independent scaling job: transform Raw into Scaled in
// place, scaled[i] = raw[i] * Scale + Offset.
type Unit struct {
	Raw    []int64
	Scaled []float64
	Scale  float64
	Offset float64
}

// Apply performs this unit's affine transform.
func (u *Unit) Apply() {
	if len(u.Scaled) < len(u.Raw) {
		u.Scaled = make([]float64, len(u.Raw))
	}
	for i, v := range u.Raw {
		u.Scaled[i] = float64(v)*u.Scale + u.Offset
	}
}

// Workers returns the pool size to use: runtime.NumCPU(), or
// FallbackWorkers if that reports a nonsensical value.
func Workers() int {
	n := runtime.NumCPU()
	if n <= 0 {
		return FallbackWorkers
	}
	return n
}

// Run drains units across a worker pool sized by Workers(), returning once
// every unit has completed (or the first error/cancellation aborts the
// rest, though Unit.Apply itself cannot fail).
func Run(units []*Unit) {
	if len(units) == 0 {
		return
	}
	n := Workers()
	if n > len(units) {
		n = len(units)
	}
	var eg errgroup.Group
	jobs := make(chan *Unit)
	for w := 0; w < n; w++ {
		eg.Go(func() error {
			for u := range jobs {
				u.Apply()
			}
			return nil
		})
	}
	for _, u := range units {
		jobs <- u
	}
	close(jobs)
	eg.Wait()
}
