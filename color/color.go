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
// Package color assigns a deterministic, reproducible color palette to a
// set of task pids, per SPEC_FULL §4.12. There is no third-party PRNG or
// color-space library anywhere in the retrieved corpus, so this package
// uses math/rand directly (see DESIGN.md).
package color

import (
	"math"
	"math/rand"
	"sort"

	"github.com/cunctator/traceshark-sub002/tracedata"
)

// Seed is the fixed PRNG seed that makes palette generation reproducible
// across runs.
const Seed = 290876

// RGB is a single palette entry.
type RGB struct {
	R, G, B int
}

func distSq(a, b RGB) int {
	dr, dg, db := a.R-b.R, a.G-b.G, a.B-b.B
	return dr*dr + dg*dg + db*db
}

var black = RGB{0, 0, 0}
var white = RGB{255, 255, 255}

// tooCloseToGrayDiagonal reports whether c is within the exclusion
// distance of the r==g==b diagonal.
func tooCloseToGrayDiagonal(c RGB) bool {
	// Project c onto the diagonal (1,1,1)/sqrt(3) and measure the
	// perpendicular distance, squared.
	mean := float64(c.R+c.G+c.B) / 3
	dr, dg, db := float64(c.R)-mean, float64(c.G)-mean, float64(c.B)-mean
	d := dr*dr + dg*dg + db*db
	return d < 2500
}

// Palette builds the deterministic color palette for n pids.
func Palette(n int) []RGB {
	if n <= 0 {
		return nil
	}
	s := math.Cbrt(float64(255*255*255) / float64(n) * 0.95 * 0.95)
	if s < 1 {
		s = 1
	}
	if s > 128 {
		s = 128
	}

	var palette []RGB
	for s >= 1 {
		palette = generateGrid(s)
		if len(palette) >= n {
			break
		}
		s *= 0.95
	}
	return palette
}

func generateGrid(s float64) []RGB {
	var palette []RGB
	stride := int(s)
	if stride < 1 {
		stride = 1
	}
	for r := 0; r <= 255; r += stride {
		for g := 0; g <= 255; g += stride {
			for b := 0; b <= 255; b += stride {
				c := RGB{r, g, b}
				if distSq(c, black) < 10000 {
					continue
				}
				if distSq(c, white) < 12000 {
					continue
				}
				if tooCloseToGrayDiagonal(c) {
					continue
				}
				palette = append(palette, c)
			}
		}
	}
	return palette
}

func shuffle(palette []RGB, rng *rand.Rand) {
	for i := len(palette) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		palette[i], palette[j] = palette[j], palette[i]
	}
}

// Assign returns a deterministic pid -> RGB mapping for pids, in
// insertion order, wrapping around the palette if there are more pids
// than colors.
func Assign(pids []tracedata.PID) map[tracedata.PID]RGB {
	ordered := append([]tracedata.PID(nil), pids...)
	palette := Palette(len(ordered))
	if len(palette) == 0 {
		return map[tracedata.PID]RGB{}
	}
	rng := rand.New(rand.NewSource(Seed))
	shuffle(palette, rng)

	out := make(map[tracedata.PID]RGB, len(ordered))
	for i, pid := range ordered {
		out[pid] = palette[i%len(palette)]
	}
	return out
}

// SortedPIDs returns pids sorted ascending, a convenience for callers that
// want a stable insertion order before calling Assign.
func SortedPIDs(pids []tracedata.PID) []tracedata.PID {
	out := append([]tracedata.PID(nil), pids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
