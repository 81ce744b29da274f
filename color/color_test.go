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
package color

import (
	"testing"

	"github.com/cunctator/traceshark-sub002/tracedata"
)

func TestAssignDeterministic(t *testing.T) {
	pids := []tracedata.PID{100, 200, 300, 400}
	a := Assign(pids)
	b := Assign(pids)
	for _, pid := range pids {
		if a[pid] != b[pid] {
			t.Errorf("pid %d: a=%v b=%v, want identical across runs", pid, a[pid], b[pid])
		}
	}
}

func TestAssignAllPidsColored(t *testing.T) {
	pids := []tracedata.PID{1, 2, 3}
	a := Assign(pids)
	if len(a) != len(pids) {
		t.Errorf("Assign() produced %d colors, want %d", len(a), len(pids))
	}
}

func TestPaletteExcludesBlackAndWhite(t *testing.T) {
	palette := Palette(50)
	for _, c := range palette {
		if c == black {
			t.Errorf("palette contains pure black")
		}
		if c == white {
			t.Errorf("palette contains pure white")
		}
	}
}
