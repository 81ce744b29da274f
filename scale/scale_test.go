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
package scale

import "testing"

func TestUnitApply(t *testing.T) {
	u := &Unit{Raw: []int64{0, 1, 2, 3}, Scale: 2, Offset: 1}
	u.Apply()
	want := []float64{1, 3, 5, 7}
	for i, v := range want {
		if u.Scaled[i] != v {
			t.Errorf("Scaled[%d] = %v, want %v", i, u.Scaled[i], v)
		}
	}
}

func TestRunManyUnits(t *testing.T) {
	units := make([]*Unit, 50)
	for i := range units {
		units[i] = &Unit{Raw: []int64{int64(i)}, Scale: 1, Offset: 0}
	}
	Run(units)
	for i, u := range units {
		if u.Scaled[0] != float64(i) {
			t.Errorf("unit %d Scaled[0] = %v, want %v", i, u.Scaled[0], i)
		}
	}
}

func TestWorkersPositive(t *testing.T) {
	if got := Workers(); got <= 0 {
		t.Errorf("Workers() = %d, want > 0", got)
	}
}
