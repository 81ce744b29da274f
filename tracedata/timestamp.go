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
// Package tracedata holds the small, copy-friendly types shared by every
// stage of the pipeline: Timestamp and Event.
package tracedata

import (
	"fmt"
	"strconv"
	"strings"
)

// Timestamp is a signed count of nanoseconds since some trace-relative
// epoch (usually boot, or the start of the capture). It is a semantic type,
// not an opaque float: arithmetic and comparison are defined directly on it,
// and string forms always round-trip through "SECS.NANOS".
type Timestamp int64

// UnknownTimestamp marks an unset or not-yet-known Timestamp.
const UnknownTimestamp Timestamp = -1

const nanosPerSecond = 1_000_000_000

// Add returns t+d.
func (t Timestamp) Add(d Timestamp) Timestamp {
	return t + d
}

// Sub returns t-o.
func (t Timestamp) Sub(o Timestamp) Timestamp {
	return t - o
}

// Cmp returns -1, 0, or 1 as t is less than, equal to, or greater than o.
func (t Timestamp) Cmp(o Timestamp) int {
	switch {
	case t < o:
		return -1
	case t > o:
		return 1
	default:
		return 0
	}
}

// Abs returns the absolute value of t.
func (t Timestamp) Abs() Timestamp {
	if t < 0 {
		return -t
	}
	return t
}

// Mul returns t scaled by the integer factor n.
func (t Timestamp) Mul(n int64) Timestamp {
	return Timestamp(int64(t) * n)
}

// Seconds returns t as floating-point seconds.
func (t Timestamp) Seconds() float64 {
	return float64(t) / float64(nanosPerSecond)
}

// FromSeconds builds a Timestamp from floating-point seconds.
func FromSeconds(s float64) Timestamp {
	return Timestamp(s * float64(nanosPerSecond))
}

// String formats t as "SECS.NANOS" with 9 fractional digits, the canonical
// round-trippable form.
func (t Timestamp) String() string {
	return t.Format(9)
}

// Format renders t as seconds with the given number of fractional digits,
// clamped to [0, 9].
func (t Timestamp) Format(precision int) string {
	if precision < 0 {
		precision = 0
	}
	if precision > 9 {
		precision = 9
	}
	neg := t < 0
	v := int64(t)
	if neg {
		v = -v
	}
	secs := v / nanosPerSecond
	nanos := v % nanosPerSecond
	frac := fmt.Sprintf("%09d", nanos)[:precision]
	out := strconv.FormatInt(secs, 10)
	if precision > 0 {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// ParseTimestamp parses a "SECS[.NANOS]" string, with up to 9 fractional
// digits, into a Timestamp. A trailing ':' (as seen terminating a timestamp
// token in both trace dialects) is tolerated and stripped.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ":")
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	secsPart, fracPart, hasFrac := strings.Cut(s, ".")
	if secsPart == "" {
		return 0, fmt.Errorf("tracedata: empty timestamp")
	}
	secs, err := strconv.ParseInt(secsPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("tracedata: invalid timestamp seconds %q: %w", s, err)
	}
	var nanos int64
	if hasFrac {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		} else {
			fracPart = fracPart + strings.Repeat("0", 9-len(fracPart))
		}
		nanos, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("tracedata: invalid timestamp fraction %q: %w", s, err)
		}
	}
	ts := Timestamp(secs*nanosPerSecond + nanos)
	if neg {
		ts = -ts
	}
	return ts, nil
}

// Precision returns the number of significant fractional digits in s (the
// length of its fractional part, 0 if there is none); its results can be
// combined with InferPrecision into a file-wide display precision.
func Precision(s string) int {
	s = strings.TrimSuffix(strings.TrimSpace(s), ":")
	_, frac, ok := strings.Cut(s, ".")
	if !ok {
		return 0
	}
	if len(frac) > 9 {
		return 9
	}
	return len(frac)
}
