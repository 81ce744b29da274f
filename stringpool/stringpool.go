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
// Package stringpool provides an interned string arena for the short,
// heavily-repeated strings that appear all over a trace: task names,
// argument tokens, and event-name tokens. Strings are deduplicated by
// content; a Ref returned from Intern stays valid until the pool is Reset.
package stringpool

import (
	"bytes"

	"github.com/cunctator/traceshark-sub002/chunklist"
)

// Ref is an opaque reference to an interned string. The zero Ref refers to
// the empty string only if it happens to be interned at index 0; callers
// should treat Ref as meaningless outside the Pool that produced it.
type Ref int32

const numBuckets = 1024

// bucket owns one slot of the pool's hash table plus its one-cache-line
// short-string fast path.
type bucket struct {
	entries map[string]Ref

	cachedBytes []byte
	cachedRef   Ref
	hasCache    bool

	allocs int
	reuses int
	// fallthrough is set once this bucket has given up on deduplication
	// (see cutoff in Intern) and is storing strings without hash insertion.
	fallthrough_ bool
}

// Pool is an arena of interned strings, deduplicated by content. Pool is not
// safe for concurrent use; the core's parser thread owns it exclusively
// during parsing, and the analyzer thread owns it exclusively thereafter
// (see SPEC_FULL.md's concurrency model).
type Pool struct {
	arena   *chunklist.List[string]
	buckets [numBuckets]bucket
}

// New returns an empty Pool.
func New() *Pool {
	p := &Pool{arena: chunklist.New[string]()}
	for i := range p.buckets {
		p.buckets[i].entries = make(map[string]Ref)
	}
	return p
}

// hash computes the compact bucket hash described in SPEC_FULL §4.1: the
// first byte, and, for strings of length >= 4, the packed last three bytes.
func hash(b []byte) uint32 {
	if len(b) == 0 {
		return 0
	}
	h := uint32(b[0])
	if len(b) >= 4 {
		n := len(b)
		h |= uint32(b[n-3]) << 8
		h |= uint32(b[n-2]) << 16
		h |= uint32(b[n-1]) << 24
	}
	return h
}

// Intern returns a Ref to a copy of data owned by the pool, reusing an
// existing copy if an identical string has already been interned in data's
// bucket. cutoff, when non-zero, caps how many distinct allocations a single
// bucket may make before dedup is abandoned for that bucket in favor of raw
// allocation speed (see SPEC_FULL §4.1).
func (p *Pool) Intern(data []byte, cutoff int) Ref {
	b := &p.buckets[hash(data)%numBuckets]

	// Fast path: the bucket's one-cache-line short-string cache.
	if b.hasCache && bytes.Equal(b.cachedBytes, data) {
		b.reuses++
		return b.cachedRef
	}

	if b.fallthrough_ {
		ref := Ref(p.arena.Append(string(data)))
		b.updateCache(data, ref)
		return ref
	}

	if ref, ok := b.entries[string(data)]; ok {
		b.reuses++
		b.updateCache(data, ref)
		return ref
	}

	ref := Ref(p.arena.Append(string(data)))
	b.entries[string(data)] = ref
	b.allocs++
	b.updateCache(data, ref)

	if cutoff > 0 && b.allocs > cutoff && b.reuses < b.allocs {
		b.fallthrough_ = true
		b.entries = nil
	}
	return ref
}

func (b *bucket) updateCache(data []byte, ref Ref) {
	b.cachedBytes = append(b.cachedBytes[:0], data...)
	b.cachedRef = ref
	b.hasCache = true
}

// InternString is a convenience wrapper around Intern for callers that
// already hold a Go string rather than a byte slice.
func (p *Pool) InternString(s string, cutoff int) Ref {
	return p.Intern([]byte(s), cutoff)
}

// String returns the string referred to by ref. It panics if ref did not
// come from this Pool since its last Reset.
func (p *Pool) String(ref Ref) string {
	return *p.arena.At(int(ref))
}

// Reset drops all interned strings. Every Ref previously returned by this
// Pool becomes invalid.
func (p *Pool) Reset() {
	p.arena.Clear()
	for i := range p.buckets {
		p.buckets[i] = bucket{entries: make(map[string]Ref)}
	}
}

// Len returns the number of distinct strings currently owned by the arena
// (not the number of Intern calls, which may have deduplicated).
func (p *Pool) Len() int {
	return p.arena.Size()
}
