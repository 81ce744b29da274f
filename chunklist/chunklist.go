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
// Package chunklist provides a large-capacity, append-only, segmented
// container that never moves an element once appended. It backs the trace
// event list, the filtered-pointer list, and the latency lists -- anywhere
// callers hold onto indices or addresses across further appends.
package chunklist

// BlockSize is the number of elements per backing block. Indexing splits an
// index into a block number and an intra-block offset; blocks are allocated
// lazily, on first write past the end of the previously-allocated blocks.
const BlockSize = 1 << 20

// List is a segmented array of T. The zero value is an empty, usable List.
// A List must not be copied after first use.
type List[T any] struct {
	blocks [][]T
	size   int
}

// New returns an empty List of T.
func New[T any]() *List[T] {
	return &List[T]{}
}

// Size returns the number of committed elements in the list.
func (l *List[T]) Size() int {
	return l.size
}

// At returns a pointer to the ith element. It panics if i is out of range,
// matching slice-indexing semantics.
func (l *List[T]) At(i int) *T {
	if i < 0 || i >= l.size {
		panic("chunklist: index out of range")
	}
	block, offset := i/BlockSize, i%BlockSize
	return &l.blocks[block][offset]
}

// Last returns a pointer to the final committed element, or nil if the list
// is empty.
func (l *List[T]) Last() *T {
	if l.size == 0 {
		return nil
	}
	return l.At(l.size - 1)
}

// growTo ensures enough blocks are mapped to hold index i.
func (l *List[T]) growTo(i int) {
	block := i / BlockSize
	for len(l.blocks) <= block {
		l.blocks = append(l.blocks, make([]T, BlockSize))
	}
}

// ReserveBack grows the list by one element, in place, and returns a pointer
// to it for direct construction. The element is not visible to At/Size/Last
// until Commit is called; this lets a caller populate a large struct
// in-place rather than constructing it on the stack and copying it in.
func (l *List[T]) ReserveBack() *T {
	l.growTo(l.size)
	block, offset := l.size/BlockSize, l.size%BlockSize
	return &l.blocks[block][offset]
}

// Commit advances the list's size to include the most recently reserved
// element. It must be called exactly once per ReserveBack call, after the
// reserved element has been populated.
func (l *List[T]) Commit() {
	l.size++
}

// Append adds value to the end of the list, returning its index.
func (l *List[T]) Append(value T) int {
	idx := l.size
	*l.ReserveBack() = value
	l.Commit()
	return idx
}

// Clear drops all elements from the list. Previously returned pointers
// become invalid.
func (l *List[T]) Clear() {
	l.blocks = nil
	l.size = 0
}

// Each calls f for every committed element, in order, stopping early if f
// returns false.
func (l *List[T]) Each(f func(i int, v *T) bool) {
	for i := 0; i < l.size; i++ {
		if !f(i, l.At(i)) {
			return
		}
	}
}
