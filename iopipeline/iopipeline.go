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
// Package iopipeline implements the three-stage double-buffered ingestion
// pipeline of SPEC_FULL §4.4: a loader goroutine that owns the file
// descriptor, a tokenizer/parser goroutine that walks each loaded buffer
// producing trace events, and the caller, which consumes tokenized buffers
// in file order and folds their events into a tracedata.Collection.
//
// The three stages are expressed with a fixed ring of bufferState values
// guarded by sync.Cond, standing in for the condition-variable double
// buffer of the originating C++ implementation; the loader and tokenizer
// goroutines themselves are supervised by an errgroup.Group so that either
// stage's error or the caller's context cancellation unwinds the whole
// pipeline.
package iopipeline

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/cunctator/traceshark-sub002/dialect"
	"github.com/cunctator/traceshark-sub002/errs"
	"github.com/cunctator/traceshark-sub002/tracedata"
)

// DefaultBufferSize is the byte size of each ring buffer's read chunk.
const DefaultBufferSize = 1 << 20

// DefaultRingSize is the number of buffers sharing the ring, bounding how
// much I/O may run ahead of tokenization/parsing.
const DefaultRingSize = 4

type bufferState int

const (
	stateEmpty bufferState = iota
	stateLoaded
	stateTokenized
)

// parsedLine is the outcome of running both (or the decided) grammars
// against one tokenized line.
type parsedLine struct {
	event   tracedata.Event
	dialect dialect.Dialect
	ok      bool
}

type ringBuffer struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state bufferState
	data  []byte
	eof   bool
	lines []parsedLine
}

func newRingBuffer(size int) *ringBuffer {
	rb := &ringBuffer{data: make([]byte, 0, size)}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

func (rb *ringBuffer) waitFor(want bufferState) {
	rb.mu.Lock()
	for rb.state != want {
		rb.cond.Wait()
	}
	rb.mu.Unlock()
}

func (rb *ringBuffer) setState(s bufferState) {
	rb.mu.Lock()
	rb.state = s
	rb.mu.Unlock()
	rb.cond.Broadcast()
}

// Options configures a Pipeline.
type Options struct {
	BufferSize int
	RingSize   int
	// ConfidenceFactor is passed to the dialect voter; zero selects
	// dialect.DefaultConfidenceFactor.
	ConfidenceFactor int
	// ForceDialect, if not dialect.Unknown, skips voting entirely and
	// parses every line against only this dialect's grammar.
	ForceDialect dialect.Dialect
}

// Pipeline drives a single pass over r, populating coll with parsed events.
type Pipeline struct {
	opts    Options
	buffers []*ringBuffer
	voter   *dialect.Voter
}

// New constructs a Pipeline with opts, filling in defaults for zero fields.
func New(opts Options) *Pipeline {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.RingSize < 2 {
		opts.RingSize = DefaultRingSize
	}
	p := &Pipeline{
		opts:  opts,
		voter: dialect.NewVoter(opts.ConfidenceFactor),
	}
	p.buffers = make([]*ringBuffer, opts.RingSize)
	for i := range p.buffers {
		p.buffers[i] = newRingBuffer(opts.BufferSize)
	}
	return p
}

// Run reads r to completion, tokenizing and parsing each line into coll.
// It returns the dialect the voter ultimately settled on.
func (p *Pipeline) Run(ctx context.Context, r io.Reader, coll *tracedata.Collection) (dialect.Dialect, error) {
	eg, ctx := errgroup.WithContext(ctx)
	n := len(p.buffers)

	eg.Go(func() error {
		return p.load(ctx, r, n)
	})
	eg.Go(func() error {
		return p.tokenizeAndParse(ctx, n, coll)
	})

	if err := p.consume(ctx, n, coll); err != nil {
		return dialect.Unknown, err
	}
	if err := eg.Wait(); err != nil {
		return dialect.Unknown, err
	}
	if p.opts.ForceDialect != dialect.Unknown {
		return p.opts.ForceDialect, nil
	}
	return p.voter.Finalize(), nil
}

// load is the loader stage: it owns r, fills buffers in ring order, and
// carries unterminated tails forward to the next buffer.
func (p *Pipeline) load(ctx context.Context, r io.Reader, n int) error {
	var carry []byte
	br := bufio.NewReaderSize(r, p.opts.BufferSize)
	for i := 0; ; i = (i + 1) % n {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rb := p.buffers[i]
		rb.waitFor(stateEmpty)

		chunk := make([]byte, p.opts.BufferSize)
		nRead, readErr := io.ReadFull(br, chunk)
		if nRead > 0 || len(carry) > 0 {
			data := append(append([]byte(nil), carry...), chunk[:nRead]...)
			last := lastNewline(data)
			var tail []byte
			if last < len(data)-1 {
				tail = append([]byte(nil), data[last+1:]...)
				data = data[:last+1]
			}
			carry = tail
			rb.mu.Lock()
			rb.data = data
			rb.eof = false
			rb.mu.Unlock()
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			rb.mu.Lock()
			if len(carry) > 0 {
				rb.data = append(rb.data, carry...)
				carry = nil
			}
			rb.eof = true
			rb.mu.Unlock()
			rb.setState(stateLoaded)
			glog.V(1).Info("iopipeline: loader reached EOF")
			return nil
		}
		if readErr != nil {
			return errs.Errorf(errs.FILE_READ, "iopipeline: read failed: %v", readErr)
		}
		rb.setState(stateLoaded)
	}
}

func lastNewline(data []byte) int {
	for i := len(data) - 1; i >= 0; i-- {
		if data[i] == '\n' {
			return i
		}
	}
	return -1
}

// tokenizeAndParse is the tokenizer/parser stage: for each loaded buffer in
// ring order, it splits lines into whitespace tokens and runs the dialect
// grammars (both, until the voter decides; only the decided one after),
// interning strings directly into coll. Only this goroutine ever writes to
// coll.Strings and coll.Dict, so no locking is needed around them.
func (p *Pipeline) tokenizeAndParse(ctx context.Context, n int, coll *tracedata.Collection) error {
	for i := 0; ; i = (i + 1) % n {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rb := p.buffers[i]
		rb.waitFor(stateLoaded)

		rb.mu.Lock()
		data := rb.data
		eof := rb.eof
		rb.mu.Unlock()

		var lines []parsedLine
		for _, rawLine := range splitLines(data) {
			tokens := strings.Fields(rawLine)
			if len(tokens) == 0 {
				continue
			}
			want := p.opts.ForceDialect
			if want == dialect.Unknown {
				if d, decided := p.voter.Decided(); decided {
					want = d
				}
			}
			ev, matched, ok := dialect.Parse(want, tokens, coll)
			if !ok {
				glog.V(1).Infof("iopipeline: unparsed line %q", rawLine)
				continue
			}
			p.voter.Observe(matched)
			lines = append(lines, parsedLine{event: ev, dialect: matched, ok: true})
		}

		rb.mu.Lock()
		rb.lines = lines
		rb.mu.Unlock()
		rb.setState(stateTokenized)
		if eof {
			return nil
		}
	}
}

func splitLines(data []byte) []string {
	s := string(data)
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// consume drains tokenized buffers in ring order, appending their already
// parsed events to coll.Events, then frees each buffer back to EMPTY.
func (p *Pipeline) consume(ctx context.Context, n int, coll *tracedata.Collection) error {
	for i := 0; ; i = (i + 1) % n {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rb := p.buffers[i]
		rb.waitFor(stateTokenized)

		rb.mu.Lock()
		lines := rb.lines
		eof := rb.eof
		rb.mu.Unlock()

		for _, line := range lines {
			ev := line.event
			ev.Index = coll.Events.Size()
			coll.Events.Append(ev)
		}

		rb.mu.Lock()
		rb.data = rb.data[:0]
		rb.lines = nil
		rb.mu.Unlock()
		rb.setState(stateEmpty)

		if eof {
			return nil
		}
	}
}
