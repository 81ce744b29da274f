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
// Package export reconstructs trace lines and writes latency reports, per
// SPEC_FULL §4.11.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/cunctator/traceshark-sub002/analysis"
	"github.com/cunctator/traceshark-sub002/errs"
	"github.com/cunctator/traceshark-sub002/eventdict"
	"github.com/cunctator/traceshark-sub002/tracedata"
)

// WriteBufferSize approximates sysconf(pagesize) x 256, the large
// in-memory buffer every export write goes through.
const WriteBufferSize = 4096 * 256

// Mode selects the event-export mode.
type Mode int

const (
	ModeAll Mode = iota
	ModeCPUCycles
)

// FileSnapshot captures the size/mtime pair used by IsIntact to detect
// whether the source file changed since it was opened.
type FileSnapshot struct {
	Size    int64
	ModTime int64 // unix nanoseconds
}

// Snapshot stats path and returns its current FileSnapshot.
func Snapshot(path string) (FileSnapshot, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return FileSnapshot{}, errs.Errorf(errs.FILE_RESOURCE, "export: stat %s: %v", path, err)
	}
	return FileSnapshot{Size: fi.Size(), ModTime: fi.ModTime().UnixNano()}, nil
}

// IsIntact reports whether path's current size/mtime match snap.
func IsIntact(path string, snap FileSnapshot) (bool, error) {
	cur, err := Snapshot(path)
	if err != nil {
		return false, err
	}
	return cur == snap, nil
}

// reconstructLine rebuilds a space-separated line in the source dialect's
// format: "<name>-<pid> [<cpu>] <time>: <event>: <argv...>" for
// kernel-ring events, or "<name> <pid> [<cpu>] <time>: [<arg>] <event>:
// <argv...>" for sampling-profiler events (HasArg true).
func reconstructLine(coll *tracedata.Collection, ev *tracedata.Event) string {
	var b strings.Builder
	name := coll.Strings.String(ev.Task)
	evName, _ := coll.Dict.Lookup(ev.EventID)

	if ev.HasArg {
		fmt.Fprintf(&b, "%s %d [%03d] %s: [%d] %s:", name, ev.PID, ev.CPU, ev.Time.String(), ev.Arg, evName)
	} else {
		fmt.Fprintf(&b, "%s-%d [%03d] %s: %s:", name, ev.PID, ev.CPU, ev.Time.String(), evName)
	}
	for _, ref := range ev.Argv {
		b.WriteByte(' ')
		b.WriteString(coll.Strings.String(ref))
	}
	return b.String()
}

// ExportEvents writes every event in indices (or, if indices is nil,
// every event in coll) as a reconstructed line, through a buffered writer.
// Captured post-event annotation bytes are not written; see
// ExportEventsFromFile.
func ExportEvents(w io.Writer, coll *tracedata.Collection, indices []int, mode Mode) error {
	bw := bufio.NewWriterSize(w, WriteBufferSize)

	var cpuCyclesID eventdict.ID = -1
	if mode == ModeCPUCycles {
		var found bool
		for id := eventdict.ID(0); id <= coll.Dict.MaxID(); id++ {
			name, ok := coll.Dict.Lookup(id)
			if ok && (name == "cpu-cycles" || name == "cycles") {
				cpuCyclesID = id
				found = true
				break
			}
		}
		if !found {
			return errs.New(errs.NOCPUEV, "export: no cpu-cycles/cycles event in dictionary")
		}
	}

	emit := func(i int) error {
		ev := coll.EventByIndex(i)
		if mode == ModeCPUCycles && ev.EventID != cpuCyclesID {
			return nil
		}
		if _, err := bw.WriteString(reconstructLine(coll, ev)); err != nil {
			return err
		}
		return bw.WriteByte('\n')
	}

	if indices != nil {
		for _, i := range indices {
			if err := retryWrite(func() error { return emit(i) }); err != nil {
				return errs.Errorf(errs.FILE_WRITE, "export: write failed: %v", err)
			}
		}
	} else {
		for i := 0; i < coll.Len(); i++ {
			if err := retryWrite(func() error { return emit(i) }); err != nil {
				return errs.Errorf(errs.FILE_WRITE, "export: write failed: %v", err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return errs.Errorf(errs.FILE_WRITE, "export: flush failed: %v", err)
	}
	return nil
}

// ExportEventsFromFile is ExportEvents, but also copies each event's
// captured post-event annotation bytes verbatim from src, which must be
// the same file the trace was originally parsed from. It aborts with
// FILECHANGED if src no longer matches snap.
func ExportEventsFromFile(w io.Writer, coll *tracedata.Collection, indices []int, mode Mode, src *os.File, path string, snap FileSnapshot) error {
	if ok, err := IsIntact(path, snap); err != nil {
		return err
	} else if !ok {
		return errs.New(errs.FILECHANGED, "export: "+path+" changed since it was opened")
	}

	bw := bufio.NewWriterSize(w, WriteBufferSize)
	ids := indices
	if ids == nil {
		ids = make([]int, coll.Len())
		for i := range ids {
			ids[i] = i
		}
	}
	for _, i := range ids {
		ev := coll.EventByIndex(i)
		if mode == ModeCPUCycles {
			name, _ := coll.Dict.Lookup(ev.EventID)
			if name != "cpu-cycles" && name != "cycles" {
				continue
			}
		}
		if err := retryWrite(func() error { _, err := bw.WriteString(reconstructLine(coll, ev)); return err }); err != nil {
			return errs.Errorf(errs.FILE_WRITE, "export: write failed: %v", err)
		}
		if ev.HasAnnotation && ev.Annotation.Length > 0 {
			buf := make([]byte, ev.Annotation.Length)
			if _, err := src.ReadAt(buf, ev.Annotation.Offset); err != nil {
				return errs.Errorf(errs.FILE_READ, "export: annotation read failed: %v", err)
			}
			if err := retryWrite(func() error { _, err := bw.Write(buf); return err }); err != nil {
				return errs.Errorf(errs.FILE_WRITE, "export: write failed: %v", err)
			}
		}
		if err := retryWrite(func() error { return bw.WriteByte('\n') }); err != nil {
			return errs.Errorf(errs.FILE_WRITE, "export: write failed: %v", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return errs.Errorf(errs.FILE_WRITE, "export: flush failed: %v", err)
	}
	return nil
}

// retryWrite retries fn while it reports an interrupted-syscall error,
// mirroring the source trace tool's EINTR-retrying writes.
func retryWrite(fn func() error) error {
	for {
		err := fn()
		if err == nil || !errors.Is(err, syscall.EINTR) {
			return err
		}
	}
}

// LatencyFormat selects the separator used by ExportLatencies.
type LatencyFormat int

const (
	FormatCSV LatencyFormat = iota
	FormatASCII
)

func (f LatencyFormat) separator() string {
	if f == FormatCSV {
		return ";"
	}
	return " "
}

// ExportLatencies writes lat (already ranked, per analysis.rankLatencies)
// as pid;name;time;delay;place;percentile rows (or space-separated in
// ASCII mode), using an to resolve each record's task name and coll to
// resolve the owning switch event's time.
func ExportLatencies(w io.Writer, coll *tracedata.Collection, an *analysis.Analyzer, lat []analysis.Latency, format LatencyFormat) error {
	bw := bufio.NewWriterSize(w, WriteBufferSize)
	sep := format.separator()
	size := len(lat)

	for _, l := range lat {
		ev := coll.EventByIndex(l.SwitchIndex)
		pid := l.PID
		name := ""
		if task := an.Task(pid); task != nil {
			name = task.DisplayName
		}
		percentile := 100.0
		if size > 1 {
			percentile = float64(size-1-l.Place) / float64(size-1) * 100.0
		}
		cols := []string{
			fmt.Sprintf("%d", pid),
			name,
			ev.Time.String(),
			fmt.Sprintf("%d", l.Delay),
			fmt.Sprintf("%d", l.Place),
			fmt.Sprintf("%.2f", percentile),
		}
		line := strings.Join(cols, sep) + "\n"
		if err := retryWrite(func() error { _, err := bw.WriteString(line); return err }); err != nil {
			return errs.Errorf(errs.FILE_WRITE, "export: write failed: %v", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return errs.Errorf(errs.FILE_WRITE, "export: flush failed: %v", err)
	}
	return nil
}
