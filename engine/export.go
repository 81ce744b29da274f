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
package engine

import (
	"os"

	"github.com/cunctator/traceshark-sub002/analysis"
	"github.com/cunctator/traceshark-sub002/errs"
	"github.com/cunctator/traceshark-sub002/export"
)

// ExportTrace writes the trace, or its currently filtered view if a filter
// is active, to outPath in mode. It reopens the source file read-only and
// checks it against the snapshot captured at Open time, aborting with
// FILECHANGED if the file no longer matches.
func (e *Engine) ExportTrace(outPath string, mode export.Mode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	src, err := os.Open(e.path)
	if err != nil {
		return errs.Errorf(errs.OPEN, "engine: reopen %s: %v", e.path, err)
	}
	defer src.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return errs.Errorf(errs.OPEN, "engine: create %s: %v", outPath, err)
	}
	defer out.Close()

	indices := e.indicesForExport()
	return export.ExportEventsFromFile(out, e.coll, indices, mode, src, e.path, e.snap)
}

// ExportLatencies writes lat (e.g. e.SchedLatencies() or e.WakeLatencies())
// to outPath in the given format.
func (e *Engine) ExportLatencies(outPath string, lat []analysis.Latency, format export.LatencyFormat) error {
	out, err := os.Create(outPath)
	if err != nil {
		return errs.Errorf(errs.OPEN, "engine: create %s: %v", outPath, err)
	}
	defer out.Close()
	return export.ExportLatencies(out, e.coll, e.analyzer, lat, format)
}

func (e *Engine) indicesForExport() []int {
	if e.filterEng.And.Active == 0 && e.filterEng.Or.Active == 0 {
		return nil
	}
	return e.filterEng.Materialize()
}
