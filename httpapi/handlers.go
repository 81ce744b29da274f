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
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/cunctator/traceshark-sub002/color"
	"github.com/cunctator/traceshark-sub002/engine"
	"github.com/cunctator/traceshark-sub002/tracedata"
)

// openRequest is the body of a POST /traces request.
type openRequest struct {
	Path string `json:"path"`
}

// openResponse reports the handle a trace was registered under.
type openResponse struct {
	Handle    string `json:"handle"`
	TraceType string `json:"traceType"`
	NumEvents int    `json:"numEvents"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}

	e, err := engine.Open(req.Path)
	if err != nil {
		sendError(w, err)
		return
	}
	if err := e.ProcessTrace(r.Context()); err != nil {
		e.Close()
		sendError(w, err)
		return
	}

	handle := e.Handle().String()
	s.mu.Lock()
	s.traces[handle] = e
	s.mu.Unlock()

	sendJSON(w, openResponse{
		Handle:    handle,
		TraceType: e.TraceType().String(),
		NumEvents: len(e.Events()),
	})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	handle := handleParam(r)
	e, ok := s.lookup(handle)
	if !ok {
		http.Error(w, "no such trace: "+handle, http.StatusNotFound)
		return
	}
	if err := e.Close(); err != nil {
		sendError(w, err)
		return
	}
	s.mu.Lock()
	delete(s.traces, handle)
	s.mu.Unlock()
}

// infoResponse summarizes an open, processed trace.
type infoResponse struct {
	Handle    string                     `json:"handle"`
	TraceType string                     `json:"traceType"`
	NumEvents int                        `json:"numEvents"`
	Colors    map[tracedata.PID]color.RGB `json:"colors"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(handleParam(r))
	if !ok {
		http.Error(w, "no such trace: "+handleParam(r), http.StatusNotFound)
		return
	}
	sendJSON(w, infoResponse{
		Handle:    e.Handle().String(),
		TraceType: e.TraceType().String(),
		NumEvents: len(e.Events()),
		Colors:    e.Colors(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(handleParam(r))
	if !ok {
		http.Error(w, "no such trace: "+handleParam(r), http.StatusNotFound)
		return
	}
	sendJSON(w, e.Events())
}

func (s *Server) handleFilteredEvents(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(handleParam(r))
	if !ok {
		http.Error(w, "no such trace: "+handleParam(r), http.StatusNotFound)
		return
	}
	sendJSON(w, e.FilteredEvents())
}

func (s *Server) handleMigrations(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(handleParam(r))
	if !ok {
		http.Error(w, "no such trace: "+handleParam(r), http.StatusNotFound)
		return
	}
	sendJSON(w, e.Migrations())
}

func (s *Server) handleSchedLatencies(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(handleParam(r))
	if !ok {
		http.Error(w, "no such trace: "+handleParam(r), http.StatusNotFound)
		return
	}
	sendJSON(w, e.SchedLatencies())
}

func (s *Server) handleWakeLatencies(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(handleParam(r))
	if !ok {
		http.Error(w, "no such trace: "+handleParam(r), http.StatusNotFound)
		return
	}
	sendJSON(w, e.WakeLatencies())
}

// cpuFilterRequest is the body of a POST .../filters/cpu request.
type cpuFilterRequest struct {
	CPUs []tracedata.CPU `json:"cpus"`
	Or   bool            `json:"or"`
}

func (s *Server) handleCPUFilter(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(handleParam(r))
	if !ok {
		http.Error(w, "no such trace: "+handleParam(r), http.StatusNotFound)
		return
	}
	var req cpuFilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	e.CreateCPUFilter(req.CPUs, req.Or)
	sendJSON(w, e.FilteredEvents())
}

// pidFilterRequest is the body of a POST .../filters/pid request.
type pidFilterRequest struct {
	PIDs      []tracedata.PID `json:"pids"`
	Or        bool            `json:"or"`
	Inclusive bool            `json:"inclusive"`
}

func (s *Server) handlePIDFilter(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(handleParam(r))
	if !ok {
		http.Error(w, "no such trace: "+handleParam(r), http.StatusNotFound)
		return
	}
	var req pidFilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	e.CreatePIDFilter(req.PIDs, req.Or, req.Inclusive)
	sendJSON(w, e.FilteredEvents())
}

func (s *Server) handleDisableFilters(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(handleParam(r))
	if !ok {
		http.Error(w, "no such trace: "+handleParam(r), http.StatusNotFound)
		return
	}
	e.DisableAllFilters()
}
