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
// Package httpapi is a thin read-mostly REST surface over engine.Engine.
// This file owns the mux.Router and request/response plumbing;
// handlers.go owns the per-endpoint logic.
package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	log "github.com/golang/glog"
	"github.com/gorilla/mux"

	"github.com/cunctator/traceshark-sub002/engine"
	"github.com/cunctator/traceshark-sub002/errs"
)

const err500 = "internal server error"

// Server owns every trace opened through the API, keyed by its handle.
type Server struct {
	mu     sync.Mutex
	traces map[string]*engine.Engine
	router *mux.Router
}

// NewServer constructs a Server with its routes registered.
func NewServer() *Server {
	s := &Server{
		traces: make(map[string]*engine.Engine),
	}
	r := mux.NewRouter()
	r.HandleFunc("/traces", s.handleOpen).Methods(http.MethodPost)
	r.HandleFunc("/traces/{handle}", s.handleClose).Methods(http.MethodDelete)
	r.HandleFunc("/traces/{handle}", s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/traces/{handle}/events", s.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/traces/{handle}/filtered-events", s.handleFilteredEvents).Methods(http.MethodGet)
	r.HandleFunc("/traces/{handle}/migrations", s.handleMigrations).Methods(http.MethodGet)
	r.HandleFunc("/traces/{handle}/latencies/sched", s.handleSchedLatencies).Methods(http.MethodGet)
	r.HandleFunc("/traces/{handle}/latencies/wake", s.handleWakeLatencies).Methods(http.MethodGet)
	r.HandleFunc("/traces/{handle}/filters/cpu", s.handleCPUFilter).Methods(http.MethodPost)
	r.HandleFunc("/traces/{handle}/filters/pid", s.handlePIDFilter).Methods(http.MethodPost)
	r.HandleFunc("/traces/{handle}/filters", s.handleDisableFilters).Methods(http.MethodDelete)
	s.router = r
	return s
}

// Router returns the server's mux.Router, ready to be handed to
// http.ListenAndServe or http.Handle.
func (s *Server) Router() *mux.Router { return s.router }

func (s *Server) lookup(handle string) (*engine.Engine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.traces[handle]
	return e, ok
}

func sendJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("httpapi: encode response: %v", err)
		http.Error(w, err500, http.StatusInternalServerError)
	}
}

func sendError(w http.ResponseWriter, err error) {
	log.Warningf("httpapi: request failed: %v", err)
	http.Error(w, err.Error(), statusForKind(errs.KindOf(err)))
}

// statusForKind maps the closed errs.Kind enumeration onto the nearest
// HTTP status, for callers that only understand HTTP.
func statusForKind(k errs.Kind) int {
	switch k {
	case errs.NOCPUEV, errs.EOF:
		return http.StatusNotFound
	case errs.FILECHANGED, errs.ABORT:
		return http.StatusConflict
	case errs.FILEFORMAT, errs.NEWFORMAT:
		return http.StatusUnprocessableEntity
	case errs.OPEN, errs.FILE_READ, errs.FILE_RESOURCE:
		return http.StatusBadRequest
	default:
		if k >= errs.REG_BADBR && k <= errs.REG_ESUBREG {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

func handleParam(r *http.Request) string {
	return mux.Vars(r)["handle"]
}
