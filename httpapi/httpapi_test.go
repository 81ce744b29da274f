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
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const trace = `          <idle>-0     [000] d..3  1000.000000: sched_wakeup: comm=task-a pid=100 prio=120 success=1 target_cpu=000
          <idle>-0     [000] d..3  1000.000001: sched_switch: prev_comm=swapper/0 prev_pid=0 prev_prio=120 prev_state=R ==> next_comm=task-a next_pid=100 next_prio=120
             task-a-100   [000] d..3  1000.000050: sched_switch: prev_comm=task-a prev_pid=100 prev_prio=120 prev_state=S ==> next_comm=swapper/0 next_pid=0 next_prio=120
`

func writeTraceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.txt")
	if err := os.WriteFile(path, []byte(trace), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	s := NewServer()
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts, writeTraceFile(t)
}

func openTrace(t *testing.T, baseURL, path string) openResponse {
	t.Helper()
	body, err := json.Marshal(openRequest{Path: path})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	res, err := http.Post(baseURL+"/traces", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /traces error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		b, _ := ioutil.ReadAll(res.Body)
		t.Fatalf("POST /traces status = %d, body = %s", res.StatusCode, b)
	}
	var open openResponse
	if err := json.NewDecoder(res.Body).Decode(&open); err != nil {
		t.Fatalf("decode openResponse: %v", err)
	}
	return open
}

func TestHandleOpenAndInfo(t *testing.T) {
	ts, path := newTestServer(t)
	open := openTrace(t, ts.URL, path)
	if open.Handle == "" {
		t.Fatalf("openResponse.Handle is empty")
	}
	if open.NumEvents != 3 {
		t.Errorf("openResponse.NumEvents = %d, want 3", open.NumEvents)
	}

	res, err := http.Get(fmt.Sprintf("%s/traces/%s", ts.URL, open.Handle))
	if err != nil {
		t.Fatalf("GET /traces/{handle} error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET /traces/{handle} status = %d", res.StatusCode)
	}
	var info infoResponse
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		t.Fatalf("decode infoResponse: %v", err)
	}
	if info.Handle != open.Handle {
		t.Errorf("infoResponse.Handle = %q, want %q", info.Handle, open.Handle)
	}
	if _, ok := info.Colors[100]; !ok {
		t.Errorf("infoResponse.Colors missing pid 100: %+v", info.Colors)
	}
}

func TestHandleOpenMissingPath(t *testing.T) {
	ts, _ := newTestServer(t)
	body, _ := json.Marshal(openRequest{})
	res, err := http.Post(ts.URL+"/traces", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /traces error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestHandleOpenNonexistentFile(t *testing.T) {
	ts, _ := newTestServer(t)
	body, _ := json.Marshal(openRequest{Path: "/does/not/exist"})
	res, err := http.Post(ts.URL+"/traces", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /traces error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusOK {
		t.Errorf("status = 200, want a non-OK status for a missing file")
	}
}

func TestHandleEventsAndFilteredEvents(t *testing.T) {
	ts, path := newTestServer(t)
	open := openTrace(t, ts.URL, path)

	res, err := http.Get(fmt.Sprintf("%s/traces/%s/events", ts.URL, open.Handle))
	if err != nil {
		t.Fatalf("GET events error = %v", err)
	}
	defer res.Body.Close()
	var events []int
	if err := json.NewDecoder(res.Body).Decode(&events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("len(events) = %d, want 3", len(events))
	}
}

func TestHandleCPUFilter(t *testing.T) {
	ts, path := newTestServer(t)
	open := openTrace(t, ts.URL, path)

	body, _ := json.Marshal(map[string]interface{}{"cpus": []int{9}, "or": false})
	res, err := http.Post(fmt.Sprintf("%s/traces/%s/filters/cpu", ts.URL, open.Handle), "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST filters/cpu error = %v", err)
	}
	defer res.Body.Close()
	var filtered []int
	if err := json.NewDecoder(res.Body).Decode(&filtered); err != nil {
		t.Fatalf("decode filtered events: %v", err)
	}
	if len(filtered) != 0 {
		t.Errorf("filtered events for cpu==9 = %d, want 0", len(filtered))
	}

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/traces/%s/filters", ts.URL, open.Handle), nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if _, err := http.DefaultClient.Do(req); err != nil {
		t.Fatalf("DELETE filters error = %v", err)
	}
}

func TestHandleCloseThenInfoNotFound(t *testing.T) {
	ts, path := newTestServer(t)
	open := openTrace(t, ts.URL, path)

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/traces/%s", ts.URL, open.Handle), nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if _, err := http.DefaultClient.Do(req); err != nil {
		t.Fatalf("DELETE /traces/{handle} error = %v", err)
	}

	res, err := http.Get(fmt.Sprintf("%s/traces/%s", ts.URL, open.Handle))
	if err != nil {
		t.Fatalf("GET /traces/{handle} error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("status after close = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}
