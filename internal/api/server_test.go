package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/metrics"
	"github.com/roach88/rewind/internal/store"
	"github.com/roach88/rewind/internal/testutil"
)

type testServer struct {
	t  *testing.T
	ts *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	m := metrics.New()
	svc := history.NewService(st, st,
		history.WithClock(testutil.NewDeterministicClock()),
		history.WithIDGenerator(testutil.NewSequentialIDGenerator("")),
		history.WithMetrics(m),
	)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer("127.0.0.1:0", svc, m.Handler(), logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{t: t, ts: ts}
}

// do sends a request as user (no attribution header when empty) and
// decodes the JSON response into out when out is non-nil.
func (s *testServer) do(method, path, user, body string, out any) int {
	s.t.Helper()
	req, err := http.NewRequest(method, s.ts.URL+path, bytes.NewBufferString(body))
	require.NoError(s.t, err)
	if user != "" {
		req.Header.Set(HeaderUser, user)
	}
	resp, err := s.ts.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	if out != nil && len(data) > 0 {
		require.NoError(s.t, json.Unmarshal(data, out), "body: %s", data)
	}
	return resp.StatusCode
}

func (s *testServer) threeActorChain() string {
	var rec map[string]any
	code := s.do("POST", "/records", "John", `{"collection":"people","fields":{"name":"one"}}`, &rec)
	require.Equal(s.t, http.StatusCreated, code)
	id := rec["id"].(string)

	code = s.do("PUT", "/records/"+id, "Jane", `{"fields":{"name":"two"}}`, nil)
	require.Equal(s.t, http.StatusOK, code)
	code = s.do("PUT", "/records/"+id, "Pierre", `{"fields":{"name":"three","firstName":"Pierre"}}`, nil)
	require.Equal(s.t, http.StatusOK, code)
	return id
}

func TestCreateAndGet(t *testing.T) {
	s := newTestServer(t)
	id := s.threeActorChain()
	assert.Equal(t, "rec-0001", id)

	var rec struct {
		Version int64          `json:"version"`
		Fields  map[string]any `json:"fields"`
	}
	code := s.do("GET", "/records/"+id, "", "", &rec)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(2), rec.Version)
	assert.Equal(t, "three", rec.Fields["name"])
}

func TestHistoryEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := s.threeActorChain()

	var items []history.HistoryItem
	code := s.do("GET", "/records/"+id+"/history", "", "", &items)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, items, 3)
	assert.Equal(t, "John", items[0].User)
	assert.Equal(t, "Jane", items[1].User)
	assert.Equal(t, "Pierre", items[2].User)
}

func TestStateAtEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := s.threeActorChain()

	var body struct {
		Fields map[string]any `json:"fields"`
	}
	code := s.do("GET", "/records/"+id+"/versions/1", "", "", &body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"name": "two"}, body.Fields)

	assert.Equal(t, http.StatusNotFound, s.do("GET", "/records/"+id+"/versions/7", "", "", nil))
	assert.Equal(t, http.StatusBadRequest, s.do("GET", "/records/"+id+"/versions/abc", "", "", nil))
}

func TestChangesEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := s.threeActorChain()

	var view struct {
		PreviousValues map[string]any `json:"previous_values"`
		Changed        []string       `json:"changed"`
	}
	code := s.do("GET", "/records/"+id+"/versions/2/changes", "", "", &view)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"name": "two"}, view.PreviousValues)
	assert.Equal(t, []string{"firstName", "name"}, view.Changed)
}

func TestChangesEndpointArrayField(t *testing.T) {
	s := newTestServer(t)

	var rec map[string]any
	s.do("POST", "/records", "john", `{"collection":"people","fields":{"phones":[{"id":1,"n":"2222"}]}}`, &rec)
	id := rec["id"].(string)
	s.do("PUT", "/records/"+id, "jane", `{"fields":{"phones":[{"id":1,"n":"2222"},{"id":2,"n":"666"}]}}`, nil)

	var body struct {
		ArrayChanges []struct {
			Action string `json:"action"`
		} `json:"array_changes"`
	}
	code := s.do("GET", "/records/"+id+"/versions/1/changes?field=phones", "", "", &body)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.ArrayChanges, 2)
	assert.Equal(t, "none", body.ArrayChanges[0].Action)
	assert.Equal(t, "add", body.ArrayChanges[1].Action)
}

func TestUndoEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := s.threeActorChain()

	var out struct {
		Snapshot map[string]any `json:"snapshot"`
		Entry    struct {
			Version int64  `json:"version"`
			User    string `json:"user"`
		} `json:"entry"`
		Warnings []string `json:"warnings"`
	}
	code := s.do("POST", "/records/"+id+"/versions/1/undo", "admin", "", &out)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"name": "one", "firstName": "Pierre"}, out.Snapshot)
	assert.Equal(t, int64(3), out.Entry.Version)
	assert.Equal(t, "admin", out.Entry.User)
	assert.Empty(t, out.Warnings)
}

func TestUndoEndpointPartialWarns(t *testing.T) {
	s := newTestServer(t)

	var rec map[string]any
	s.do("POST", "/records", "john", `{"collection":"people","fields":{"tags":["a"]}}`, &rec)
	id := rec["id"].(string)
	s.do("PUT", "/records/"+id, "jane", `{"fields":{"tags":["a","b"]}}`, nil)

	var out struct {
		Partial  []string `json:"partial"`
		Warnings []string `json:"warnings"`
	}
	code := s.do("POST", "/records/"+id+"/versions/1/undo?dry_run=true", "admin", "", &out)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"tags"}, out.Partial)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "partial")
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	id := s.threeActorChain()

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   string
		want   int
		code   string
	}{
		{"missing actor", "PUT", "/records/" + id, "", `{"fields":{}}`, http.StatusUnauthorized, "no_actor"},
		{"unknown record", "GET", "/records/ghost", "", "", http.StatusNotFound, "record_not_found"},
		{"unknown version", "POST", "/records/" + id + "/versions/0/undo", "admin", "", http.StatusNotFound, "version_not_found"},
		{"bad json", "POST", "/records", "john", `{`, http.StatusBadRequest, "bad_request"},
		{"missing collection", "POST", "/records", "john", `{"fields":{}}`, http.StatusBadRequest, "bad_request"},
		{"float value", "POST", "/records", "john", `{"collection":"c","fields":{"x":1.5}}`, http.StatusUnprocessableEntity, "unprocessable"},
		{"not an array", "GET", "/records/" + id + "/versions/1/changes?field=name", "", "", http.StatusUnprocessableEntity, "unprocessable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorBody
			code := s.do(tt.method, tt.path, tt.user, tt.body, &body)
			assert.Equal(t, tt.want, code)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestSaveUnchanged(t *testing.T) {
	s := newTestServer(t)
	id := s.threeActorChain()

	var out struct {
		Changed bool `json:"changed"`
	}
	code := s.do("PUT", "/records/"+id, "jane", `{"fields":{"name":"three","firstName":"Pierre"}}`, &out)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, out.Changed)
}

func TestDeleteEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := s.threeActorChain()

	assert.Equal(t, http.StatusNoContent, s.do("DELETE", "/records/"+id, "admin", "", nil))
	assert.Equal(t, http.StatusNotFound, s.do("GET", "/records/"+id, "", "", nil))
}

func TestVerifyEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := s.threeActorChain()

	var report history.VerifyReport
	code := s.do("GET", "/records/"+id+"/verify", "", "", &report)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, report.OK)
	assert.Equal(t, 2, report.Checked)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.threeActorChain()

	var health map[string]string
	require.Equal(t, http.StatusOK, s.do("GET", "/health", "", "", &health))
	assert.Equal(t, "healthy", health["status"])

	resp, err := s.ts.Client().Get(s.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `rewind_history_operations_total{op="save",status="ok"} 2`)
}

func TestRecoverPanicsWritesJSONError(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	h := recoverPanics(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/records/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "internal", body.Code)
	assert.Contains(t, logs.String(), "panic=boom")
}

func TestRecoverPanicsAfterWriteKeepsResponse(t *testing.T) {
	h := recoverPanics(slog.New(slog.NewTextHandler(io.Discard, nil)), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestRecoverPanicsReraisesAbort(t *testing.T) {
	h := recoverPanics(slog.New(slog.NewTextHandler(io.Discard, nil)), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	})
}
