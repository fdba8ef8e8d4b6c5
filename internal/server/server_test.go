package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/sensortree/pkg/errors"
	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/observability"
	"github.com/matzehuels/sensortree/pkg/pipeline"
	"github.com/matzehuels/sensortree/pkg/session"
	"github.com/matzehuels/sensortree/pkg/storage"
	"github.com/matzehuels/sensortree/pkg/visibility"
)

const plant = `["Plant/Line 1/Pump","Plant/Line 1/Valve","Plant/Line 2"]`

type testEnv struct {
	srv     *Server
	ts      *httptest.Server
	metrics *Metrics
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	logger := log.New(io.Discard)
	m := NewMetrics()
	opts = append([]Option{WithLogger(logger), WithMetrics(m)}, opts...)
	srv := New(pipeline.NewRunner(nil, nil, logger), session.NewMemoryStore(), opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: srv, ts: ts, metrics: m}
}

func withFileStorage(t *testing.T) Option {
	t.Helper()
	st, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return WithStorage(st)
}

func (e *testEnv) do(t *testing.T, method, path, body string, header ...string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) createSession(t *testing.T, payload string) sessionSummary {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/sessions", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var sum sessionSummary
	require.NoError(t, json.Unmarshal(body, &sum))
	return sum
}

func (e *testEnv) action(t *testing.T, id string, req actionRequest) actionResponse {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	resp, body := e.do(t, http.MethodPost, "/api/sessions/"+id+"/actions", string(data))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out actionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func requireError(t *testing.T, resp *http.Response, body []byte, status int, code errors.Code) {
	t.Helper()
	require.Equal(t, status, resp.StatusCode, string(body))
	var e errorBody
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, code, e.Code)
	assert.NotEmpty(t, e.Error)
}

func placedIDs(r layout.Result) []string {
	ids := make([]string, len(r.Nodes))
	for i, p := range r.Nodes {
		ids[i] = p.ID
	}
	return ids
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestSessionLifecycle(t *testing.T) {
	e := newTestEnv(t)

	sum := e.createSession(t, plant)
	assert.Equal(t, []string{"Plant"}, sum.Roots)
	assert.Equal(t, 5, sum.Nodes)
	assert.Equal(t, layout.Horizontal, sum.Mode)
	require.NoError(t, session.ValidateID(sum.ID))

	out := e.action(t, sum.ID, actionRequest{Action: ActionExpandNext})
	assert.Equal(t, []string{"Plant", "Plant/Line_1", "Plant/Line_2"}, placedIDs(out.Layout))
	assert.Nil(t, out.Scroll)

	out = e.action(t, sum.ID, actionRequest{Action: ActionToggleExpand, Node: "Plant/Line_1"})
	assert.Len(t, out.Layout.Nodes, 5)
	assert.Equal(t, "Plant/Line_1", out.State.Active())

	resp, body := e.do(t, http.MethodGet, "/api/sessions/"+sum.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var d sessionDetail
	require.NoError(t, json.Unmarshal(body, &d))
	assert.Equal(t, []string{"Plant", "Plant/Line_1"}, d.State.Expanded())
	assert.Equal(t, []string{"Plant", "Line 1"}, d.Breadcrumb)
	assert.False(t, d.CanExpandNext)
	assert.True(t, d.CanCollapsePrev)

	resp, _ = e.do(t, http.MethodDelete, "/api/sessions/"+sum.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = e.do(t, http.MethodGet, "/api/sessions/"+sum.ID, "")
	requireError(t, resp, body, http.StatusNotFound, errors.ErrCodeSessionNotFound)
}

func TestSessionErrors(t *testing.T) {
	e := newTestEnv(t)
	sum := e.createSession(t, plant)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   errors.Code
	}{
		{"bad id", http.MethodGet, "/api/sessions/nope", "", 400, errors.ErrCodeInvalidInput},
		{"unknown session", http.MethodGet, "/api/sessions/6f1c2a47-8a5e-4f4e-9d0e-0d6c2b8a1f00", "", 404, errors.ErrCodeSessionNotFound},
		{"bad payload", http.MethodPost, "/api/sessions", `{"broken`, 400, errors.ErrCodeInvalidInput},
		{"bad payload format", http.MethodPost, "/api/sessions?format=xml", plant, 400, errors.ErrCodeInvalidFormat},
		{"unknown action", http.MethodPost, "/api/sessions/" + sum.ID + "/actions", `{"action":"fly"}`, 400, errors.ErrCodeInvalidInput},
		{"bad node", http.MethodPost, "/api/sessions/" + sum.ID + "/actions", `{"action":"toggle-expand","node":"../x"}`, 400, errors.ErrCodeInvalidNode},
		{"bad action body", http.MethodPost, "/api/sessions/" + sum.ID + "/actions", `[`, 400, errors.ErrCodeInvalidInput},
		{"bad mode", http.MethodGet, "/api/sessions/" + sum.ID + "/layout?mode=diagonal", "", 400, errors.ErrCodeInvalidMode},
		{"bad width", http.MethodGet, "/api/sessions/" + sum.ID + "/layout?width=-1", "", 400, errors.ErrCodeInvalidInput},
		{"bad format", http.MethodGet, "/api/sessions/" + sum.ID + "/render?format=png", "", 400, errors.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := e.do(t, tt.method, tt.path, tt.body)
			requireError(t, resp, body, tt.status, tt.code)
		})
	}
}

func TestUnknownNodeIsNoOp(t *testing.T) {
	e := newTestEnv(t)
	sum := e.createSession(t, plant)
	out := e.action(t, sum.ID, actionRequest{Action: ActionToggleExpand, Node: "Elsewhere"})
	assert.Equal(t, []string{"Plant"}, placedIDs(out.Layout))
	assert.Empty(t, out.State.Expanded())
}

func TestToggleSpreadScroll(t *testing.T) {
	e := newTestEnv(t)
	sum := e.createSession(t, plant)
	e.action(t, sum.ID, actionRequest{Action: ActionExpandNext})

	before := visibility.Scroll{Left: 12, Top: 34}
	out := e.action(t, sum.ID, actionRequest{Action: ActionToggleSpread, Node: "Plant/Line_1", Scroll: before})
	assert.Equal(t, "Plant/Line_1", out.State.Spread())
	assert.Equal(t, "Plant/Line_1", out.Layout.Nodes[0].ID)
	require.NotNil(t, out.Scroll)
	assert.Equal(t, []string{"Plant", "Line 1"}, out.Breadcrumb)

	out = e.action(t, sum.ID, actionRequest{Action: ActionToggleSpread, Node: "Plant/Line_1"})
	assert.Empty(t, out.State.Spread())
	require.NotNil(t, out.Scroll)
	assert.Equal(t, before, *out.Scroll)
}

func TestModeAndSearch(t *testing.T) {
	e := newTestEnv(t)
	sum := e.createSession(t, plant)
	e.action(t, sum.ID, actionRequest{Action: ActionExpandNext})
	e.action(t, sum.ID, actionRequest{Action: ActionExpandNext})

	out := e.action(t, sum.ID, actionRequest{Action: ActionMode})
	assert.Equal(t, layout.Vertical, out.Layout.Mode)
	require.NotNil(t, out.Scroll, "switching to vertical centers the canvas")

	out = e.action(t, sum.ID, actionRequest{Action: ActionSearch, Query: "pump"})
	assert.Equal(t, []string{"Plant", "Plant/Line_1", "Plant/Line_1/Pump"}, placedIDs(out.Layout))

	out = e.action(t, sum.ID, actionRequest{Action: ActionReset})
	assert.Empty(t, out.State.Search())
	assert.Equal(t, []string{"Plant"}, placedIDs(out.Layout))

	out = e.action(t, sum.ID, actionRequest{Action: ActionMode})
	assert.Equal(t, layout.Horizontal, out.Layout.Mode)
	assert.Nil(t, out.Scroll)
}

func TestReplaceForest(t *testing.T) {
	e := newTestEnv(t)
	sum := e.createSession(t, plant)
	e.action(t, sum.ID, actionRequest{Action: ActionExpandNext})

	resp, body := e.do(t, http.MethodPut, "/api/sessions/"+sum.ID+"/forest", "- Site/Kiln\n", "Content-Type", "application/yaml")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var d sessionDetail
	require.NoError(t, json.Unmarshal(body, &d))
	assert.Equal(t, 2, d.Nodes)
	assert.Empty(t, d.State.Expanded(), "a new forest resets the state")
}

func TestLayoutAndConnectors(t *testing.T) {
	e := newTestEnv(t)
	sum := e.createSession(t, plant)
	e.action(t, sum.ID, actionRequest{Action: ActionExpandNext})

	resp, body := e.do(t, http.MethodGet, "/api/sessions/"+sum.ID+"/layout?mode=vertical&width=900", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	var res layout.Result
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, layout.Vertical, res.Mode)
	assert.Len(t, res.Nodes, 3)

	boxes := `{
		"Plant": {"left": 60, "top": 200, "width": 200, "height": 160},
		"Plant/Line_1": {"left": 280, "top": 100, "width": 200, "height": 160}
	}`
	resp, body = e.do(t, http.MethodPost, "/api/sessions/"+sum.ID+"/connectors", boxes)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out struct {
		Curves []curveJSON `json:"curves"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Curves, 1, "pairs with a missing box are skipped")
	assert.Equal(t, "Plant", out.Curves[0].From)
	assert.Equal(t, "M 260 280 C 300 280, 240 180, 280 180", out.Curves[0].Path)
}

func TestRender(t *testing.T) {
	e := newTestEnv(t)
	sum := e.createSession(t, plant)
	e.action(t, sum.ID, actionRequest{Action: ActionExpandNext})

	resp, body := e.do(t, http.MethodGet, "/api/sessions/"+sum.ID+"/render", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(body, []byte("<svg")))

	resp, body = e.do(t, http.MethodGet, "/api/sessions/"+sum.ID+"/render?format=dot&detailed=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"Plant" -> "Plant/Line_1"`)

	resp, body = e.do(t, http.MethodGet, "/api/sessions/"+sum.ID+"/render?format=json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var doc pipeline.Document
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Len(t, doc.Nodes, 3)
	assert.Len(t, doc.Curves, 2)
}

func TestTrees(t *testing.T) {
	e := newTestEnv(t, withFileStorage(t))

	resp, body := e.do(t, http.MethodPut, "/api/trees/plant", plant)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = e.do(t, http.MethodGet, "/api/trees", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Trees []storage.Tree `json:"trees"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Trees, 1)
	assert.Equal(t, "plant", list.Trees[0].Name)
	assert.Equal(t, len(plant), list.Trees[0].Size)

	resp, body = e.do(t, http.MethodGet, "/api/trees/plant", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, plant, string(body))

	sum := e.createSession(t, `{"tree":"plant"}`)
	assert.Equal(t, "plant", sum.Tree)
	assert.Equal(t, 5, sum.Nodes)

	resp, body = e.do(t, http.MethodPost, "/api/sessions", `{"tree":"missing"}`)
	requireError(t, resp, body, http.StatusNotFound, errors.ErrCodeTreeNotFound)

	resp, body = e.do(t, http.MethodPut, "/api/trees/Bad%20Name", plant)
	requireError(t, resp, body, http.StatusBadRequest, errors.ErrCodeInvalidInput)

	resp, body = e.do(t, http.MethodPut, "/api/trees/broken", `{"a":`)
	requireError(t, resp, body, http.StatusBadRequest, errors.ErrCodeInvalidInput)

	resp, _ = e.do(t, http.MethodDelete, "/api/trees/plant", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, body = e.do(t, http.MethodGet, "/api/trees/plant", "")
	requireError(t, resp, body, http.StatusNotFound, errors.ErrCodeTreeNotFound)
}

func TestNotes(t *testing.T) {
	e := newTestEnv(t, withFileStorage(t))

	resp, body := e.do(t, http.MethodGet, "/api/notes/Plant/Line_1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var n storage.Note
	require.NoError(t, json.Unmarshal(body, &n))
	assert.Equal(t, "Plant/Line_1", n.NodeID)
	assert.Empty(t, n.Content)

	resp, body = e.do(t, http.MethodPut, "/api/notes/Plant/Line_1", `{"content":"check the seal"}`, HeaderUser, "alice")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &n))
	assert.True(t, strings.HasPrefix(n.Content, "[Modified by: alice at "), n.Content)
	assert.Contains(t, n.Content, "check the seal\nLast updated: ")

	resp, body = e.do(t, http.MethodPut, "/api/notes/Plant/Line_1", `{"content":"`+strings.ReplaceAll(n.Content, "\n", `\n`)+`"}`,
		HeaderUser, "root", HeaderAdmin, "true")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &n))
	assert.NotContains(t, n.Content, "Modified by")
	assert.Equal(t, 1, strings.Count(n.Content, "Last updated:"))

	resp, body = e.do(t, http.MethodGet, "/api/notes/Plant/Line_1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got storage.Note
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, n.Content, got.Content)
}

func TestStorageNotConfigured(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/api/trees", "/api/trees/plant", "/api/notes/Plant"} {
		resp, body := e.do(t, http.MethodGet, path, "")
		requireError(t, resp, body, http.StatusNotImplemented, errors.ErrCodeUnsupported)
	}
}

func TestBodyLimit(t *testing.T) {
	e := newTestEnv(t, WithConfig(Config{MaxBody: 16}))
	resp, body := e.do(t, http.MethodPost, "/api/sessions", plant)
	requireError(t, resp, body, http.StatusBadRequest, errors.ErrCodeInvalidInput)
}

func TestConcurrentActions(t *testing.T) {
	e := newTestEnv(t)
	sum := e.createSession(t, plant)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.action(t, sum.ID, actionRequest{Action: ActionToggleExpand, Node: "Plant"})
		}()
	}
	wg.Wait()

	sess, err := e.srv.sessions.Get(context.Background(), sum.ID)
	require.NoError(t, err)
	assert.False(t, sess.State.IsExpanded("Plant"), "an even number of toggles leaves the node collapsed")
	assert.Zero(t, e.srv.locks.len())
}

func TestMetrics(t *testing.T) {
	e := newTestEnv(t)
	e.metrics.Register()
	t.Cleanup(observability.Reset)

	e.do(t, http.MethodGet, "/healthz", "")
	sum := e.createSession(t, plant)
	e.action(t, sum.ID, actionRequest{Action: ActionExpandNext})
	e.do(t, http.MethodPost, "/api/sessions/"+sum.ID+"/actions", `{"action":"fly"}`)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.requests.WithLabelValues("GET", "/healthz", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.sessionActions.WithLabelValues(ActionExpandNext, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.sessionActions.WithLabelValues("fly", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.normalized.WithLabelValues("paths")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.requests.WithLabelValues("POST", "/api/sessions/{id}/actions", "4xx")))

	resp, body := e.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "sensortree_http_requests_total")
	assert.Contains(t, string(body), "sensortree_stage_duration_seconds")
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		overlap bool
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("a")
			defer unlock()
			mu.Lock()
			active++
			if active > 1 {
				overlap = true
			}
			mu.Unlock()
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.False(t, overlap)
	assert.Zero(t, k.len())

	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.len())
	unlockA()
	unlockB()
}
