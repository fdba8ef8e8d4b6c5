package server

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/sensortree/pkg/connector"
	"github.com/matzehuels/sensortree/pkg/errors"
	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/normalize"
	"github.com/matzehuels/sensortree/pkg/observability"
	"github.com/matzehuels/sensortree/pkg/pipeline"
	"github.com/matzehuels/sensortree/pkg/session"
	"github.com/matzehuels/sensortree/pkg/tree"
	"github.com/matzehuels/sensortree/pkg/visibility"
)

// Session actions.
const (
	ActionToggleExpand = "toggle-expand"
	ActionExpandNext   = "expand-next"
	ActionCollapsePrev = "collapse-prev"
	ActionToggleSpread = "toggle-spread"
	ActionSearch       = "search"
	ActionMode         = "mode"
	ActionReset        = "reset"
)

type sessionSummary struct {
	ID        string      `json:"id"`
	Tree      string      `json:"tree,omitempty"`
	Mode      layout.Mode `json:"mode"`
	Roots     []string    `json:"roots"`
	Nodes     int         `json:"nodes"`
	Stats     tree.Stats  `json:"stats"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type sessionDetail struct {
	sessionSummary
	State           *visibility.State `json:"state"`
	Scroll          visibility.Scroll `json:"scroll"`
	Breadcrumb      []string          `json:"breadcrumb"`
	CanExpandNext   bool              `json:"can_expand_next"`
	CanCollapsePrev bool              `json:"can_collapse_prev"`
}

type actionRequest struct {
	Action string            `json:"action"`
	Node   string            `json:"node,omitempty"`
	Query  string            `json:"query,omitempty"`
	Scroll visibility.Scroll `json:"scroll"`
}

type actionResponse struct {
	State      *visibility.State  `json:"state"`
	Layout     layout.Result      `json:"layout"`
	Scroll     *visibility.Scroll `json:"scroll"`
	Breadcrumb []string           `json:"breadcrumb"`
}

type curveJSON struct {
	connector.Curve
	Path string `json:"path"`
}

func summarize(sess *session.Session) sessionSummary {
	return sessionSummary{
		ID:        sess.ID,
		Tree:      sess.Tree,
		Mode:      sess.Mode,
		Roots:     nonNil(sess.Forest.Roots()),
		Nodes:     sess.Forest.Len(),
		Stats:     tree.ComputeStats(sess.Forest),
		ExpiresAt: sess.ExpiresAt,
	}
}

func detail(sess *session.Session) sessionDetail {
	return sessionDetail{
		sessionSummary:  summarize(sess),
		State:           sess.State,
		Scroll:          sess.Scroll,
		Breadcrumb:      nonNil(sess.State.Breadcrumb(sess.Forest)),
		CanExpandNext:   sess.State.CanExpandNext(sess.Forest),
		CanCollapsePrev: sess.State.CanCollapsePrev(sess.Forest),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// =============================================================================
// Lifecycle
// =============================================================================

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	name, f, err := s.forestFromRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess := session.New(f, s.cfg.SessionTTL)
	sess.Tree = name
	if err := s.sessions.Set(r.Context(), sess); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("created session", "id", sess.ID, "tree", name, "nodes", f.Len())
	writeJSON(w, http.StatusCreated, summarize(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := session.ValidateID(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReplaceForest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := session.ValidateID(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.loadSession(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name, f, err := s.forestFromRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess.Replace(f)
	sess.Tree = name
	if err := s.saveSession(r.Context(), sess); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail(sess))
}

// =============================================================================
// Actions
// =============================================================================

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := session.ValidateID(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	var req actionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.loadSession(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	act, err := applyAction(sess, req)
	observability.HTTP().OnSessionAction(r.Context(), req.Action, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	opts, err := s.layoutOptions(sess.Mode, r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.runner.Layout(r.Context(), sess.Forest, sess.State, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var scroll *visibility.Scroll
	if req.Action == ActionMode && act.Kind == visibility.ScrollCenter {
		sc := layout.CenterScroll(res, opts.Viewport())
		scroll = &sc
	} else if sc, ok := layout.ScrollTarget(act, res, opts.Viewport(), opts.Layout); ok {
		scroll = &sc
	}
	if scroll != nil {
		sess.Scroll = *scroll
	}

	if err := s.saveSession(r.Context(), sess); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{
		State:      sess.State,
		Layout:     res,
		Scroll:     scroll,
		Breadcrumb: nonNil(sess.State.Breadcrumb(sess.Forest)),
	})
}

// applyAction mutates the session. Unknown node ids are no-ops.
func applyAction(sess *session.Session, req actionRequest) (visibility.ScrollAction, error) {
	none := visibility.ScrollAction{Kind: visibility.ScrollNone}
	f, st := sess.Forest, sess.State

	switch req.Action {
	case ActionToggleExpand:
		if err := errors.ValidateNodeID(req.Node); err != nil {
			return none, err
		}
		st.ToggleExpand(f, req.Node)
	case ActionExpandNext:
		st.ExpandNextLevel(f)
	case ActionCollapsePrev:
		st.CollapsePrevLevel(f)
	case ActionToggleSpread:
		if err := errors.ValidateNodeID(req.Node); err != nil {
			return none, err
		}
		return st.ToggleSpread(f, req.Node, req.Scroll), nil
	case ActionSearch:
		if err := errors.ValidateSearch(req.Query); err != nil {
			return none, err
		}
		st.SetSearch(req.Query)
	case ActionMode:
		return sess.ToggleMode(), nil
	case ActionReset:
		st.Reset()
		sess.Scroll = visibility.Scroll{}
	default:
		return none, errors.New(errors.ErrCodeInvalidInput, "unknown action %q", req.Action)
	}
	return none, nil
}

// =============================================================================
// Layout, connectors and rendering
// =============================================================================

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := s.layoutOptions(sess.Mode, r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, hit, err := s.runner.LayoutWithCacheInfo(r.Context(), sess.Forest, sess.State, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("X-Cache", cacheHeader(hit))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleConnectors(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var boxes connector.Boxes
	if err := s.decodeJSON(w, r, &boxes); err != nil {
		s.writeError(w, r, err)
		return
	}
	mode := sess.Mode
	if m := r.URL.Query().Get("mode"); m != "" {
		if mode, err = layout.ParseMode(m); err != nil {
			s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidMode, err, "invalid mode %q", m))
			return
		}
	}

	curves := pipeline.ConnectBoxes(r.Context(), sess.Forest, sess.State, mode, boxes, s.cfg.Layout)
	out := make([]curveJSON, len(curves))
	for i, c := range curves {
		out[i] = curveJSON{Curve: c, Path: c.Path()}
	}
	writeJSON(w, http.StatusOK, map[string]any{"curves": out})
}

var contentTypes = map[string]string{
	pipeline.FormatJSON:     "application/json",
	pipeline.FormatSVG:      "image/svg+xml",
	pipeline.FormatDOT:      "text/vnd.graphviz; charset=utf-8",
	pipeline.FormatGraphviz: "image/svg+xml",
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	opts, err := s.layoutOptions(sess.Mode, q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format := q.Get("format")
	if format == "" {
		format = pipeline.FormatSVG
	}
	opts.Formats = []string{format}
	opts.Title = sess.Tree
	if v := q.Get("detailed"); v != "" {
		if opts.Detailed, err = strconv.ParseBool(v); err != nil {
			s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "invalid detailed flag %q", v))
			return
		}
	}
	if err := opts.ValidateForRender(); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	res, err := s.runner.Layout(ctx, sess.Forest, sess.State, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	curves := pipeline.Connect(ctx, sess.Forest, sess.State, res, opts.Layout)
	artifacts, hit, err := s.runner.RenderWithCacheInfo(ctx, sess.Forest, sess.State, res, curves, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("X-Cache", cacheHeader(hit))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifacts[format])
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Server) loadSession(ctx context.Context, id string) (*session.Session, error) {
	if err := session.ValidateID(id); err != nil {
		return nil, err
	}
	return s.sessions.Get(ctx, id)
}

func (s *Server) saveSession(ctx context.Context, sess *session.Session) error {
	sess.Touch(s.cfg.SessionTTL)
	return s.sessions.Set(ctx, sess)
}

// layoutOptions builds layout options for a session, overridden by the
// mode, width and height query parameters.
func (s *Server) layoutOptions(mode layout.Mode, q url.Values) (pipeline.Options, error) {
	opts := pipeline.Options{
		Mode:   string(mode),
		Width:  s.cfg.Viewport.Width,
		Height: s.cfg.Viewport.Height,
		Layout: s.cfg.Layout,
		Logger: s.logger,
	}
	if m := q.Get("mode"); m != "" {
		opts.Mode = m
	}
	for _, p := range []struct {
		name string
		dst  *float64
	}{{"width", &opts.Width}, {"height", &opts.Height}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n <= 0 {
			return opts, errors.New(errors.ErrCodeInvalidInput, "invalid %s %q", p.name, v)
		}
		*p.dst = n
	}
	if err := opts.ValidateForLayout(); err != nil {
		return opts, err
	}
	return opts, nil
}

// forestFromRequest normalizes the request body. A JSON body of the form
// {"tree": name}, or a tree query parameter, loads a stored payload
// instead.
func (s *Server) forestFromRequest(w http.ResponseWriter, r *http.Request) (string, *tree.Forest, error) {
	body, err := s.readBody(w, r)
	if err != nil {
		return "", nil, err
	}
	q := r.URL.Query()
	format := payloadFormat(r)
	name := q.Get("tree")
	if name == "" && format == normalize.FormatJSON {
		name, _ = treeRef(body)
	}

	if name != "" {
		t, err := s.loadTree(r.Context(), name)
		if err != nil {
			return "", nil, err
		}
		body, format = t.Payload, normalize.Format(t.Format)
	}

	f, _, _, err := s.runner.NormalizeWithCacheInfo(r.Context(), body, pipeline.Options{
		Format:   string(format),
		Selector: q.Get("selector"),
		Logger:   s.logger,
	})
	if err != nil {
		return "", nil, err
	}
	return name, f, nil
}

// treeRef recognizes a body that only names a stored tree.
func treeRef(body []byte) (string, bool) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil || len(m) != 1 {
		return "", false
	}
	raw, ok := m["tree"]
	if !ok {
		return "", false
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil || name == "" {
		return "", false
	}
	return name, true
}

// payloadFormat takes the format query parameter, then the content type,
// and defaults to JSON.
func payloadFormat(r *http.Request) normalize.Format {
	if f := r.URL.Query().Get("format"); f != "" {
		return normalize.Format(f)
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return normalize.FormatYAML
	case "text/csv":
		return normalize.FormatCSV
	default:
		return normalize.FormatJSON
	}
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
