package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/sensortree/pkg/errors"
	"github.com/matzehuels/sensortree/pkg/normalize"
	"github.com/matzehuels/sensortree/pkg/storage"
)

var payloadTypes = map[string]string{
	string(normalize.FormatJSON): "application/json",
	string(normalize.FormatYAML): "application/yaml",
	string(normalize.FormatCSV):  "text/csv; charset=utf-8",
}

func (s *Server) requireStore() error {
	if s.store == nil {
		return errors.New(errors.ErrCodeUnsupported, "tree storage is not configured")
	}
	return nil
}

func (s *Server) loadTree(ctx context.Context, name string) (storage.Tree, error) {
	if err := s.requireStore(); err != nil {
		return storage.Tree{}, err
	}
	if err := errors.ValidateTreeName(name); err != nil {
		return storage.Tree{}, err
	}
	t, err := s.store.LoadTree(ctx, name)
	if stderrors.Is(err, storage.ErrNotFound) {
		return storage.Tree{}, errors.Wrap(errors.ErrCodeTreeNotFound, err, "tree %q not found", name)
	}
	return t, err
}

func (s *Server) handleListTrees(w http.ResponseWriter, r *http.Request) {
	if err := s.requireStore(); err != nil {
		s.writeError(w, r, err)
		return
	}
	trees, err := s.store.ListTrees(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if trees == nil {
		trees = []storage.Tree{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trees": trees})
}

func (s *Server) handlePutTree(w http.ResponseWriter, r *http.Request) {
	if err := s.requireStore(); err != nil {
		s.writeError(w, r, err)
		return
	}
	name := chi.URLParam(r, "name")
	if err := errors.ValidateTreeName(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format := payloadFormat(r)
	if _, err := normalize.Decode(body, format); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "payload is not valid %s: %v", format, err))
		return
	}

	t := storage.Tree{
		Name:      name,
		Format:    string(format),
		Payload:   body,
		Size:      len(body),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveTree(r.Context(), t); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("stored tree", "name", name, "format", format, "size", t.Size)
	t.Payload = nil
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	t, err := s.loadTree(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ct, ok := payloadTypes[t.Format]
	if !ok {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(t.Payload)))
	w.Header().Set("Last-Modified", t.UpdatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(t.Payload)
}

func (s *Server) handleDeleteTree(w http.ResponseWriter, r *http.Request) {
	if err := s.requireStore(); err != nil {
		s.writeError(w, r, err)
		return
	}
	name := chi.URLParam(r, "name")
	if err := errors.ValidateTreeName(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteTree(r.Context(), name); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			err = errors.Wrap(errors.ErrCodeTreeNotFound, err, "tree %q not found", name)
		}
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
