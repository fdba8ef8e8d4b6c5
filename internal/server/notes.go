package server

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/sensortree/pkg/errors"
	"github.com/matzehuels/sensortree/pkg/storage"
)

// Headers naming the author of a note edit. Authentication happens in
// front of the server; it forwards the user in these headers.
const (
	HeaderUser  = "X-Sensortree-User"
	HeaderAdmin = "X-Sensortree-Admin"
)

type noteRequest struct {
	Content string `json:"content"`
}

func noteID(r *http.Request) (string, error) {
	id := strings.TrimSuffix(chi.URLParam(r, "*"), "/")
	if err := errors.ValidateNodeID(id); err != nil {
		return "", err
	}
	return id, nil
}

// handleGetNote returns the note of a node. A node without a note has an
// empty one.
func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	if err := s.requireStore(); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := noteID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.store.LoadNote(r.Context(), id)
	if stderrors.Is(err, storage.ErrNotFound) {
		n, err = storage.Note{NodeID: id}, nil
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handlePutNote(w http.ResponseWriter, r *http.Request) {
	if err := s.requireStore(); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := noteID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req noteRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	by := storage.Author{Name: strings.TrimSpace(r.Header.Get(HeaderUser))}
	if v := r.Header.Get(HeaderAdmin); v != "" {
		by.Admin, _ = strconv.ParseBool(v)
	}
	n, err := s.store.SaveNote(r.Context(), id, req.Content, by)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Debug("saved note", "node", id, "by", by.Name, "admin", by.Admin)
	writeJSON(w, http.StatusOK, n)
}
