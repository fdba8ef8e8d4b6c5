package server

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/matzehuels/sensortree/pkg/errors"
	"github.com/matzehuels/sensortree/pkg/session"
	"github.com/matzehuels/sensortree/pkg/storage"
)

type errorBody struct {
	Code  errors.Code `json:"code"`
	Error string      `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and writes it as {"code","error"}.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	err = classify(err)
	code := errors.GetCode(err)
	status := errors.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Code: code, Error: errors.UserMessage(err)})
}

// classify attaches codes to the sentinel errors of the session and storage
// packages.
func classify(err error) error {
	var coded *errors.Error
	switch {
	case stderrors.As(err, &coded):
		return err
	case stderrors.Is(err, session.ErrNotFound):
		return errors.Wrap(errors.ErrCodeSessionNotFound, err, "session not found")
	case stderrors.Is(err, session.ErrInvalidID):
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid session id")
	case stderrors.Is(err, storage.ErrNotFound):
		return errors.Wrap(errors.ErrCodeNotFound, err, "not found")
	case stderrors.Is(err, storage.ErrInvalidName):
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid tree name")
	}
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "request body exceeds %d bytes", tooLarge.Limit)
	}
	return err
}

// readBody reads the whole request body within the configured limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBody))
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

// decodeJSON decodes the request body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := s.readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body: %v", err)
	}
	return nil
}
