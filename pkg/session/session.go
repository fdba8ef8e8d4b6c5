// Package session persists viewer sessions: a forest together with the
// visibility state and layout mode a client is looking at.
//
// Three stores are provided:
//   - [MemoryStore]: process-local, for a single server instance and tests
//   - [FileStore]: JSON files, for the CLI explorer to resume where it left off
//   - [RedisStore]: shared across server instances
//
// Stores copy sessions on Set and Get, so callers own the values they hold.
// Get returns [ErrNotFound] for missing and expired sessions alike.
//
//	sess := session.New(forest, session.DefaultTTL)
//	if err := store.Set(ctx, sess); err != nil {
//	    return err
//	}
//	sess, err := store.Get(ctx, id)
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/tree"
	"github.com/matzehuels/sensortree/pkg/visibility"
)

// Sentinel errors for session operations.
var (
	// ErrNotFound is returned when a session does not exist or has expired.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidID is returned for ids that are not UUIDs.
	ErrInvalidID = errors.New("invalid session id")
)

// DefaultTTL is the default session lifetime, renewed on every Touch.
const DefaultTTL = 2 * time.Hour

// Session is one client's view of a forest.
type Session struct {
	ID        string            `json:"id"`
	Tree      string            `json:"tree,omitempty"`
	Forest    *tree.Forest      `json:"forest"`
	State     *visibility.State `json:"state"`
	Mode      layout.Mode       `json:"mode"`
	Scroll    visibility.Scroll `json:"scroll"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// New creates a session over f with a fresh state.
func New(f *tree.Forest, ttl time.Duration) *Session {
	if f == nil {
		f = tree.New()
	}
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Forest:    f,
		State:     visibility.New(),
		Mode:      layout.Horizontal,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired reports whether the session is past its expiry.
func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// Touch extends the expiry to ttl from now.
func (s *Session) Touch(ttl time.Duration) {
	s.ExpiresAt = time.Now().Add(ttl)
}

// Replace swaps in a new forest and resets all view state.
func (s *Session) Replace(f *tree.Forest) {
	if f == nil {
		f = tree.New()
	}
	s.Forest = f
	s.State.Reset()
	s.Scroll = visibility.Scroll{}
}

// ToggleMode flips the layout mode. Switching to vertical asks the host to
// center the canvas.
func (s *Session) ToggleMode() visibility.ScrollAction {
	s.Mode = s.Mode.Toggle()
	if s.Mode == layout.Vertical {
		return visibility.ScrollAction{Kind: visibility.ScrollCenter}
	}
	return visibility.ScrollAction{Kind: visibility.ScrollNone}
}

// ValidateID checks that id is a UUID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Store is the interface for session storage backends.
type Store interface {
	// Get retrieves a session by id. Missing and expired sessions return
	// ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Set stores a session, replacing any previous version.
	Set(ctx context.Context, sess *Session) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired sessions. It may be a no-op where the backend
	// expires entries itself.
	Cleanup(ctx context.Context) error
}

func encode(sess *Session) ([]byte, error) {
	if sess.Forest == nil {
		sess.Forest = tree.New()
	}
	if sess.State == nil {
		sess.State = visibility.New()
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	if sess.Forest == nil {
		sess.Forest = tree.New()
	}
	if sess.State == nil {
		sess.State = visibility.New()
	}
	if sess.Mode == "" {
		sess.Mode = layout.Horizontal
	}
	return &sess, nil
}
