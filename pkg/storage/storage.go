// Package storage persists raw tree payloads and per-node notes.
//
// Payloads are stored exactly as uploaded so that normalization can be
// re-run with newer rules. Notes are free text keyed by canonical node id;
// every save is stamped by [StampNote].
//
// Two backends are provided: [FileStore] for single-host deployments and
// [MongoStore] for shared ones.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a tree or note does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidName is returned for tree names that are not slugs.
	ErrInvalidName = errors.New("invalid tree name")
)

// Tree is a stored payload.
type Tree struct {
	Name      string    `json:"name" bson:"_id"`
	Format    string    `json:"format" bson:"format"`
	Payload   []byte    `json:"payload,omitempty" bson:"payload"`
	Size      int       `json:"size" bson:"size"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Note is the text attached to one node.
type Note struct {
	NodeID     string    `json:"node_id" bson:"_id"`
	Content    string    `json:"content" bson:"content"`
	ModifiedBy string    `json:"modified_by,omitempty" bson:"modified_by,omitempty"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

// Author identifies who saves a note.
type Author struct {
	Name  string
	Admin bool
}

// Store is the interface for payload and note backends.
type Store interface {
	// SaveTree stores a payload under name, replacing any previous one.
	SaveTree(ctx context.Context, t Tree) error

	// LoadTree returns the payload stored under name.
	LoadTree(ctx context.Context, name string) (Tree, error)

	// ListTrees returns stored trees without payloads, sorted by name.
	ListTrees(ctx context.Context) ([]Tree, error)

	// DeleteTree removes a stored tree.
	DeleteTree(ctx context.Context, name string) error

	// LoadNote returns the note of a node. A node without a note returns
	// ErrNotFound.
	LoadNote(ctx context.Context, nodeID string) (Note, error)

	// SaveNote stamps content and stores it as the note of nodeID.
	SaveNote(ctx context.Context, nodeID, content string, by Author) (Note, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

var treeName = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,127}$`)

// ValidateName checks that name is usable as a file name and document id.
func ValidateName(name string) error {
	if !treeName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
