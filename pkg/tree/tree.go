package tree

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrInvalidNodeID is returned by [Forest.Add] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Forest.Add] when a node with the
	// same ID already exists in the forest.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownParent is returned by [Forest.Add] when ParentID names a node
	// that has not been added yet. Parents must be added before children.
	ErrUnknownParent = errors.New("unknown parent node")

	// ErrIDMismatch is returned by [Forest.Validate] when a node id does not
	// follow the parent-path encoding.
	ErrIDMismatch = errors.New("node ID does not match its path")
)

// Node is a single element of the hierarchy.
//
// Children holds child ids in display order. It is maintained by the
// [Forest] and must not be modified by callers.
type Node struct {
	ID          string
	Name        string
	Type        string
	Description string
	ParentID    string // empty for roots
	Children    []string

	// Leaf attributes. Value is nil when the source carried no value or the
	// literal "NaN".
	Status     string
	Value      *string
	LastUpdate string
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.ParentID == "" }

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// IsSensor reports whether the node is sensor-typed (see [IsSensorType]).
func (n *Node) IsSensor() bool { return IsSensorType(n.Type) }

// IsSensorType reports whether t names a sensor: "sensor" in any case, or
// any type ending in it such as "TempSensor".
func IsSensorType(t string) bool {
	return strings.HasSuffix(strings.ToLower(t), TypeSensor)
}

// ValueString returns the display value or an empty string.
func (n *Node) ValueString() string {
	if n.Value == nil {
		return ""
	}
	return *n.Value
}

// Forest is an arena of nodes keyed by id with an ordered list of roots.
//
// The zero value is not usable; create forests with [New].
type Forest struct {
	nodes map[string]*Node
	roots []string
}

// New returns an empty forest.
func New() *Forest {
	return &Forest{nodes: make(map[string]*Node)}
}

// Add inserts n into the forest. A non-empty ParentID must refer to a node
// already present; the new node is appended to that parent's children,
// otherwise it becomes the last root. Any Children set on n are ignored.
func (f *Forest) Add(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, ok := f.nodes[n.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID)
	}
	n.Children = nil
	if n.ParentID != "" {
		parent, ok := f.nodes[n.ParentID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParent, n.ParentID)
		}
		parent.Children = append(parent.Children, n.ID)
	} else {
		f.roots = append(f.roots, n.ID)
	}
	f.nodes[n.ID] = &n
	return nil
}

// Node returns the node with the given id.
func (f *Forest) Node(id string) (*Node, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

// Has reports whether id exists in the forest.
func (f *Forest) Has(id string) bool {
	_, ok := f.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (f *Forest) Len() int { return len(f.nodes) }

// Empty reports whether the forest has no roots.
func (f *Forest) Empty() bool { return len(f.roots) == 0 }

// Roots returns the root ids in order.
func (f *Forest) Roots() []string { return slices.Clone(f.roots) }

// Children returns the child ids of id in order, or nil for unknown ids.
func (f *Forest) Children(id string) []string {
	if n, ok := f.nodes[id]; ok {
		return slices.Clone(n.Children)
	}
	return nil
}

// HasChildren reports whether id has at least one child.
func (f *Forest) HasChildren(id string) bool {
	n, ok := f.nodes[id]
	return ok && len(n.Children) > 0
}

// Parent returns the parent id of id. The boolean is false for roots and
// unknown ids.
func (f *Forest) Parent(id string) (string, bool) {
	n, ok := f.nodes[id]
	if !ok || n.ParentID == "" {
		return "", false
	}
	return n.ParentID, true
}

// Depth returns the number of ancestors of id, or -1 for unknown ids.
func (f *Forest) Depth(id string) int {
	n, ok := f.nodes[id]
	if !ok {
		return -1
	}
	d := 0
	for n.ParentID != "" {
		n = f.nodes[n.ParentID]
		d++
	}
	return d
}

// Path returns the ids from the root down to id, inclusive.
func (f *Forest) Path(id string) []string {
	n, ok := f.nodes[id]
	if !ok {
		return nil
	}
	var path []string
	for {
		path = append(path, n.ID)
		if n.ParentID == "" {
			break
		}
		n = f.nodes[n.ParentID]
	}
	slices.Reverse(path)
	return path
}

// Descendants returns every descendant of id in pre-order, excluding id.
func (f *Forest) Descendants(id string) []string {
	n, ok := f.nodes[id]
	if !ok {
		return nil
	}
	var out []string
	var visit func(ids []string)
	visit = func(ids []string) {
		for _, c := range ids {
			out = append(out, c)
			visit(f.nodes[c].Children)
		}
	}
	visit(n.Children)
	return out
}

// Walk visits every node in pre-order starting from the roots. Returning
// false from fn skips the node's subtree.
func (f *Forest) Walk(fn func(n *Node, depth int) bool) {
	f.WalkFrom(f.roots, fn)
}

// WalkFrom is like [Forest.Walk] but starts from the given ids, which are
// reported at depth 0. Unknown ids are skipped.
func (f *Forest) WalkFrom(ids []string, fn func(n *Node, depth int) bool) {
	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		n, ok := f.nodes[id]
		if !ok {
			return
		}
		if !fn(n, depth) {
			return
		}
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	for _, id := range ids {
		visit(id, 0)
	}
}

// IDs returns every node id in pre-order.
func (f *Forest) IDs() []string {
	ids := make([]string, 0, len(f.nodes))
	f.Walk(func(n *Node, _ int) bool {
		ids = append(ids, n.ID)
		return true
	})
	return ids
}

// MaxDepth returns the depth of the deepest node, or -1 for an empty forest.
func (f *Forest) MaxDepth() int {
	deepest := -1
	f.Walk(func(_ *Node, d int) bool {
		if d > deepest {
			deepest = d
		}
		return true
	})
	return deepest
}

// Validate checks the structural invariants of the forest: parent links
// match containment, every node is reachable exactly once from a root, and
// ids follow the parent-path encoding.
func (f *Forest) Validate() error {
	seen := make(map[string]bool, len(f.nodes))
	var check func(id, parent string) error
	check = func(id, parent string) error {
		n, ok := f.nodes[id]
		if !ok {
			return fmt.Errorf("dangling child reference %q", id)
		}
		if seen[id] {
			return fmt.Errorf("node %q reachable twice", id)
		}
		seen[id] = true
		if n.ParentID != parent {
			return fmt.Errorf("node %q: parent %q, contained by %q", id, n.ParentID, parent)
		}
		if want := ChildID(parent, n.Name); n.ID != want {
			return fmt.Errorf("%w: %q, want %q", ErrIDMismatch, n.ID, want)
		}
		for _, c := range n.Children {
			if err := check(c, id); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range f.roots {
		if err := check(r, ""); err != nil {
			return err
		}
	}
	if len(seen) != len(f.nodes) {
		return fmt.Errorf("%d nodes unreachable from roots", len(f.nodes)-len(seen))
	}
	return nil
}
