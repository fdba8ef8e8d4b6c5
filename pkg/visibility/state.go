// Package visibility tracks which nodes of a forest are shown: the expanded
// set, the active and spread focus, the search filter and the special
// highlight set.
//
// A [State] is owned by one context (a CLI run, a TUI model, an HTTP
// session) and is not safe for concurrent use. Every operation takes the
// forest it applies to; ids missing from that forest make the operation a
// no-op.
package visibility

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/matzehuels/sensortree/pkg/tree"
)

// Scroll is a viewport scroll offset in canvas units.
type Scroll struct {
	Left float64 `json:"left"`
	Top  float64 `json:"top"`
}

// ScrollKind tells the host what to do with its viewport after a spread
// toggle.
type ScrollKind string

const (
	ScrollNone    ScrollKind = "none"
	ScrollCenter  ScrollKind = "center"
	ScrollRestore ScrollKind = "restore"
)

// ScrollAction is returned by [State.ToggleSpread]. For ScrollCenter the
// host centers NodeID once the new layout is placed; for ScrollRestore it
// returns to Offset.
type ScrollAction struct {
	Kind   ScrollKind `json:"kind"`
	NodeID string     `json:"nodeId,omitempty"`
	Offset Scroll     `json:"offset"`
}

// State is the mutable view state over a forest.
type State struct {
	expanded   map[string]bool
	active     string
	spread     string
	search     string
	special    map[string]bool
	remembered map[string][]string
	saved      Scroll
}

// New returns a state with nothing expanded.
func New() *State {
	return &State{
		expanded:   make(map[string]bool),
		special:    make(map[string]bool),
		remembered: make(map[string][]string),
	}
}

// Reset clears every field, as when a new forest is loaded.
func (s *State) Reset() {
	*s = *New()
}

// IsExpanded reports whether id is expanded.
func (s *State) IsExpanded(id string) bool { return s.expanded[id] }

// Expanded returns the expanded ids, sorted.
func (s *State) Expanded() []string { return sortedSet(s.expanded) }

// Active returns the active node id, or "".
func (s *State) Active() string { return s.active }

// SetActive marks id as the active node without touching expansion.
func (s *State) SetActive(id string) { s.active = id }

// Spread returns the spread focus id, or "".
func (s *State) Spread() string { return s.spread }

// Search returns the current search query.
func (s *State) Search() string { return s.search }

// SetSearch replaces the search query.
func (s *State) SetSearch(q string) { s.search = q }

// IsSpecial reports whether id is in the special highlight set.
func (s *State) IsSpecial(id string) bool { return s.special[id] }

// Special returns the special ids, sorted.
func (s *State) Special() []string { return sortedSet(s.special) }

// SavedScroll returns the offset saved by the last spread.
func (s *State) SavedScroll() Scroll { return s.saved }

// Highlighted reports whether children of id are drawn emphasized: id is
// the active node or in the special set.
func (s *State) Highlighted(id string) bool {
	return id != "" && (id == s.active || s.special[id])
}

// ToggleExpand expands a collapsed node or collapses an expanded one.
//
// Collapsing also collapses every expanded descendant and remembers them, so
// that expanding the node again restores the previous view. The active node
// moves to the parent on collapse and to the node itself on expand.
func (s *State) ToggleExpand(f *tree.Forest, id string) {
	if !f.Has(id) {
		return
	}
	if !s.expanded[id] {
		s.expanded[id] = true
		for _, d := range s.remembered[id] {
			s.expanded[d] = true
		}
		delete(s.remembered, id)
		s.active = id
		return
	}

	delete(s.expanded, id)
	if desc := s.collapseDescendants(f, id); len(desc) > 0 {
		s.remembered[id] = desc
	}
	s.active, _ = f.Parent(id)
}

// collapseDescendants removes every descendant of id from the expanded set
// and returns the ones that were expanded, in pre-order.
func (s *State) collapseDescendants(f *tree.Forest, id string) []string {
	var was []string
	for _, d := range f.Descendants(id) {
		if s.expanded[d] {
			was = append(was, d)
			delete(s.expanded, d)
		}
	}
	return was
}

// Expand expands id and all of its ancestors without touching the active
// node or the restoration memory.
func (s *State) Expand(f *tree.Forest, id string) {
	for _, p := range f.Path(id) {
		s.expanded[p] = true
	}
}

// ExpandAll expands every node that has children.
func (s *State) ExpandAll(f *tree.Forest) {
	f.Walk(func(n *tree.Node, _ int) bool {
		if !n.IsLeaf() {
			s.expanded[n.ID] = true
		}
		return true
	})
}

// ExpandNextLevel expands every node of the deepest visible level that has
// children and marks exactly those as special. It reports whether anything
// changed.
func (s *State) ExpandNextLevel(f *tree.Forest) bool {
	levels := s.VisibleLevels(f)
	if len(levels) == 0 {
		return false
	}
	var ids []string
	for _, id := range levels[len(levels)-1] {
		if f.HasChildren(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return false
	}
	s.special = make(map[string]bool, len(ids))
	for _, id := range ids {
		s.expanded[id] = true
		s.special[id] = true
	}
	s.active = ""
	return true
}

// CollapsePrevLevel collapses the second-deepest visible level, marks the
// parents of its nodes as special and makes the smallest of them active.
// It reports whether anything changed.
func (s *State) CollapsePrevLevel(f *tree.Forest) bool {
	levels := s.VisibleLevels(f)
	if len(levels) < 2 {
		return false
	}
	parents := make(map[string]bool)
	for _, id := range levels[len(levels)-2] {
		delete(s.expanded, id)
		s.collapseDescendants(f, id)
		if p, ok := f.Parent(id); ok {
			parents[p] = true
		}
	}
	s.special = parents
	s.active = ""
	if ps := sortedSet(parents); len(ps) > 0 {
		s.active = ps[0]
	}
	return true
}

// CanExpandNext reports whether [State.ExpandNextLevel] would change
// anything.
func (s *State) CanExpandNext(f *tree.Forest) bool {
	levels := s.VisibleLevels(f)
	if len(levels) == 0 {
		return false
	}
	return slices.ContainsFunc(levels[len(levels)-1], f.HasChildren)
}

// CanCollapsePrev reports whether [State.CollapsePrevLevel] would change
// anything.
func (s *State) CanCollapsePrev(f *tree.Forest) bool {
	return len(s.VisibleLevels(f)) > 1
}

// ToggleSpread focuses the layout on the subtree of id, or leaves the focus
// when id already has it. scroll is the viewport offset to come back to.
func (s *State) ToggleSpread(f *tree.Forest, id string, scroll Scroll) ScrollAction {
	if id != "" && s.spread == id {
		s.spread = ""
		return ScrollAction{Kind: ScrollRestore, Offset: s.saved}
	}
	if !f.Has(id) {
		return ScrollAction{Kind: ScrollNone}
	}
	s.saved = scroll
	s.spread = id
	return ScrollAction{Kind: ScrollCenter, NodeID: id}
}

// Breadcrumb returns the names from the root down to the spread focus, or
// to the active node when nothing is spread. It is empty when neither is
// set.
func (s *State) Breadcrumb(f *tree.Forest) []string {
	focus := s.active
	if s.spread != "" {
		focus = s.spread
	}
	var names []string
	for _, id := range f.Path(focus) {
		n, _ := f.Node(id)
		names = append(names, n.Name)
	}
	return names
}

// Prune drops ids that no longer exist in f. Hosts call it after replacing
// a forest with a related one.
func (s *State) Prune(f *tree.Forest) {
	for id := range s.expanded {
		if !f.Has(id) {
			delete(s.expanded, id)
		}
	}
	for id := range s.special {
		if !f.Has(id) {
			delete(s.special, id)
		}
	}
	for id, desc := range s.remembered {
		if !f.Has(id) {
			delete(s.remembered, id)
			continue
		}
		s.remembered[id] = slices.DeleteFunc(desc, func(d string) bool { return !f.Has(d) })
	}
	if !f.Has(s.active) {
		s.active = ""
	}
	if !f.Has(s.spread) {
		s.spread = ""
	}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := New()
	for id := range s.expanded {
		c.expanded[id] = true
	}
	for id := range s.special {
		c.special[id] = true
	}
	for id, desc := range s.remembered {
		c.remembered[id] = slices.Clone(desc)
	}
	c.active, c.spread, c.search, c.saved = s.active, s.spread, s.search, s.saved
	return c
}

type stateJSON struct {
	Expanded   []string            `json:"expanded"`
	Active     string              `json:"active,omitempty"`
	Spread     string              `json:"spread,omitempty"`
	Search     string              `json:"search,omitempty"`
	Special    []string            `json:"special,omitempty"`
	Remembered map[string][]string `json:"remembered,omitempty"`
	Saved      Scroll              `json:"savedScroll"`
}

// MarshalJSON encodes the state with sets as sorted arrays.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		Expanded:   s.Expanded(),
		Active:     s.active,
		Spread:     s.spread,
		Search:     s.search,
		Special:    s.Special(),
		Remembered: s.remembered,
		Saved:      s.saved,
	})
}

// UnmarshalJSON replaces s with the decoded state.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = *New()
	for _, id := range raw.Expanded {
		s.expanded[id] = true
	}
	for _, id := range raw.Special {
		s.special[id] = true
	}
	for id, desc := range raw.Remembered {
		s.remembered[id] = desc
	}
	s.active, s.spread, s.search, s.saved = raw.Active, raw.Spread, raw.Search, raw.Saved
	return nil
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func containsFold(s, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s), lowerQuery)
}
