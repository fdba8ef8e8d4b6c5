package visibility

import (
	"strings"

	"github.com/matzehuels/sensortree/pkg/tree"
)

// Visible is a node that survives the visibility rules, with its depth
// relative to the layout roots.
type Visible struct {
	ID           string `json:"id"`
	Depth        int    `json:"depth"`
	ParentID     string `json:"parentId,omitempty"`
	ParentActive bool   `json:"parentActive,omitempty"`
}

// Roots returns the layout roots: the spread focus when it names a node of
// f, otherwise the forest roots.
func (s *State) Roots(f *tree.Forest) []string {
	if s.spread != "" && f.Has(s.spread) {
		return []string{s.spread}
	}
	return f.Roots()
}

// VisibleNodes returns the visible nodes in pre-order. A node is visible when
// it or one of its descendants matches the search, and it is a layout root
// or its parent is visible and expanded.
func (s *State) VisibleNodes(f *tree.Forest) []Visible {
	filter := s.newFilter(f)
	var out []Visible
	var visit func(id, parent string, depth int)
	visit = func(id, parent string, depth int) {
		if !filter.pass(id) {
			return
		}
		out = append(out, Visible{
			ID:           id,
			Depth:        depth,
			ParentID:     parent,
			ParentActive: s.Highlighted(parent),
		})
		if !s.expanded[id] {
			return
		}
		for _, c := range f.Children(id) {
			visit(c, id, depth+1)
		}
	}
	for _, r := range s.Roots(f) {
		visit(r, "", 0)
	}
	return out
}

// VisibleLevels groups the visible node ids by relative depth. Empty levels
// are dropped.
func (s *State) VisibleLevels(f *tree.Forest) [][]string {
	var levels [][]string
	for _, v := range s.VisibleNodes(f) {
		for len(levels) <= v.Depth {
			levels = append(levels, nil)
		}
		levels[v.Depth] = append(levels[v.Depth], v.ID)
	}
	out := levels[:0]
	for _, l := range levels {
		if len(l) > 0 {
			out = append(out, l)
		}
	}
	return out
}

// IsVisible reports whether id is currently visible.
func (s *State) IsVisible(f *tree.Forest, id string) bool {
	for _, v := range s.VisibleNodes(f) {
		if v.ID == id {
			return true
		}
	}
	return false
}

// Matches reports whether n itself matches the search query. An empty query
// matches everything.
func (s *State) Matches(n *tree.Node) bool {
	if s.search == "" {
		return true
	}
	q := strings.ToLower(s.search)
	return containsFold(n.Name, q) || containsFold(n.Description, q) || containsFold(n.ValueString(), q)
}

// filter memoizes the search predicate over subtrees.
type filter struct {
	s    *State
	f    *tree.Forest
	memo map[string]bool
}

func (s *State) newFilter(f *tree.Forest) *filter {
	return &filter{s: s, f: f, memo: make(map[string]bool)}
}

func (fl *filter) pass(id string) bool {
	if fl.s.search == "" {
		return true
	}
	if v, ok := fl.memo[id]; ok {
		return v
	}
	n, ok := fl.f.Node(id)
	ok = ok && fl.s.Matches(n)
	if !ok && n != nil {
		for _, c := range n.Children {
			if fl.pass(c) {
				ok = true
				break
			}
		}
	}
	fl.memo[id] = ok
	return ok
}
