package pipeline

import (
	"github.com/matzehuels/sensortree/pkg/tree"
	"github.com/matzehuels/sensortree/pkg/visibility"
)

// ApplyState builds a visibility state from the option directives. They are
// applied in a fixed order: explicit expansions, expand-all, level
// expansion, spread, search and finally the active node. Unknown ids are
// ignored.
func ApplyState(f *tree.Forest, opts Options) *visibility.State {
	st := visibility.New()
	ApplyDirectives(st, f, opts)
	return st
}

// ApplyDirectives applies the option directives on top of an existing state.
func ApplyDirectives(st *visibility.State, f *tree.Forest, opts Options) {
	for _, id := range opts.Expand {
		st.Expand(f, id)
	}
	if opts.ExpandAll {
		st.ExpandAll(f)
	}
	for range opts.Levels {
		if !st.ExpandNextLevel(f) {
			break
		}
	}
	if opts.Spread != "" && f.Has(opts.Spread) && st.Spread() != opts.Spread {
		st.ToggleSpread(f, opts.Spread, visibility.Scroll{})
	}
	if opts.Search != "" {
		st.SetSearch(opts.Search)
	}
	if opts.Active != "" && f.Has(opts.Active) {
		st.SetActive(opts.Active)
	}
}
