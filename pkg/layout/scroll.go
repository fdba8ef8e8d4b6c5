package layout

import (
	"math"

	"github.com/matzehuels/sensortree/pkg/visibility"
)

// FocusScroll returns the scroll offset that brings p to the left margin and
// centers it vertically in the viewport.
func FocusScroll(p Placement, viewport Size, cfg Config) visibility.Scroll {
	cfg = cfg.Merge(DefaultConfig())
	return visibility.Scroll{
		Left: max(0, math.Round(p.X-cfg.LeftMargin)),
		Top:  max(0, math.Round(p.Y-viewport.Height/2+p.Height/2)),
	}
}

// CenterScroll returns the offset that centers the canvas horizontally in
// the viewport, used when switching to vertical mode.
func CenterScroll(r Result, viewport Size) visibility.Scroll {
	return visibility.Scroll{Left: max(0, (r.Width-viewport.Width)/2)}
}

// ScrollTarget resolves a spread scroll action against a computed layout.
// It reports false when the host should leave its viewport alone.
func ScrollTarget(act visibility.ScrollAction, r Result, viewport Size, cfg Config) (visibility.Scroll, bool) {
	switch act.Kind {
	case visibility.ScrollCenter:
		p, ok := r.Placement(act.NodeID)
		if !ok {
			return visibility.Scroll{}, false
		}
		return FocusScroll(p, viewport, cfg), true
	case visibility.ScrollRestore:
		return act.Offset, true
	default:
		return visibility.Scroll{}, false
	}
}
