package layout

import (
	"github.com/matzehuels/sensortree/pkg/visibility"
)

// vertical stacks visible depths top to bottom. h is the horizontal layout
// of the same view; its height, with roles swapped, is the width available
// to the vertical canvas.
func vertical(vt *visibleTree, cfg Config, h Result, viewport Size) Result {
	rendered := h.Height
	if rendered <= 0 {
		rendered = viewport.Width
	}
	if rendered <= 0 {
		rendered = cfg.DefaultContainer
	}
	avail := max(cfg.MinContainer, rendered)
	required := avail

	var levels [][]visibility.Visible
	for _, v := range vt.nodes {
		for len(levels) <= v.Depth {
			levels = append(levels, nil)
		}
		levels[v.Depth] = append(levels[v.Depth], v)
	}

	centers := make(map[string]float64, len(vt.nodes))
	tops := make(map[string]float64, len(vt.nodes))
	pinned := make(map[string]bool)
	lastBottom := 0.0

	for depth, level := range levels {
		if len(level) == 0 {
			continue
		}
		widths := make([]float64, len(level))
		total, tallest := 0.0, 0.0
		for i, v := range level {
			size, _, _ := Sizes(cfg, Vertical, vt.nodeType(v.ID), v.Depth, v.ParentActive)
			widths[i] = size.Width
			total += size.Width
			tallest = max(tallest, size.Height)
		}
		slots := float64(len(level) + 1)
		levelAvail := max(avail-2*cfg.SideMargin, total+slots*cfg.MinGap)
		gap := (levelAvail - total) / slots
		required = max(required, levelAvail+2*cfg.SideMargin)

		top := cfg.TopMargin + float64(depth)*cfg.LevelSpacing
		cursor := cfg.SideMargin + gap
		for i, v := range level {
			cx := cursor + widths[i]/2
			if v.ParentID != "" && len(vt.children[v.ParentID]) == 1 {
				if pcx, ok := centers[v.ParentID]; ok {
					cx = pcx
					pinned[v.ID] = true
				}
			}
			centers[v.ID] = cx
			tops[v.ID] = top
			cursor += widths[i] + gap
		}
		lastBottom = top + tallest
	}

	if len(levels) > 0 && len(levels[0]) == 1 {
		centers[levels[0][0].ID] = required / 2
		// Pre-order visits parents first, so chains of sole children follow.
		for _, v := range vt.nodes {
			if pinned[v.ID] {
				centers[v.ID] = centers[v.ParentID]
			}
		}
	}

	placed := make(map[string]Placement, len(vt.nodes))
	for _, v := range vt.nodes {
		p := vt.placement(cfg, Vertical, v, 0, tops[v.ID])
		p.X = centers[v.ID] - p.Width/2
		placed[v.ID] = p
	}

	width := max(required, avail)
	height := max(h.Width, lastBottom+cfg.TopMargin)
	return newResult(Vertical, vt.ordered(placed), width, height)
}
