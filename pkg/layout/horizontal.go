package layout

import "github.com/matzehuels/sensortree/pkg/visibility"

// horizontal assigns each layout root a band of height proportional to its
// subtree size and recursively splits bands among visible children.
func horizontal(vt *visibleTree, cfg Config) Result {
	sizes := vt.subtreeSizes()
	unit := cfg.NodeHeight + cfg.VGap
	placed := make(map[string]Placement, len(vt.nodes))
	maxX := 0.0

	var place func(id string, depth int, yStart, height, parentX float64, parentHighlighted bool) float64
	place = func(id string, depth int, yStart, height, parentX float64, parentHighlighted bool) float64 {
		x := parentX
		if depth > 0 {
			if depth >= cfg.DeepLevel || parentHighlighted {
				x += cfg.DeepXSpacing
			} else {
				x += cfg.XSpacing
			}
		}

		var y float64
		kids := vt.children[id]
		if len(kids) == 0 || !vt.st.IsExpanded(id) || height <= 0 {
			y = yStart + height/2
		} else {
			total := 0
			for _, c := range kids {
				total += sizes[c]
			}
			highlighted := vt.st.Highlighted(id)
			cursor, sum := yStart, 0.0
			for _, c := range kids {
				ch := height * float64(sizes[c]) / float64(total)
				sum += place(c, depth+1, cursor, ch, x, highlighted)
				cursor += ch
			}
			y = sum / float64(len(kids))
		}

		maxX = max(maxX, x)
		placed[id] = vt.placement(cfg, Horizontal, vt.byID[id], x, y)
		return y
	}

	bandTop := 0.0
	for _, r := range vt.roots {
		compression := max(cfg.MinCompression, 1-float64(vt.f.Depth(r))*cfg.CompressionStep)
		band := max(cfg.MinBandHeight, float64(sizes[r])*unit*compression)
		place(r, 0, bandTop, band, cfg.LeftMargin, false)
		bandTop += band
	}

	width := maxX + cfg.ExtraWidth + cfg.RightPadding
	height := max(cfg.MinCanvasHeight, bandTop+cfg.VGap)
	return newResult(Horizontal, vt.ordered(placed), width, height)
}

func (vt *visibleTree) placement(cfg Config, mode Mode, v visibility.Visible, x, y float64) Placement {
	typ := vt.nodeType(v.ID)
	size, autoW, autoH := Sizes(cfg, mode, typ, v.Depth, v.ParentActive)
	return Placement{
		ID:           v.ID,
		Type:         typ,
		Depth:        v.Depth,
		X:            x,
		Y:            y,
		Width:        size.Width,
		Height:       size.Height,
		AutoWidth:    autoW,
		AutoHeight:   autoH,
		Special:      isSpecial(cfg, v.Depth, v.ParentActive),
		ParentActive: v.ParentActive,
	}
}

// ordered returns placements in visible pre-order.
func (vt *visibleTree) ordered(placed map[string]Placement) []Placement {
	out := make([]Placement, 0, len(placed))
	for _, v := range vt.nodes {
		if p, ok := placed[v.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}
