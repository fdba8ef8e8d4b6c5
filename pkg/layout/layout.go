package layout

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matzehuels/sensortree/pkg/tree"
	"github.com/matzehuels/sensortree/pkg/visibility"
)

// Mode selects the layout direction.
type Mode string

const (
	Horizontal Mode = "horizontal"
	Vertical   Mode = "vertical"
)

// ParseMode parses a mode name. The empty string yields [Horizontal].
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Horizontal, "":
		return Horizontal, nil
	case Vertical:
		return Vertical, nil
	default:
		return "", fmt.Errorf("unknown layout mode %q", s)
	}
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == Vertical {
		return Horizontal
	}
	return Vertical
}

// Size is a width and height in canvas units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Options configures [Compute].
type Options struct {
	Mode Mode
	// Viewport is the visible area of the host. Vertical layout falls back
	// to its width when no horizontal extent is available.
	Viewport Size
	// Config overrides the default geometry. Zero fields keep defaults.
	Config Config
}

// Placement is the computed box of one visible node. X is the left edge.
// In vertical mode Y is the top edge; in horizontal mode Y is the midpoint
// of the node's band and hosts draw the box with its top at Y, without
// centering it again. For auto-sized boxes Width and Height are minimums.
type Placement struct {
	ID           string  `json:"id" bson:"id"`
	Type         string  `json:"type" bson:"type"`
	Depth        int     `json:"depth" bson:"depth"`
	X            float64 `json:"x" bson:"x"`
	Y            float64 `json:"y" bson:"y"`
	Width        float64 `json:"width" bson:"width"`
	Height       float64 `json:"height" bson:"height"`
	AutoWidth    bool    `json:"autoWidth,omitempty" bson:"auto_width,omitempty"`
	AutoHeight   bool    `json:"autoHeight,omitempty" bson:"auto_height,omitempty"`
	Special      bool    `json:"special,omitempty" bson:"special,omitempty"`
	ParentActive bool    `json:"parentActive,omitempty" bson:"parent_active,omitempty"`
}

// CenterX returns the horizontal center of the box.
func (p Placement) CenterX() float64 { return p.X + p.Width/2 }

// CenterY returns the vertical center of the box.
func (p Placement) CenterY() float64 { return p.Y + p.Height/2 }

// Result is a computed layout.
type Result struct {
	Mode   Mode        `json:"mode" bson:"mode"`
	Nodes  []Placement `json:"nodes" bson:"nodes"`
	Width  float64     `json:"width" bson:"width"`
	Height float64     `json:"height" bson:"height"`

	index map[string]int
}

// Placement returns the placement of id.
func (r *Result) Placement(id string) (Placement, bool) {
	if r.index == nil {
		for _, p := range r.Nodes {
			if p.ID == id {
				return p, true
			}
		}
		return Placement{}, false
	}
	i, ok := r.index[id]
	if !ok {
		return Placement{}, false
	}
	return r.Nodes[i], true
}

// UnmarshalJSON decodes a result and rebuilds its id index.
func (r *Result) UnmarshalJSON(data []byte) error {
	type plain Result
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = newResult(p.Mode, p.Nodes, p.Width, p.Height)
	return nil
}

func newResult(mode Mode, nodes []Placement, width, height float64) Result {
	r := Result{Mode: mode, Nodes: nodes, Width: width, Height: height}
	r.index = make(map[string]int, len(nodes))
	for i, p := range nodes {
		r.index[p.ID] = i
	}
	return r
}

// Compute lays out the nodes of f that are visible under st.
func Compute(f *tree.Forest, st *visibility.State, opts Options) Result {
	cfg := opts.Config.Merge(DefaultConfig())
	vt := newVisibleTree(f, st)

	h := horizontal(vt, cfg)
	if opts.Mode != Vertical {
		return h
	}
	return vertical(vt, cfg, h, opts.Viewport)
}

// visibleTree is the part of the forest that layout works on: visible
// nodes in pre-order with their visible children.
type visibleTree struct {
	f        *tree.Forest
	st       *visibility.State
	nodes    []visibility.Visible
	byID     map[string]visibility.Visible
	children map[string][]string
	roots    []string
}

func newVisibleTree(f *tree.Forest, st *visibility.State) *visibleTree {
	vt := &visibleTree{
		f:        f,
		st:       st,
		nodes:    st.VisibleNodes(f),
		children: make(map[string][]string),
	}
	vt.byID = make(map[string]visibility.Visible, len(vt.nodes))
	for _, v := range vt.nodes {
		vt.byID[v.ID] = v
		if v.ParentID == "" {
			vt.roots = append(vt.roots, v.ID)
		} else {
			vt.children[v.ParentID] = append(vt.children[v.ParentID], v.ID)
		}
	}
	return vt
}

func (vt *visibleTree) nodeType(id string) string {
	if n, ok := vt.f.Node(id); ok {
		return n.Type
	}
	return ""
}

// subtreeSizes returns the size of every visible node: 1 for leaves and
// collapsed nodes, otherwise the sum over visible children, at least 1.
func (vt *visibleTree) subtreeSizes() map[string]int {
	sizes := make(map[string]int, len(vt.nodes))
	var size func(id string) int
	size = func(id string) int {
		kids := vt.children[id]
		if len(kids) == 0 || !vt.st.IsExpanded(id) {
			sizes[id] = 1
			return 1
		}
		sum := 0
		for _, c := range kids {
			sum += size(c)
		}
		sizes[id] = max(1, sum)
		return sizes[id]
	}
	for _, r := range vt.roots {
		size(r)
	}
	return sizes
}

// Sizes returns the box of a node in the given mode. Special nodes are auto
// sized; the returned size is then the minimum.
func Sizes(cfg Config, mode Mode, nodeType string, depth int, parentActive bool) (size Size, autoWidth, autoHeight bool) {
	special := isSpecial(cfg, depth, parentActive)
	sensor := tree.IsSensorType(nodeType)

	if mode == Vertical {
		size = Size{Width: cfg.NodeWidth, Height: cfg.NodeHeight}
		if sensor {
			size = Size{Width: cfg.SensorWidth, Height: cfg.SensorHeight}
		}
		if special {
			return Size{Width: size.Width, Height: cfg.NodeHeight}, false, true
		}
		return size, false, false
	}

	switch {
	case sensor:
		return Size{Width: cfg.SensorWidth, Height: cfg.SensorHeight}, false, false
	case special:
		return Size{Width: cfg.NodeWidth, Height: cfg.NodeHeight}, true, true
	default:
		return Size{Width: cfg.NodeWidth, Height: cfg.NodeHeight}, false, false
	}
}

func isSpecial(cfg Config, depth int, parentActive bool) bool {
	return depth >= cfg.DeepLevel || parentActive
}
