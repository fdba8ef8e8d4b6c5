// Package connector computes the curves that join visible parents to their
// children.
//
// Curves are derived from rendered boxes, not from layout placements, since
// auto-sized nodes only get their final size once drawn. Hosts supply boxes
// through a [BoxProvider]; headless callers can use [FromLayout] to take
// boxes straight from a layout result.
package connector

import (
	"fmt"
	"math"
	"strconv"

	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/tree"
	"github.com/matzehuels/sensortree/pkg/visibility"
)

// Curve factors and the minimum control-point offset.
const (
	SpecialFactor = 0.15
	NormalFactor  = 0.25
	MinOffset     = 40.0
)

// Box is a rendered node rectangle in canvas coordinates.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b Box) right() float64   { return b.Left + b.Width }
func (b Box) bottom() float64  { return b.Top + b.Height }
func (b Box) centerX() float64 { return b.Left + b.Width/2 }
func (b Box) centerY() float64 { return b.Top + b.Height/2 }

// BoxProvider reports the rendered box of a node. The boolean is false when
// the node has not been drawn.
type BoxProvider interface {
	Box(id string) (Box, bool)
}

// BoxFunc adapts a function to [BoxProvider].
type BoxFunc func(id string) (Box, bool)

// Box implements [BoxProvider].
func (fn BoxFunc) Box(id string) (Box, bool) { return fn(id) }

// Boxes is a static [BoxProvider].
type Boxes map[string]Box

// Box implements [BoxProvider].
func (m Boxes) Box(id string) (Box, bool) {
	b, ok := m[id]
	return b, ok
}

// FromLayout returns the boxes of a layout result, using minimum sizes for
// auto-sized nodes.
func FromLayout(r layout.Result) Boxes {
	m := make(Boxes, len(r.Nodes))
	for _, p := range r.Nodes {
		m[p.ID] = Box{Left: p.X, Top: p.Y, Width: p.Width, Height: p.Height}
	}
	return m
}

// Curve is a cubic Bézier from a parent anchor to a child anchor.
type Curve struct {
	From        string      `json:"from"`
	To          string      `json:"to"`
	X1          float64     `json:"x1"`
	Y1          float64     `json:"y1"`
	X2          float64     `json:"x2"`
	Y2          float64     `json:"y2"`
	CurveFactor float64     `json:"curveFactor"`
	Special     bool        `json:"special"`
	Depth       int         `json:"depth"`
	Mode        layout.Mode `json:"mode"`
}

// Controls returns the two control points. The offset runs along the
// primary axis of the mode.
func (c Curve) Controls() (c1x, c1y, c2x, c2y float64) {
	if c.Mode == layout.Vertical {
		d := math.Max(MinOffset, math.Abs(c.Y2-c.Y1)*c.CurveFactor)
		return c.X1, c.Y1 + d, c.X2, c.Y2 - d
	}
	d := math.Max(MinOffset, math.Abs(c.X2-c.X1)*c.CurveFactor)
	return c.X1 + d, c.Y1, c.X2 - d, c.Y2
}

// Path returns the SVG path data of the curve.
func (c Curve) Path() string {
	c1x, c1y, c2x, c2y := c.Controls()
	return fmt.Sprintf("M %s %s C %s %s, %s %s, %s %s",
		num(c.X1), num(c.Y1), num(c1x), num(c1y), num(c2x), num(c2y), num(c.X2), num(c.Y2))
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Compute returns one curve per visible parent-child pair whose parent is
// expanded and whose boxes are both known. Pairs with a missing box are
// skipped.
func Compute(f *tree.Forest, st *visibility.State, mode layout.Mode, boxes BoxProvider) []Curve {
	return ComputeWithConfig(f, st, mode, boxes, layout.DefaultConfig())
}

// ComputeWithConfig is like [Compute] with custom geometry; only the deep
// level threshold is used.
func ComputeWithConfig(f *tree.Forest, st *visibility.State, mode layout.Mode, boxes BoxProvider, cfg layout.Config) []Curve {
	cfg = cfg.Merge(layout.DefaultConfig())
	var curves []Curve
	for _, v := range st.VisibleNodes(f) {
		if v.ParentID == "" || !st.IsExpanded(v.ParentID) {
			continue
		}
		pb, ok := boxes.Box(v.ParentID)
		if !ok {
			continue
		}
		cb, ok := boxes.Box(v.ID)
		if !ok {
			continue
		}

		special := v.Depth >= cfg.DeepLevel || st.Highlighted(v.ParentID) || v.ParentActive
		c := Curve{
			From:        v.ParentID,
			To:          v.ID,
			CurveFactor: NormalFactor,
			Special:     special,
			Depth:       v.Depth,
			Mode:        mode,
		}
		if special {
			c.CurveFactor = SpecialFactor
		}
		if mode == layout.Vertical {
			c.X1, c.Y1 = pb.centerX(), pb.bottom()
			c.X2, c.Y2 = cb.centerX(), cb.Top
		} else {
			c.X1, c.Y1 = pb.right(), pb.centerY()
			c.X2, c.Y2 = cb.Left, cb.centerY()
		}
		curves = append(curves, c)
	}
	return curves
}
