// Package layout positions the visible nodes of a forest on a canvas.
//
// # Modes
//
// [Horizontal] layout grows left to right. Every layout root gets a
// horizontal band whose height is proportional to its subtree size, and
// children split their parent's band in proportion to their own sizes. A
// node's x is its parent's x plus a fixed spacing, wider at deep levels and
// under highlighted parents.
//
// [Vertical] layout stacks depths top to bottom. Each level spreads its nodes
// evenly across the available width with a minimum gap, a sole child sits
// directly under its parent, and a single root is centered.
//
// # Sizes
//
// Subtree size is 1 for a leaf or a collapsed node, and otherwise the sum of
// the sizes of the visible children. Node boxes are fixed except for
// special nodes (deep levels or children of a highlighted parent), whose
// boxes grow with content; for those, [Placement] carries the minimum size
// and sets AutoWidth or AutoHeight.
//
// Every call to [Compute] builds fresh placements. The forest and the
// visibility state are never modified.
package layout
