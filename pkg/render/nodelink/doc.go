// Package nodelink renders the visible sensor tree as a Graphviz node-link
// diagram.
//
// Unlike the layout engine, Graphviz chooses its own positions, so the
// output is meant for exports and documentation rather than for hosts that
// need exact geometry.
//
//	dot := nodelink.ToDOT(forest, state, nodelink.Options{Mode: layout.Vertical})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// The DOT source can also be written out and processed with external
// Graphviz tools. Rendering uses [github.com/goccy/go-graphviz], which runs
// Graphviz in-process through WebAssembly.
package nodelink
