// Package render holds the output formats of a laid-out sensor tree.
//
//   - [svg] draws the computed layout as-is: boxes at their placements and
//     connector curves between them. It is what a host would paint.
//   - [nodelink] hands the visible tree to Graphviz, which lays it out on
//     its own. It is useful for exports where exact geometry does not matter.
//
// Both render only what the visibility state shows.
//
// [svg]: github.com/matzehuels/sensortree/pkg/render/svg
// [nodelink]: github.com/matzehuels/sensortree/pkg/render/nodelink
package render
