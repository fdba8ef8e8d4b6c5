// Package pkg provides the core libraries for Sensortree, a layout engine for
// collapsible sensor hierarchies.
//
// # Overview
//
// Sensortree turns loosely shaped hierarchy payloads (nested objects, node
// maps, tag paths, tag sheets) into a forest of at most nine levels, tracks
// which part of it a viewer has opened, and places the open part on a canvas
// with connector curves between parents and children.
//
// # Architecture
//
//	Payload (JSON, YAML, CSV)
//	         ↓
//	    [normalize] package (shape detection → canonical forest)
//	         ↓
//	    [visibility] package (expanded, spread, search, active)
//	         ↓
//	    [layout] package (horizontal or vertical placements)
//	         ↓
//	    [connector] package (curves between visible parents and children)
//	         ↓
//	    [render] package (SVG, DOT, Graphviz, JSON)
//
// [pipeline] runs these steps with caching for the CLI and the HTTP server.
//
// # Quick Start
//
//	f := normalize.Normalize([]any{"Plant/Line 1/Pump", "Plant/Line 2"})
//	st := visibility.New()
//	st.ExpandNextLevel(f)
//
//	res := layout.Compute(f, st, layout.Options{
//	    Mode:     layout.Horizontal,
//	    Viewport: layout.Size{Width: 1200, Height: 800},
//	})
//	curves := connector.Compute(f, st, res.Mode, connector.FromLayout(res))
//
// # Main Packages
//
// [tree] - The canonical forest: nodes, ids, levels and status counts.
//
// [normalize] - Shape detection and conversion of raw payloads, including
// YAML and CSV decoding and JSONPath selection inside envelopes.
//
// [visibility] - Per-viewer state and the derived visible subset.
//
// [layout] - Placement of visible nodes with level spacing and compression.
//
// [connector] - Parent to child curves and the frame scheduler that
// coalesces recomputes.
//
// ## Infrastructure
//
// [cache] - File, redis and null caches for forests, layouts and artifacts.
//
// [storage] - Payload and note storage on the filesystem or MongoDB.
//
// [session] - Server-side viewer sessions in memory, redis or files.
//
// [config] - TOML configuration shared by the CLI and the server.
//
// [observability] - Hooks for pipeline and session metrics.
//
// [layout]: https://pkg.go.dev/github.com/matzehuels/sensortree/pkg/layout
// [normalize]: https://pkg.go.dev/github.com/matzehuels/sensortree/pkg/normalize
// [visibility]: https://pkg.go.dev/github.com/matzehuels/sensortree/pkg/visibility
// [connector]: https://pkg.go.dev/github.com/matzehuels/sensortree/pkg/connector
// [render]: https://pkg.go.dev/github.com/matzehuels/sensortree/pkg/render
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/sensortree/pkg/pipeline
// [tree]: https://pkg.go.dev/github.com/matzehuels/sensortree/pkg/tree
// [cache]: https://pkg.go.dev/github.com/matzehuels/sensortree/pkg/cache
// [storage]: https://pkg.go.dev/github.com/matzehuels/sensortree/pkg/storage
// [session]: https://pkg.go.dev/github.com/matzehuels/sensortree/pkg/session
// [config]: https://pkg.go.dev/github.com/matzehuels/sensortree/pkg/config
// [observability]: https://pkg.go.dev/github.com/matzehuels/sensortree/pkg/observability
package pkg
