// Package tree provides the canonical forest model shared by every other
// sensortree package.
//
// # Overview
//
// A [Forest] is an arena of [Node] values indexed by id. Children are stored
// as ordered lists of ids rather than embedded references, so derived views
// (layouts, filtered walks) never alias or deep-copy the canonical data.
//
// Node ids are tree-path encoded: a node's id is its parent's id followed by
// "/" and the [Slug] of its own name. Root ids carry no prefix. Because the
// id is derived from the path, two unrelated subtrees can never collide, and
// expansion state keyed by id survives a rebuild of the same input.
//
// # Levels
//
// The hierarchy has nine semantic levels listed in [Levels]:
//
//	manufacturer → segment → site → plant → function → system → machine → stage → sensor
//
// [LevelType] maps a depth to its level tag, falling back to "level<N>" once
// the fixed list is exhausted.
//
// # Building
//
// Forests are normally produced by the normalize package. They can also be
// built directly:
//
//	f := tree.New()
//	f.Add(tree.Node{ID: "A", Name: "A", Type: tree.TypeManufacturer})
//	f.Add(tree.Node{ID: "A/B", Name: "B", ParentID: "A"})
//
// [Forest.Validate] checks every structural invariant of the model.
//
// # Serialization
//
// [Forest.MarshalJSON] writes the nested node-map form used by hosts:
// root ids map to node objects whose "children" object lists child nodes in
// order. [Forest.UnmarshalJSON] reads the same form back.
package tree
