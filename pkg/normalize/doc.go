// Package normalize converts heterogeneous tree payloads into a canonical
// [tree.Forest].
//
// # Shapes
//
// [Normalize] accepts any JSON-shaped value and dispatches on its shape, in
// priority order:
//
//  1. Wrapped root: an object with scalar "id" and "name". A sentinel "root"
//     (by id, name or type) is unwrapped and its children become roots.
//  2. Node map: an object whose values are all objects carrying "id", "name"
//     or "children". Children may be arrays or objects; parentId references
//     to unknown nodes synthesize placeholder parents.
//  3. Path strings: "A/B/C" style paths, merged by shared prefix.
//  4. Compact tags: fixed-width tags without "/" of 20+ characters, sliced at
//     offsets 4, 7, 10, 13, 16, 19, 22 and 25 (see [InsertSlashes]).
//  5. Objects carrying IOTPATH, path, pathString or IOTTAG fields.
//  6. A bare string: a path, a compact tag, or a single synthetic root.
//
// Anything else yields an empty forest. Normalize never fails: malformed
// values degrade to "no data".
//
// # Canonical ids
//
// Whatever the encoding, the resulting ids are re-derived from names with
// [tree.ChildID], so a node's id is always its parent's id plus the slug of
// its name. Siblings whose names slug to the same id are merged, and nodes
// without an explicit type take the level tag of their depth.
//
// # Text input
//
// [Parse] reads JSON (with bare NaN tokens mapped to null), [ParseYAML] reads
// YAML, and [ReadTagSheet] reads the TagName column of a CSV sheet. [Select]
// extracts the tree from a response envelope with a JSONPath expression.
package normalize
