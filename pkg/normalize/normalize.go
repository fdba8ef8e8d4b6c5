package normalize

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/sensortree/pkg/tree"
)

// Shape identifies which dispatch rule produced a forest.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeWrappedRoot
	ShapeNodeMap
	ShapePaths
	ShapeTags
	ShapeObjects
	ShapeString
)

var shapeNames = map[Shape]string{
	ShapeUnknown:     "unknown",
	ShapeWrappedRoot: "wrapped-root",
	ShapeNodeMap:     "node-map",
	ShapePaths:       "paths",
	ShapeTags:        "tags",
	ShapeObjects:     "objects",
	ShapeString:      "string",
}

func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// Normalize converts raw into a canonical forest. It never fails; values of
// unrecognized shape yield an empty forest.
func Normalize(raw any) *tree.Forest {
	f, _ := NormalizeWithShape(raw)
	return f
}

// NormalizeWithShape is like [Normalize] and also reports the detected shape.
func NormalizeWithShape(raw any) (*tree.Forest, Shape) {
	switch v := generic(raw).(type) {
	case map[string]any:
		if isWrappedRoot(v) {
			return build(wrappedRootDrafts(v)), ShapeWrappedRoot
		}
		if isNodeMap(v) {
			return build(nodeMapDrafts(mapEntries(v))), ShapeNodeMap
		}
	case []any:
		return normalizeArray(v)
	case string:
		return normalizeString(v)
	}
	return tree.New(), ShapeUnknown
}

func normalizeArray(items []any) (*tree.Forest, Shape) {
	if len(items) == 0 {
		return tree.New(), ShapeUnknown
	}

	if strs, ok := allStrings(items); ok {
		if !slices.ContainsFunc(strs, func(s string) bool { return !strings.Contains(s, "/") }) {
			return build(pathDrafts(strs)), ShapePaths
		}
		paths := make([]string, len(strs))
		for i, s := range strs {
			if strings.Contains(s, "/") {
				paths[i] = s
			} else {
				paths[i] = InsertSlashes(s)
			}
		}
		return build(pathDrafts(paths)), ShapeTags
	}

	objs, ok := allObjects(items)
	if !ok {
		return tree.New(), ShapeUnknown
	}
	var paths []string
	for _, obj := range objs {
		p, isNodeList := objectPath(obj)
		if isNodeList {
			return build(nodeMapDrafts(keyedEntries(objs, "n"))), ShapeNodeMap
		}
		if p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) > 0 {
		return build(pathDrafts(paths)), ShapeObjects
	}
	return build(nodeMapDrafts(keyedEntries(objs, "node_"))), ShapeNodeMap
}

// objectPath resolves the path carried by a record. The boolean reports a
// record that looks like a tree node (name plus children) instead.
func objectPath(obj map[string]any) (string, bool) {
	for _, key := range []string{"IOTPATH", "path", "pathString"} {
		if truthy(obj[key]) {
			return scalarString(obj[key]), false
		}
	}
	if truthy(obj["IOTTAG"]) {
		t := scalarString(obj["IOTTAG"])
		if !strings.Contains(t, "/") {
			t = InsertSlashes(t)
		}
		return t, false
	}
	if truthy(obj["name"]) && truthy(obj["children"]) {
		return "", true
	}
	for _, k := range sortedKeys(obj) {
		if s, ok := obj[k].(string); ok && strings.Contains(s, "/") {
			return s, false
		}
	}
	return "", false
}

// keyedEntries turns a record list into node-map entries keyed by each
// record's id, or prefix plus index when it has none.
func keyedEntries(objs []map[string]any, prefix string) []entry {
	out := make([]entry, len(objs))
	for i, obj := range objs {
		key := fmt.Sprintf("%s%d", prefix, i)
		if truthy(obj["id"]) {
			key = scalarString(obj["id"])
		}
		out[i] = entry{key: key, obj: obj}
	}
	return out
}

func normalizeString(s string) (*tree.Forest, Shape) {
	switch {
	case strings.Contains(s, "/"):
		return build(pathDrafts([]string{s})), ShapeString
	case IsCompactTag(s):
		return build(pathDrafts([]string{InsertSlashes(s)})), ShapeString
	default:
		return build([]*draft{{name: s, typ: tree.TypeRoot}}), ShapeString
	}
}

func allStrings(items []any) ([]string, bool) {
	out := make([]string, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

func allObjects(items []any) ([]map[string]any, bool) {
	out := make([]map[string]any, len(items))
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, false
		}
		out[i] = m
	}
	return out, true
}
