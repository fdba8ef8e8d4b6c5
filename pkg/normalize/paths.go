package normalize

import (
	"strings"
	"unicode/utf8"

	"github.com/matzehuels/sensortree/pkg/tree"
)

// tagOffsets are the character offsets of the fixed-width compact tag
// format. A "/" is inserted before each offset that lies inside the tag.
var tagOffsets = []int{4, 7, 10, 13, 16, 19, 22, 25}

// MinTagLen is the shortest slash-free string treated as a compact tag.
const MinTagLen = 20

// IsCompactTag reports whether s is a compact tag: no "/" and at least
// [MinTagLen] characters.
func IsCompactTag(s string) bool {
	return !strings.Contains(s, "/") && utf8.RuneCountInString(s) >= MinTagLen
}

// InsertSlashes slices a compact tag into a path by inserting "/" before the
// characters at offsets 4, 7, 10, 13, 16, 19, 22 and 25 of the original tag.
// Offsets past the end are ignored.
//
//	InsertSlashes("GRFLHITWALXYZ0123456789") == "GRFL/HIT/WAL/XYZ/012/345/678/9"
func InsertSlashes(tag string) string {
	runes := []rune(tag)
	var b strings.Builder
	b.Grow(len(tag) + len(tagOffsets))
	next := 0
	for i, r := range runes {
		if next < len(tagOffsets) && tagOffsets[next] == i {
			b.WriteByte('/')
			next++
		}
		b.WriteRune(r)
	}
	return b.String()
}

// splitPath splits p on "/" (or "\"), trimming segments and dropping empty
// ones.
func splitPath(p string) []string {
	raw := strings.Split(strings.ReplaceAll(p, `\`, "/"), "/")
	parts := raw[:0]
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// pathDrafts merges paths by shared prefix. Siblings are kept in first-seen
// order and typed by depth.
func pathDrafts(paths []string) []*draft {
	var roots []*draft
	index := make(map[string]*draft)
	for _, p := range paths {
		parent := ""
		siblings := &roots
		for depth, part := range splitPath(p) {
			id := tree.ChildID(parent, part)
			d, ok := index[id]
			if !ok {
				d = &draft{name: part, typ: tree.LevelType(depth)}
				index[id] = d
				*siblings = append(*siblings, d)
			}
			parent = id
			siblings = &d.children
		}
	}
	return roots
}
