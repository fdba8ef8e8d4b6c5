package tree

import (
	"regexp"
	"strconv"
	"strings"
)

// Level tags of the nine-tier hierarchy, plus the sentinels used outside it.
const (
	TypeManufacturer = "manufacturer"
	TypeSegment      = "segment"
	TypeSite         = "site"
	TypePlant        = "plant"
	TypeFunction     = "function"
	TypeSystem       = "system"
	TypeMachine      = "machine"
	TypeStage        = "stage"
	TypeSensor       = "sensor"

	// TypeRoot marks synthetic single roots and wrapped-root sentinels.
	TypeRoot = "root"
)

// Levels lists the level tags from depth 0 to depth 8.
var Levels = []string{
	TypeManufacturer,
	TypeSegment,
	TypeSite,
	TypePlant,
	TypeFunction,
	TypeSystem,
	TypeMachine,
	TypeStage,
	TypeSensor,
}

// LevelType returns the level tag for a depth. Depths past the fixed list
// yield "level<depth>".
func LevelType(depth int) string {
	if depth >= 0 && depth < len(Levels) {
		return Levels[depth]
	}
	return "level" + strconv.Itoa(depth)
}

// MaxSlugLen caps the length of a single id segment.
const MaxSlugLen = 80

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	unsafeRe     = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// Slug converts a display name into an id segment: whitespace runs become
// "_", characters outside [A-Za-z0-9_-] are dropped, and the result is capped
// at [MaxSlugLen]. An empty result becomes "node".
func Slug(name string) string {
	s := whitespaceRe.ReplaceAllString(strings.TrimSpace(name), "_")
	s = unsafeRe.ReplaceAllString(s, "")
	if len(s) > MaxSlugLen {
		s = s[:MaxSlugLen]
	}
	if s == "" {
		return "node"
	}
	return s
}

// ChildID returns the id of a node named name under parentID. An empty
// parentID yields a root id.
func ChildID(parentID, name string) string {
	if parentID == "" {
		return Slug(name)
	}
	return parentID + "/" + Slug(name)
}

// LastSegment returns the part of id after the final "/".
func LastSegment(id string) string {
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		return id[i+1:]
	}
	return id
}
