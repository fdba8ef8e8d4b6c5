package errors

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	maxNodeIDLength = 1024
	maxSearchLength = 256
	maxPathLength   = 500
)

// ValidateNodeID checks a canonical node id: non-empty slug segments joined
// by single slashes, without control characters or traversal.
func ValidateNodeID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidNode, "node id cannot be empty")
	}
	if len(id) > maxNodeIDLength {
		return New(ErrCodeInvalidNode, "node id too long (max %d characters)", maxNodeIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidNode, "node id contains control characters")
		}
	}
	if strings.HasPrefix(id, "/") || strings.HasSuffix(id, "/") || strings.Contains(id, "//") {
		return New(ErrCodeInvalidNode, "node id has an empty segment: %q", id)
	}
	for _, seg := range strings.Split(id, "/") {
		if seg == "." || seg == ".." {
			return New(ErrCodeInvalidNode, "node id cannot contain %q segments", seg)
		}
	}
	return nil
}

var treeNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,127}$`)

// ValidateTreeName checks the name of a stored tree.
func ValidateTreeName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "tree name cannot be empty")
	}
	if !treeNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid tree name %q (lowercase letters, digits, '.', '_' and '-')", name)
	}
	return nil
}

// ValidateSearch checks a search query. The empty query is valid and
// clears the filter.
func ValidateSearch(q string) error {
	if len(q) > maxSearchLength {
		return New(ErrCodeInvalidInput, "search query too long (max %d characters)", maxSearchLength)
	}
	for _, r := range q {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "search query contains control characters")
		}
	}
	return nil
}

// ValidateMode checks a layout mode name. The empty string selects the
// default mode.
func ValidateMode(mode string) error {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "horizontal", "vertical":
		return nil
	}
	return New(ErrCodeInvalidMode, "unknown layout mode %q (horizontal or vertical)", mode)
}

// ValidatePath checks a relative file path for safety:
//   - not empty and not too long
//   - no control characters or backslashes
//   - not absolute and no ".." traversal
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}
	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}
	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}
	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}
	return nil
}
