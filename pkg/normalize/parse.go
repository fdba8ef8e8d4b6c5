package normalize

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidPayload is returned when a payload cannot be decoded.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrNoMatch is returned by [Select] when the expression matches nothing.
	ErrNoMatch = errors.New("selector matched nothing")

	// ErrNoTagColumn is returned by [ReadTagSheet] when the header lacks a
	// TagName column.
	ErrNoTagColumn = errors.New("missing TagName column")
)

// Format names a payload encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// FormatFromPath guesses the format from a file extension, defaulting to
// JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".csv":
		return FormatCSV
	default:
		return FormatJSON
	}
}

// Decode parses data in the given format. CSV input yields the tag list of
// the sheet as a []any of strings.
func Decode(data []byte, format Format) (any, error) {
	switch format {
	case FormatJSON, "":
		return Parse(data)
	case FormatYAML:
		return ParseYAML(data)
	case FormatCSV:
		tags, err := ReadTagSheet(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		out := make([]any, len(tags))
		for i, t := range tags {
			out[i] = t
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidPayload, format)
	}
}

// Parse decodes a JSON payload. Bare NaN tokens, which some backends emit
// for missing readings, are read as null.
func Parse(data []byte) (any, error) {
	v, err := oj.Parse(replaceNaN(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return v, nil
}

var (
	nanLiteral  = []byte("NaN")
	nullLiteral = []byte("null")
)

// replaceNaN rewrites NaN tokens outside string literals to null. Text
// inside quotes, escapes included, is copied unchanged.
func replaceNaN(data []byte) []byte {
	if !bytes.Contains(data, nanLiteral) {
		return data
	}
	out := make([]byte, 0, len(data))
	inString, escaped := false, false
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case inString:
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
		case c == '"':
			inString = true
		case c == 'N' && bytes.HasPrefix(data[i:], nanLiteral) &&
			(i == 0 || !isWordByte(data[i-1])) &&
			(i+len(nanLiteral) == len(data) || !isWordByte(data[i+len(nanLiteral)])):
			out = append(out, nullLiteral...)
			i += len(nanLiteral) - 1
			continue
		}
		out = append(out, c)
	}
	return out
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// ParseYAML decodes a YAML payload into JSON-shaped values.
func ParseYAML(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return stringKeys(v), nil
}

// Select applies a JSONPath expression to a decoded payload, for trees
// wrapped in a response envelope such as {"data": {"tree": ...}}. A single
// match is returned as is; several matches are returned as a []any.
func Select(v any, expr string) (any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: selector %q: %v", ErrInvalidPayload, expr, err)
	}
	matches := x.Get(v)
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, expr)
	case 1:
		return matches[0], nil
	default:
		return matches, nil
	}
}

// ReadTagSheet reads the TagName column of a CSV tag sheet. Tags are
// trimmed, empty cells skipped and duplicates dropped, keeping first-seen
// order.
func ReadTagSheet(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrInvalidPayload, err)
	}
	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), "TagName") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, ErrNoTagColumn
	}

	var tags []string
	seen := make(map[string]bool)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if col >= len(rec) {
			continue
		}
		tag := strings.TrimSpace(rec[col])
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags, nil
}
