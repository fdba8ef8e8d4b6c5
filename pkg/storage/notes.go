package storage

import (
	"strings"
	"time"
)

const (
	lastUpdatedPrefix = "Last updated:"
	modifiedByPrefix  = "[Modified by:"
)

// StampNote returns content with its previous stamps replaced by fresh ones:
//
//	[Modified by: <user> at <time>]   (non-admin authors only)
//	<body>
//	Last updated: <time>
//
// A trailing "Last updated:" line and every "[Modified by:" line are
// stripped first, so repeated saves do not accumulate stamps.
func StampNote(content string, by Author, now time.Time) string {
	body := StripStamps(content)
	if by.Name != "" && !by.Admin {
		line := modifiedByPrefix + " " + by.Name + " at " + now.Format("2006-01-02 15:04:05 MST") + "]"
		if body == "" {
			body = line
		} else {
			body = line + "\n" + body
		}
	}

	var lines []string
	if body != "" {
		lines = strings.Split(body, "\n")
	}
	lines = append(lines, lastUpdatedPrefix+" "+now.Format("2006-01-02 15:04 MST"))
	return strings.Join(lines, "\n") + "\n"
}

// StripStamps removes the trailing "Last updated:" line and all
// "[Modified by:" lines.
func StripStamps(content string) string {
	lines := strings.Split(strings.TrimRight(content, " \t\r\n"), "\n")
	if n := len(lines); n > 0 && strings.HasPrefix(lines[n-1], lastUpdatedPrefix) {
		lines = lines[:n-1]
	}
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), modifiedByPrefix) {
			continue
		}
		kept = append(kept, strings.TrimRight(l, "\r"))
	}
	return strings.TrimRight(strings.Join(kept, "\n"), "\n")
}
