// Package codeblock pulls fenced code blocks out of model output.
package codeblock

import (
	"regexp"
	"strings"
)

// fence matches an opening ``` with an optional language tag, the body, and
// the closing ```.
var fence = regexp.MustCompile("(?s)```[^\n]*\n(.*?)```")

// Extract returns the bodies of all fenced code blocks in text, each with
// surrounding blank lines removed, joined by a newline. When keyword is
// non-empty and occurs in text, scanning starts at its first occurrence.
// Text without a fenced block yields "".
func Extract(text, keyword string) string {
	if keyword != "" {
		if idx := strings.Index(text, keyword); idx >= 0 {
			text = text[idx:]
		}
	}

	matches := fence.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	bodies := make([]string, 0, len(matches))
	for _, m := range matches {
		bodies = append(bodies, trimBlankLines(m[1]))
	}
	return strings.Join(bodies, "\n")
}

// trimBlankLines drops whitespace-only lines at both ends of s and the
// trailing whitespace of the last line.
func trimBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	if start == end {
		return ""
	}
	lines = lines[start:end]
	lines[len(lines)-1] = strings.TrimRight(lines[len(lines)-1], " \t\r")
	return strings.Join(lines, "\n")
}
