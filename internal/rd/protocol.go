// Package rd turns soundboard claims into clarifying questions and
// implementation deltas, and builds the deltas in dependency order.
//
// LLM output uses a line protocol: one record per line, fields separated by
// "|", each field "key=value". A literal pipe inside a value is written "\|".
package rd

import "strings"

// SplitFields splits a protocol line on unescaped pipes. Returned parts are
// trimmed but still escaped.
func SplitFields(line string) []string {
	var parts []string
	var current strings.Builder

	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '\\' && i+1 < len(line) && line[i+1] == '|' {
			current.WriteString(`\|`)
			i++
			continue
		}
		if c == '|' {
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
			continue
		}
		current.WriteByte(c)
	}
	parts = append(parts, strings.TrimSpace(current.String()))

	return parts
}

// ParseFields parses the key=value fields after the record tag. Parts
// without "=" are ignored; later duplicates win.
func ParseFields(line string) map[string]string {
	parts := SplitFields(line)
	fields := make(map[string]string, len(parts))
	for _, part := range parts[1:] {
		idx := strings.Index(part, "=")
		if idx == -1 {
			continue
		}
		key := strings.TrimSpace(part[:idx])
		fields[key] = UnescapePipes(strings.TrimSpace(part[idx+1:]))
	}
	return fields
}

// EscapePipes escapes "|" for embedding in a protocol field
func EscapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// UnescapePipes reverses EscapePipes
func UnescapePipes(s string) string {
	return strings.ReplaceAll(s, `\|`, "|")
}

// protocolLines returns the trimmed non-empty lines of raw LLM output.
// Markdown fences and bullets some models add anyway are stripped.
func protocolLines(raw string) []string {
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimSpace(l)
		l = strings.TrimLeft(l, "-* ")
		if l == "" || strings.HasPrefix(l, "```") {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// splitList splits a ";"-separated value, dropping empty items
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ";") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
