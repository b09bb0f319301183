// Package sse reads Server-Sent Events incrementally from a response body.
package sse

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
)

// maxLineSize bounds a single SSE line; token payloads are small but done events carry full results.
const maxLineSize = 1024 * 1024

// Event is one dispatched SSE event
type Event struct {
	ID    string
	Type  string // "message" when the stream names no type
	Data  string
	Retry int // Reconnection delay in ms, 0 when absent
}

// Reader parses events from an SSE stream
type Reader struct {
	scanner *bufio.Scanner
	lastID  string
}

// NewReader creates a reader over r
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next returns the next event. It returns io.EOF once the stream ends.
// Events with no data lines are skipped, as browsers do.
func (r *Reader) Next() (Event, error) {
	var (
		eventType string
		data      bytes.Buffer
		hasData   bool
		retry     int
	)

	dispatch := func() (Event, bool) {
		if !hasData {
			eventType, retry = "", 0
			return Event{}, false
		}
		ev := Event{
			ID:    r.lastID,
			Type:  eventType,
			Data:  strings.TrimSuffix(data.String(), "\n"),
			Retry: retry,
		}
		if ev.Type == "" {
			ev.Type = "message"
		}
		return ev, true
	}

	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")

		if line == "" {
			if ev, ok := dispatch(); ok {
				return ev, nil
			}
			continue
		}

		// Comment
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			eventType = value
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				r.lastID = value
			}
		case "retry":
			if n, err := strconv.Atoi(value); err == nil {
				retry = n
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}

	// Stream ended without a trailing blank line
	if ev, ok := dispatch(); ok {
		return ev, nil
	}
	return Event{}, io.EOF
}
