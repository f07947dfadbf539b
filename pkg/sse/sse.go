package sse

import (
	"bufio"
	"bytes"
	"io"
)

// maxLineSize bounds a single SSE line; API-server events can carry large tool results.
const maxLineSize = 8 * 1024 * 1024

type Event struct {
	Event string `json:"event"`
	Data  []byte `json:"data"`
}

// Read parses an SSE stream and calls fn for every data line, in order.
// It stops at the first error returned by fn.
func Read(r io.Reader, fn func(*Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	currentEvent := &Event{}
	for scanner.Scan() {
		line := scanner.Bytes()
		if bytes.HasPrefix(line, []byte("event:")) {
			currentEvent.Event = string(bytes.TrimSpace(bytes.TrimPrefix(line, []byte("event:"))))
		}
		if bytes.HasPrefix(line, []byte("data:")) {
			data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
			currentEvent.Data = append([]byte(nil), data...)
			if err := fn(currentEvent); err != nil {
				return err
			}
			currentEvent = &Event{}
		}
	}
	return scanner.Err()
}
