package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Frames on the upstream stream can carry whole rendered answers, so the
// line buffer has to be generous.
const maxLineBytes = 10 << 20

// terminalEvents are the upstream event names that end a stream. No events
// are yielded after one of these.
var terminalEvents = map[string]struct{}{
	"done":              {},
	"end_of_stream":     {},
	"final_sse_message": {},
}

// Event is one decoded unit of the upstream stream: the SSE event name and
// its parsed JSON payload.
type Event struct {
	Name string
	Data map[string]any
}

// Terminal reports whether this event ends the stream.
func (e Event) Terminal() bool {
	_, ok := terminalEvents[e.Name]
	return ok
}

// Decoder turns a raw SSE byte stream into a lazy, single-pass sequence of
// events. Frames are groups of lines separated by a blank line; each frame
// contributes an `event:` name and one or more `data:` lines holding a JSON
// payload. Malformed frames are skipped, not fatal.
type Decoder struct {
	scanner *bufio.Scanner
	done    bool
}

// NewDecoder wraps a raw line source. The decoder holds no buffer beyond
// the current frame.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Decoder{scanner: scanner}
}

// Next returns the next decoded event. It returns io.EOF once the source is
// exhausted or a terminal event has already been yielded.
func (d *Decoder) Next() (Event, error) {
	if d.done {
		return Event{}, io.EOF
	}

	for {
		name, data, ok := d.readFrame()
		if !ok {
			d.done = true
			if err := d.scanner.Err(); err != nil {
				return Event{}, fmt.Errorf("read upstream stream: %w", err)
			}
			return Event{}, io.EOF
		}

		if name == "" {
			slog.Debug("skipping frame without event name")
			continue
		}
		if data == "" {
			slog.Debug("skipping frame without data", "event", name)
			continue
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			slog.Debug("skipping malformed frame", "event", name, "err", err)
			continue
		}

		ev := Event{Name: name, Data: payload}
		if ev.Terminal() {
			d.done = true
		}
		return ev, nil
	}
}

// readFrame collects lines until a blank line or end of input. It reports
// ok=false only when the input ended before any frame content was seen.
func (d *Decoder) readFrame() (name, data string, ok bool) {
	var dataParts []string
	sawLine := false

	for d.scanner.Scan() {
		line := strings.TrimRight(d.scanner.Text(), "\r")
		if line == "" {
			if sawLine {
				return name, strings.Join(dataParts, ""), true
			}
			continue
		}
		sawLine = true

		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			dataParts = append(dataParts, strings.TrimSpace(line[len("data:"):]))
		default:
			// Comment or unknown field; SSE allows both.
		}
	}

	if sawLine {
		return name, strings.Join(dataParts, ""), true
	}
	return "", "", false
}
