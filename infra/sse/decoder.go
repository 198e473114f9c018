package sse

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultEventType = "message"

	maxLineSize = 4 << 20

	bom = "\ufeff"
)

// Message is one dispatched server-sent event.
type Message struct {
	// ID is the last event ID at dispatch time.
	ID    string
	Event string
	Data  string
}

// Decoder reads server-sent events from a text/event-stream body.
type Decoder struct {
	scanner *bufio.Scanner

	lastID string
	retry  time.Duration

	event string
	data  strings.Builder
	// hasData is set once a data field was seen, even an empty one.
	hasData bool
	started bool
}

func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	s.Split(scanLines)

	return &Decoder{scanner: s}
}

// WithLastEventID seeds the ID reported with events that carry none.
func (d *Decoder) WithLastEventID(id string) *Decoder {
	d.lastID = id
	return d
}

// LastEventID is the value of the last id field seen.
func (d *Decoder) LastEventID() string {
	return d.lastID
}

// Retry is the reconnection time requested by the server, 0 if none.
func (d *Decoder) Retry() time.Duration {
	return d.retry
}

// Next blocks until an event is dispatched. It returns io.EOF when the
// stream ends; an event left without its terminating blank line is
// discarded.
func (d *Decoder) Next() (Message, error) {
	for d.scanner.Scan() {
		line := d.scanner.Text()
		if !d.started {
			// a single leading byte order mark is not part of the stream
			line = strings.TrimPrefix(line, bom)
			d.started = true
		}
		if line == "" {
			if msg, ok := d.dispatch(); ok {
				return msg, nil
			}
			continue
		}
		d.field(line)
	}
	if err := d.scanner.Err(); err != nil {
		return Message{}, err
	}

	return Message{}, io.EOF
}

func (d *Decoder) field(line string) {
	if strings.HasPrefix(line, ":") {
		return
	}

	name, value := line, ""
	if i := strings.IndexByte(line, ':'); i >= 0 {
		name, value = line[:i], strings.TrimPrefix(line[i+1:], " ")
	}

	switch name {
	case "event":
		d.event = value
	case "data":
		if d.hasData {
			d.data.WriteByte('\n')
		}
		d.data.WriteString(value)
		d.hasData = true
	case "id":
		if !strings.ContainsRune(value, 0) {
			d.lastID = value
		}
	case "retry":
		if ms, err := strconv.ParseUint(value, 10, 63); err == nil {
			d.retry = time.Duration(ms) * time.Millisecond
		}
	}
}

func (d *Decoder) dispatch() (Message, bool) {
	defer func() {
		d.event = ""
		d.data.Reset()
		d.hasData = false
	}()

	if !d.hasData {
		return Message{}, false
	}

	event := d.event
	if event == "" {
		event = DefaultEventType
	}

	return Message{
		ID:    d.lastID,
		Event: event,
		Data:  d.data.String(),
	}, true
}

// scanLines splits on CRLF, LF or a lone CR.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		// CR at the end of the buffer may be the first half of CRLF.
		if i+1 == len(data) && !atEOF {
			return 0, nil, nil
		}
		if i+1 < len(data) && data[i+1] == '\n' {
			return i + 2, data[:i], nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}

	return 0, nil, nil
}
