// Package sse implements an incremental Server-Sent Events parser.
//
// The parser is a plain state object: callers feed it raw body chunks as they
// arrive and receive the events that became complete. Chunk boundaries may
// fall anywhere, including inside a line, a CRLF pair or a multi-byte rune.
package sse

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// Kind distinguishes dispatched events from reconnection hints.
type Kind string

const (
	// KindEvent is a dispatched message event.
	KindEvent Kind = "event"
	// KindReconnectInterval is a retry field with a valid integer value.
	KindReconnectInterval Kind = "reconnect-interval"
)

// Event is a single parsed unit of an event stream.
type Event struct {
	Kind  Kind
	Name  string // event field, empty for the default "message" type
	ID    string // last event id at dispatch time
	Data  string
	Retry time.Duration // set for KindReconnectInterval
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// Parser reconstructs events from a byte stream. It is not safe for concurrent use.
type Parser struct {
	line      []byte // partial line carried over between feeds
	data      strings.Builder
	hasData   bool
	eventName string
	lastID    string

	pendingCR bool // previous feed ended on '\r'; a leading '\n' belongs to it
	started   bool // BOM check done
}

// NewParser returns an empty parser.
func NewParser() *Parser {
	return &Parser{}
}

// Reset clears all buffered state, including the last event id.
func (p *Parser) Reset() {
	*p = Parser{}
}

// Feed consumes the next chunk and returns every event it completed.
func (p *Parser) Feed(chunk []byte) []Event {
	if !p.started {
		// The BOM may itself be split; wait until we can decide.
		p.line = append(p.line, chunk...)
		if len(p.line) < len(bom) && bytes.HasPrefix(bom, p.line) {
			return nil
		}
		p.started = true
		chunk = bytes.TrimPrefix(p.line, bom)
		p.line = nil
	}

	var events []Event
	for len(chunk) > 0 {
		if p.pendingCR {
			p.pendingCR = false
			if chunk[0] == '\n' {
				chunk = chunk[1:]
				continue
			}
		}

		i := bytes.IndexAny(chunk, "\r\n")
		if i < 0 {
			p.line = append(p.line, chunk...)
			break
		}

		var line []byte
		if len(p.line) > 0 {
			p.line = append(p.line, chunk[:i]...)
			line = p.line
		} else {
			line = chunk[:i]
		}

		if chunk[i] == '\r' {
			if i+1 < len(chunk) {
				if chunk[i+1] == '\n' {
					i++
				}
			} else {
				p.pendingCR = true
			}
		}
		chunk = chunk[i+1:]

		if ev, ok := p.processLine(line); ok {
			events = append(events, ev)
		}
		p.line = p.line[:0]
	}
	return events
}

func (p *Parser) processLine(line []byte) (Event, bool) {
	if len(line) == 0 {
		return p.dispatch()
	}
	if line[0] == ':' {
		return Event{}, false
	}

	field, value := string(line), ""
	if i := bytes.IndexByte(line, ':'); i >= 0 {
		field = string(line[:i])
		v := line[i+1:]
		if len(v) > 0 && v[0] == ' ' {
			v = v[1:]
		}
		value = string(v)
	}

	switch field {
	case "data":
		p.data.WriteString(value)
		p.data.WriteByte('\n')
		p.hasData = true
	case "event":
		p.eventName = value
	case "id":
		if !strings.ContainsRune(value, 0) {
			p.lastID = value
		}
	case "retry":
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 && isDigits(value) {
			return Event{Kind: KindReconnectInterval, Retry: time.Duration(ms) * time.Millisecond}, true
		}
	}
	return Event{}, false
}

func (p *Parser) dispatch() (Event, bool) {
	defer func() {
		p.data.Reset()
		p.hasData = false
		p.eventName = ""
	}()

	if !p.hasData {
		return Event{}, false
	}
	data := p.data.String()
	return Event{
		Kind: KindEvent,
		Name: p.eventName,
		ID:   p.lastID,
		Data: strings.TrimSuffix(data, "\n"),
	}, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
