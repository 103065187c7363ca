package sse

import (
	"testing"
	"time"
)

func feedAll(p *Parser, chunks ...string) []Event {
	var out []Event
	for _, c := range chunks {
		out = append(out, p.Feed([]byte(c))...)
	}
	return out
}

func TestFeed_SingleEvent(t *testing.T) {
	events := feedAll(NewParser(), "data: {\"a\":1}\n\n")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != KindEvent || events[0].Data != `{"a":1}` {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestFeed_SplitAcrossEveryByte(t *testing.T) {
	stream := "event: delta\nid: 7\ndata: hello\ndata: world\n\ndata: second\n\n"

	whole := feedAll(NewParser(), stream)

	p := NewParser()
	var split []Event
	for i := 0; i < len(stream); i++ {
		split = append(split, p.Feed([]byte{stream[i]})...)
	}

	if len(whole) != 2 || len(split) != 2 {
		t.Fatalf("expected 2 events each, got whole=%d split=%d", len(whole), len(split))
	}
	for i := range whole {
		if whole[i] != split[i] {
			t.Errorf("event %d differs: whole=%+v split=%+v", i, whole[i], split[i])
		}
	}
	if whole[0].Name != "delta" || whole[0].ID != "7" || whole[0].Data != "hello\nworld" {
		t.Errorf("unexpected first event %+v", whole[0])
	}
	if whole[1].Name != "" || whole[1].ID != "7" {
		t.Errorf("event name must reset, id must persist: %+v", whole[1])
	}
}

func TestFeed_LineEndings(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
	}{
		{"lf", []string{"data: x\n\n"}},
		{"crlf", []string{"data: x\r\n\r\n"}},
		{"cr", []string{"data: x\r\r"}},
		{"crlf split", []string{"data: x\r", "\n\r", "\n"}},
		{"cr then data", []string{"data: x\r", "\r"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			events := feedAll(NewParser(), tc.chunks...)
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d: %+v", len(events), events)
			}
			if events[0].Data != "x" {
				t.Errorf("data = %q, want x", events[0].Data)
			}
		})
	}
}

func TestFeed_CommentsAndUnknownFields(t *testing.T) {
	events := feedAll(NewParser(), ": keep-alive\n\nfoo: bar\ndata\n\n")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Data != "" {
		t.Errorf("field without colon must yield empty value, got %q", events[0].Data)
	}
}

func TestFeed_NoDispatchWithoutData(t *testing.T) {
	events := feedAll(NewParser(), "event: ping\n\n\n\n")
	if len(events) != 0 {
		t.Errorf("expected no events, got %+v", events)
	}
}

func TestFeed_LeadingSpaceStrippedOnce(t *testing.T) {
	events := feedAll(NewParser(), "data:  two spaces\ndata:none\n\n")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Data != " two spaces\nnone" {
		t.Errorf("data = %q", events[0].Data)
	}
}

func TestFeed_Retry(t *testing.T) {
	events := feedAll(NewParser(), "retry: 1500\nretry: soon\n")
	if len(events) != 1 {
		t.Fatalf("expected 1 reconnect event, got %d", len(events))
	}
	if events[0].Kind != KindReconnectInterval || events[0].Retry != 1500*time.Millisecond {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestFeed_IgnoresIDWithNull(t *testing.T) {
	events := feedAll(NewParser(), "id: 1\n\nid: a\x00b\ndata: x\n\n")
	if len(events) != 1 || events[0].ID != "1" {
		t.Fatalf("expected id 1 to persist, got %+v", events)
	}
}

func TestFeed_BOM(t *testing.T) {
	p := NewParser()
	events := feedAll(p, "\xEF", "\xBB\xBFdata: x\n\n")
	if len(events) != 1 || events[0].Data != "x" {
		t.Fatalf("expected BOM to be stripped, got %+v", events)
	}

	events = feedAll(NewParser(), "\xEFdata: y\n\n")
	if len(events) != 0 {
		t.Errorf("partial BOM prefix is a corrupt field name, expected no events, got %+v", events)
	}
}

func TestFeed_MultiByteRuneSplit(t *testing.T) {
	payload := "data: héllo 世界\n\n"
	p := NewParser()
	var events []Event
	// split inside the 3-byte rune
	cut := len("data: héllo ") + 1
	events = append(events, p.Feed([]byte(payload[:cut]))...)
	events = append(events, p.Feed([]byte(payload[cut:]))...)
	if len(events) != 1 || events[0].Data != "héllo 世界" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestFeed_IncompleteEventHeld(t *testing.T) {
	p := NewParser()
	if events := p.Feed([]byte("data: partial")); len(events) != 0 {
		t.Fatalf("expected nothing yet, got %+v", events)
	}
	if events := p.Feed([]byte("\n")); len(events) != 0 {
		t.Fatalf("expected nothing before blank line, got %+v", events)
	}
	events := p.Feed([]byte("\n"))
	if len(events) != 1 || events[0].Data != "partial" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestReset(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("id: 9\ndata: half"))
	p.Reset()
	events := p.Feed([]byte("data: fresh\n\n"))
	if len(events) != 1 || events[0].Data != "fresh" || events[0].ID != "" {
		t.Fatalf("unexpected events after reset %+v", events)
	}
}
