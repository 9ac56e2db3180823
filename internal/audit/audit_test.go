package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestLogWritesNDJSON(t *testing.T) {
	var buf bytes.Buffer
	a := New(&buf, "")

	ctx := WithRequestID(context.Background(), "req-123")
	a.Log(ctx, EventLoginFailed, map[string]any{"ip": "10.0.0.1"})

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("entry not valid JSON: %v", err)
	}
	if entry["event"] != EventLoginFailed {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["id"] == "" || entry["ts"] == "" {
		t.Fatalf("missing id/ts: %v", entry)
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["ip"] != "10.0.0.1" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogAppendsOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	a := New(&buf, "")
	a.Log(context.Background(), EventAdminAction, nil)
	a.Log(context.Background(), EventAdminAction, nil)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for _, l := range lines {
		var entry map[string]any
		if err := json.Unmarshal(l, &entry); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("sink gone") }

func TestLogNeverPanicsOrErrors(t *testing.T) {
	// Nil auditor, empty kind, failing writer: all must be silent no-ops
	// from the caller's point of view.
	var nilAuditor *Auditor
	nilAuditor.Log(context.Background(), EventLoginFailed, nil)

	a := New(failingWriter{}, "")
	a.Log(context.Background(), "", nil)
	a.Log(context.Background(), EventLoginFailed, map[string]any{"k": "v"})
}
