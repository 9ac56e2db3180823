// Package audit provides the append-only security event trail. Events are
// written as newline-delimited JSON to a local stream and mirrored to the
// message broker for durable collection. Logging is strictly best-effort:
// no call in this package ever returns an error to the caller or delays
// the request that triggered it.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event kinds emitted by the gates and the response hook.
const (
	EventLoginFailed        = "LOGIN_FAILED"
	EventLoginSuccess       = "LOGIN_SUCCESS"
	EventAdminAccess        = "ADMIN_ACCESS"
	EventAdminAction        = "ADMIN_ACTION"
	EventUnauthorizedAdmin  = "UNAUTHORIZED_ADMIN_ACCESS"
	EventInvalidPin         = "INVALID_PIN"
	EventPinLocked          = "PIN_LOCKED"
	EventAccountLocked      = "ACCOUNT_LOCKED"
	EventSensitiveSubmitted = "KYC_SUBMISSION"
	EventCriticalError      = "CRITICAL_ERROR"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches a request identifier to the context so every
// event emitted while serving that request can be correlated.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Auditor appends security events to a local NDJSON stream and, when a
// broker URL is configured, publishes a copy of each entry to the
// security.events queue in the background.
type Auditor struct {
	mu      sync.Mutex
	out     io.Writer
	amqpURL string
}

// New builds an Auditor writing to out. Pass "" for amqpURL to disable
// broker publishing. A nil out falls back to stderr.
func New(out io.Writer, amqpURL string) *Auditor {
	if out == nil {
		out = os.Stderr
	}
	return &Auditor{out: out, amqpURL: amqpURL}
}

// Log appends one timestamped event. Failures to serialize, write or
// publish are swallowed after an operational log line; the security
// trail is a side channel and must never perturb the request path.
func (a *Auditor) Log(ctx context.Context, kind string, fields map[string]any) {
	if a == nil || strings.TrimSpace(kind) == "" {
		return
	}
	entry := map[string]any{
		"id":    uuid.NewString(),
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"event": kind,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if len(fields) > 0 {
		entry["fields"] = fields
	} else {
		entry["fields"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("audit: marshal event failed: %v", err)
		return
	}

	a.mu.Lock()
	_, werr := a.out.Write(append(data, '\n'))
	a.mu.Unlock()
	if werr != nil {
		log.Printf("audit: write event failed: %v", werr)
	}

	if a.amqpURL != "" {
		// Fired after the local append; the response never waits on the broker.
		go publishEvent(a.amqpURL, data)
	}
}
