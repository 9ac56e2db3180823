// Package security implements the process-local login lockout policy.
// Attempt records live in memory for the lifetime of the process and are
// cleared on restart, which is an accepted reset-on-deploy behavior. A
// multi-instance deployment would move this map into a shared TTL-capable
// store while keeping the same threshold/window/duration semantics.
package security

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Policy constants. The lockout duration doubles as the sliding window
// within which failures accumulate: fail maxAttempts times inside
// attemptWindow and the email is locked for lockDuration.
const (
	maxAttempts   = 15
	lockDuration  = 3 * time.Minute
	attemptWindow = lockDuration
)

type attemptRecord struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time // zero while unlocked
}

// Lockout describes an active login lock for an email.
type Lockout struct {
	Until     time.Time
	Remaining time.Duration
}

// RemainingText renders the remaining wait in minutes when above a
// minute, otherwise in seconds, for the client-facing message.
func (l *Lockout) RemainingText() string {
	if l.Remaining > time.Minute {
		mins := int((l.Remaining + time.Minute - 1) / time.Minute)
		return fmt.Sprintf("%d minutes", mins)
	}
	secs := int((l.Remaining + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d seconds", secs)
}

// LoginTracker counts failed login attempts per email and enforces
// time-boxed lockouts. All methods are safe for concurrent use.
type LoginTracker struct {
	mu      sync.Mutex
	records map[string]*attemptRecord
	now     func() time.Time
}

func NewLoginTracker() *LoginTracker {
	return &LoginTracker{records: make(map[string]*attemptRecord), now: time.Now}
}

// Check is called before credential verification. It returns a non-nil
// Lockout while the email is locked. Expired locks and windows that
// elapsed without reaching the threshold delete the record on sight, so
// the map only holds entries for actively failing emails.
func (t *LoginTracker) Check(email string) *Lockout {
	email = normalize(email)
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[email]
	if !ok {
		return nil
	}
	now := t.now()
	if !rec.lockedUntil.IsZero() {
		if now.Before(rec.lockedUntil) {
			return &Lockout{Until: rec.lockedUntil, Remaining: rec.lockedUntil.Sub(now)}
		}
		delete(t.records, email)
		return nil
	}
	if now.Sub(rec.firstAttempt) > attemptWindow {
		// Window elapsed below the threshold: forgiveness.
		delete(t.records, email)
	}
	return nil
}

// RecordFailure registers one failed attempt. When the failure count
// reaches the threshold a lock is set and returned; the counter and
// window restart so a fresh window begins after the lock expires.
func (t *LoginTracker) RecordFailure(email string) *Lockout {
	email = normalize(email)
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	rec, ok := t.records[email]
	if !ok {
		rec = &attemptRecord{firstAttempt: now}
		t.records[email] = rec
	}
	rec.count++
	if rec.count >= maxAttempts {
		rec.lockedUntil = now.Add(lockDuration)
		rec.count = 0
		rec.firstAttempt = now
		return &Lockout{Until: rec.lockedUntil, Remaining: lockDuration}
	}
	return nil
}

// Reset deletes the record for an email after a successful login.
func (t *LoginTracker) Reset(email string) {
	email = normalize(email)
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, email)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
