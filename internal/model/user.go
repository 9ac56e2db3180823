package model

import "time"

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types with appropriate JSON tags.
//
// TokenVersion is stamped into every issued access token. Bumping
// the column invalidates all tokens minted before the bump, which
// is how password changes and "logout everywhere" revoke sessions
// without a revocation list.
//
// The Pin* columns hold the transaction-PIN second factor. Unlike
// login-attempt tracking (which is process-local), the PIN failure
// counter and lock live on the durable record: PIN brute-forcing
// targets a single already-authenticated account and must survive
// process restarts.
//
// Fields:
//  ID                – primary key identifier of the user.
//  Email             – unique email address.
//  PasswordHash      – bcrypt hashed password.
//  Role              – role name (user or admin).
//  TokenVersion      – current session epoch; see above.
//  PinSet            – whether a transaction PIN has been configured.
//  PinHash           – bcrypt hash of the transaction PIN ("" until set).
//  PinFailedAttempts – consecutive failed PIN checks since the last success.
//  PinLockedUntil    – end of the active PIN lockout (nil when unlocked).
//  IsActive          – whether the account is active.
//  CreatedAt         – timestamp of creation.
//  UpdatedAt         – timestamp of last update.
type User struct {
	ID                uint64     // users.id
	Email             string     // users.email
	PasswordHash      string     // users.password_hash
	Role              string     // users.role
	TokenVersion      int        // users.token_version
	PinSet            bool       // users.pin_set
	PinHash           string     // users.pin_hash
	PinFailedAttempts int        // users.pin_failed_attempts
	PinLockedUntil    *time.Time // users.pin_locked_until (nullable)
	IsActive          bool       // users.is_active
	CreatedAt         time.Time  // users.created_at
	UpdatedAt         time.Time  // users.updated_at
}

// Role values stored in users.role. Issued tokens carry the same
// values in the "role" claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// PinLockActive reports whether the user's transaction PIN is locked
// at the given instant.
func (u *User) PinLockActive(now time.Time) bool {
	return u.PinLockedUntil != nil && now.Before(*u.PinLockedUntil)
}
