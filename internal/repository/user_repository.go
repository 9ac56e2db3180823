package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/obinnaeke/quickvend/internal/model"
	"github.com/obinnaeke/quickvend/internal/utils"
)

const userColumns = "id,email,password_hash,role,token_version,pin_set,pin_hash,pin_failed_attempts,pin_locked_until,is_active,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and an empty wallet, returning the user ID.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashSecret(password, cost)
	if err != nil {
		return 0, err
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role) VALUES (?,?,?)",
		email, hash, role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO wallets (user_id, balance_kobo) VALUES (?,0)", id); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// SetPin stores a new transaction-PIN hash and clears any previous
// failure state.
func (r *UserRepo) SetPin(ctx context.Context, id uint64, pinHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET pin_set=1, pin_hash=?, pin_failed_attempts=0, pin_locked_until=NULL WHERE id=?",
		pinHash, id)
	return err
}

// UpdatePinState persists the PIN failure counter and lockout deadline.
// This is the only write path for those columns outside SetPin.
func (r *UserRepo) UpdatePinState(ctx context.Context, id uint64, failedAttempts int, lockedUntil *time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET pin_failed_attempts=?, pin_locked_until=? WHERE id=?",
		failedAttempts, lockedUntil, id)
	return err
}

// BumpTokenVersion increments the user's session epoch, invalidating
// every previously issued access token.
func (r *UserRepo) BumpTokenVersion(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET token_version=token_version+1 WHERE id=?", id)
	return err
}

// UpdatePassword replaces the password hash and bumps the token version
// in the same statement so stolen tokens die with the old password.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, token_version=token_version+1 WHERE id=?",
		passwordHash, id)
	return err
}

// List returns users ordered by id for the admin panel.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	return scanUser(row)
}

type rowScanner interface{ Scan(dest ...any) error }

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var lockedUntil sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.TokenVersion,
		&u.PinSet, &u.PinHash, &u.PinFailedAttempts, &lockedUntil,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		u.PinLockedUntil = &t
	}
	return u, nil
}

// isDuplicate reports whether err is a MySQL unique-constraint violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
