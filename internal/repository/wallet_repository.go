package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/obinnaeke/quickvend/internal/model"
)

type WalletRepo struct{ DB *sql.DB }

func NewWalletRepo(db *sql.DB) *WalletRepo { return &WalletRepo{DB: db} }

// GetByUserID fetches the wallet owned by a user.
func (r *WalletRepo) GetByUserID(ctx context.Context, userID uint64) (model.Wallet, error) {
	var w model.Wallet
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,balance_kobo,created_at,updated_at FROM wallets WHERE user_id=? LIMIT 1",
		userID).Scan(&w.ID, &w.UserID, &w.BalanceKobo, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Wallet{}, ErrNoWallet
	}
	return w, err
}

// Debit subtracts amount from the user's wallet. The guard in the WHERE
// clause makes the balance check and the subtraction a single atomic
// statement, so concurrent debits cannot overdraw.
func (r *WalletRepo) Debit(ctx context.Context, userID uint64, amountKobo int64) error {
	return debitTx(ctx, r.DB, userID, amountKobo)
}

// Credit adds amount to the user's wallet.
func (r *WalletRepo) Credit(ctx context.Context, userID uint64, amountKobo int64) error {
	return creditTx(ctx, r.DB, userID, amountKobo)
}

// Transfer moves amount between two wallets inside one transaction.
func (r *WalletRepo) Transfer(ctx context.Context, fromUserID, toUserID uint64, amountKobo int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := debitTx(ctx, tx, fromUserID, amountKobo); err != nil {
		return err
	}
	if err := creditTx(ctx, tx, toUserID, amountKobo); err != nil {
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func debitTx(ctx context.Context, db execer, userID uint64, amountKobo int64) error {
	res, err := db.ExecContext(ctx,
		"UPDATE wallets SET balance_kobo=balance_kobo-? WHERE user_id=? AND balance_kobo>=?",
		amountKobo, userID, amountKobo)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func creditTx(ctx context.Context, db execer, userID uint64, amountKobo int64) error {
	res, err := db.ExecContext(ctx,
		"UPDATE wallets SET balance_kobo=balance_kobo+? WHERE user_id=?",
		amountKobo, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoWallet
	}
	return nil
}
