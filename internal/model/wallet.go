package model

import "time"

// Wallet models a row in the `wallets` table. Every user owns exactly
// one wallet; balances are stored as integer kobo amounts to avoid
// floating point.
//
// Fields:
//  ID           – primary key identifier.
//  UserID       – owner of the wallet (unique).
//  BalanceKobo  – current balance in kobo.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type Wallet struct {
	ID          uint64    // wallets.id
	UserID      uint64    // wallets.user_id
	BalanceKobo int64     // wallets.balance_kobo
	CreatedAt   time.Time // wallets.created_at
	UpdatedAt   time.Time // wallets.updated_at
}
