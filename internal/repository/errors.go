// Package repository adapts the credential and wallet stores to the rest
// of the application. Sentinel errors defined here let handlers and
// middleware distinguish failure scenarios without inspecting driver
// errors directly.
package repository

import "errors"

// ErrEmailExists is returned when an insert collides with the unique
// email index. Handlers translate this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrInsufficientFunds is returned when a debit would take a wallet
// balance below zero. Handlers translate this into an HTTP 400.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrNoWallet is returned when a user has no wallet row. This indicates
// a provisioning bug since wallets are created with the account.
var ErrNoWallet = errors.New("wallet not found")
