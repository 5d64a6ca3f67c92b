// Package ledger implements balance arithmetic for fungible token holdings.
// Balances never go negative: an operation that would overdraw fails instead
// of clamping.
package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNegativeAmount      = errors.New("amount must not be negative")
)

func Issue(balance decimal.Decimal, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return balance, ErrNegativeAmount
	}
	return balance.Add(amount), nil
}

func Revoke(balance decimal.Decimal, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return balance, ErrNegativeAmount
	}
	result := balance.Sub(amount)
	if result.IsNegative() {
		return balance, ErrInsufficientBalance
	}
	return result, nil
}

// Transfer moves amount from one balance to another. On error both balances are returned unchanged.
func Transfer(from decimal.Decimal, to decimal.Decimal, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	newFrom, err := Revoke(from, amount)
	if err != nil {
		return from, to, err
	}
	newTo, err := Issue(to, amount)
	if err != nil {
		return from, to, err
	}
	return newFrom, newTo, nil
}
