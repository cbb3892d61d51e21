// Package broker defines the Broker interface and the in-memory simulator
// broker that fills backtest orders against a cash account.
package broker

import (
	"context"
	"errors"

	"bandtest/internal/domain"
)

// Order rejection reasons.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrInvalidQty         = errors.New("quantity must be a positive multiple of the lot size")
)

// Broker abstracts order execution and account inspection.
type Broker interface {
	// Name returns the broker identifier (e.g. "simulator").
	Name() string

	// SubmitOrder executes an order and returns it with fill details.
	SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)

	// GetAccount returns a snapshot of the account.
	GetAccount(ctx context.Context) (*domain.AccountInfo, error)
}
