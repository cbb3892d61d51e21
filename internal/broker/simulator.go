package broker

import (
	"context"
	"fmt"

	"bandtest/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

// SimulatorBroker fills market orders immediately at the order price against
// a long-only cash account. It is single-use: one broker per backtest run.
type SimulatorBroker struct {
	cash    float64
	shares  int64
	lotSize int64
	filled  int
}

// NewSimulatorBroker creates a SimulatorBroker holding initialCash and no
// shares, trading in multiples of lotSize.
func NewSimulatorBroker(initialCash float64, lotSize int64) *SimulatorBroker {
	return &SimulatorBroker{
		cash:    initialCash,
		lotSize: lotSize,
	}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// SubmitOrder fills the order in full at order.Price. Buys must be covered by
// cash and sells by held shares; both must be whole lots.
func (b *SimulatorBroker) SubmitOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	if order.Qty <= 0 || order.Qty%b.lotSize != 0 {
		order.Status = domain.OrderStatusRejected
		return order, fmt.Errorf("order %s qty %d lot %d: %w", order.ID, order.Qty, b.lotSize, ErrInvalidQty)
	}

	notional := float64(order.Qty) * order.Price
	switch order.Side {
	case domain.SideBuy:
		if notional > b.cash {
			order.Status = domain.OrderStatusRejected
			return order, fmt.Errorf("order %s needs %.2f, have %.2f: %w", order.ID, notional, b.cash, ErrInsufficientFunds)
		}
		b.cash -= notional
		b.shares += order.Qty
	case domain.SideSell:
		if order.Qty > b.shares {
			order.Status = domain.OrderStatusRejected
			return order, fmt.Errorf("order %s sells %d, hold %d: %w", order.ID, order.Qty, b.shares, ErrInsufficientShares)
		}
		b.cash += notional
		b.shares -= order.Qty
	default:
		order.Status = domain.OrderStatusRejected
		return order, fmt.Errorf("order %s: unknown side %q", order.ID, order.Side)
	}

	b.filled++
	order.Status = domain.OrderStatusFilled
	order.FilledQty = order.Qty
	order.FilledAvgPrice = order.Price
	return order, nil
}

// GetAccount returns the current cash and share balance.
func (b *SimulatorBroker) GetAccount(_ context.Context) (*domain.AccountInfo, error) {
	return &domain.AccountInfo{
		Cash:    b.cash,
		Shares:  b.shares,
		LotSize: b.lotSize,
	}, nil
}

// Fills returns the number of orders filled so far.
func (b *SimulatorBroker) Fills() int {
	return b.filled
}
