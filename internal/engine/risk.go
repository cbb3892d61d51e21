package engine

import (
	"fmt"
	"math"

	"bandtest/internal/domain"
)

// RiskManager sizes orders in whole lots and enforces the long-only,
// fully-funded rules before orders reach the broker.
type RiskManager struct {
	lotSize int64
}

// NewRiskManager creates a RiskManager trading in multiples of lotSize.
func NewRiskManager(lotSize int64) *RiskManager {
	return &RiskManager{lotSize: lotSize}
}

// LotSize returns the configured lot size.
func (rm *RiskManager) LotSize() int64 {
	return rm.lotSize
}

// BuyQty returns the largest whole number of lots affordable with cash at
// price, in shares. The result never pushes held+qty past math.MaxInt64.
func (rm *RiskManager) BuyQty(cash, price float64, held int64) int64 {
	if !(price > 0) || !(cash > 0) || held < 0 {
		return 0
	}
	maxLots := (math.MaxInt64 - held) / rm.lotSize
	affordable := math.Floor(cash / (price * float64(rm.lotSize)))
	var lots int64
	if affordable >= float64(maxLots) {
		lots = maxLots
	} else {
		lots = int64(affordable)
	}
	// Guard against the product rounding above cash.
	for lots > 0 && float64(lots*rm.lotSize)*price > cash {
		lots--
	}
	return lots * rm.lotSize
}

// CheckOrder verifies that the order is a whole number of lots, that a buy is
// covered by cash and that a sell does not exceed the position.
func (rm *RiskManager) CheckOrder(order *domain.Order, account *domain.AccountInfo) error {
	if order.Qty <= 0 || order.Qty%rm.lotSize != 0 {
		return fmt.Errorf("order qty %d is not a positive multiple of lot %d", order.Qty, rm.lotSize)
	}
	switch order.Side {
	case domain.SideBuy:
		if cost := float64(order.Qty) * order.Price; cost > account.Cash {
			return fmt.Errorf("buy of %d at %v costs %.2f, cash %.2f", order.Qty, order.Price, cost, account.Cash)
		}
	case domain.SideSell:
		if order.Qty > account.Shares {
			return fmt.Errorf("sell of %d exceeds position %d", order.Qty, account.Shares)
		}
	}
	return nil
}
