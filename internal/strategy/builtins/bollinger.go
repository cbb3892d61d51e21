// Package builtins provides built-in strategy implementations that ship with
// bandtest.
package builtins

import (
	"context"
	"fmt"
	"strconv"

	"bandtest/internal/domain"
	"bandtest/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*BollingerReversion)(nil)

// BollingerReversionName is the registry key of BollingerReversion.
const BollingerReversionName = "bollinger-reversion"

// BollingerReversion is a long-only mean-reversion strategy. It buys when the
// close touches the lower band and at least one lot is affordable, and sells
// the whole position when the close touches the upper band. The buy check
// runs first; the sell check only runs when no buy is signalled.
type BollingerReversion struct{}

// NewBollingerReversion creates the strategy.
func NewBollingerReversion() *BollingerReversion {
	return &BollingerReversion{}
}

// Name returns "bollinger-reversion".
func (s *BollingerReversion) Name() string {
	return BollingerReversionName
}

// Init is a no-op; the strategy keeps no state between bars.
func (s *BollingerReversion) Init(_ context.Context) error {
	return nil
}

// OnBar returns at most one signal for the bar.
func (s *BollingerReversion) OnBar(_ context.Context, bar domain.BandedBar, acct domain.AccountInfo) ([]domain.Signal, error) {
	if !bar.HasBands {
		return nil, nil
	}

	p := bar.Close
	switch {
	case p <= bar.Lower && acct.Cash >= p*float64(acct.LotSize):
		return []domain.Signal{{
			Type:   domain.SignalTypeBuy,
			Price:  p,
			Reason: fmt.Sprintf("price (%s) touched lower band", formatPrice(p)),
		}}, nil
	case p >= bar.Upper && acct.Shares > 0:
		return []domain.Signal{{
			Type:   domain.SignalTypeSell,
			Price:  p,
			Reason: fmt.Sprintf("price (%s) touched upper band", formatPrice(p)),
		}}, nil
	}
	return nil, nil
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// Register adds every builtin strategy to r.
func Register(r *strategy.Registry) {
	r.MustRegister(BollingerReversionName, func() strategy.Strategy { return NewBollingerReversion() })
}
