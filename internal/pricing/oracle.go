// Package pricing supplies ETH/USD and per-token derived prices to the event
// handlers. The price-graph walk over whitelisted tokens lives behind the
// Oracle interface; handlers only consume its results.
package pricing

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/deerfi/flashloan-indexer/internal/entity"
)

// Oracle exposes the price lookups the handlers need. A zero result means
// "unknown"; callers guard divisions accordingly.
type Oracle interface {
	// EthPriceUSD returns the current ETH/USD price.
	EthPriceUSD(ctx context.Context) decimal.Decimal

	// DerivedEthPrice returns the token's price denominated in ETH.
	DerivedEthPrice(ctx context.Context, token *entity.Token) decimal.Decimal

	// TrackedLiquidityUSD values a pool reserve in USD, counting only
	// whitelisted price-trustworthy tokens. Untracked tokens value to zero.
	TrackedLiquidityUSD(ctx context.Context, reserve decimal.Decimal, token *entity.Token) decimal.Decimal
}

// WhitelistOracle prices tokens against a configured whitelist of token→ETH
// ratios, anchored on a mutable ETH/USD quote that the poller refreshes.
type WhitelistOracle struct {
	weth string

	mu        sync.RWMutex
	ethUSD    decimal.Decimal
	derived   map[string]decimal.Decimal // token id -> price in ETH
}

// NewWhitelist creates an oracle. weth is the wrapped-ETH token address;
// derived maps whitelisted token addresses to their ETH-denominated prices.
func NewWhitelist(weth string, derived map[string]decimal.Decimal) *WhitelistOracle {
	m := make(map[string]decimal.Decimal, len(derived))
	for addr, p := range derived {
		m[strings.ToLower(addr)] = p
	}
	return &WhitelistOracle{
		weth:    strings.ToLower(weth),
		derived: m,
	}
}

// SetEthPriceUSD replaces the ETH/USD quote.
func (o *WhitelistOracle) SetEthPriceUSD(p decimal.Decimal) {
	o.mu.Lock()
	o.ethUSD = p
	o.mu.Unlock()
}

// SetDerivedEthPrice replaces one token's ETH-denominated price.
func (o *WhitelistOracle) SetDerivedEthPrice(token string, p decimal.Decimal) {
	o.mu.Lock()
	o.derived[strings.ToLower(token)] = p
	o.mu.Unlock()
}

func (o *WhitelistOracle) EthPriceUSD(ctx context.Context) decimal.Decimal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.ethUSD
}

func (o *WhitelistOracle) DerivedEthPrice(ctx context.Context, token *entity.Token) decimal.Decimal {
	if token == nil {
		return decimal.Zero
	}
	if token.ID == o.weth {
		return decimal.NewFromInt(1)
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.derived[token.ID]
}

func (o *WhitelistOracle) TrackedLiquidityUSD(ctx context.Context, reserve decimal.Decimal, token *entity.Token) decimal.Decimal {
	if token == nil {
		return decimal.Zero
	}
	derived := o.DerivedEthPrice(ctx, token)
	if derived.IsZero() {
		// token not on the whitelist: none of its liquidity is tracked
		return decimal.Zero
	}
	o.mu.RLock()
	eth := o.ethUSD
	o.mu.RUnlock()
	return reserve.Mul(derived).Mul(eth)
}
