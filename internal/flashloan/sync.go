package flashloan

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/deerfi/flashloan-indexer/internal/entity"
)

// handleSync recomputes prices and liquidity after a reserve change. The
// factory's tracked liquidity is maintained subtract-old, add-new so it stays
// correct across any number of pools. The ETH/USD quote is refreshed before
// the derived token price, and both before the tracked-liquidity valuation,
// since each later step consumes the earlier result.
func (m *Module) handleSync(ctx context.Context, ev *SyncEvent) error {
	pool, err := m.loadPool(ctx, entity.Addr(ev.Address))
	if err != nil {
		return err
	}
	if pool == nil {
		return nil
	}
	token, err := m.loadToken(ctx, pool.Token)
	if err != nil {
		return err
	}
	factory, err := m.loadFactory(ctx)
	if err != nil {
		return err
	}
	bundle, err := m.loadBundle(ctx)
	if err != nil {
		return err
	}
	if token == nil || token.Decimals == nil || factory == nil || bundle == nil {
		m.logger.Warn().Str("pool", pool.ID).Msg("Sync for pool with incomplete context, skipping")
		return nil
	}

	// back out this pool's previous contribution before recomputing
	factory.TotalLiquidityETH = factory.TotalLiquidityETH.Sub(pool.TrackedReserveETH)
	token.TotalLiquidity = token.TotalLiquidity.Sub(pool.Reserve)

	pool.Reserve = entity.ConvertTokenToDecimal(ev.Reserve, *token.Decimals)
	pool.TokenPrice = decimal.Zero
	if err := m.save(ctx, entity.KindPool, pool.ID, pool); err != nil {
		return err
	}

	bundle.EthPrice = m.oracle.EthPriceUSD(ctx)
	if err := m.save(ctx, entity.KindBundle, bundle.ID, bundle); err != nil {
		return err
	}

	token.DerivedETH = m.oracle.DerivedEthPrice(ctx, token)
	if err := m.save(ctx, entity.KindToken, token.ID, token); err != nil {
		return err
	}

	trackedLiquidityETH := decimal.Zero
	if !bundle.EthPrice.IsZero() {
		trackedLiquidityETH = m.oracle.TrackedLiquidityUSD(ctx, pool.Reserve, token).Div(bundle.EthPrice)
	}

	pool.TrackedReserveETH = trackedLiquidityETH
	pool.ReserveETH = pool.Reserve.Mul(token.DerivedETH)
	pool.ReserveUSD = pool.ReserveETH.Mul(bundle.EthPrice)

	factory.TotalLiquidityETH = factory.TotalLiquidityETH.Add(trackedLiquidityETH)
	factory.TotalLiquidityUSD = factory.TotalLiquidityETH.Mul(bundle.EthPrice)

	token.TotalLiquidity = token.TotalLiquidity.Add(pool.Reserve)

	if err := m.save(ctx, entity.KindPool, pool.ID, pool); err != nil {
		return err
	}
	if err := m.save(ctx, entity.KindFactory, factory.ID, factory); err != nil {
		return err
	}
	if err := m.save(ctx, entity.KindToken, token.ID, token); err != nil {
		return err
	}

	m.publishPool(ctx, pool)
	return nil
}
