package flashloan

import (
	"context"

	"github.com/deerfi/flashloan-indexer/internal/entity"
)

// handleMint completes the transaction's pending logical mint with the
// sender and underlying amount. A missing transaction or mint record means
// the transfer that should have preceded this event was not seen; the event
// is skipped rather than failing the stream.
func (m *Module) handleMint(ctx context.Context, ev *MintEvent) error {
	tx, err := m.loadTransaction(ctx, ev.TxID())
	if err != nil {
		return err
	}
	if tx == nil || len(tx.Mints) == 0 {
		m.logger.Warn().Str("tx", ev.TxID()).Msg("Mint event without pending mint, skipping")
		return nil
	}
	mint, err := m.loadMint(ctx, tx.Mints[len(tx.Mints)-1])
	if err != nil {
		return err
	}
	if mint == nil {
		m.logger.Warn().Str("tx", ev.TxID()).Msg("Mint event without pending mint, skipping")
		return nil
	}

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
		return nil
	}

	tokenAmount := entity.ConvertTokenToDecimal(ev.Amount, *token.Decimals)
	amountUSD := token.DerivedETH.Mul(tokenAmount).Mul(bundle.EthPrice)

	token.TxCount++
	pool.TxCount++
	factory.TxCount++

	if err := m.save(ctx, entity.KindToken, token.ID, token); err != nil {
		return err
	}
	if err := m.save(ctx, entity.KindPool, pool.ID, pool); err != nil {
		return err
	}
	if err := m.save(ctx, entity.KindFactory, factory.ID, factory); err != nil {
		return err
	}

	sender := entity.Addr(ev.Sender)
	logIndex := ev.LogIndex
	mint.Sender = &sender
	mint.Amount = &tokenAmount
	mint.AmountUSD = &amountUSD
	mint.LogIndex = &logIndex
	if err := m.save(ctx, entity.KindMint, mint.ID, mint); err != nil {
		return err
	}

	if err := m.touchPosition(ctx, pool, mint.To, ev.EventMeta); err != nil {
		return err
	}

	if _, err := m.updatePoolDayData(ctx, pool, ev.EventMeta); err != nil {
		return err
	}
	if _, err := m.updatePoolHourData(ctx, pool, ev.EventMeta); err != nil {
		return err
	}
	if _, err := m.updateFactoryDayData(ctx, factory, ev.EventMeta); err != nil {
		return err
	}
	if _, err := m.updateTokenDayData(ctx, token, bundle, ev.EventMeta); err != nil {
		return err
	}
	return nil
}

// handleBurn completes the transaction's pending logical burn with the
// underlying amount. Missing context is skipped, matching handleMint.
func (m *Module) handleBurn(ctx context.Context, ev *BurnEvent) error {
	tx, err := m.loadTransaction(ctx, ev.TxID())
	if err != nil {
		return err
	}
	if tx == nil || len(tx.Burns) == 0 {
		m.logger.Warn().Str("tx", ev.TxID()).Msg("Burn event without pending burn, skipping")
		return nil
	}
	burn, err := m.loadBurn(ctx, tx.Burns[len(tx.Burns)-1])
	if err != nil {
		return err
	}
	if burn == nil {
		m.logger.Warn().Str("tx", ev.TxID()).Msg("Burn event without pending burn, skipping")
		return nil
	}

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
		return nil
	}

	tokenAmount := entity.ConvertTokenToDecimal(ev.Amount, *token.Decimals)
	amountUSD := token.DerivedETH.Mul(tokenAmount).Mul(bundle.EthPrice)

	token.TxCount++
	pool.TxCount++
	factory.TxCount++

	if err := m.save(ctx, entity.KindToken, token.ID, token); err != nil {
		return err
	}
	if err := m.save(ctx, entity.KindPool, pool.ID, pool); err != nil {
		return err
	}
	if err := m.save(ctx, entity.KindFactory, factory.ID, factory); err != nil {
		return err
	}

	logIndex := ev.LogIndex
	burn.Amount = &tokenAmount
	burn.AmountUSD = &amountUSD
	burn.LogIndex = &logIndex
	if err := m.save(ctx, entity.KindBurn, burn.ID, burn); err != nil {
		return err
	}

	if burn.Sender != nil {
		if err := m.touchPosition(ctx, pool, *burn.Sender, ev.EventMeta); err != nil {
			return err
		}
	}

	if _, err := m.updatePoolDayData(ctx, pool, ev.EventMeta); err != nil {
		return err
	}
	if _, err := m.updatePoolHourData(ctx, pool, ev.EventMeta); err != nil {
		return err
	}
	if _, err := m.updateFactoryDayData(ctx, factory, ev.EventMeta); err != nil {
		return err
	}
	if _, err := m.updateTokenDayData(ctx, token, bundle, ev.EventMeta); err != nil {
		return err
	}
	return nil
}
