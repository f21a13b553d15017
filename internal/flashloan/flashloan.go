package flashloan

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/deerfi/flashloan-indexer/internal/entity"
)

// handleFlashLoan records an immutable flash loan and folds its volume into
// the token, pool, factory, and time-bucket aggregates. Loan volume is the
// principal plus the premium. The tracked ETH figure falls back to zero when
// no ETH/USD quote is available yet.
func (m *Module) handleFlashLoan(ctx context.Context, ev *FlashLoanEvent) error {
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
		m.logger.Warn().Str("pool", pool.ID).Msg("Flash loan for pool with incomplete context, skipping")
		return nil
	}

	amount := entity.ConvertTokenToDecimal(ev.Amount, *token.Decimals)
	premium := entity.ConvertTokenToDecimal(ev.Premium, *token.Decimals)
	amountTotal := amount.Add(premium)

	derivedAmountETH := token.DerivedETH.Mul(amountTotal)
	derivedAmountUSD := derivedAmountETH.Mul(bundle.EthPrice)

	// whitelisting happens upstream in the oracle; untracked tokens reach
	// this handler with a zero derived price
	trackedAmountUSD := derivedAmountUSD
	trackedAmountETH := decimal.Zero
	if !bundle.EthPrice.IsZero() {
		trackedAmountETH = trackedAmountUSD.Div(bundle.EthPrice)
	}

	token.TradeVolume = token.TradeVolume.Add(amountTotal)
	token.TradeVolumeUSD = token.TradeVolumeUSD.Add(trackedAmountUSD)
	token.UntrackedVolumeUSD = token.UntrackedVolumeUSD.Add(derivedAmountUSD)
	token.TxCount++

	pool.VolumeUSD = pool.VolumeUSD.Add(trackedAmountUSD)
	pool.VolumeToken = pool.VolumeToken.Add(amountTotal)
	pool.UntrackedVolumeUSD = pool.UntrackedVolumeUSD.Add(derivedAmountUSD)
	pool.TxCount++

	factory.TotalVolumeUSD = factory.TotalVolumeUSD.Add(trackedAmountUSD)
	factory.TotalVolumeETH = factory.TotalVolumeETH.Add(trackedAmountETH)
	factory.UntrackedVolumeUSD = factory.UntrackedVolumeUSD.Add(derivedAmountUSD)
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

	tx, err := m.ensureTransaction(ctx, ev.EventMeta)
	if err != nil {
		return err
	}

	amountUSD := trackedAmountUSD
	if amountUSD.IsZero() {
		amountUSD = derivedAmountUSD
	}
	loan := &entity.FlashLoan{
		ID:          entity.EventID(tx.ID, len(tx.FlashLoans)),
		Transaction: tx.ID,
		Pool:        pool.ID,
		Timestamp:   tx.Timestamp,
		Target:      entity.Addr(ev.Target),
		Initiator:   entity.Addr(ev.Initiator),
		Asset:       entity.Addr(ev.Asset),
		From:        entity.Addr(ev.TxFrom),
		Amount:      amount,
		Premium:     premium,
		AmountUSD:   amountUSD,
		LogIndex:    ev.LogIndex,
	}
	if err := m.save(ctx, entity.KindFlashLoan, loan.ID, loan); err != nil {
		return err
	}
	tx.FlashLoans = append(append([]string{}, tx.FlashLoans...), loan.ID)
	if err := m.save(ctx, entity.KindTransaction, tx.ID, tx); err != nil {
		return err
	}

	poolDay, err := m.updatePoolDayData(ctx, pool, ev.EventMeta)
	if err != nil {
		return err
	}
	poolHour, err := m.updatePoolHourData(ctx, pool, ev.EventMeta)
	if err != nil {
		return err
	}
	factoryDay, err := m.updateFactoryDayData(ctx, factory, ev.EventMeta)
	if err != nil {
		return err
	}
	tokenDay, err := m.updateTokenDayData(ctx, token, bundle, ev.EventMeta)
	if err != nil {
		return err
	}

	factoryDay.DailyVolumeUSD = factoryDay.DailyVolumeUSD.Add(trackedAmountUSD)
	factoryDay.DailyVolumeETH = factoryDay.DailyVolumeETH.Add(trackedAmountETH)
	factoryDay.DailyVolumeUntracked = factoryDay.DailyVolumeUntracked.Add(derivedAmountUSD)
	if err := m.save(ctx, entity.KindFactoryDayData, factoryDay.ID, factoryDay); err != nil {
		return err
	}

	poolDay.DailyVolumeToken = poolDay.DailyVolumeToken.Add(amountTotal)
	poolDay.DailyVolumeUSD = poolDay.DailyVolumeUSD.Add(trackedAmountUSD)
	if err := m.save(ctx, entity.KindPoolDayData, poolDay.ID, poolDay); err != nil {
		return err
	}

	poolHour.HourlyVolumeToken = poolHour.HourlyVolumeToken.Add(amountTotal)
	poolHour.HourlyVolumeUSD = poolHour.HourlyVolumeUSD.Add(trackedAmountUSD)
	if err := m.save(ctx, entity.KindPoolHourData, poolHour.ID, poolHour); err != nil {
		return err
	}

	tokenDay.DailyVolumeToken = tokenDay.DailyVolumeToken.Add(amountTotal)
	tokenDay.DailyVolumeETH = tokenDay.DailyVolumeETH.Add(amountTotal.Mul(token.DerivedETH))
	tokenDay.DailyVolumeUSD = tokenDay.DailyVolumeUSD.Add(amountTotal.Mul(token.DerivedETH).Mul(bundle.EthPrice))
	if err := m.save(ctx, entity.KindTokenDayData, tokenDay.ID, tokenDay); err != nil {
		return err
	}

	m.publishFlashLoan(ctx, loan)
	return nil
}
