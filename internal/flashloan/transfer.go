package flashloan

import (
	"context"

	"github.com/deerfi/flashloan-indexer/internal/entity"
)

// handleTransfer reconciles liquidity-token transfers into logical mint and
// burn records. A pool mints its liquidity token by transferring from the
// zero address and burns it by transferring to the zero address from itself;
// a user-to-pool transfer precedes a burn and creates the burn speculatively.
// The pool contract's Mint/Burn events arrive afterwards and fill in the
// underlying amounts.
func (m *Module) handleTransfer(ctx context.Context, ev *TransferEvent) error {
	from := entity.Addr(ev.From)
	to := entity.Addr(ev.To)

	// the pool seeds its first mint by burning a fixed minimum liquidity
	if to == entity.AddressZero && ev.Value.Cmp(entity.MinimumLiquidity) == 0 {
		return nil
	}
	if from == entity.AddressZero && to == entity.AddressZero {
		return nil
	}

	pool, err := m.loadPool(ctx, entity.Addr(ev.Address))
	if err != nil {
		return err
	}
	if pool == nil {
		// transfer of a token we do not track
		return nil
	}
	if from == pool.ID && to == pool.ID {
		return nil
	}

	if err := m.ensureUser(ctx, from); err != nil {
		return err
	}
	if err := m.ensureUser(ctx, to); err != nil {
		return err
	}

	value := entity.ConvertTokenToDecimal(ev.Value, entity.LiquidityTokenDecimals)

	tx, err := m.ensureTransaction(ctx, ev.EventMeta)
	if err != nil {
		return err
	}

	// mint path: liquidity token created out of thin air
	if from == entity.AddressZero {
		pool.TotalSupply = pool.TotalSupply.Add(value)
		if err := m.save(ctx, entity.KindPool, pool.ID, pool); err != nil {
			return err
		}

		appendMint := len(tx.Mints) == 0
		if !appendMint {
			last, err := m.loadMint(ctx, tx.Mints[len(tx.Mints)-1])
			if err != nil {
				return err
			}
			// a second transfer while the last mint is still incomplete
			// belongs to the same logical mint; do not open another
			appendMint = last.Complete()
		}
		if appendMint {
			mint := &entity.Mint{
				ID:          entity.EventID(tx.ID, len(tx.Mints)),
				Transaction: tx.ID,
				Pool:        pool.ID,
				To:          to,
				Liquidity:   value,
				Timestamp:   tx.Timestamp,
			}
			if err := m.save(ctx, entity.KindMint, mint.ID, mint); err != nil {
				return err
			}
			tx.Mints = append(append([]string{}, tx.Mints...), mint.ID)
		}
	}

	// burn setup: a user sends liquidity tokens to the pool ahead of a burn
	if to == pool.ID {
		burn := &entity.Burn{
			ID:            entity.EventID(tx.ID, len(tx.Burns)),
			Transaction:   tx.ID,
			Pool:          pool.ID,
			Liquidity:     value,
			Timestamp:     tx.Timestamp,
			NeedsComplete: true,
			Sender:        &from,
			To:            &to,
		}
		if err := m.save(ctx, entity.KindBurn, burn.ID, burn); err != nil {
			return err
		}
		tx.Burns = append(append([]string{}, tx.Burns...), burn.ID)
	}

	// burn finalize: the pool destroys the liquidity tokens it was sent
	if to == entity.AddressZero && from == pool.ID {
		pool.TotalSupply = pool.TotalSupply.Sub(value)
		if err := m.save(ctx, entity.KindPool, pool.ID, pool); err != nil {
			return err
		}

		var burn *entity.Burn
		reused := false
		if len(tx.Burns) > 0 {
			last, err := m.loadBurn(ctx, tx.Burns[len(tx.Burns)-1])
			if err != nil {
				return err
			}
			if last != nil && last.NeedsComplete {
				burn = last
				reused = true
			}
		}
		if burn == nil {
			burn = &entity.Burn{
				ID:          entity.EventID(tx.ID, len(tx.Burns)),
				Transaction: tx.ID,
				Pool:        pool.ID,
				Liquidity:   value,
				Timestamp:   tx.Timestamp,
			}
		}
		burn.NeedsComplete = false

		// a still-incomplete mint at this point is the protocol fee mint;
		// fold it into the burn and drop the mint record
		if len(tx.Mints) > 0 {
			last, err := m.loadMint(ctx, tx.Mints[len(tx.Mints)-1])
			if err != nil {
				return err
			}
			if last != nil && !last.Complete() {
				burn.FeeTo = &last.To
				feeLiquidity := last.Liquidity
				burn.FeeLiquidity = &feeLiquidity
				if err := m.store.Delete(ctx, entity.KindMint, last.ID); err != nil {
					return err
				}
				tx.Mints = append([]string{}, tx.Mints[:len(tx.Mints)-1]...)
			}
		}

		if err := m.save(ctx, entity.KindBurn, burn.ID, burn); err != nil {
			return err
		}
		if reused {
			burns := append([]string{}, tx.Burns...)
			burns[len(burns)-1] = burn.ID
			tx.Burns = burns
		} else {
			tx.Burns = append(append([]string{}, tx.Burns...), burn.ID)
		}
	}

	// position bookkeeping for both counterparties
	if from != entity.AddressZero && from != pool.ID {
		if err := m.adjustPosition(ctx, pool, from, value.Neg(), ev.EventMeta); err != nil {
			return err
		}
	}
	if to != entity.AddressZero && to != pool.ID {
		if err := m.adjustPosition(ctx, pool, to, value, ev.EventMeta); err != nil {
			return err
		}
	}

	return m.save(ctx, entity.KindTransaction, tx.ID, tx)
}
