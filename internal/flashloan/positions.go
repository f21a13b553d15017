package flashloan

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/deerfi/flashloan-indexer/internal/entity"
)

func positionID(pool, user string) string {
	return fmt.Sprintf("%s-%s", pool, user)
}

// ensureUser creates the user record on first sight.
func (m *Module) ensureUser(ctx context.Context, id string) error {
	var user entity.User
	found, err := m.store.Get(ctx, entity.KindUser, id, &user)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", id, err)
	}
	if found {
		return nil
	}
	return m.save(ctx, entity.KindUser, id, &entity.User{ID: id})
}

// loadOrCreatePosition returns the (pool, user) position, creating it with a
// zero balance and bumping the pool's provider count on first sight.
func (m *Module) loadOrCreatePosition(ctx context.Context, pool *entity.Pool, user string) (*entity.LiquidityPosition, error) {
	id := positionID(pool.ID, user)
	var position entity.LiquidityPosition
	found, err := m.store.Get(ctx, entity.KindPosition, id, &position)
	if err != nil {
		return nil, fmt.Errorf("failed to load position %s: %w", id, err)
	}
	if found {
		return &position, nil
	}

	pool.LiquidityProviderCount++
	if err := m.save(ctx, entity.KindPool, pool.ID, pool); err != nil {
		return nil, err
	}

	position = entity.LiquidityPosition{
		ID:   id,
		Pool: pool.ID,
		User: user,
	}
	if err := m.save(ctx, entity.KindPosition, id, &position); err != nil {
		return nil, err
	}
	return &position, nil
}

// adjustPosition applies a signed liquidity-token delta to a position and
// takes a snapshot. Balances are maintained from transfer deltas; the chain
// is never queried for them.
func (m *Module) adjustPosition(ctx context.Context, pool *entity.Pool, user string, delta decimal.Decimal, meta EventMeta) error {
	position, err := m.loadOrCreatePosition(ctx, pool, user)
	if err != nil {
		return err
	}
	position.LiquidityTokenBalance = position.LiquidityTokenBalance.Add(delta)
	if err := m.save(ctx, entity.KindPosition, position.ID, position); err != nil {
		return err
	}
	return m.snapshotPosition(ctx, position, pool, meta)
}

// touchPosition snapshots a position without changing its balance. Mint and
// burn completion events record the position state at completion time.
func (m *Module) touchPosition(ctx context.Context, pool *entity.Pool, user string, meta EventMeta) error {
	position, err := m.loadOrCreatePosition(ctx, pool, user)
	if err != nil {
		return err
	}
	return m.snapshotPosition(ctx, position, pool, meta)
}

// snapshotPosition appends a point-in-time capture of the position together
// with the prices in effect. Snapshots are never mutated afterwards.
func (m *Module) snapshotPosition(ctx context.Context, position *entity.LiquidityPosition, pool *entity.Pool, meta EventMeta) error {
	bundle, err := m.loadBundle(ctx)
	if err != nil {
		return err
	}
	token, err := m.loadToken(ctx, pool.Token)
	if err != nil {
		return err
	}

	ethPrice := decimal.Zero
	if bundle != nil {
		ethPrice = bundle.EthPrice
	}
	tokenPrice := decimal.Zero
	if token != nil {
		tokenPrice = token.DerivedETH.Mul(ethPrice)
	}

	snapshot := &entity.LiquiditySnapshot{
		ID:                    entity.EventID(position.ID, int(meta.Timestamp)),
		Position:              position.ID,
		Timestamp:             meta.Timestamp,
		BlockNumber:           meta.BlockNumber,
		Pool:                  pool.ID,
		User:                  position.User,
		EthPriceUSD:           ethPrice,
		TokenPriceUSD:         tokenPrice,
		Reserve:               pool.Reserve,
		ReserveUSD:            pool.ReserveUSD,
		TotalSupply:           pool.TotalSupply,
		LiquidityTokenBalance: position.LiquidityTokenBalance,
	}
	return m.save(ctx, entity.KindSnapshot, snapshot.ID, snapshot)
}
