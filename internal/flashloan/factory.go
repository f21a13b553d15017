package flashloan

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/deerfi/flashloan-indexer/internal/entity"
)

// handlePoolCreated registers a new pool. The factory and bundle singletons
// are created lazily on the very first pool. Token metadata is fetched on
// first reference; a token whose decimals cannot be determined blocks pool
// creation and is kept as a tombstone so a later pool can retry the fetch.
func (m *Module) handlePoolCreated(ctx context.Context, ev *PoolCreatedEvent) error {
	factory, err := m.loadFactory(ctx)
	if err != nil {
		return err
	}
	if factory == nil {
		factory = &entity.Factory{ID: m.factoryAddress}

		bundle := &entity.Bundle{ID: entity.BundleID, EthPrice: decimal.Zero}
		if err := m.save(ctx, entity.KindBundle, bundle.ID, bundle); err != nil {
			return err
		}
	}
	factory.PoolCount++
	if err := m.save(ctx, entity.KindFactory, factory.ID, factory); err != nil {
		return err
	}

	tokenID := entity.Addr(ev.Token)
	token, err := m.loadToken(ctx, tokenID)
	if err != nil {
		return err
	}

	// fetch metadata for new tokens and for tombstones from a failed fetch
	if token == nil || token.Decimals == nil {
		meta, err := m.meta.Metadata(ctx, ev.Token)
		if err != nil {
			return err
		}
		if token == nil {
			token = &entity.Token{ID: tokenID}
		}
		token.Symbol = meta.Symbol
		token.Name = meta.Name
		token.TotalSupply = meta.TotalSupply
		token.Decimals = meta.Decimals

		if err := m.save(ctx, entity.KindToken, token.ID, token); err != nil {
			return err
		}

		if token.Decimals == nil {
			m.logger.Warn().
				Str("token", token.ID).
				Str("pool", entity.Addr(ev.Pool)).
				Msg("Token decimals unavailable, skipping pool creation")
			return nil
		}
	}

	pool := &entity.Pool{
		ID:                   entity.Addr(ev.Pool),
		Token:                token.ID,
		CreatedAtTimestamp:   ev.Timestamp,
		CreatedAtBlockNumber: ev.BlockNumber,
	}
	if err := m.save(ctx, entity.KindPool, pool.ID, pool); err != nil {
		return err
	}

	m.logger.Info().
		Str("pool", pool.ID).
		Str("token", token.ID).
		Str("symbol", token.Symbol).
		Uint64("block", ev.BlockNumber).
		Msg("Pool created")

	return nil
}
