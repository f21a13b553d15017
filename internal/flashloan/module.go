// Package flashloan folds the decoded event stream of a flash-loan pool
// deployment into ledger entities. One event is fully applied before the next
// is admitted; the correlation logic in the transfer handler depends on that
// ordering.
package flashloan

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/deerfi/flashloan-indexer/internal/entity"
	"github.com/deerfi/flashloan-indexer/internal/pricing"
	"github.com/deerfi/flashloan-indexer/internal/store"
	"github.com/deerfi/flashloan-indexer/internal/tokenmeta"
)

// Publisher pushes entity updates to realtime subscribers. A nil publisher
// disables publishing.
type Publisher interface {
	PublishPool(ctx context.Context, pool *entity.Pool) error
	PublishFlashLoan(ctx context.Context, loan *entity.FlashLoan) error
}

// Module owns all event handlers for one factory deployment.
type Module struct {
	store     store.Store
	logger    zerolog.Logger
	oracle    pricing.Oracle
	meta      tokenmeta.Fetcher
	publisher Publisher

	factoryAddress string
}

// New creates a module for the given factory contract address.
func New(st store.Store, oracle pricing.Oracle, meta tokenmeta.Fetcher, factoryAddress string, logger zerolog.Logger) *Module {
	return &Module{
		store:          st,
		logger:         logger.With().Str("module", "flash-loan").Logger(),
		oracle:         oracle,
		meta:           meta,
		factoryAddress: strings.ToLower(factoryAddress),
	}
}

// SetPublisher injects the realtime publisher.
func (m *Module) SetPublisher(p Publisher) {
	m.publisher = p
}

// ProcessEvent routes one decoded event to its handler. Handler errors are
// store or collaborator failures; domain-level inconsistencies (missing
// transactions, unknown pools) are skipped inside the handlers instead.
func (m *Module) ProcessEvent(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case *PoolCreatedEvent:
		return m.handlePoolCreated(ctx, e)
	case *TransferEvent:
		return m.handleTransfer(ctx, e)
	case *SyncEvent:
		return m.handleSync(ctx, e)
	case *MintEvent:
		return m.handleMint(ctx, e)
	case *BurnEvent:
		return m.handleBurn(ctx, e)
	case *FlashLoanEvent:
		return m.handleFlashLoan(ctx, e)
	case nil:
		return nil
	}
	return nil
}

// loadPool returns the pool entity for a contract address, or nil when the
// address is not a registered pool.
func (m *Module) loadPool(ctx context.Context, id string) (*entity.Pool, error) {
	var pool entity.Pool
	found, err := m.store.Get(ctx, entity.KindPool, id, &pool)
	if err != nil {
		return nil, fmt.Errorf("failed to load pool %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &pool, nil
}

func (m *Module) loadToken(ctx context.Context, id string) (*entity.Token, error) {
	var token entity.Token
	found, err := m.store.Get(ctx, entity.KindToken, id, &token)
	if err != nil {
		return nil, fmt.Errorf("failed to load token %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &token, nil
}

func (m *Module) loadFactory(ctx context.Context) (*entity.Factory, error) {
	var factory entity.Factory
	found, err := m.store.Get(ctx, entity.KindFactory, m.factoryAddress, &factory)
	if err != nil {
		return nil, fmt.Errorf("failed to load factory: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &factory, nil
}

func (m *Module) loadBundle(ctx context.Context) (*entity.Bundle, error) {
	var bundle entity.Bundle
	found, err := m.store.Get(ctx, entity.KindBundle, entity.BundleID, &bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to load bundle: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &bundle, nil
}

func (m *Module) loadTransaction(ctx context.Context, id string) (*entity.Transaction, error) {
	var tx entity.Transaction
	found, err := m.store.Get(ctx, entity.KindTransaction, id, &tx)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &tx, nil
}

// ensureTransaction loads the transaction entity, creating it with empty event
// lists on first sight.
func (m *Module) ensureTransaction(ctx context.Context, meta EventMeta) (*entity.Transaction, error) {
	tx, err := m.loadTransaction(ctx, meta.TxID())
	if err != nil {
		return nil, err
	}
	if tx == nil {
		tx = &entity.Transaction{
			ID:          meta.TxID(),
			BlockNumber: meta.BlockNumber,
			Timestamp:   meta.Timestamp,
			Mints:       []string{},
			Burns:       []string{},
			FlashLoans:  []string{},
		}
	}
	return tx, nil
}

func (m *Module) loadMint(ctx context.Context, id string) (*entity.Mint, error) {
	var mint entity.Mint
	found, err := m.store.Get(ctx, entity.KindMint, id, &mint)
	if err != nil {
		return nil, fmt.Errorf("failed to load mint %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &mint, nil
}

func (m *Module) loadBurn(ctx context.Context, id string) (*entity.Burn, error) {
	var burn entity.Burn
	found, err := m.store.Get(ctx, entity.KindBurn, id, &burn)
	if err != nil {
		return nil, fmt.Errorf("failed to load burn %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &burn, nil
}

func (m *Module) save(ctx context.Context, kind, id string, v any) error {
	if err := m.store.Put(ctx, kind, id, v); err != nil {
		return fmt.Errorf("failed to save %s %s: %w", kind, id, err)
	}
	return nil
}

func (m *Module) publishPool(ctx context.Context, pool *entity.Pool) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishPool(ctx, pool); err != nil {
		m.logger.Warn().Err(err).Str("pool", pool.ID).Msg("Failed to publish pool update")
	}
}

func (m *Module) publishFlashLoan(ctx context.Context, loan *entity.FlashLoan) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishFlashLoan(ctx, loan); err != nil {
		m.logger.Warn().Err(err).Str("flash_loan", loan.ID).Msg("Failed to publish flash loan")
	}
}
