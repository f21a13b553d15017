package processor

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/deerfi/flashloan-indexer/internal/entity"
	"github.com/deerfi/flashloan-indexer/internal/flashloan"
	"github.com/deerfi/flashloan-indexer/internal/store"
)

const cursorID = "flash-loan"

// Processor pulls logs from the chain and feeds them to the module one at a
// time, in canonical order. The cursor advances only after every log of a
// block has been applied, so a restart replays at most one block.
type Processor struct {
	client      *ethclient.Client
	store       store.Store
	module      *flashloan.Module
	logger      zerolog.Logger
	batchBlocks uint64
	blockTime   time.Duration
	startBlock  uint64

	// block timestamp cache for the current batch
	timestamps map[uint64]int64
}

func NewProcessor(client *ethclient.Client, st store.Store, module *flashloan.Module, startBlock, batchBlocks uint64, blockTime time.Duration, logger zerolog.Logger) *Processor {
	if batchBlocks == 0 {
		batchBlocks = 500
	}
	if blockTime <= 0 {
		blockTime = 12 * time.Second
	}
	return &Processor{
		client:      client,
		store:       st,
		module:      module,
		logger:      logger.With().Str("component", "processor").Logger(),
		batchBlocks: batchBlocks,
		blockTime:   blockTime,
		startBlock:  startBlock,
		timestamps:  make(map[uint64]int64),
	}
}

// Run processes blocks until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	next, err := p.nextBlock(ctx)
	if err != nil {
		return err
	}
	p.logger.Info().Uint64("from", next).Msg("Starting event processing")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		head, err := p.client.BlockNumber(ctx)
		if err != nil {
			p.logger.Error().Err(err).Msg("Failed to fetch chain head")
			if !p.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		if next > head {
			if !p.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		to := next + p.batchBlocks - 1
		if to > head {
			to = head
		}

		if err := p.processRange(ctx, next, to); err != nil {
			p.logger.Error().Err(err).
				Uint64("from", next).
				Uint64("to", to).
				Msg("Failed to process block range, retrying")
			if !p.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}
		next = to + 1
	}
}

func (p *Processor) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(p.blockTime):
		return true
	}
}

func (p *Processor) nextBlock(ctx context.Context) (uint64, error) {
	var cursor entity.Cursor
	found, err := p.store.Get(ctx, entity.KindCursor, cursorID, &cursor)
	if err != nil {
		return 0, fmt.Errorf("failed to load cursor: %w", err)
	}
	if found && cursor.BlockNumber+1 > p.startBlock {
		return cursor.BlockNumber + 1, nil
	}
	return p.startBlock, nil
}

// processRange fetches all relevant logs for [from, to] and applies them
// strictly in block, transaction, log order.
func (p *Processor) processRange(ctx context.Context, from, to uint64) error {
	logs, err := p.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Topics: [][]common.Hash{{
			flashloan.TopicPoolCreated,
			flashloan.TopicTransfer,
			flashloan.TopicSync,
			flashloan.TopicMint,
			flashloan.TopicBurn,
			flashloan.TopicFlashLoan,
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to filter logs: %w", err)
	}

	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		if logs[i].TxIndex != logs[j].TxIndex {
			return logs[i].TxIndex < logs[j].TxIndex
		}
		return logs[i].Index < logs[j].Index
	})

	p.timestamps = make(map[uint64]int64)

	lastBlock := uint64(0)
	for i := range logs {
		log := &logs[i]
		if log.Removed {
			continue
		}

		if lastBlock != 0 && log.BlockNumber != lastBlock {
			if err := p.saveCursor(ctx, lastBlock); err != nil {
				return err
			}
		}
		lastBlock = log.BlockNumber

		if err := p.processLog(ctx, log); err != nil {
			return err
		}
	}

	return p.saveCursor(ctx, to)
}

func (p *Processor) processLog(ctx context.Context, log *types.Log) error {
	timestamp, err := p.blockTimestamp(ctx, log.BlockNumber)
	if err != nil {
		return err
	}

	ev, err := flashloan.DecodeLog(log, timestamp)
	if err != nil {
		p.logger.Warn().Err(err).
			Str("tx", log.TxHash.Hex()).
			Uint("log_index", log.Index).
			Msg("Skipping undecodable log")
		return nil
	}
	if ev == nil {
		return nil
	}

	// flash loans record the transaction sender
	if loan, ok := ev.(*flashloan.FlashLoanEvent); ok {
		if sender, err := p.transactionSender(ctx, log); err != nil {
			p.logger.Warn().Err(err).
				Str("tx", log.TxHash.Hex()).
				Msg("Failed to resolve transaction sender")
		} else {
			loan.TxFrom = sender
		}
	}

	return p.module.ProcessEvent(ctx, ev)
}

func (p *Processor) blockTimestamp(ctx context.Context, number uint64) (int64, error) {
	if ts, ok := p.timestamps[number]; ok {
		return ts, nil
	}
	header, err := p.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch header %d: %w", number, err)
	}
	ts := int64(header.Time)
	p.timestamps[number] = ts
	return ts, nil
}

func (p *Processor) transactionSender(ctx context.Context, log *types.Log) (common.Address, error) {
	tx, err := p.client.TransactionInBlock(ctx, log.BlockHash, log.TxIndex)
	if err != nil {
		return common.Address{}, err
	}
	return p.client.TransactionSender(ctx, tx, log.BlockHash, log.TxIndex)
}

func (p *Processor) saveCursor(ctx context.Context, block uint64) error {
	cursor := entity.Cursor{ID: cursorID, BlockNumber: block}
	if err := p.store.Put(ctx, entity.KindCursor, cursorID, &cursor); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}
