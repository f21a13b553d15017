package flashloan

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event signatures handled by the module.
const (
	sigTransfer    = "Transfer(address,address,uint256)"
	sigSync        = "Sync(uint112)"
	sigMint        = "Mint(address,uint256)"
	sigBurn        = "Burn(address,uint256,address)"
	sigFlashLoan   = "FlashLoan(address,address,address,uint256,uint256)"
	sigPoolCreated = "PoolCreated(address,address,uint256)"
)

// Topic0 hashes, computed once at init.
var (
	TopicTransfer    = crypto.Keccak256Hash([]byte(sigTransfer))
	TopicSync        = crypto.Keccak256Hash([]byte(sigSync))
	TopicMint        = crypto.Keccak256Hash([]byte(sigMint))
	TopicBurn        = crypto.Keccak256Hash([]byte(sigBurn))
	TopicFlashLoan   = crypto.Keccak256Hash([]byte(sigFlashLoan))
	TopicPoolCreated = crypto.Keccak256Hash([]byte(sigPoolCreated))
)

// EventMeta carries the chain coordinates shared by every decoded event.
// TxFrom is the transaction sender; the log itself does not carry it, so the
// processor fills it in where a handler needs it (flash loans only).
type EventMeta struct {
	BlockNumber uint64
	Timestamp   int64
	TxHash      common.Hash
	LogIndex    uint
	Address     common.Address
	TxFrom      common.Address
}

// TxID returns the lowercased transaction hash used as the Transaction id.
func (m EventMeta) TxID() string {
	return m.TxHash.Hex()
}

// Event is a decoded pool or factory log.
type Event interface {
	Meta() EventMeta
}

// TransferEvent is a movement of a pool's own liquidity token.
type TransferEvent struct {
	EventMeta
	From  common.Address
	To    common.Address
	Value *big.Int
}

// SyncEvent reports the pool's reserve after a balance change.
type SyncEvent struct {
	EventMeta
	Reserve *big.Int
}

// MintEvent supplies the sender and underlying amount for a liquidity add.
type MintEvent struct {
	EventMeta
	Sender common.Address
	Amount *big.Int
}

// BurnEvent supplies the underlying amount for a liquidity removal.
type BurnEvent struct {
	EventMeta
	Sender common.Address
	To     common.Address
	Amount *big.Int
}

// FlashLoanEvent reports a completed flash loan.
type FlashLoanEvent struct {
	EventMeta
	Target    common.Address
	Initiator common.Address
	Asset     common.Address
	Amount    *big.Int
	Premium   *big.Int
}

// PoolCreatedEvent is emitted by the factory for every new pool.
type PoolCreatedEvent struct {
	EventMeta
	Token common.Address
	Pool  common.Address
	Index *big.Int
}

func (m EventMeta) Meta() EventMeta { return m }

// DecodeLog turns a raw log into a typed event. Logs with an unknown topic0
// decode to (nil, nil) so callers can skip them without special casing.
func DecodeLog(log *types.Log, timestamp int64) (Event, error) {
	if len(log.Topics) == 0 {
		return nil, nil
	}

	meta := EventMeta{
		BlockNumber: log.BlockNumber,
		Timestamp:   timestamp,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
		Address:     log.Address,
	}

	switch log.Topics[0] {
	case TopicTransfer:
		if len(log.Topics) < 3 || len(log.Data) < 32 {
			return nil, fmt.Errorf("malformed Transfer log %s-%d", log.TxHash.Hex(), log.Index)
		}
		return &TransferEvent{
			EventMeta: meta,
			From:      common.BytesToAddress(log.Topics[1].Bytes()),
			To:        common.BytesToAddress(log.Topics[2].Bytes()),
			Value:     new(big.Int).SetBytes(log.Data[0:32]),
		}, nil

	case TopicSync:
		if len(log.Data) < 32 {
			return nil, fmt.Errorf("malformed Sync log %s-%d", log.TxHash.Hex(), log.Index)
		}
		return &SyncEvent{
			EventMeta: meta,
			Reserve:   new(big.Int).SetBytes(log.Data[0:32]),
		}, nil

	case TopicMint:
		if len(log.Topics) < 2 || len(log.Data) < 32 {
			return nil, fmt.Errorf("malformed Mint log %s-%d", log.TxHash.Hex(), log.Index)
		}
		return &MintEvent{
			EventMeta: meta,
			Sender:    common.BytesToAddress(log.Topics[1].Bytes()),
			Amount:    new(big.Int).SetBytes(log.Data[0:32]),
		}, nil

	case TopicBurn:
		if len(log.Topics) < 3 || len(log.Data) < 32 {
			return nil, fmt.Errorf("malformed Burn log %s-%d", log.TxHash.Hex(), log.Index)
		}
		return &BurnEvent{
			EventMeta: meta,
			Sender:    common.BytesToAddress(log.Topics[1].Bytes()),
			To:        common.BytesToAddress(log.Topics[2].Bytes()),
			Amount:    new(big.Int).SetBytes(log.Data[0:32]),
		}, nil

	case TopicFlashLoan:
		if len(log.Topics) < 4 || len(log.Data) < 64 {
			return nil, fmt.Errorf("malformed FlashLoan log %s-%d", log.TxHash.Hex(), log.Index)
		}
		return &FlashLoanEvent{
			EventMeta: meta,
			Target:    common.BytesToAddress(log.Topics[1].Bytes()),
			Initiator: common.BytesToAddress(log.Topics[2].Bytes()),
			Asset:     common.BytesToAddress(log.Topics[3].Bytes()),
			Amount:    new(big.Int).SetBytes(log.Data[0:32]),
			Premium:   new(big.Int).SetBytes(log.Data[32:64]),
		}, nil

	case TopicPoolCreated:
		if len(log.Topics) < 2 || len(log.Data) < 64 {
			return nil, fmt.Errorf("malformed PoolCreated log %s-%d", log.TxHash.Hex(), log.Index)
		}
		return &PoolCreatedEvent{
			EventMeta: meta,
			Token:     common.BytesToAddress(log.Topics[1].Bytes()),
			Pool:      common.BytesToAddress(log.Data[0:32]),
			Index:     new(big.Int).SetBytes(log.Data[32:64]),
		}, nil
	}

	return nil, nil
}
