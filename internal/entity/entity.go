// Package entity defines the durable ledger entities reconstructed from pool
// contract events. Entities are stored as JSON documents keyed by (kind, id);
// ids are lowercased hex addresses, transaction hashes, or derived composites
// such as "<txhash>-<n>" for per-transaction event records.
package entity

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Entity kinds used as the store namespace.
const (
	KindFactory        = "factory"
	KindBundle         = "bundle"
	KindToken          = "token"
	KindPool           = "pool"
	KindTransaction    = "transaction"
	KindMint           = "mint"
	KindBurn           = "burn"
	KindFlashLoan      = "flash_loan"
	KindPoolDayData    = "pool_day_data"
	KindPoolHourData   = "pool_hour_data"
	KindTokenDayData   = "token_day_data"
	KindFactoryDayData = "factory_day_data"
	KindUser           = "user"
	KindPosition       = "liquidity_position"
	KindSnapshot       = "liquidity_snapshot"
	KindCursor         = "cursor"
)

const (
	// AddressZero is the canonical zero address in entity id form.
	AddressZero = "0x0000000000000000000000000000000000000000"

	// BundleID is the well-known id of the singleton Bundle entity.
	BundleID = "1"

	// LiquidityTokenDecimals is the decimal count of every pool's own
	// liquidity token.
	LiquidityTokenDecimals = 18
)

// MinimumLiquidity is the raw liquidity-token amount a pool burns to the zero
// address when seeding its very first mint. Transfers matching it are ignored.
var MinimumLiquidity = big.NewInt(1000)

// Addr normalizes an address to its entity id form.
func Addr(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// EventID builds a per-transaction event record id: "<txhash>-<n>".
func EventID(txHash string, index int) string {
	return fmt.Sprintf("%s-%d", txHash, index)
}

// ConvertTokenToDecimal scales a raw on-chain integer amount by a token's
// decimal count.
func ConvertTokenToDecimal(raw *big.Int, decimals int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// Factory is the singleton per-deployment aggregate, keyed by the factory
// contract address.
type Factory struct {
	ID                 string          `json:"id"`
	PoolCount          int64           `json:"poolCount"`
	TxCount            int64           `json:"txCount"`
	TotalVolumeUSD     decimal.Decimal `json:"totalVolumeUSD"`
	TotalVolumeETH     decimal.Decimal `json:"totalVolumeETH"`
	UntrackedVolumeUSD decimal.Decimal `json:"untrackedVolumeUSD"`
	TotalLiquidityUSD  decimal.Decimal `json:"totalLiquidityUSD"`
	TotalLiquidityETH  decimal.Decimal `json:"totalLiquidityETH"`
}

// Bundle holds the current ETH/USD price, refreshed on every reserve change.
type Bundle struct {
	ID       string          `json:"id"`
	EthPrice decimal.Decimal `json:"ethPrice"`
}

// Token is an ERC-20 token referenced by one or more pools. Decimals is nil
// while metadata could not be determined; such a token blocks pool creation
// and stays behind as a tombstone for a later retry.
type Token struct {
	ID                 string          `json:"id"`
	Symbol             string          `json:"symbol"`
	Name               string          `json:"name"`
	Decimals           *int            `json:"decimals"`
	TotalSupply        decimal.Decimal `json:"totalSupply"`
	DerivedETH         decimal.Decimal `json:"derivedETH"`
	TradeVolume        decimal.Decimal `json:"tradeVolume"`
	TradeVolumeUSD     decimal.Decimal `json:"tradeVolumeUSD"`
	UntrackedVolumeUSD decimal.Decimal `json:"untrackedVolumeUSD"`
	TotalLiquidity     decimal.Decimal `json:"totalLiquidity"`
	TxCount            int64           `json:"txCount"`
}

// Pool is a single-token liquidity pool contract.
type Pool struct {
	ID                     string          `json:"id"`
	Token                  string          `json:"token"`
	Reserve                decimal.Decimal `json:"reserve"`
	TotalSupply            decimal.Decimal `json:"totalSupply"`
	TrackedReserveETH      decimal.Decimal `json:"trackedReserveETH"`
	ReserveETH             decimal.Decimal `json:"reserveETH"`
	ReserveUSD             decimal.Decimal `json:"reserveUSD"`
	TokenPrice             decimal.Decimal `json:"tokenPrice"`
	VolumeToken            decimal.Decimal `json:"volumeToken"`
	VolumeUSD              decimal.Decimal `json:"volumeUSD"`
	UntrackedVolumeUSD     decimal.Decimal `json:"untrackedVolumeUSD"`
	TxCount                int64           `json:"txCount"`
	LiquidityProviderCount int64           `json:"liquidityProviderCount"`
	CreatedAtTimestamp     int64           `json:"createdAtTimestamp"`
	CreatedAtBlockNumber   uint64          `json:"createdAtBlockNumber"`
}

// Transaction groups the logical event records observed within one chain
// transaction. The id lists are owned by this entity: handlers copy, mutate,
// and reassign them rather than aliasing the slices across store writes.
type Transaction struct {
	ID          string   `json:"id"`
	BlockNumber uint64   `json:"blockNumber"`
	Timestamp   int64    `json:"timestamp"`
	Mints       []string `json:"mints"`
	Burns       []string `json:"burns"`
	FlashLoans  []string `json:"flashLoans"`
}

// Mint is a logical liquidity-add operation. It is created incomplete by the
// liquidity-token transfer and completed by the pool's Mint event, which
// fills in the sender and underlying amount.
type Mint struct {
	ID          string           `json:"id"`
	Transaction string           `json:"transaction"`
	Pool        string           `json:"pool"`
	To          string           `json:"to"`
	Liquidity   decimal.Decimal  `json:"liquidity"`
	Timestamp   int64            `json:"timestamp"`
	Sender      *string          `json:"sender"`
	Amount      *decimal.Decimal `json:"amount"`
	AmountUSD   *decimal.Decimal `json:"amountUSD"`
	LogIndex    *uint            `json:"logIndex"`
}

// Complete reports whether the mint's second raw event has arrived. The
// populated sender is the correlation signal between the transfer handler and
// the mint-amount handler.
func (m *Mint) Complete() bool {
	return m != nil && m.Sender != nil
}

// Burn is a logical liquidity-remove operation. NeedsComplete is true only
// between its speculative creation by a transfer-to-pool and the
// amount-bearing finalize transfer.
type Burn struct {
	ID           string           `json:"id"`
	Transaction  string           `json:"transaction"`
	Pool         string           `json:"pool"`
	Liquidity    decimal.Decimal  `json:"liquidity"`
	Timestamp    int64            `json:"timestamp"`
	NeedsComplete bool            `json:"needsComplete"`
	Sender       *string          `json:"sender"`
	To           *string          `json:"to"`
	Amount       *decimal.Decimal `json:"amount"`
	AmountUSD    *decimal.Decimal `json:"amountUSD"`
	LogIndex     *uint            `json:"logIndex"`
	FeeTo        *string          `json:"feeTo"`
	FeeLiquidity *decimal.Decimal `json:"feeLiquidity"`
}

// FlashLoan is immutable once written.
type FlashLoan struct {
	ID          string          `json:"id"`
	Transaction string          `json:"transaction"`
	Pool        string          `json:"pool"`
	Timestamp   int64           `json:"timestamp"`
	Target      string          `json:"target"`
	Initiator   string          `json:"initiator"`
	Asset       string          `json:"asset"`
	From        string          `json:"from"`
	Amount      decimal.Decimal `json:"amount"`
	Premium     decimal.Decimal `json:"premium"`
	AmountUSD   decimal.Decimal `json:"amountUSD"`
	LogIndex    uint            `json:"logIndex"`
}

// User is a liquidity provider address seen in a transfer.
type User struct {
	ID string `json:"id"`
}

// LiquidityPosition tracks a user's liquidity-token balance in one pool.
type LiquidityPosition struct {
	ID                    string          `json:"id"`
	Pool                  string          `json:"pool"`
	User                  string          `json:"user"`
	LiquidityTokenBalance decimal.Decimal `json:"liquidityTokenBalance"`
}

// LiquiditySnapshot is an append-only point-in-time capture of a position,
// taken on every balance-changing transfer. Never mutated after creation.
type LiquiditySnapshot struct {
	ID                    string          `json:"id"`
	Position              string          `json:"liquidityPosition"`
	Timestamp             int64           `json:"timestamp"`
	BlockNumber           uint64          `json:"blockNumber"`
	Pool                  string          `json:"pool"`
	User                  string          `json:"user"`
	EthPriceUSD           decimal.Decimal `json:"ethPriceUSD"`
	TokenPriceUSD         decimal.Decimal `json:"tokenPriceUSD"`
	Reserve               decimal.Decimal `json:"reserve"`
	ReserveUSD            decimal.Decimal `json:"reserveUSD"`
	TotalSupply           decimal.Decimal `json:"liquidityTokenTotalSupply"`
	LiquidityTokenBalance decimal.Decimal `json:"liquidityTokenBalance"`
}

// Cursor remembers the last fully processed block for sequential ingestion.
type Cursor struct {
	ID          string `json:"id"`
	BlockNumber uint64 `json:"blockNumber"`
}
