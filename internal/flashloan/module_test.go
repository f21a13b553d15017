package flashloan

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deerfi/flashloan-indexer/internal/entity"
	"github.com/deerfi/flashloan-indexer/internal/store"
	"github.com/deerfi/flashloan-indexer/internal/tokenmeta"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

var (
	factoryAddr = common.HexToAddress("0x5565f2eb1cbd79cd78a9585c9c43a8d0a7e9f1f1")
	tokenAddr   = common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
	poolAddr    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	userAddr    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	senderAddr  = common.HexToAddress("0x3333333333333333333333333333333333333333")
	feeToAddr   = common.HexToAddress("0x4444444444444444444444444444444444444444")
	zeroAddr    = common.Address{}

	txHash = common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

// stubOracle prices every token at a fixed ETH ratio.
type stubOracle struct {
	ethUSD  decimal.Decimal
	derived decimal.Decimal
}

func (o *stubOracle) EthPriceUSD(ctx context.Context) decimal.Decimal { return o.ethUSD }

func (o *stubOracle) DerivedEthPrice(ctx context.Context, token *entity.Token) decimal.Decimal {
	return o.derived
}

func (o *stubOracle) TrackedLiquidityUSD(ctx context.Context, reserve decimal.Decimal, token *entity.Token) decimal.Decimal {
	return reserve.Mul(o.derived).Mul(o.ethUSD)
}

// stubMeta returns fixed token metadata; decimals nil simulates a contract
// without a decimals() method.
type stubMeta struct {
	decimals *int
	calls    int
}

func (f *stubMeta) Metadata(ctx context.Context, token common.Address) (*tokenmeta.Metadata, error) {
	f.calls++
	return &tokenmeta.Metadata{
		Name:        "Dai Stablecoin",
		Symbol:      "DAI",
		Decimals:    f.decimals,
		TotalSupply: decimal.NewFromInt(1000000),
	}, nil
}

func intPtr(i int) *int { return &i }

func newTestModule(t *testing.T, oracle *stubOracle, meta *stubMeta) (*Module, *store.MemoryStore) {
	t.Helper()
	if oracle == nil {
		oracle = &stubOracle{ethUSD: decimal.Zero, derived: decimal.Zero}
	}
	if meta == nil {
		meta = &stubMeta{decimals: intPtr(18)}
	}
	st := store.NewMemory()
	m := New(st, oracle, meta, factoryAddr.Hex(), testLogger())
	return m, st
}

// createPool registers the test pool through a PoolCreated event.
func createPool(t *testing.T, m *Module) {
	t.Helper()
	err := m.ProcessEvent(context.Background(), &PoolCreatedEvent{
		EventMeta: eventMeta(100, 1),
		Token:     tokenAddr,
		Pool:      poolAddr,
		Index:     big.NewInt(1),
	})
	require.NoError(t, err)
}

func eventMeta(timestamp int64, logIndex uint) EventMeta {
	return EventMeta{
		BlockNumber: 12345,
		Timestamp:   timestamp,
		TxHash:      txHash,
		LogIndex:    logIndex,
		Address:     poolAddr,
	}
}

// wei scales a whole-token amount to its raw 18-decimal representation.
func wei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func getPool(t *testing.T, st *store.MemoryStore) *entity.Pool {
	t.Helper()
	var pool entity.Pool
	found, err := st.Get(context.Background(), entity.KindPool, entity.Addr(poolAddr), &pool)
	require.NoError(t, err)
	require.True(t, found)
	return &pool
}

func getTransaction(t *testing.T, st *store.MemoryStore) *entity.Transaction {
	t.Helper()
	var tx entity.Transaction
	found, err := st.Get(context.Background(), entity.KindTransaction, txHash.Hex(), &tx)
	require.NoError(t, err)
	require.True(t, found)
	return &tx
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	want, err := decimal.NewFromString(expected)
	require.NoError(t, err)
	assert.True(t, want.Equal(actual), "expected %s, got %s", expected, actual.String())
}
