package flashloan

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deerfi/flashloan-indexer/internal/entity"
)

func Test_PoolCreated_InitializesFactoryAndBundle(t *testing.T) {
	m, st := newTestModule(t, nil, nil)
	createPool(t, m)

	factory := getFactory(t, st)
	assert.Equal(t, int64(1), factory.PoolCount)

	bundle := getBundle(t, st)
	assert.True(t, bundle.EthPrice.IsZero())

	pool := getPool(t, st)
	assert.Equal(t, entity.Addr(tokenAddr), pool.Token)
	assert.Equal(t, int64(100), pool.CreatedAtTimestamp)
	assert.Equal(t, uint64(12345), pool.CreatedAtBlockNumber)

	token := getToken(t, st)
	assert.Equal(t, "DAI", token.Symbol)
	require.NotNil(t, token.Decimals)
	assert.Equal(t, 18, *token.Decimals)
}

func Test_PoolCreated_SecondPoolReusesFactory(t *testing.T) {
	m, st := newTestModule(t, nil, nil)
	createPool(t, m)

	pool2 := common.HexToAddress("0x7777777777777777777777777777777777777777")
	err := m.ProcessEvent(context.Background(), &PoolCreatedEvent{
		EventMeta: eventMeta(200, 1),
		Token:     tokenAddr,
		Pool:      pool2,
		Index:     big.NewInt(2),
	})
	require.NoError(t, err)

	factory := getFactory(t, st)
	assert.Equal(t, int64(2), factory.PoolCount)
}

func Test_PoolCreated_MissingDecimalsLeavesTombstone(t *testing.T) {
	meta := &stubMeta{decimals: nil}
	m, st := newTestModule(t, nil, meta)

	err := m.ProcessEvent(context.Background(), &PoolCreatedEvent{
		EventMeta: eventMeta(100, 1),
		Token:     tokenAddr,
		Pool:      poolAddr,
		Index:     big.NewInt(1),
	})
	require.NoError(t, err)

	// the pool is not registered
	var pool entity.Pool
	found, err := st.Get(context.Background(), entity.KindPool, entity.Addr(poolAddr), &pool)
	require.NoError(t, err)
	assert.False(t, found)

	// the token stays behind with nil decimals
	token := getToken(t, st)
	assert.Nil(t, token.Decimals)
	assert.Equal(t, "DAI", token.Symbol)
}

func Test_PoolCreated_TombstoneRetriedOnNextPool(t *testing.T) {
	meta := &stubMeta{decimals: nil}
	m, st := newTestModule(t, nil, meta)

	ctx := context.Background()
	err := m.ProcessEvent(ctx, &PoolCreatedEvent{
		EventMeta: eventMeta(100, 1),
		Token:     tokenAddr,
		Pool:      poolAddr,
		Index:     big.NewInt(1),
	})
	require.NoError(t, err)
	require.Equal(t, 1, meta.calls)

	// metadata becomes resolvable before the next pool references the token
	meta.decimals = intPtr(6)
	pool2 := common.HexToAddress("0x7777777777777777777777777777777777777777")
	err = m.ProcessEvent(ctx, &PoolCreatedEvent{
		EventMeta: eventMeta(200, 1),
		Token:     tokenAddr,
		Pool:      pool2,
		Index:     big.NewInt(2),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, meta.calls)

	token := getToken(t, st)
	require.NotNil(t, token.Decimals)
	assert.Equal(t, 6, *token.Decimals)

	var pool entity.Pool
	found, err := st.Get(ctx, entity.KindPool, entity.Addr(pool2), &pool)
	require.NoError(t, err)
	assert.True(t, found)
}

func Test_PoolCreated_KnownTokenSkipsMetadataFetch(t *testing.T) {
	meta := &stubMeta{decimals: intPtr(18)}
	m, _ := newTestModule(t, nil, meta)
	createPool(t, m)
	require.Equal(t, 1, meta.calls)

	pool2 := common.HexToAddress("0x7777777777777777777777777777777777777777")
	err := m.ProcessEvent(context.Background(), &PoolCreatedEvent{
		EventMeta: eventMeta(200, 1),
		Token:     tokenAddr,
		Pool:      pool2,
		Index:     big.NewInt(2),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, meta.calls)
}
