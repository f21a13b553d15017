package flashloan

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deerfi/flashloan-indexer/internal/entity"
)

func Test_Mint_WithoutPendingMintSkipped(t *testing.T) {
	m, st := newTestModule(t, nil, nil)
	createPool(t, m)

	err := m.ProcessEvent(context.Background(), &MintEvent{
		EventMeta: eventMeta(1590000000, 4),
		Sender:    senderAddr,
		Amount:    wei(50),
	})
	require.NoError(t, err)

	pool := getPool(t, st)
	assert.Equal(t, int64(0), pool.TxCount)
}

func Test_Burn_WithoutPendingBurnSkipped(t *testing.T) {
	m, st := newTestModule(t, nil, nil)
	createPool(t, m)

	err := m.ProcessEvent(context.Background(), &BurnEvent{
		EventMeta: eventMeta(1590000000, 4),
		Sender:    userAddr,
		To:        userAddr,
		Amount:    wei(10),
	})
	require.NoError(t, err)

	pool := getPool(t, st)
	assert.Equal(t, int64(0), pool.TxCount)
}

func Test_Mint_UpdatesDayBuckets(t *testing.T) {
	m, st := newTestModule(t, pricedOracle(), nil)
	createPool(t, m)
	mintLiquidity(t, m, wei(1000), wei(50))

	ctx := context.Background()
	dayIndex := entity.DayIndex(1590000000)

	var poolDay entity.PoolDayData
	found, err := st.Get(ctx, entity.KindPoolDayData, entity.BucketID(entity.Addr(poolAddr), dayIndex), &poolDay)
	require.NoError(t, err)
	require.True(t, found)
	assertDecimal(t, "1000", poolDay.TotalSupply)
	assert.Equal(t, int64(1), poolDay.DailyTxns)
	assert.True(t, poolDay.DailyVolumeUSD.IsZero())

	var factoryDay entity.FactoryDayData
	found, err = st.Get(ctx, entity.KindFactoryDayData, strconv.FormatInt(dayIndex, 10), &factoryDay)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1), factoryDay.TxCount)

	var tokenDay entity.TokenDayData
	found, err = st.Get(ctx, entity.KindTokenDayData, entity.BucketID(entity.Addr(tokenAddr), dayIndex), &tokenDay)
	require.NoError(t, err)
	require.True(t, found)
	// derivedETH is zero until the first Sync, so priced fields stay zero
	assert.True(t, tokenDay.TotalLiquidityUSD.IsZero())
	assert.Equal(t, int64(1), tokenDay.DailyTxns)
}

func Test_Mint_PricesAmountWithOracle(t *testing.T) {
	m, st := newTestModule(t, pricedOracle(), nil)
	createPool(t, m)

	// a Sync establishes prices before the mint completes
	ctx := context.Background()
	err := m.ProcessEvent(ctx, &SyncEvent{
		EventMeta: eventMeta(1590000000, 1),
		Reserve:   wei(1000),
	})
	require.NoError(t, err)

	mintLiquidity(t, m, wei(1000), wei(50))

	tx := getTransaction(t, st)
	require.Len(t, tx.Mints, 1)
	mint := getMint(t, st, tx.Mints[0])
	require.NotNil(t, mint.AmountUSD)
	// 50 tokens * 0.0005 ETH * 2000 USD
	assertDecimal(t, "50", *mint.AmountUSD)
}
