package flashloan

import (
	"context"
	"math/big"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deerfi/flashloan-indexer/internal/entity"
	"github.com/deerfi/flashloan-indexer/internal/store"
)

var (
	targetAddr    = common.HexToAddress("0x5555555555555555555555555555555555555555")
	initiatorAddr = common.HexToAddress("0x6666666666666666666666666666666666666666")
)

func flashLoanEvent(meta EventMeta, amount, premium *big.Int) *FlashLoanEvent {
	meta.TxFrom = initiatorAddr
	return &FlashLoanEvent{
		EventMeta: meta,
		Target:    targetAddr,
		Initiator: initiatorAddr,
		Asset:     tokenAddr,
		Amount:    amount,
		Premium:   premium,
	}
}

func getFlashLoan(t *testing.T, st *store.MemoryStore, id string) *entity.FlashLoan {
	t.Helper()
	var loan entity.FlashLoan
	found, err := st.Get(context.Background(), entity.KindFlashLoan, id, &loan)
	require.NoError(t, err)
	require.True(t, found)
	return &loan
}

func Test_FlashLoan_RecordsLoanAndVolume(t *testing.T) {
	m, st := newTestModule(t, pricedOracle(), nil)
	createPool(t, m)

	err := m.ProcessEvent(context.Background(), flashLoanEvent(eventMeta(1590000000, 3), wei(1000), wei(9)))
	require.NoError(t, err)

	tx := getTransaction(t, st)
	require.Len(t, tx.FlashLoans, 1)

	loan := getFlashLoan(t, st, tx.FlashLoans[0])
	assert.Equal(t, entity.Addr(targetAddr), loan.Target)
	assert.Equal(t, entity.Addr(initiatorAddr), loan.Initiator)
	assert.Equal(t, entity.Addr(tokenAddr), loan.Asset)
	assert.Equal(t, entity.Addr(initiatorAddr), loan.From)
	assertDecimal(t, "1000", loan.Amount)
	assertDecimal(t, "9", loan.Premium)
	// (1000 + 9) * 0.0005 ETH * 2000 USD
	assertDecimal(t, "1009", loan.AmountUSD)

	token := getToken(t, st)
	assertDecimal(t, "1009", token.TradeVolume)
	assertDecimal(t, "1009", token.TradeVolumeUSD)
	assert.Equal(t, int64(1), token.TxCount)

	pool := getPool(t, st)
	assertDecimal(t, "1009", pool.VolumeToken)
	assertDecimal(t, "1009", pool.VolumeUSD)
	assert.Equal(t, int64(1), pool.TxCount)

	factory := getFactory(t, st)
	assertDecimal(t, "1009", factory.TotalVolumeUSD)
	assertDecimal(t, "0.5045", factory.TotalVolumeETH)
	assert.Equal(t, int64(1), factory.TxCount)
}

func Test_FlashLoan_SameDayLoansShareBucket(t *testing.T) {
	m, st := newTestModule(t, pricedOracle(), nil)
	createPool(t, m)

	ctx := context.Background()
	err := m.ProcessEvent(ctx, flashLoanEvent(eventMeta(1590000000, 3), wei(1000), wei(9)))
	require.NoError(t, err)
	err = m.ProcessEvent(ctx, flashLoanEvent(metaTx(txHash2, 1590003600, 2), wei(500), big.NewInt(0)))
	require.NoError(t, err)

	dayIndex := entity.DayIndex(1590000000)
	require.Equal(t, dayIndex, entity.DayIndex(1590003600))

	var poolDay entity.PoolDayData
	found, err := st.Get(ctx, entity.KindPoolDayData, entity.BucketID(entity.Addr(poolAddr), dayIndex), &poolDay)
	require.NoError(t, err)
	require.True(t, found)
	assertDecimal(t, "1509", poolDay.DailyVolumeToken)
	assertDecimal(t, "1509", poolDay.DailyVolumeUSD)
	assert.Equal(t, int64(2), poolDay.DailyTxns)
	assert.Equal(t, dayIndex*entity.DaySeconds, poolDay.Date)

	var factoryDay entity.FactoryDayData
	found, err = st.Get(ctx, entity.KindFactoryDayData, strconv.FormatInt(dayIndex, 10), &factoryDay)
	require.NoError(t, err)
	require.True(t, found)
	assertDecimal(t, "1509", factoryDay.DailyVolumeUSD)
	assert.Equal(t, int64(2), factoryDay.TxCount)

	var tokenDay entity.TokenDayData
	found, err = st.Get(ctx, entity.KindTokenDayData, entity.BucketID(entity.Addr(tokenAddr), dayIndex), &tokenDay)
	require.NoError(t, err)
	require.True(t, found)
	assertDecimal(t, "1509", tokenDay.DailyVolumeToken)
	assert.Equal(t, int64(2), tokenDay.DailyTxns)
}

func Test_FlashLoan_CrossDayLoansSplitBuckets(t *testing.T) {
	m, st := newTestModule(t, pricedOracle(), nil)
	createPool(t, m)

	ctx := context.Background()
	err := m.ProcessEvent(ctx, flashLoanEvent(eventMeta(1590000000, 3), wei(1000), big.NewInt(0)))
	require.NoError(t, err)
	err = m.ProcessEvent(ctx, flashLoanEvent(metaTx(txHash2, 1590000000+entity.DaySeconds, 2), wei(500), big.NewInt(0)))
	require.NoError(t, err)

	day1 := entity.DayIndex(1590000000)
	day2 := entity.DayIndex(1590000000 + entity.DaySeconds)
	require.NotEqual(t, day1, day2)

	var poolDay entity.PoolDayData
	found, err := st.Get(ctx, entity.KindPoolDayData, entity.BucketID(entity.Addr(poolAddr), day1), &poolDay)
	require.NoError(t, err)
	require.True(t, found)
	assertDecimal(t, "1000", poolDay.DailyVolumeToken)
	assert.Equal(t, int64(1), poolDay.DailyTxns)

	found, err = st.Get(ctx, entity.KindPoolDayData, entity.BucketID(entity.Addr(poolAddr), day2), &poolDay)
	require.NoError(t, err)
	require.True(t, found)
	assertDecimal(t, "500", poolDay.DailyVolumeToken)
	assert.Equal(t, int64(1), poolDay.DailyTxns)
}

func Test_FlashLoan_HourBucketTracksVolume(t *testing.T) {
	m, st := newTestModule(t, pricedOracle(), nil)
	createPool(t, m)

	err := m.ProcessEvent(context.Background(), flashLoanEvent(eventMeta(1590000000, 3), wei(1000), wei(9)))
	require.NoError(t, err)

	hourIndex := entity.HourIndex(1590000000)
	var poolHour entity.PoolHourData
	found, err := st.Get(context.Background(), entity.KindPoolHourData, entity.BucketID(entity.Addr(poolAddr), hourIndex), &poolHour)
	require.NoError(t, err)
	require.True(t, found)
	assertDecimal(t, "1009", poolHour.HourlyVolumeToken)
	assertDecimal(t, "1009", poolHour.HourlyVolumeUSD)
	assert.Equal(t, int64(1), poolHour.HourlyTxns)
	assert.Equal(t, hourIndex*entity.HourSeconds, poolHour.HourStartUnix)
}

func Test_FlashLoan_ZeroPriceStillRecordsTokenVolume(t *testing.T) {
	m, st := newTestModule(t, nil, nil)
	createPool(t, m)

	err := m.ProcessEvent(context.Background(), flashLoanEvent(eventMeta(1590000000, 3), wei(1000), wei(9)))
	require.NoError(t, err)

	tx := getTransaction(t, st)
	require.Len(t, tx.FlashLoans, 1)
	loan := getFlashLoan(t, st, tx.FlashLoans[0])
	assert.True(t, loan.AmountUSD.IsZero())

	pool := getPool(t, st)
	assertDecimal(t, "1009", pool.VolumeToken)
	assert.True(t, pool.VolumeUSD.IsZero())

	factory := getFactory(t, st)
	assert.True(t, factory.TotalVolumeETH.IsZero())
}

func Test_FlashLoan_UnknownPoolIgnored(t *testing.T) {
	m, st := newTestModule(t, pricedOracle(), nil)
	createPool(t, m)

	meta := eventMeta(1590000000, 3)
	meta.Address = common.HexToAddress("0x9999999999999999999999999999999999999999")
	err := m.ProcessEvent(context.Background(), flashLoanEvent(meta, wei(1000), wei(9)))
	require.NoError(t, err)

	var tx entity.Transaction
	found, err := st.Get(context.Background(), entity.KindTransaction, txHash.Hex(), &tx)
	require.NoError(t, err)
	assert.False(t, found)
}
