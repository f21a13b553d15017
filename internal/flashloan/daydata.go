package flashloan

import (
	"context"
	"fmt"
	"strconv"

	"github.com/deerfi/flashloan-indexer/internal/entity"
)

// Bucket updates are idempotent upserts: the create path stamps the bucket
// start and subject once with zeroed deltas, every touch refreshes the
// snapshot fields from the live subject and increments the tx counter, and
// callers add their own volume deltas to the returned record afterwards.

func (m *Module) updateFactoryDayData(ctx context.Context, factory *entity.Factory, meta EventMeta) (*entity.FactoryDayData, error) {
	dayIndex := entity.DayIndex(meta.Timestamp)
	id := strconv.FormatInt(dayIndex, 10)

	var day entity.FactoryDayData
	found, err := m.store.Get(ctx, entity.KindFactoryDayData, id, &day)
	if err != nil {
		return nil, fmt.Errorf("failed to load factory day data %s: %w", id, err)
	}
	if !found {
		day = entity.FactoryDayData{
			ID:   id,
			Date: dayIndex * entity.DaySeconds,
		}
	}

	day.TotalVolumeUSD = factory.TotalVolumeUSD
	day.TotalVolumeETH = factory.TotalVolumeETH
	day.TotalLiquidityUSD = factory.TotalLiquidityUSD
	day.TotalLiquidityETH = factory.TotalLiquidityETH
	day.TxCount = factory.TxCount

	if err := m.save(ctx, entity.KindFactoryDayData, id, &day); err != nil {
		return nil, err
	}
	return &day, nil
}

func (m *Module) updatePoolDayData(ctx context.Context, pool *entity.Pool, meta EventMeta) (*entity.PoolDayData, error) {
	dayIndex := entity.DayIndex(meta.Timestamp)
	id := entity.BucketID(pool.ID, dayIndex)

	var day entity.PoolDayData
	found, err := m.store.Get(ctx, entity.KindPoolDayData, id, &day)
	if err != nil {
		return nil, fmt.Errorf("failed to load pool day data %s: %w", id, err)
	}
	if !found {
		day = entity.PoolDayData{
			ID:    id,
			Date:  dayIndex * entity.DaySeconds,
			Pool:  pool.ID,
			Token: pool.Token,
		}
	}

	day.TotalSupply = pool.TotalSupply
	day.Reserve = pool.Reserve
	day.ReserveUSD = pool.ReserveUSD
	day.DailyTxns++

	if err := m.save(ctx, entity.KindPoolDayData, id, &day); err != nil {
		return nil, err
	}
	return &day, nil
}

func (m *Module) updatePoolHourData(ctx context.Context, pool *entity.Pool, meta EventMeta) (*entity.PoolHourData, error) {
	hourIndex := entity.HourIndex(meta.Timestamp)
	id := entity.BucketID(pool.ID, hourIndex)

	var hour entity.PoolHourData
	found, err := m.store.Get(ctx, entity.KindPoolHourData, id, &hour)
	if err != nil {
		return nil, fmt.Errorf("failed to load pool hour data %s: %w", id, err)
	}
	if !found {
		hour = entity.PoolHourData{
			ID:            id,
			HourStartUnix: hourIndex * entity.HourSeconds,
			Pool:          pool.ID,
		}
	}

	hour.Reserve = pool.Reserve
	hour.ReserveUSD = pool.ReserveUSD
	hour.HourlyTxns++

	if err := m.save(ctx, entity.KindPoolHourData, id, &hour); err != nil {
		return nil, err
	}
	return &hour, nil
}

func (m *Module) updateTokenDayData(ctx context.Context, token *entity.Token, bundle *entity.Bundle, meta EventMeta) (*entity.TokenDayData, error) {
	dayIndex := entity.DayIndex(meta.Timestamp)
	id := entity.BucketID(token.ID, dayIndex)

	var day entity.TokenDayData
	found, err := m.store.Get(ctx, entity.KindTokenDayData, id, &day)
	if err != nil {
		return nil, fmt.Errorf("failed to load token day data %s: %w", id, err)
	}
	if !found {
		day = entity.TokenDayData{
			ID:    id,
			Date:  dayIndex * entity.DaySeconds,
			Token: token.ID,
		}
	}

	day.PriceUSD = token.DerivedETH.Mul(bundle.EthPrice)
	day.TotalLiquidityToken = token.TotalLiquidity
	day.TotalLiquidityETH = token.TotalLiquidity.Mul(token.DerivedETH)
	day.TotalLiquidityUSD = day.TotalLiquidityETH.Mul(bundle.EthPrice)
	day.DailyTxns++

	if err := m.save(ctx, entity.KindTokenDayData, id, &day); err != nil {
		return nil, err
	}
	return &day, nil
}
