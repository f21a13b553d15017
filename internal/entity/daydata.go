package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Bucket widths in seconds.
const (
	HourSeconds = 3600
	DaySeconds  = 86400
)

// DayIndex truncates a unix timestamp to its day bucket index.
func DayIndex(timestamp int64) int64 {
	return timestamp / DaySeconds
}

// HourIndex truncates a unix timestamp to its hour bucket index.
func HourIndex(timestamp int64) int64 {
	return timestamp / HourSeconds
}

// BucketID builds a "<subjectId>-<bucketIndex>" aggregate id.
func BucketID(subject string, index int64) string {
	return fmt.Sprintf("%s-%d", subject, index)
}

// FactoryDayData is the deployment-wide daily rollup, keyed by the day index
// alone. Date and the daily deltas are set once at creation; snapshot fields
// are refreshed on every touch.
type FactoryDayData struct {
	ID                    string          `json:"id"`
	Date                  int64           `json:"date"`
	DailyVolumeUSD        decimal.Decimal `json:"dailyVolumeUSD"`
	DailyVolumeETH        decimal.Decimal `json:"dailyVolumeETH"`
	DailyVolumeUntracked  decimal.Decimal `json:"dailyVolumeUntracked"`
	TotalVolumeUSD        decimal.Decimal `json:"totalVolumeUSD"`
	TotalVolumeETH        decimal.Decimal `json:"totalVolumeETH"`
	TotalLiquidityUSD     decimal.Decimal `json:"totalLiquidityUSD"`
	TotalLiquidityETH     decimal.Decimal `json:"totalLiquidityETH"`
	TxCount               int64           `json:"txCount"`
}

// PoolDayData rolls a single pool up per day.
type PoolDayData struct {
	ID               string          `json:"id"`
	Date             int64           `json:"date"`
	Pool             string          `json:"poolAddress"`
	Token            string          `json:"token"`
	Reserve          decimal.Decimal `json:"reserve"`
	ReserveUSD       decimal.Decimal `json:"reserveUSD"`
	TotalSupply      decimal.Decimal `json:"totalSupply"`
	DailyVolumeToken decimal.Decimal `json:"dailyVolumeToken"`
	DailyVolumeUSD   decimal.Decimal `json:"dailyVolumeUSD"`
	DailyTxns        int64           `json:"dailyTxns"`
}

// PoolHourData rolls a single pool up per hour.
type PoolHourData struct {
	ID                string          `json:"id"`
	HourStartUnix     int64           `json:"hourStartUnix"`
	Pool              string          `json:"pool"`
	Reserve           decimal.Decimal `json:"reserve"`
	ReserveUSD        decimal.Decimal `json:"reserveUSD"`
	HourlyVolumeToken decimal.Decimal `json:"hourlyVolumeToken"`
	HourlyVolumeUSD   decimal.Decimal `json:"hourlyVolumeUSD"`
	HourlyTxns        int64           `json:"hourlyTxns"`
}

// TokenDayData rolls a token up per day across all its pools.
type TokenDayData struct {
	ID                  string          `json:"id"`
	Date                int64           `json:"date"`
	Token               string          `json:"token"`
	PriceUSD            decimal.Decimal `json:"priceUSD"`
	TotalLiquidityToken decimal.Decimal `json:"totalLiquidityToken"`
	TotalLiquidityETH   decimal.Decimal `json:"totalLiquidityETH"`
	TotalLiquidityUSD   decimal.Decimal `json:"totalLiquidityUSD"`
	DailyVolumeToken    decimal.Decimal `json:"dailyVolumeToken"`
	DailyVolumeETH      decimal.Decimal `json:"dailyVolumeETH"`
	DailyVolumeUSD      decimal.Decimal `json:"dailyVolumeUSD"`
	DailyTxns           int64           `json:"dailyTxns"`
}
