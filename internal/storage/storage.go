package storage

import (
	"context"
	"time"
)

// PricePoint represents the canonical joined form of one timestamp's market
// metrics for one coin, ready to store. Metric values the provider omitted
// at that timestamp stay nil and are stored as NULL.
type PricePoint struct {
	CoinID      string
	TsMs        int64
	Price       *float64
	MarketCap   *float64
	TotalVolume *float64
}

// Store is a durable price history store keyed uniquely by (coin_id, ts_ms).
type Store interface {

	// InitSchema creates the price history table if it does not exist yet.
	InitSchema(ctx context.Context) error

	// CommitPricePoints inserts the batch transactionally, silently skipping
	// rows whose (coin_id, ts_ms) already exists, and returns the number of
	// rows newly inserted.
	CommitPricePoints(ctx context.Context, data []PricePoint) (int64, error)

	// PricePoints returns the rows of one coin whose timestamp falls within
	// the inclusive boundary dates, ordered ascending by timestamp.
	PricePoints(ctx context.Context, coinID string, from, to time.Time) ([]PricePoint, error)
}

// storeTimestamp is the format for the created_at audit column.
const storeTimestamp = "2006-01-02T15:04:05.999+00:00"

// DayRangeMs converts inclusive boundary dates to the millisecond bounds
// covering those whole UTC days.
func DayRangeMs(from, to time.Time) (int64, int64) {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC).Add(24*time.Hour - time.Millisecond)
	return f.UnixNano() / int64(time.Millisecond), t.UnixNano() / int64(time.Millisecond)
}
