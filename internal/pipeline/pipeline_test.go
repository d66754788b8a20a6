package pipeline

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mellowpine/coinpulse/internal/coingecko"
	"github.com/mellowpine/coinpulse/internal/config"
	"github.com/mellowpine/coinpulse/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMarket serves canned charts per coin and fails the coins it has no
// chart for, standing in for an exhausted client retry budget.
type fakeMarket struct {
	charts map[string]coingecko.MarketChart
	calls  int
}

func (f *fakeMarket) MarketChart(ctx context.Context, coinID, vsCurrency, days string) (coingecko.MarketChart, error) {
	f.calls++
	chart, ok := f.charts[coinID]
	if !ok {
		return coingecko.MarketChart{}, &coingecko.UpstreamError{CoinID: coinID, StatusCode: 502, Body: "upstream down"}
	}
	return chart, nil
}

// recordingMirror captures mirrored batches.
type recordingMirror struct {
	batches [][]storage.PricePoint
}

func (r *recordingMirror) MirrorPricePoints(ctx context.Context, data []storage.PricePoint) error {
	r.batches = append(r.batches, data)
	return nil
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	return &storage.SQLite{DB: db, Cfg: &config.SQLite{}}
}

func testCfg(coins ...string) *config.Config {
	return &config.Config{
		Coins:      coins,
		VsCurrency: "usd",
		Days:       "31",
		PacingSec:  -1, // no gap between coins inside tests
	}
}

func chartOf(pairs ...[2]float64) coingecko.MarketChart {
	chart := coingecko.MarketChart{}
	for _, p := range pairs {
		ts, v := p[0], p[1]
		chart.Prices = append(chart.Prices, coingecko.SeriesPair{&ts, &v})
	}
	return chart
}

func TestRunIngestsAllCoins(t *testing.T) {
	t.Parallel()

	market := &fakeMarket{charts: map[string]coingecko.MarketChart{
		"bitcoin":  chartOf([2]float64{1000, 10}, [2]float64{2000, 20}),
		"ethereum": chartOf([2]float64{1000, 5}),
	}}
	store := newTestStore(t)
	mirror := &recordingMirror{}

	summary, err := New(market, store, mirror, testCfg("bitcoin", "ethereum")).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.CoinsProcessed)
	assert.Equal(t, int64(3), summary.RowsInserted)
	assert.Empty(t, summary.FailedCoins)
	assert.Len(t, mirror.batches, 2)

	points, err := store.PricePoints(context.Background(), "bitcoin", time.Unix(0, 0).UTC(), time.Unix(0, 0).UTC())
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

func TestRunIsIdempotentAcrossRuns(t *testing.T) {
	t.Parallel()

	market := &fakeMarket{charts: map[string]coingecko.MarketChart{
		"bitcoin": chartOf([2]float64{1000, 10}, [2]float64{2000, 20}),
	}}
	store := newTestStore(t)
	cfg := testCfg("bitcoin")

	summary, err := New(market, store, nil, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.RowsInserted)

	// Second run over the identical window inserts nothing new.
	summary, err = New(market, store, nil, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CoinsProcessed)
	assert.Equal(t, int64(0), summary.RowsInserted)
}

func TestRunSkipsAndRecordsFailedCoins(t *testing.T) {
	t.Parallel()

	market := &fakeMarket{charts: map[string]coingecko.MarketChart{
		"bitcoin": chartOf([2]float64{1000, 10}),
		"solana":  chartOf([2]float64{1000, 3}),
	}}
	store := newTestStore(t)

	summary, err := New(market, store, nil, testCfg("bitcoin", "ethereum", "solana")).Run(context.Background())
	require.Error(t, err, "a failed coin must surface a non-nil run error")

	// One failure does not stop salvaging the rest.
	assert.Equal(t, 2, summary.CoinsProcessed)
	assert.Equal(t, int64(2), summary.RowsInserted)
	assert.Equal(t, []string{"ethereum"}, summary.FailedCoins)
	assert.Equal(t, 3, market.calls)

	points, err := store.PricePoints(context.Background(), "solana", time.Unix(0, 0).UTC(), time.Unix(0, 0).UTC())
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestRunSchemaInitFailureIsFatal(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, db.Close())
	store := &storage.SQLite{DB: db, Cfg: &config.SQLite{}}

	market := &fakeMarket{}
	_, err = New(market, store, nil, testCfg("bitcoin")).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, market.calls, "no coin may be fetched without a schema")
}

func TestRunHonorsCancellation(t *testing.T) {
	t.Parallel()

	market := &fakeMarket{charts: map[string]coingecko.MarketChart{
		"bitcoin":  chartOf([2]float64{1000, 10}),
		"ethereum": chartOf([2]float64{1000, 5}),
	}}
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cfg := testCfg("bitcoin", "ethereum")
	cfg.PacingSec = 1

	// Cancel during the pacing gap before the second coin.
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	summary, err := New(market, store, nil, cfg).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.CoinsProcessed)
	assert.Equal(t, 1, market.calls)
}
