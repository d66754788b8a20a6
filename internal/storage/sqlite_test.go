package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mellowpine/coinpulse/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Keep everything on one connection, an in-memory sqlite database lives
	// per connection.
	db.SetMaxOpenConns(1)

	s := &SQLite{DB: db, Cfg: &config.SQLite{}}
	require.NoError(t, s.InitSchema(context.Background()))
	return s
}

func fp(v float64) *float64 { return &v }

func msOfDay(day string) int64 {
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return d.UnixNano() / int64(time.Millisecond)
}

func TestInitSchemaIdempotent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.InitSchema(context.Background()))
	require.NoError(t, s.InitSchema(context.Background()))
}

func TestCommitPricePointsCountsOnlyNewRows(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	batch := []PricePoint{
		{CoinID: "bitcoin", TsMs: 1000, Price: fp(10), MarketCap: fp(100), TotalVolume: fp(1)},
		{CoinID: "bitcoin", TsMs: 2000, Price: fp(20)},
		{CoinID: "ethereum", TsMs: 1000, Price: fp(5)},
	}
	inserted, err := s.CommitPricePoints(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(3), inserted)

	// Re-committing the identical batch inserts nothing.
	inserted, err = s.CommitPricePoints(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted)

	// A mixed batch only counts the fresh row.
	inserted, err = s.CommitPricePoints(ctx, append(batch, PricePoint{CoinID: "bitcoin", TsMs: 3000, Price: fp(30)}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), inserted)
}

func TestCommitPricePointsNeverOverwrites(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CommitPricePoints(ctx, []PricePoint{{CoinID: "bitcoin", TsMs: 1000, Price: fp(10)}})
	require.NoError(t, err)

	// Same key, different non-key values: silently ignored, no error, first
	// row stays.
	inserted, err := s.CommitPricePoints(ctx, []PricePoint{{CoinID: "bitcoin", TsMs: 1000, Price: fp(99), MarketCap: fp(999)}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted)

	points, err := s.PricePoints(ctx, "bitcoin", time.Unix(0, 0).UTC(), time.Unix(0, 0).UTC())
	require.NoError(t, err)
	require.Len(t, points, 1)
	require.NotNil(t, points[0].Price)
	assert.Equal(t, 10.0, *points[0].Price)
	assert.Nil(t, points[0].MarketCap)
}

func TestCommitPricePointsKeepsNulls(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CommitPricePoints(ctx, []PricePoint{{CoinID: "bitcoin", TsMs: 1000, MarketCap: fp(100)}})
	require.NoError(t, err)

	points, err := s.PricePoints(ctx, "bitcoin", time.Unix(0, 0).UTC(), time.Unix(0, 0).UTC())
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Nil(t, points[0].Price)
	assert.Nil(t, points[0].TotalVolume)
	require.NotNil(t, points[0].MarketCap)
	assert.Equal(t, 100.0, *points[0].MarketCap)
}

func TestPricePointsRangeQuery(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	// Five days of data plus another coin which must never leak into the
	// result.
	batch := []PricePoint{}
	days := []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04", "2024-03-05"}
	for _, day := range days {
		batch = append(batch, PricePoint{CoinID: "bitcoin", TsMs: msOfDay(day) + 3600_000, Price: fp(float64(len(batch)))})
	}
	batch = append(batch, PricePoint{CoinID: "ethereum", TsMs: msOfDay("2024-03-03"), Price: fp(1)})
	_, err := s.CommitPricePoints(ctx, batch)
	require.NoError(t, err)

	from, _ := time.Parse("2006-01-02", "2024-03-02")
	to, _ := time.Parse("2006-01-02", "2024-03-04")
	points, err := s.PricePoints(ctx, "bitcoin", from, to)
	require.NoError(t, err)

	// Inclusive boundary dates: exactly the three middle days.
	require.Len(t, points, 3)
	assert.Equal(t, msOfDay("2024-03-02")+3600_000, points[0].TsMs)
	assert.Equal(t, msOfDay("2024-03-04")+3600_000, points[2].TsMs)
	for i := 1; i < len(points); i++ {
		assert.Less(t, points[i-1].TsMs, points[i].TsMs)
	}
	for _, point := range points {
		assert.Equal(t, "bitcoin", point.CoinID)
	}
}

func TestPricePointsEmptyRange(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	points, err := s.PricePoints(context.Background(), "bitcoin", time.Now().UTC(), time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestDayRangeMs(t *testing.T) {
	t.Parallel()

	from, _ := time.Parse("2006-01-02", "2024-03-02")
	to, _ := time.Parse("2006-01-02", "2024-03-02")
	fromMs, toMs := DayRangeMs(from, to)
	assert.Equal(t, msOfDay("2024-03-02"), fromMs)
	assert.Equal(t, msOfDay("2024-03-03")-1, toMs)
}
