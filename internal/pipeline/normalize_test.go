package pipeline

import (
	"testing"

	"github.com/mellowpine/coinpulse/internal/coingecko"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }

func pair(ts, v float64) coingecko.SeriesPair {
	return coingecko.SeriesPair{&ts, &v}
}

func TestNormalizeOuterJoin(t *testing.T) {
	t.Parallel()

	chart := coingecko.MarketChart{
		Prices:     []coingecko.SeriesPair{pair(1000, 10)},
		MarketCaps: []coingecko.SeriesPair{pair(1000, 100), pair(2000, 200)},
	}

	points := Normalize("bitcoin", chart)
	require.Len(t, points, 2)

	assert.Equal(t, "bitcoin", points[0].CoinID)
	assert.Equal(t, int64(1000), points[0].TsMs)
	require.NotNil(t, points[0].Price)
	assert.Equal(t, 10.0, *points[0].Price)
	require.NotNil(t, points[0].MarketCap)
	assert.Equal(t, 100.0, *points[0].MarketCap)
	assert.Nil(t, points[0].TotalVolume)

	// A timestamp present in only one series still produces a row, the
	// missing metrics stay nil.
	assert.Equal(t, "bitcoin", points[1].CoinID)
	assert.Equal(t, int64(2000), points[1].TsMs)
	assert.Nil(t, points[1].Price)
	require.NotNil(t, points[1].MarketCap)
	assert.Equal(t, 200.0, *points[1].MarketCap)
	assert.Nil(t, points[1].TotalVolume)
}

func TestNormalizeSortsAscending(t *testing.T) {
	t.Parallel()

	chart := coingecko.MarketChart{
		Prices:       []coingecko.SeriesPair{pair(3000, 3), pair(1000, 1), pair(2000, 2)},
		TotalVolumes: []coingecko.SeriesPair{pair(5000, 50), pair(4000, 40)},
	}

	points := Normalize("ethereum", chart)
	require.Len(t, points, 5)
	for i := 1; i < len(points); i++ {
		assert.Less(t, points[i-1].TsMs, points[i].TsMs, "output must be strictly ascending by timestamp")
	}
}

func TestNormalizeDropsUnkeyedPairs(t *testing.T) {
	t.Parallel()

	v := 10.0
	chart := coingecko.MarketChart{
		Prices: []coingecko.SeriesPair{
			{nil, &v},       // no timestamp, can not be keyed
			{fp(1000)},      // no value member at all
			{fp(2000), nil}, // null value, pair carries nothing
			pair(3000, 30),
		},
	}

	points := Normalize("bitcoin", chart)
	require.Len(t, points, 1)
	assert.Equal(t, int64(3000), points[0].TsMs)
}

func TestNormalizeDeterministic(t *testing.T) {
	t.Parallel()

	chart := coingecko.MarketChart{
		Prices:       []coingecko.SeriesPair{pair(2000, 2), pair(1000, 1)},
		MarketCaps:   []coingecko.SeriesPair{pair(1000, 10)},
		TotalVolumes: []coingecko.SeriesPair{pair(3000, 30)},
	}

	first := Normalize("bitcoin", chart)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Normalize("bitcoin", chart))
	}
}

func TestNormalizeEmptyPayload(t *testing.T) {
	t.Parallel()

	points := Normalize("bitcoin", coingecko.MarketChart{})
	assert.Empty(t, points)
}
