package pipeline

import (
	"sort"

	"github.com/mellowpine/coinpulse/internal/coingecko"
	"github.com/mellowpine/coinpulse/internal/storage"
)

// Normalize joins the three market chart series of a coin into canonical
// price point rows keyed by timestamp. The join is a full outer one: a
// timestamp present in any series produces one row, metrics missing at that
// timestamp stay nil. Pairs without a usable timestamp or value are dropped.
// Output is sorted ascending by timestamp, downstream windowed queries
// depend on that order.
func Normalize(coinID string, chart coingecko.MarketChart) []storage.PricePoint {
	byTs := make(map[int64]*storage.PricePoint)

	merge := func(pairs []coingecko.SeriesPair, assign func(*storage.PricePoint, *float64)) {
		for _, pair := range pairs {
			if len(pair) < 2 || pair[0] == nil || pair[1] == nil {
				continue
			}
			ts := int64(*pair[0])
			point, ok := byTs[ts]
			if !ok {
				point = &storage.PricePoint{CoinID: coinID, TsMs: ts}
				byTs[ts] = point
			}
			assign(point, pair[1])
		}
	}

	merge(chart.Prices, func(p *storage.PricePoint, v *float64) { p.Price = v })
	merge(chart.MarketCaps, func(p *storage.PricePoint, v *float64) { p.MarketCap = v })
	merge(chart.TotalVolumes, func(p *storage.PricePoint, v *float64) { p.TotalVolume = v })

	points := make([]storage.PricePoint, 0, len(byTs))
	for _, point := range byTs {
		points = append(points, *point)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].TsMs < points[j].TsMs })
	return points
}
