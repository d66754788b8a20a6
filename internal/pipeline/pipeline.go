package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mellowpine/coinpulse/internal/coingecko"
	"github.com/mellowpine/coinpulse/internal/config"
	"github.com/mellowpine/coinpulse/internal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// marketClient is the upstream dependency of the pipeline.
type marketClient interface {
	MarketChart(ctx context.Context, coinID, vsCurrency, days string) (coingecko.MarketChart, error)
}

// Mirror is an optional secondary sink receiving each normalized batch after
// the relational commit.
type Mirror interface {
	MirrorPricePoints(ctx context.Context, data []storage.PricePoint) error
}

// Summary aggregates the result of one ingestion run.
type Summary struct {
	CoinsProcessed int
	RowsInserted   int64
	FailedCoins    []string
}

// Pipeline drives fetch, normalize and commit for the configured coin list,
// strictly sequentially. Concurrent fetching would defeat the inter coin
// pacing which keeps the whole run under the provider's shared rate limit.
type Pipeline struct {
	client     marketClient
	store      storage.Store
	mirror     Mirror
	coins      []string
	vsCurrency string
	days       string
	pacing     time.Duration
}

// New creates a pipeline for the configured coins. The mirror sink may be
// nil. A zero pacing selects the 3s default, a negative one disables the gap.
func New(client marketClient, store storage.Store, mir Mirror, cfg *config.Config) *Pipeline {
	pacing := time.Duration(cfg.PacingSec) * time.Second
	if cfg.PacingSec == 0 {
		pacing = 3 * time.Second
	}
	return &Pipeline{
		client:     client,
		store:      store,
		mirror:     mir,
		coins:      cfg.Coins,
		vsCurrency: cfg.VsCurrency,
		days:       cfg.Days,
		pacing:     pacing,
	}
}

// Run ingests the configured coins one by one: fetch market chart, normalize,
// commit. A coin whose fetch fails after the client's retry budget is
// recorded and skipped so a partial upstream outage still salvages the rest,
// while a storage failure aborts the run since nothing can be persisted.
// The returned error is non-nil when any coin failed, the summary is valid
// either way.
func (p *Pipeline) Run(appCtx context.Context) (Summary, error) {
	summary := Summary{}

	if err := p.store.InitSchema(appCtx); err != nil {
		err = errors.Wrap(err, "schema init")
		logErrStack(err)
		return summary, err
	}

	for i, coin := range p.coins {

		// Fixed gap between coins. Provider rate limits are measured per time
		// window across all requests, so per request backoff alone is not
		// enough when walking a whole coin list.
		if i > 0 && p.pacing > 0 {
			tick := time.NewTicker(p.pacing)
			select {
			case <-tick.C:
				tick.Stop()
			case <-appCtx.Done():
				tick.Stop()
				return summary, appCtx.Err()
			}
		}

		log.Info().Str("coin", coin).Str("vs_currency", p.vsCurrency).Str("days", p.days).Msg("fetching market chart")
		chart, err := p.client.MarketChart(appCtx, coin, p.vsCurrency, p.days)
		if err != nil {
			if appCtx.Err() != nil {
				return summary, err
			}
			logErrStack(err)
			summary.FailedCoins = append(summary.FailedCoins, coin)
			continue
		}

		points := Normalize(coin, chart)
		inserted, err := p.store.CommitPricePoints(appCtx, points)
		if err != nil {
			err = errors.Wrap(err, "price history commit")
			logErrStack(err)
			return summary, err
		}

		if p.mirror != nil {
			if err := p.mirror.MirrorPricePoints(appCtx, points); err != nil {
				log.Error().Err(err).Str("coin", coin).Msg("elastic search mirror failed, relational store is committed")
			}
		}

		summary.CoinsProcessed++
		summary.RowsInserted += inserted
		log.Info().Str("coin", coin).Int("rows", len(points)).Int64("inserted", inserted).Msg("coin ingested")
	}

	if len(summary.FailedCoins) > 0 {
		return summary, fmt.Errorf("%v of %v coins failed: %v", len(summary.FailedCoins), len(p.coins), summary.FailedCoins)
	}
	return summary, nil
}

// logErrStack logs error with stack trace.
func logErrStack(err error) {
	log.Error().Stack().Err(errors.WithStack(err)).Msg("")
}
