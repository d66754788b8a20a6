package dashboard

import (
	"context"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mellowpine/coinpulse/internal/coingecko"
	"github.com/mellowpine/coinpulse/internal/config"
	"github.com/mellowpine/coinpulse/internal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const dayFormat = "2006-01-02"

// metaClient fetches live coin metadata for the enrichment endpoint.
type metaClient interface {
	CoinMetadata(ctx context.Context, coinID string) (coingecko.CoinMetadata, error)
}

// Server exposes the stored price history and a live metadata enrichment
// endpoint over HTTP. It only reads the store, the pipeline stays the sole
// writer.
type Server struct {
	store      storage.Store
	client     metaClient
	cfg        *config.Dashboard
	vsCurrency string
}

// New creates a dashboard server over the given store.
func New(store storage.Store, client metaClient, cfg *config.Dashboard, vsCurrency string) *Server {
	return &Server{
		store:      store,
		client:     client,
		cfg:        cfg,
		vsCurrency: vsCurrency,
	}
}

// Run serves the dashboard till the context is canceled.
func (s *Server) Run(appCtx context.Context) error {
	addr := s.cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/series", s.handleSeries)
	mux.HandleFunc("/api/coin", s.handleCoin)

	srv := &http.Server{Addr: addr, Handler: mux}

	g, ctx := errgroup.WithContext(appCtx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("dashboard listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// seriesRow is one row of the series API response.
type seriesRow struct {
	TsMs        int64    `json:"ts_ms"`
	Ts          string   `json:"ts"`
	Price       *float64 `json:"price"`
	MarketCap   *float64 `json:"market_cap"`
	TotalVolume *float64 `json:"total_volume"`
}

type seriesResp struct {
	Coin       string      `json:"coin"`
	VsCurrency string      `json:"vs_currency"`
	From       string      `json:"from"`
	To         string      `json:"to"`
	Rows       []seriesRow `json:"rows"`
}

// handleSeries returns the stored rows of one coin within an inclusive date
// range, ordered ascending by timestamp.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	coin := r.URL.Query().Get("coin")
	if coin == "" {
		coin = s.cfg.DefaultCoin
	}
	if coin == "" {
		http.Error(w, "coin is required", http.StatusBadRequest)
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(dayFormat, v); err != nil {
			http.Error(w, "invalid from date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(dayFormat, v); err != nil {
			http.Error(w, "invalid to date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	if from.After(to) {
		http.Error(w, "invalid date range", http.StatusBadRequest)
		return
	}

	points, err := s.store.PricePoints(r.Context(), coin, from, to)
	if err != nil {
		log.Error().Err(err).Str("coin", coin).Msg("series query failed")
		http.Error(w, "storage query failed", http.StatusInternalServerError)
		return
	}

	resp := seriesResp{
		Coin:       coin,
		VsCurrency: s.vsCurrency,
		From:       from.Format(dayFormat),
		To:         to.Format(dayFormat),
		Rows:       make([]seriesRow, 0, len(points)),
	}
	for _, point := range points {
		resp.Rows = append(resp.Rows, seriesRow{
			TsMs:        point.TsMs,
			Ts:          time.Unix(point.TsMs/1000, 0).UTC().Format("2006-01-02 15:04:05"),
			Price:       point.Price,
			MarketCap:   point.MarketCap,
			TotalVolume: point.TotalVolume,
		})
	}
	writeJSON(w, resp)
}

type coinResp struct {
	Live bool                    `json:"live"`
	Coin *coingecko.CoinMetadata `json:"coin,omitempty"`
}

// handleCoin proxies live point-in-time metadata from the provider.
// On upstream failure the response reports live false, the dashboard then
// falls back to the historical only view instead of erroring out.
func (s *Server) handleCoin(w http.ResponseWriter, r *http.Request) {
	coin := r.URL.Query().Get("id")
	if coin == "" {
		coin = s.cfg.DefaultCoin
	}
	if coin == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	meta, err := s.client.CoinMetadata(r.Context(), coin)
	if err != nil {
		log.Warn().Err(err).Str("coin", coin).Msg("live metadata unavailable, degrading to historical view")
		writeJSON(w, coinResp{Live: false})
		return
	}
	writeJSON(w, coinResp{Live: true, Coin: &meta})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := jsoniter.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}
