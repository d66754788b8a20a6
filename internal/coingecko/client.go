package coingecko

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mellowpine/coinpulse/internal/config"
	"github.com/mellowpine/coinpulse/internal/connector"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// maxErrBodyBytes limits how much of an error response body is kept for
// diagnostics.
const maxErrBodyBytes = 4096

// UpstreamError is returned when CoinGecko keeps answering with a non-success
// status till the retry budget is exhausted, or answers with a payload which
// can not be parsed.
type UpstreamError struct {
	CoinID     string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("coingecko response for %v : %v", e.CoinID, e.Body)
	}
	return fmt.Sprintf("coingecko status %v for %v : %v", e.StatusCode, e.CoinID, e.Body)
}

// SeriesPair is one [timestamp_ms, value] element of a market chart series.
// Either member may be null in the payload.
type SeriesPair []*float64

// MarketChart represents the market_chart API response: three independent
// series of [timestamp_ms, value] pairs, not necessarily aligned on
// timestamps across the series.
type MarketChart struct {
	Prices       []SeriesPair `json:"prices"`
	MarketCaps   []SeriesPair `json:"market_caps"`
	TotalVolumes []SeriesPair `json:"total_volumes"`
}

// Client queries the CoinGecko REST API on the endpoint selected from the
// configured API tier.
type Client struct {
	endpoint config.Endpoint
	rest     *connector.REST
	policy   retryPolicy
}

// NewClient creates a new CoinGecko client for the given endpoint.
func NewClient(endpoint config.Endpoint, rest *connector.REST, retryCfg *config.Retry) *Client {
	return &Client{
		endpoint: endpoint,
		rest:     rest,
		policy:   newRetryPolicy(retryCfg),
	}
}

// MarketChart queries coins/{id}/market_chart for the price, market cap and
// total volume series of a coin over the configured day window.
// Any non-200 response is retried with capped exponential backoff till the
// attempt budget runs out, honoring an explicit Retry-After delay when the
// rate limit is hit. Client error responses are retried the same way, their
// body is logged since retries can not fix a malformed request.
func (c *Client) MarketChart(ctx context.Context, coinID, vsCurrency, days string) (MarketChart, error) {
	if coinID == "" {
		return MarketChart{}, errors.New("coin id is empty")
	}

	reqURL := c.endpoint.BaseURL + "/coins/" + url.PathEscape(coinID) + "/market_chart"

	var (
		lastStatus int
		lastBody   string
	)
	for attempt := 0; attempt < c.policy.maxAttempts; attempt++ {
		req, err := c.rest.Request(ctx, reqURL)
		if err != nil {
			return MarketChart{}, err
		}
		q := req.URL.Query()
		q.Add("vs_currency", vsCurrency)
		q.Add("days", days)
		req.URL.RawQuery = q.Encode()
		for k, v := range c.endpoint.Headers {
			req.Header.Set(k, v)
		}

		var serverDelay time.Duration
		resp, err := c.rest.Do(req)
		if err != nil {
			if errors.Is(err, ctx.Err()) {
				return MarketChart{}, err
			}
			lastStatus = 0
			lastBody = err.Error()
		} else {
			if resp.StatusCode == http.StatusOK {
				mc := MarketChart{}
				if err = jsoniter.NewDecoder(resp.Body).Decode(&mc); err != nil {
					resp.Body.Close()
					return MarketChart{}, errors.Wrap(&UpstreamError{CoinID: coinID, Body: "unparseable payload : " + err.Error()}, "market chart decode")
				}
				resp.Body.Close()
				return mc, nil
			}

			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBodyBytes))
			resp.Body.Close()
			lastStatus = resp.StatusCode
			lastBody = strings.TrimSpace(string(body))

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				serverDelay = retryAfterDelay(resp.Header.Get("Retry-After"))
				log.Warn().Str("coin", coinID).Int("status", lastStatus).Dur("retry_after", serverDelay).Msg("rate limited")
			case resp.StatusCode >= 400 && resp.StatusCode < 500:
				log.Error().Str("coin", coinID).Int("status", lastStatus).Str("body", lastBody).Msg("client error response")
			default:
				log.Error().Str("coin", coinID).Int("status", lastStatus).Msg("server error response")
			}
		}

		if attempt == c.policy.maxAttempts-1 {
			break
		}
		wait := c.policy.backoff(attempt, serverDelay)
		log.Info().Str("coin", coinID).Int("attempt", attempt+1).Dur("wait", wait).Msg("retrying market chart request")
		if err := c.policy.sleep(ctx, wait); err != nil {
			return MarketChart{}, err
		}
	}

	return MarketChart{}, &UpstreamError{CoinID: coinID, StatusCode: lastStatus, Body: lastBody}
}

// retryAfterDelay parses a Retry-After header value given in seconds.
// Returns zero when the value is missing or unparseable so the caller falls
// back to the computed backoff.
func retryAfterDelay(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
