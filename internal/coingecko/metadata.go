package coingecko

import (
	"context"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// CoinMetadata represents live point-in-time metadata of a coin from the
// coins/{id} API, trimmed down to the fields the dashboard and the export
// script use.
type CoinMetadata struct {
	ID          string            `json:"id"`
	Symbol      string            `json:"symbol"`
	Name        string            `json:"name"`
	Image       CoinImage         `json:"image"`
	Description map[string]string `json:"description"`
	MarketData  CoinMarketData    `json:"market_data"`
}

// CoinImage holds coin logo urls.
type CoinImage struct {
	Thumb string `json:"thumb"`
	Small string `json:"small"`
}

// CoinMarketData holds current market figures keyed by quote currency.
type CoinMarketData struct {
	CurrentPrice   map[string]float64 `json:"current_price"`
	PriceChange24h *float64           `json:"price_change_percentage_24h"`
	MarketCap      map[string]float64 `json:"market_cap"`
	TotalVolume    map[string]float64 `json:"total_volume"`
	ATH            map[string]float64 `json:"ath"`
	ATL            map[string]float64 `json:"atl"`
	ATHDate        map[string]string  `json:"ath_date"`
	ATLDate        map[string]string  `json:"atl_date"`
}

// CoinMetadata queries coins/{id} for live metadata: name, logo, description
// and current market figures. Localization, tickers and sparkline are
// switched off to keep the response light. This is a best effort enrichment
// call, so there is no retry loop here and callers are expected to degrade
// gracefully on error.
func (c *Client) CoinMetadata(ctx context.Context, coinID string) (CoinMetadata, error) {
	req, err := c.rest.Request(ctx, c.endpoint.BaseURL+"/coins/"+coinID)
	if err != nil {
		return CoinMetadata{}, err
	}
	q := req.URL.Query()
	q.Add("localization", "false")
	q.Add("tickers", "false")
	q.Add("market_data", "true")
	q.Add("community_data", "false")
	q.Add("developer_data", "false")
	q.Add("sparkline", "false")
	req.URL.RawQuery = q.Encode()
	for k, v := range c.endpoint.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.rest.Do(req)
	if err != nil {
		return CoinMetadata{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBodyBytes))
		return CoinMetadata{}, &UpstreamError{CoinID: coinID, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	meta := CoinMetadata{}
	if err = jsoniter.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return CoinMetadata{}, &UpstreamError{CoinID: coinID, Body: "unparseable payload : " + err.Error()}
	}
	return meta, nil
}
