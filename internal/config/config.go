package config

import "strings"

const (
	// PublicRESTBaseURL is the CoinGecko public / demo tier base REST url.
	PublicRESTBaseURL = "https://api.coingecko.com/api/v3"
	// ProRESTBaseURL is the CoinGecko pro tier base REST url.
	ProRESTBaseURL = "https://pro-api.coingecko.com/api/v3"

	// ProAPIKeyHeader is the request header carrying the pro tier API key.
	ProAPIKeyHeader = "x-cg-pro-api-key"
)

// Config contains config values for the app.
// Struct values are loaded from user defined JSON config file.
type Config struct {
	Coins      []string   `json:"coins"`
	VsCurrency string     `json:"vs_currency"`
	Days       string     `json:"days"`
	APIKey     string     `json:"api_key"`
	BaseURL    string     `json:"base_url_override"`
	PacingSec  int        `json:"coin_pacing_sec"`
	Retry      Retry      `json:"retry"`
	Storages   []string   `json:"storages"`
	Connection Connection `json:"connection"`
	Dashboard  Dashboard  `json:"dashboard"`
	Log        Log        `json:"log"`
}

// Retry contains config values for the market data request retry process.
type Retry struct {
	MaxAttempts  int `json:"max_attempts"`
	BaseDelaySec int `json:"base_delay_sec"`
	CapDelaySec  int `json:"cap_delay_sec"`
}

// REST contains config values for REST API connection.
type REST struct {
	ReqTimeoutSec       int `json:"request_timeout_sec"`
	MaxIdleConns        int `json:"max_idle_conns"`
	MaxIdleConnsPerHost int `json:"max_idle_conns_per_host"`
}

// Connection contains config values for different API and storage connections.
type Connection struct {
	REST   REST   `json:"rest"`
	SQLite SQLite `json:"sqlite"`
	MySQL  MySQL  `json:"mysql"`
	ES     ES     `json:"elastic_search"`
}

// SQLite contains config values for sqlite.
type SQLite struct {
	Path          string `json:"path"`
	ReqTimeoutSec int    `json:"request_timeout_sec"`
}

// MySQL contains config values for mysql.
type MySQL struct {
	User               string `json:"user"`
	Password           string `json:"password"`
	URL                string `json:"URL"`
	Schema             string `json:"schema"`
	ReqTimeoutSec      int    `json:"request_timeout_sec"`
	ConnMaxLifetimeSec int    `json:"conn_max_lifetime_sec"`
	MaxOpenConns       int    `json:"max_open_conns"`
	MaxIdleConns       int    `json:"max_idle_conns"`
}

// ES contains config values for elastic search.
type ES struct {
	Addresses           []string `json:"addresses"`
	Username            string   `json:"username"`
	Password            string   `json:"password"`
	IndexName           string   `json:"index_name"`
	ReqTimeoutSec       int      `json:"request_timeout_sec"`
	MaxIdleConns        int      `json:"max_idle_conns"`
	MaxIdleConnsPerHost int      `json:"max_idle_conns_per_host"`
}

// Dashboard contains config values for the dashboard server.
type Dashboard struct {
	Addr        string `json:"addr"`
	DefaultCoin string `json:"default_coin"`
}

// Log contains config values for logging.
type Log struct {
	Level    string `json:"level"`
	FilePath string `json:"file_path"`
}

// Endpoint is the resolved CoinGecko endpoint for the configured API tier.
type Endpoint struct {
	BaseURL string
	Headers map[string]string
}

// SelectEndpoint resolves the base url and request headers from the configured
// API key and the optional base url override. A missing key or a demo shaped
// key selects the public endpoint without credentials, any other key selects
// the pro endpoint with the key attached as a request header. The override
// only replaces the url, header selection still follows the resolved url.
func SelectEndpoint(apiKey, override string) Endpoint {
	apiKey = strings.TrimSpace(apiKey)
	base := PublicRESTBaseURL
	if apiKey != "" && !strings.Contains(strings.ToLower(apiKey), "demo") {
		base = ProRESTBaseURL
	}
	if override != "" {
		base = override
	}
	headers := make(map[string]string)
	if apiKey != "" && strings.Contains(base, "pro-api.coingecko.com") {
		headers[ProAPIKeyHeader] = apiKey
	}
	return Endpoint{BaseURL: base, Headers: headers}
}
