package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectEndpoint(t *testing.T) {
	t.Parallel()

	// No key selects the public endpoint without credentials.
	ep := SelectEndpoint("", "")
	assert.Equal(t, PublicRESTBaseURL, ep.BaseURL)
	assert.Empty(t, ep.Headers)

	// Demo shaped keys stay on the public endpoint and send no header.
	ep = SelectEndpoint("CG-Demo-abc123", "")
	assert.Equal(t, PublicRESTBaseURL, ep.BaseURL)
	assert.Empty(t, ep.Headers)

	// A real key selects the pro endpoint with the key attached.
	ep = SelectEndpoint("CG-xyz789", "")
	assert.Equal(t, ProRESTBaseURL, ep.BaseURL)
	assert.Equal(t, "CG-xyz789", ep.Headers[ProAPIKeyHeader])

	// Surrounding whitespace on the key is not meaningful.
	ep = SelectEndpoint("  CG-xyz789  ", "")
	assert.Equal(t, ProRESTBaseURL, ep.BaseURL)
	assert.Equal(t, "CG-xyz789", ep.Headers[ProAPIKeyHeader])

	// An override replaces the url, and since it moves off the pro domain
	// the key header is not sent to the unknown host.
	ep = SelectEndpoint("CG-xyz789", "http://localhost:9091/api/v3")
	assert.Equal(t, "http://localhost:9091/api/v3", ep.BaseURL)
	assert.Empty(t, ep.Headers)

	// An override pointing at the pro domain keeps the header.
	ep = SelectEndpoint("CG-xyz789", "https://pro-api.coingecko.com/api/v3")
	assert.Equal(t, "https://pro-api.coingecko.com/api/v3", ep.BaseURL)
	assert.Equal(t, "CG-xyz789", ep.Headers[ProAPIKeyHeader])
}
