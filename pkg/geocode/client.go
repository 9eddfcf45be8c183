// Package geocode resolves free-text queries to coordinates through a
// Nominatim-compatible search endpoint.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Client resolves free-text queries against a geocoding service.
type Client interface {
	// Search resolves a free-text query. Results arrive in provider rank
	// order; an empty slice means unmatched, which is not an error.
	Search(ctx context.Context, query string) ([]Result, error)
}

// Result is one ranked geocoding match.
type Result struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	DisplayName string  `json:"display_name,omitempty"`
	Class       string  `json:"class,omitempty"`
	Type        string  `json:"type,omitempty"`
	Importance  float64 `json:"importance,omitempty"`
}

// Cache stores search results keyed by normalized query hash. Lookup
// misses are reported through found, not through error.
type Cache interface {
	Lookup(ctx context.Context, key string) (results []Result, found bool, err error)
	Store(ctx context.Context, key, query string, results []Result) error
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithBaseURL points the client at a different Nominatim instance.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		g.baseURL = u
	}
}

// WithUserAgent sets the User-Agent header. The public Nominatim service
// rejects requests without an identifying agent.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		g.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit for search calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithLimit caps how many ranked results a search requests.
func WithLimit(n int) Option {
	return func(g *geocoder) {
		g.limit = n
	}
}

// WithCache enables result caching. Both matches and empty result sets
// are cached so repeated unmatched queries skip the network.
func WithCache(c Cache) Option {
	return func(g *geocoder) {
		g.cache = c
	}
}

type geocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	limit      int
	cache      Cache
}

// NewClient creates a geocoding Client. The default rate limit of one
// request per second is the public Nominatim usage-policy floor.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		baseURL:    defaultBaseURL,
		userAgent:  "cardmap-cli/1.0 (github.com/cardmap/cardmap-cli)",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(1, 1),
		limit:      1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}
