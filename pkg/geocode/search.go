package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// nominatimPlace is one entry of the /search response. The service
// serializes lat/lon as JSON strings.
type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Class       string  `json:"class"`
	Type        string  `json:"type"`
	Importance  float64 `json:"importance"`
}

// Search resolves query through the /search endpoint, consulting the
// cache first when one is configured.
func (g *geocoder) Search(ctx context.Context, query string) ([]Result, error) {
	key := cacheKey(query)
	if g.cache != nil {
		cached, found, err := g.cache.Lookup(ctx, key)
		if err != nil {
			zap.L().Debug("geocode cache lookup failed", zap.Error(err))
		} else if found {
			zap.L().Debug("geocode cache hit", zap.String("key", key[:12]))
			return cached, nil
		}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {strconv.Itoa(g.limit)},
	}
	reqURL := g.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: search request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}

	results := make([]Result, 0, len(places))
	for _, p := range places {
		lat, err := strconv.ParseFloat(p.Lat, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "geocode: parse lat %q", p.Lat)
		}
		lng, err := strconv.ParseFloat(p.Lon, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "geocode: parse lon %q", p.Lon)
		}
		results = append(results, Result{
			Lat:         lat,
			Lng:         lng,
			DisplayName: p.DisplayName,
			Class:       p.Class,
			Type:        p.Type,
			Importance:  p.Importance,
		})
	}

	if g.cache != nil {
		if err := g.cache.Store(ctx, key, query, results); err != nil {
			zap.L().Warn("geocode cache store failed", zap.Error(err))
		}
	}

	return results, nil
}
