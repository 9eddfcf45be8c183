// Package trello provides a minimal client for the Trello REST API:
// reading board lists and cards, and writing card coordinates.
package trello

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.trello.com"

// Client defines the board operations the enrichment pipeline needs.
type Client interface {
	// Lists returns the open lists of a board.
	Lists(ctx context.Context, boardID string) ([]List, error)
	// Cards returns the open cards of a board.
	Cards(ctx context.Context, boardID string) ([]Card, error)
	// UpdateCardCoordinates writes "lat,lng" to a card's coordinates field.
	UpdateCardCoordinates(ctx context.Context, cardID string, lat, lng float64) error
}

// List is a board list (column).
type List struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

// Label is a board label attached to a card.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Coordinates is the card coordinates object as Trello serializes it on
// reads. Writes use the "lat,lng" string form instead.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Card is a board card with the fields the pipeline consumes.
type Card struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Desc        string       `json:"desc"`
	IDList      string       `json:"idList"`
	Labels      []Label      `json:"labels"`
	Coordinates *Coordinates `json:"coordinates"`
	DueComplete bool         `json:"dueComplete"`
	IsTemplate  bool         `json:"isTemplate"`
	Closed      bool         `json:"closed"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second limit. Trello enforces 100
// requests per 10 seconds per token.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	key     string
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Trello client authenticated with an API key/token
// pair.
func NewClient(key, token string, opts ...Option) Client {
	c := &httpClient{
		key:     key,
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(8, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do issues an authenticated request and returns the response body.
func (c *httpClient) do(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "trello: rate limit")
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("key", c.key)
	params.Set("token", c.token)

	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "trello: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "trello: %s %s", method, path)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "trello: read body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, eris.Errorf("trello: %s %s returned status %d: %s", method, path, resp.StatusCode, string(body))
	}

	return body, nil
}

func (c *httpClient) Lists(ctx context.Context, boardID string) ([]List, error) {
	body, err := c.do(ctx, http.MethodGet, "/1/boards/"+boardID+"/lists", url.Values{
		"filter": {"open"},
	})
	if err != nil {
		return nil, err
	}

	var lists []List
	if err := json.Unmarshal(body, &lists); err != nil {
		return nil, eris.Wrap(err, "trello: parse lists")
	}
	return lists, nil
}

func (c *httpClient) Cards(ctx context.Context, boardID string) ([]Card, error) {
	body, err := c.do(ctx, http.MethodGet, "/1/boards/"+boardID+"/cards", url.Values{
		"fields": {"name,desc,idList,labels,coordinates,dueComplete,isTemplate,closed"},
	})
	if err != nil {
		return nil, err
	}

	var cards []Card
	if err := json.Unmarshal(body, &cards); err != nil {
		return nil, eris.Wrap(err, "trello: parse cards")
	}
	return cards, nil
}

func (c *httpClient) UpdateCardCoordinates(ctx context.Context, cardID string, lat, lng float64) error {
	pair := strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
	_, err := c.do(ctx, http.MethodPut, "/1/cards/"+cardID, url.Values{
		"coordinates": {pair},
	})
	return err
}
