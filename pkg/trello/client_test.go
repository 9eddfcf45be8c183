package trello

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srvURL string) Client {
	return NewClient("test-key", "test-token", WithBaseURL(srvURL), WithRateLimit(1000))
}

func TestLists(t *testing.T) {
	var gotPath, gotKey, gotToken, gotFilter string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		gotToken = r.URL.Query().Get("token")
		gotFilter = r.URL.Query().Get("filter")
		_, _ = io.WriteString(w, `[
			{"id": "list-1", "name": "Planned", "closed": false},
			{"id": "list-2", "name": "Visited", "closed": false}
		]`)
	}))
	defer srv.Close()

	lists, err := newTestClient(srv.URL).Lists(context.Background(), "board-1")
	require.NoError(t, err)

	assert.Equal(t, "/1/boards/board-1/lists", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "test-token", gotToken)
	assert.Equal(t, "open", gotFilter)
	require.Len(t, lists, 2)
	assert.Equal(t, "Planned", lists[0].Name)
}

func TestCards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1/boards/board-1/cards", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("fields"), "coordinates")
		_, _ = io.WriteString(w, `[
			{
				"id": "card-1",
				"name": "Cafe visit",
				"desc": "Meet at 40.7128,-74.0060",
				"idList": "list-1",
				"labels": [{"id": "lab-1", "name": "urgent", "color": "red"}],
				"coordinates": null,
				"dueComplete": false,
				"isTemplate": false
			},
			{
				"id": "card-2",
				"name": "Museum",
				"desc": "",
				"idList": "list-2",
				"labels": [],
				"coordinates": {"latitude": 51.5074, "longitude": -0.1278},
				"dueComplete": true,
				"isTemplate": false
			}
		]`)
	}))
	defer srv.Close()

	cards, err := newTestClient(srv.URL).Cards(context.Background(), "board-1")
	require.NoError(t, err)
	require.Len(t, cards, 2)

	assert.Equal(t, "Cafe visit", cards[0].Name)
	assert.Nil(t, cards[0].Coordinates)
	require.Len(t, cards[0].Labels, 1)
	assert.Equal(t, "urgent", cards[0].Labels[0].Name)

	require.NotNil(t, cards[1].Coordinates)
	assert.InDelta(t, 51.5074, cards[1].Coordinates.Latitude, 1e-9)
	assert.InDelta(t, -0.1278, cards[1].Coordinates.Longitude, 1e-9)
	assert.True(t, cards[1].DueComplete)
}

func TestUpdateCardCoordinates(t *testing.T) {
	var gotMethod, gotPath, gotCoords string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotCoords = r.URL.Query().Get("coordinates")
		_, _ = io.WriteString(w, `{"id": "card-1"}`)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).UpdateCardCoordinates(context.Background(), "card-1", 40.7128, -74.006)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/1/cards/card-1", gotPath)
	assert.Equal(t, "40.7128,-74.006", gotCoords)
}

func TestUpdateCardCoordinates_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `invalid token`)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).UpdateCardCoordinates(context.Background(), "card-1", 1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestLists_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Lists(context.Background(), "board-1")
	assert.Error(t, err)
}
