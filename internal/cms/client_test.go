package cms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, Token: "secret"})
	require.NoError(t, err)
	return c
}

func TestListItemsPaginates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		page := r.URL.Query().Get("pagination[page]")
		var body string
		if page == "1" {
			body = `{"data":[{"id":1,"attributes":{"slug":"widget-market"}}],
				"meta":{"pagination":{"page":1,"pageCount":2}}}`
		} else {
			body = `{"data":[{"id":2,"attributes":{"slug":"gadget-market"}}],
				"meta":{"pagination":{"page":2,"pageCount":2}}}`
		}
		w.Write([]byte(body))
	})

	refs, err := c.ListItems(context.Background(), "reports")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, ItemRef{ID: 1, Slug: "widget-market"}, refs[0])
	assert.Equal(t, ItemRef{ID: 2, Slug: "gadget-market"}, refs[1])
}

func TestFetchDocument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "widget-market", r.URL.Query().Get("filters[slug][$eq]"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": 7, "attributes": map[string]any{"slug": "widget-market", "title": "Widget Market"}},
			},
		})
	})

	item, err := c.FetchDocument(context.Background(), "reports", "widget-market")
	require.NoError(t, err)
	assert.EqualValues(t, 7, item.ID)
	assert.Equal(t, "Widget Market", item.Document["title"])
}

func TestFetchDocumentNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})

	_, err := c.FetchDocument(context.Background(), "reports", "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeliverCreatesLocalization(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/reports/7/localizations", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "fr", payload["locale"])
		assert.Equal(t, "Rapport", payload["title"])
		w.Write([]byte(`{"id":99}`))
	})

	id, err := c.Deliver(context.Background(), "reports", 7, "fr", map[string]any{"title": "Rapport"})
	require.NoError(t, err)
	assert.EqualValues(t, 99, id)
}

func TestDeliverErrorSurfacesBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"locale exists"}`, http.StatusBadRequest)
	})

	_, err := c.Deliver(context.Background(), "reports", 7, "fr", map[string]any{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "locale exists")
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}
