// Package cms is the thin HTTP client for the headless CMS: listing
// published source items, fetching full documents, and delivering
// translated entries back as localizations.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotFound reports that the requested item does not exist upstream.
var ErrNotFound = errors.New("item not found")

const listPageSize = 50

// ItemRef identifies one published source item.
type ItemRef struct {
	ID   int64
	Slug string
}

// Item is a fetched source document.
type Item struct {
	ID       int64
	Slug     string
	Document map[string]any
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("CMS base URL is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid CMS base URL: %w", err)
	}
	return nil
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type listResponse struct {
	Data []struct {
		ID         int64          `json:"id"`
		Attributes map[string]any `json:"attributes"`
	} `json:"data"`
	Meta struct {
		Pagination struct {
			Page      int `json:"page"`
			PageCount int `json:"pageCount"`
		} `json:"pagination"`
	} `json:"meta"`
}

// ListItems pages through every published item of a content type and
// returns its identity references.
func (c *Client) ListItems(ctx context.Context, contentType string) ([]ItemRef, error) {
	var refs []ItemRef
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("fields[0]", "slug")
		q.Set("pagination[page]", strconv.Itoa(page))
		q.Set("pagination[pageSize]", strconv.Itoa(listPageSize))

		var parsed listResponse
		if err := c.get(ctx, fmt.Sprintf("/api/%s?%s", contentType, q.Encode()), &parsed); err != nil {
			return nil, err
		}
		for _, entry := range parsed.Data {
			slug, _ := entry.Attributes["slug"].(string)
			if slug == "" {
				continue
			}
			refs = append(refs, ItemRef{ID: entry.ID, Slug: slug})
		}
		if page >= parsed.Meta.Pagination.PageCount {
			break
		}
	}
	return refs, nil
}

// FetchDocument loads the full document for one slug. The attribute map is
// the document handed to extraction, so it must carry the complete shape.
func (c *Client) FetchDocument(ctx context.Context, contentType, slug string) (Item, error) {
	q := url.Values{}
	q.Set("filters[slug][$eq]", slug)
	q.Set("populate", "deep")

	var parsed listResponse
	if err := c.get(ctx, fmt.Sprintf("/api/%s?%s", contentType, q.Encode()), &parsed); err != nil {
		return Item{}, err
	}
	if len(parsed.Data) == 0 {
		return Item{}, fmt.Errorf("%s/%s: %w", contentType, slug, ErrNotFound)
	}
	entry := parsed.Data[0]
	return Item{ID: entry.ID, Slug: slug, Document: entry.Attributes}, nil
}

type deliverResponse struct {
	Data struct {
		ID int64 `json:"id"`
	} `json:"data"`
	ID int64 `json:"id"`
}

// Deliver creates the localized entry for a source item and returns the
// destination entry id.
func (c *Client) Deliver(ctx context.Context, contentType string, sourceItemID int64, targetLanguage string, doc map[string]any) (int64, error) {
	payload := map[string]any{"locale": targetLanguage}
	for k, v := range doc {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("serialize delivery payload: %w", err)
	}

	path := fmt.Sprintf("/api/%s/%d/localizations", contentType, sourceItemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("deliver %s/%d: %w", contentType, sourceItemID, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read delivery response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("deliver %s/%d: HTTP %d: %s", contentType, sourceItemID, resp.StatusCode, truncate(body, 200))
	}

	var parsed deliverResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("parse delivery response: %w", err)
	}
	if parsed.Data.ID != 0 {
		return parsed.Data.ID, nil
	}
	return parsed.ID, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response for %s: %w", path, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("GET %s: %w", path, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d: %s", path, resp.StatusCode, truncate(body, 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response for %s: %w", path, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
