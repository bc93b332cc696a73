// Package zotero provides a typed client for the Zotero v3 web API with
// optimistic-concurrency support and rate-limit backoff.
package zotero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Zotero API endpoint.
	DefaultBaseURL = "https://api.zotero.org"

	// DefaultRateLimit is the default requests per second.
	DefaultRateLimit = 5

	// defaultRetryAfter is used when a 429 response carries no Retry-After.
	defaultRetryAfter = 5 * time.Second

	// collectionPageSize is the page size for collection enumeration.
	collectionPageSize = 100
)

// Item is a Zotero item as returned by the API. Version is taken from the
// Last-Modified-Version response header, which is authoritative after writes.
type Item struct {
	Key     string         `json:"key"`
	Version int            `json:"version"`
	Data    map[string]any `json:"data"`
}

// Tag is the wire shape of a single Zotero tag.
type Tag struct {
	Tag string `json:"tag"`
}

// Collection is one library collection.
type Collection struct {
	Key  string
	Name string
}

// Client talks to the Zotero API for a single API key.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	log     zerolog.Logger

	mu     sync.Mutex
	userID int64 // cached after first resolution; 0 = unresolved
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint (used in tests).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithRateLimit sets a custom request rate.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1) }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// New creates a Zotero API client.
func New(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// resolveRef replaces the users/0 sentinel with the key's real user id.
func (c *Client) resolveRef(ctx context.Context, ref ItemRef) (ItemRef, error) {
	if ref.LibraryType != LibraryUsers || ref.LibraryID != 0 {
		return ref, nil
	}
	id, err := c.getUserID(ctx)
	if err != nil {
		return ref, err
	}
	ref.LibraryID = id
	return ref, nil
}

// getUserID resolves and caches the numeric user id of the API key.
func (c *Client) getUserID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != 0 {
		return c.userID, nil
	}

	resp, body, err := c.do(ctx, http.MethodGet, "/keys/"+c.apiKey, nil, nil, nil)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("resolve user id: unexpected status %d", resp.StatusCode)
	}

	var key struct {
		UserID int64 `json:"userID"`
	}
	if err := json.Unmarshal(body, &key); err != nil {
		return 0, fmt.Errorf("decode key info: %w", err)
	}

	c.userID = key.UserID
	c.log.Info().Int64("user_id", key.UserID).Msg("resolved zotero user id")
	return c.userID, nil
}

// do performs one rate-limited request, retrying once on 429.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any, headers map[string]string) (*http.Response, []byte, error) {
	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("encode request: %w", err)
		}
	}

	send := func() (*http.Response, []byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("rate limit: %w", err)
		}

		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}

		var reader io.Reader
		if bodyBytes != nil {
			reader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Zotero-API-Key", c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("read response: %w", err)
		}
		return resp, respBody, nil
	}

	resp, respBody, err := send()
	if err != nil {
		return nil, nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := defaultRetryAfter
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, perr := strconv.Atoi(s); perr == nil {
				wait = time.Duration(secs) * time.Second
			}
		}
		c.log.Warn().Dur("retry_after", wait).Msg("zotero rate limited")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
		return send()
	}

	return resp, respBody, nil
}

// lastModifiedVersion reads the authoritative version header, falling back
// to the supplied default.
func lastModifiedVersion(resp *http.Response, fallback int) int {
	if s := resp.Header.Get("Last-Modified-Version"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return fallback
}

// GetItem fetches a single item.
func (c *Client) GetItem(ctx context.Context, ref ItemRef) (*Item, error) {
	ref, err := c.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	path := ref.libraryPath() + "/items/" + ref.ItemKey
	resp, body, err := c.do(ctx, http.MethodGet, path, nil, nil, nil)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	default:
		return nil, fmt.Errorf("get item %s: unexpected status %d", ref, resp.StatusCode)
	}

	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	item.Version = lastModifiedVersion(resp, item.Version)
	return &item, nil
}

// PatchItem updates fields on an item conditioned on version. It returns the
// new item version on success and *ConflictError on a stale version.
func (c *Client) PatchItem(ctx context.Context, ref ItemRef, data map[string]any, version int) (int, error) {
	ref, err := c.resolveRef(ctx, ref)
	if err != nil {
		return 0, err
	}

	path := ref.libraryPath() + "/items/" + ref.ItemKey
	headers := map[string]string{"If-Unmodified-Since-Version": strconv.Itoa(version)}
	resp, _, err := c.do(ctx, http.MethodPatch, path, nil, data, headers)
	if err != nil {
		return 0, err
	}

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return lastModifiedVersion(resp, version), nil
	case http.StatusPreconditionFailed:
		return 0, &ConflictError{CurrentVersion: lastModifiedVersion(resp, 0)}
	case http.StatusNotFound:
		return 0, fmt.Errorf("%s: %w", ref, ErrNotFound)
	default:
		return 0, fmt.Errorf("patch item %s: unexpected status %d", ref, resp.StatusCode)
	}
}

// DeleteItem removes an item conditioned on version.
func (c *Client) DeleteItem(ctx context.Context, ref ItemRef, version int) error {
	ref, err := c.resolveRef(ctx, ref)
	if err != nil {
		return err
	}

	path := ref.libraryPath() + "/items/" + ref.ItemKey
	headers := map[string]string{"If-Unmodified-Since-Version": strconv.Itoa(version)}
	resp, _, err := c.do(ctx, http.MethodDelete, path, nil, nil, headers)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusPreconditionFailed:
		return &ConflictError{CurrentVersion: lastModifiedVersion(resp, 0)}
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", ref, ErrNotFound)
	default:
		return fmt.Errorf("delete item %s: unexpected status %d", ref, resp.StatusCode)
	}
}

// CreateNote creates a child note on a parent item and returns the created
// note item.
func (c *Client) CreateNote(ctx context.Context, parent ItemRef, noteHTML string, tags []Tag) (*Item, error) {
	if tags == nil {
		tags = []Tag{}
	}
	payload := []map[string]any{{
		"itemType":   "note",
		"parentItem": parent.ItemKey,
		"note":       noteHTML,
		"tags":       tags,
	}}
	return c.createItem(ctx, parent, payload)
}

// CreateItem creates a standalone item from raw item data.
func (c *Client) CreateItem(ctx context.Context, ref ItemRef, data map[string]any) (*Item, error) {
	return c.createItem(ctx, ref, []map[string]any{data})
}

// createItem posts a one-element batch and unwraps successful["0"].
func (c *Client) createItem(ctx context.Context, ref ItemRef, batch []map[string]any) (*Item, error) {
	ref, err := c.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	path := ref.libraryPath() + "/items"
	resp, body, err := c.do(ctx, http.MethodPost, path, nil, batch, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("create item in %s/%d: unexpected status %d", ref.LibraryType, ref.LibraryID, resp.StatusCode)
	}

	var result struct {
		Successful map[string]Item `json:"successful"`
		Failed     map[string]any  `json:"failed"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode create response: %w", err)
	}

	created, ok := result.Successful["0"]
	if !ok {
		return nil, fmt.Errorf("create item in %s/%d: batch entry failed: %v", ref.LibraryType, ref.LibraryID, result.Failed)
	}
	return &created, nil
}

// GetChildNotes lists the child note items of a parent.
func (c *Client) GetChildNotes(ctx context.Context, parent ItemRef) ([]Item, error) {
	parent, err := c.resolveRef(ctx, parent)
	if err != nil {
		return nil, err
	}

	path := parent.libraryPath() + "/items/" + parent.ItemKey + "/children"
	query := url.Values{"itemType": {"note"}}
	resp, body, err := c.do(ctx, http.MethodGet, path, query, nil, nil)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", parent, ErrNotFound)
	default:
		return nil, fmt.Errorf("get child notes of %s: unexpected status %d", parent, resp.StatusCode)
	}

	var items []Item
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode child notes: %w", err)
	}
	return items, nil
}

// GetCollections enumerates every collection of a library, following
// start/limit pagination until a short page is returned.
func (c *Client) GetCollections(ctx context.Context, libraryType string, libraryID int64) ([]Collection, error) {
	ref, err := c.resolveRef(ctx, ItemRef{LibraryType: libraryType, LibraryID: libraryID})
	if err != nil {
		return nil, err
	}

	var all []Collection
	start := 0
	for {
		query := url.Values{
			"start": {strconv.Itoa(start)},
			"limit": {strconv.Itoa(collectionPageSize)},
		}
		resp, body, err := c.do(ctx, http.MethodGet, ref.libraryPath()+"/collections", query, nil, nil)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("get collections of %s/%d: unexpected status %d", ref.LibraryType, ref.LibraryID, resp.StatusCode)
		}

		var page []struct {
			Key  string `json:"key"`
			Data struct {
				Name string `json:"name"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode collections: %w", err)
		}

		for _, col := range page {
			all = append(all, Collection{Key: col.Key, Name: col.Data.Name})
		}
		if len(page) < collectionPageSize {
			return all, nil
		}
		start += collectionPageSize
	}
}
