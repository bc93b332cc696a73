// Package notion wraps the Notion API with rate limiting and the property
// and block projections the sync engines consume.
package notion

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"golang.org/x/time/rate"
)

// DefaultRateLimit is the default requests per second (Notion's limit is 3/sec).
const DefaultRateLimit = 3

// Client wraps the Notion API client with rate limiting and helper methods.
type Client struct {
	api     *notionapi.Client
	limiter *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// WithAPIClient replaces the underlying API client (used in tests).
func WithAPIClient(api *notionapi.Client) ClientOption {
	return func(c *Client) {
		c.api = api
	}
}

// New creates a new Notion API client with rate limiting.
func New(token string, opts ...ClientOption) *Client {
	c := &Client{
		api:     notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(rate.Every(time.Second/DefaultRateLimit), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// wait blocks until the rate limiter allows a request.
func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// GetPage retrieves a page by ID.
func (c *Client) GetPage(ctx context.Context, pageID string) (*notionapi.Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	page, err := c.api.Page.Get(ctx, notionapi.PageID(pageID))
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}

	return page, nil
}

// GetPageProperties retrieves a page and projects its properties into a
// normalized value map.
func (c *Client) GetPageProperties(ctx context.Context, pageID string) (ValueMap, error) {
	page, err := c.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return ParseProperties(page.Properties), nil
}

// QueryAllPages returns every page of a database, following pagination.
func (c *Client) QueryAllPages(ctx context.Context, databaseID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	req := &notionapi.DatabaseQueryRequest{PageSize: 100}

	for {
		if err := c.wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}

		resp, err := c.api.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
		if err != nil {
			return nil, fmt.Errorf("query database: %w", err)
		}

		pages = append(pages, resp.Results...)

		if !resp.HasMore {
			return pages, nil
		}
		req.StartCursor = resp.NextCursor
	}
}
