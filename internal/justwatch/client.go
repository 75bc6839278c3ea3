package justwatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/streamatlas/streamatlas-backend/pkg/config"
	pkgerrors "github.com/streamatlas/streamatlas-backend/pkg/errors"
	"github.com/streamatlas/streamatlas-backend/pkg/logger"
	"github.com/streamatlas/streamatlas-backend/pkg/retry"
	"github.com/streamatlas/streamatlas-backend/pkg/throttle"
)

const (
	graphqlPath                = "/graphql"
	responseBodyReadLimit int64 = 1024

	// The GraphQL endpoint rejects non-browser traffic, so requests carry a
	// browser-shaped header set.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	origin    = "https://www.justwatch.com"
)

const packagesQuery = `
query GetPackages($country: Country!) {
  packages(country: $country) {
    id
    packageId
    clearName
    technicalName
    shortName
    icon
  }
}
`

const popularTitlesQuery = `
query GetPopularTitles($country: Country!, $first: Int!, $after: String) {
  popularTitles(country: $country, first: $first, after: $after) {
    edges {
      node {
        id
        objectId
        objectType
        content(country: $country, language: "en") {
          title
          originalReleaseYear
          originalReleaseDate
          shortDescription
          posterUrl
          backdrops { backdropUrl }
          externalIds { imdbId tmdbId }
          genres { shortName translation(language: "en") }
        }
        offers(country: $country, platform: WEB) {
          monetizationType
          presentationType
          retailPrice(language: "en")
          currency
          package {
            id
            packageId
            clearName
          }
          standardWebURL
        }
      }
    }
    pageInfo { endCursor hasNextPage }
    totalCount
  }
}
`

// Client speaks the catalog provider's GraphQL API. Every outbound call goes
// through the shared rate limiter first and is retried with backoff.
type Client struct {
	httpClient *http.Client
	baseURL    string
	region     string
	language   string
	pageSize   int
	limiter    *throttle.Limiter
	retrier    *retry.Executor
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured catalog base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the catalog client from configuration.
func NewClient(cfg config.JustWatchConfig, retryCfg config.RetryConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}

	client := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		region:     cfg.Region,
		language:   cfg.Language,
		pageSize:   cfg.PageSize,
		limiter:    throttle.NewLimiter(cfg.RequestsPerSecond),
		retrier:    retry.New(retryCfg),
		logg:       logg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.baseURL == "" {
		return nil, fmt.Errorf("catalog base url is required")
	}
	if client.pageSize <= 0 {
		client.pageSize = 30
	}

	return client, nil
}

// Provider is one distribution package as reported by the catalog feed.
type Provider struct {
	ID            string `json:"id"`
	PackageID     int64  `json:"packageId"`
	ClearName     string `json:"clearName"`
	TechnicalName string `json:"technicalName"`
	ShortName     string `json:"shortName"`
	Icon          string `json:"icon"`
}

// TitlesPage is one page of the popular-titles feed.
type TitlesPage struct {
	Items      []Title
	HasMore    bool
	NextCursor string
	TotalCount int
}

// FetchProviders lists the distribution packages for the configured region.
// A total failure degrades to an empty list so callers can keep going with
// already-known platforms.
func (c *Client) FetchProviders(ctx context.Context) []Provider {
	var resp struct {
		Packages []Provider `json:"packages"`
	}
	variables := map[string]any{"country": c.region}
	if err := c.query(ctx, packagesQuery, variables, &resp); err != nil {
		c.logg.Error(ctx, "fetching catalog providers failed", err)
		return nil
	}
	return resp.Packages
}

// FetchTitlesPage fetches one page of the popular-titles feed starting at
// cursor (empty for the first page). Pagination stops when HasMore is false;
// the per-run page cap is the caller's responsibility.
func (c *Client) FetchTitlesPage(ctx context.Context, cursor string) (*TitlesPage, error) {
	var resp struct {
		PopularTitles struct {
			Edges []struct {
				Node titleNode `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				EndCursor   string `json:"endCursor"`
				HasNextPage bool   `json:"hasNextPage"`
			} `json:"pageInfo"`
			TotalCount int `json:"totalCount"`
		} `json:"popularTitles"`
	}

	variables := map[string]any{
		"country": c.region,
		"first":   c.pageSize,
	}
	if cursor != "" {
		variables["after"] = cursor
	}

	if err := c.query(ctx, popularTitlesQuery, variables, &resp); err != nil {
		return nil, err
	}

	items := make([]Title, 0, len(resp.PopularTitles.Edges))
	for _, edge := range resp.PopularTitles.Edges {
		items = append(items, normalizeNode(edge.Node))
	}

	return &TitlesPage{
		Items:      items,
		HasMore:    resp.PopularTitles.PageInfo.HasNextPage,
		NextCursor: resp.PopularTitles.PageInfo.EndCursor,
		TotalCount: resp.PopularTitles.TotalCount,
	}, nil
}

// FetchTitlesForProvider fetches one feed page and narrows it to titles that
// carry an offer from the given provider. The feed has no server-side provider
// filter, so the cursor and HasMore describe the unfiltered page; callers keep
// paging even when a page filters down to nothing.
func (c *Client) FetchTitlesForProvider(ctx context.Context, providerID, cursor string) (*TitlesPage, error) {
	page, err := c.FetchTitlesPage(ctx, cursor)
	if err != nil {
		return nil, err
	}

	filtered := make([]Title, 0, len(page.Items))
	for _, item := range page.Items {
		if HasOfferFromProvider(item, providerID) {
			filtered = append(filtered, item)
		}
	}
	page.Items = filtered
	return page, nil
}

// query executes one rate-limited, retried GraphQL POST and decodes the data
// envelope into out.
func (c *Client) query(ctx context.Context, query string, variables map[string]any, out any) error {
	if err := c.limiter.Throttle(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal catalog query")
	}

	url := strings.TrimRight(c.baseURL, "/") + graphqlPath

	obs := retry.ObserverFunc(func(ctx context.Context, attempt retry.Attempt) {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"attempt": attempt.Number, "url": url}), "retrying catalog request")
	})

	return c.retrier.ExecuteNotify(ctx, func() error {
		return c.doQuery(ctx, url, payload, out)
	}, obs)
}

func (c *Client) doQuery(ctx context.Context, url string, payload []byte, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build catalog request"))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Origin", origin)
	httpReq.Header.Set("Referer", origin+"/")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute catalog request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "catalog request failed")
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode catalog response")
	}
	if len(envelope.Errors) > 0 {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("graphql: %s", envelope.Errors[0].Message), "catalog query rejected")
	}
	if len(envelope.Data) == 0 {
		return pkgerrors.New(pkgerrors.CodeDependency, "catalog response missing data")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode catalog payload")
	}
	return nil
}
