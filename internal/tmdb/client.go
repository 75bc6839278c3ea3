package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/streamatlas/streamatlas-backend/pkg/config"
	pkgerrors "github.com/streamatlas/streamatlas-backend/pkg/errors"
	"github.com/streamatlas/streamatlas-backend/pkg/logger"
	"github.com/streamatlas/streamatlas-backend/pkg/retry"
	"github.com/streamatlas/streamatlas-backend/pkg/throttle"
)

const responseBodyReadLimit int64 = 1024

// ErrNotFound marks a lookup the provider answered with 404/401. These are
// terminal for the id being resolved and must not be retried.
var ErrNotFound = errors.New("metadata provider: not found")

// Client speaks the metadata provider's REST API. Calls are rate limited and
// retried; not-found responses short-circuit the retry loop and surface as
// nil results instead of errors.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
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

// WithBaseURL overrides the configured metadata base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the metadata client from configuration.
func NewClient(cfg config.TMDBConfig, retryCfg config.RetryConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("metadata api key is required")
	}

	client := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		apiKey:     strings.TrimSpace(cfg.APIKey),
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
		return nil, fmt.Errorf("metadata base url is required")
	}

	return client, nil
}

// Genre is a canonical category from the provider's genre list.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SearchResult is one row from a title search or cross-reference lookup.
type SearchResult struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Popularity  float64 `json:"popularity"`
}

// GetMovieDetails fetches full details for the provider's movie id. Returns
// nil (no error) when the id does not resolve.
func (c *Client) GetMovieDetails(ctx context.Context, tmdbID int64) (*MovieDetails, error) {
	var raw movieDetailsPayload
	params := url.Values{"append_to_response": {"credits,external_ids"}}
	err := c.get(ctx, "/movie/"+strconv.FormatInt(tmdbID, 10), params, &raw)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	details := normalizeDetails(raw)
	return &details, nil
}

// SearchMovie searches by title and optional release year. A total failure
// degrades to an empty result list, logged.
func (c *Client) SearchMovie(ctx context.Context, title string, year *int) []SearchResult {
	params := url.Values{"query": {title}}
	if year != nil {
		params.Set("year", strconv.Itoa(*year))
	}
	var resp struct {
		Results []SearchResult `json:"results"`
	}
	if err := c.get(ctx, "/search/movie", params, &resp); err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logg.Error(ctx, "metadata search failed", err)
		}
		return nil
	}
	return resp.Results
}

// FindByIMDbID resolves a third-party cross-reference id to a provider movie.
// Returns nil when nothing matches.
func (c *Client) FindByIMDbID(ctx context.Context, imdbID string) (*SearchResult, error) {
	params := url.Values{"external_source": {"imdb_id"}}
	var resp struct {
		MovieResults []SearchResult `json:"movie_results"`
	}
	err := c.get(ctx, "/find/"+url.PathEscape(imdbID), params, &resp)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(resp.MovieResults) == 0 {
		return nil, nil
	}
	return &resp.MovieResults[0], nil
}

// GetGenres fetches the canonical genre list. A total failure degrades to an
// empty list, logged.
func (c *Client) GetGenres(ctx context.Context) []Genre {
	var resp struct {
		Genres []Genre `json:"genres"`
	}
	if err := c.get(ctx, "/genre/movie/list", nil, &resp); err != nil {
		c.logg.Error(ctx, "fetching metadata genres failed", err)
		return nil
	}
	return resp.Genres
}

// get executes one rate-limited, retried GET and decodes the body into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Throttle(ctx); err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	requestURL := strings.TrimRight(c.baseURL, "/") + endpoint + "?" + params.Encode()

	obs := retry.ObserverFunc(func(ctx context.Context, attempt retry.Attempt) {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"attempt": attempt.Number, "endpoint": endpoint}), "retrying metadata request")
	})

	return c.retrier.ExecuteNotify(ctx, func() error {
		return c.doGet(ctx, requestURL, out)
	}, obs)
}

func (c *Client) doGet(ctx context.Context, requestURL string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return retry.Permanent(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build metadata request"))
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute metadata request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized:
		return retry.Permanent(ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "metadata request failed")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode metadata response")
	}
	return nil
}
