package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethgrid/pester"
)

const (
	DefaultBaseURL   = "https://boardgamegeek.com/xmlapi2"
	DefaultUserAgent = "GameNightDecider/1.0 (+https://github.com/gamenight/decider)"

	// BGG accepts at most 20 ids per thing request.
	maxThingIDs = 20

	maxBodySize = 16 << 20
)

var (
	errQueued           = errors.New("collection is still being prepared by BGG")
	errUnexpectedStatus = errors.New("unexpected status")
)

// Client talks to the BoardGameGeek XML API2.
type Client struct {
	baseURL       string
	token         string
	userAgent     string
	http          *pester.Client
	queueAttempts int
	queueDelay    func(attempt int) time.Duration
	logger        *slog.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithToken sets the bearer token BGG requires for registered applications.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithQueueDelay overrides the wait between attempts when BGG answers 202.
func WithQueueDelay(delay func(attempt int) time.Duration) Option {
	return func(c *Client) { c.queueDelay = delay }
}

// WithRetryBackoff overrides the transport-level backoff used for network errors and 5xx.
func WithRetryBackoff(backoff pester.BackoffStrategy) Option {
	return func(c *Client) { c.http.Backoff = backoff }
}

func New(opts ...Option) *Client {
	hc := pester.New()
	hc.Concurrency = 1
	hc.MaxRetries = 3
	hc.Backoff = pester.ExponentialBackoff
	hc.Timeout = 30 * time.Second

	c := &Client{
		baseURL:       DefaultBaseURL,
		userAgent:     DefaultUserAgent,
		http:          hc,
		queueAttempts: 5,
		queueDelay: func(attempt int) time.Duration {
			return time.Duration(attempt*2) * time.Second
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collection returns the base games owned by username.
// Returns ErrUserNotFound if BGG does not know the user and *ServiceError on
// network, status or parse failures.
func (c *Client) Collection(ctx context.Context, username string) ([]Item, error) {
	params := url.Values{}
	params.Set("username", username)
	params.Set("own", "1")
	params.Set("stats", "1")
	params.Set("excludesubtype", "boardgameexpansion")
	return c.collection(ctx, "collection", username, params, parseCollection)
}

// Expansions returns the expansions owned by username with ids and names
// only. Things fills in what each one expands.
func (c *Client) Expansions(ctx context.Context, username string) ([]Item, error) {
	params := url.Values{}
	params.Set("username", username)
	params.Set("own", "1")
	params.Set("subtype", "boardgameexpansion")
	return c.collection(ctx, "expansions", username, params, parseExpansionCollection)
}

// collection fetches a collection document, waiting while BGG answers 202
// to say the export is queued.
func (c *Client) collection(ctx context.Context, op, username string, params url.Values, parse func([]byte) ([]Item, error)) ([]Item, error) {
	for attempt := 1; ; attempt++ {
		status, body, err := c.get(ctx, op, "collection", params)
		if err != nil {
			return nil, err
		}

		switch {
		case status == http.StatusAccepted:
			if attempt >= c.queueAttempts {
				return nil, &ServiceError{Op: op, Status: status, Err: errQueued}
			}
			delay := c.queueDelay(attempt)
			c.logger.Warn("bgg collection queued, retrying",
				"op", op,
				"username", username,
				"attempt", attempt,
				"delay", delay,
			)
			if err := sleep(ctx, delay); err != nil {
				return nil, &ServiceError{Op: op, Err: err}
			}
			continue
		case status == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %q", ErrUserNotFound, username)
		case status != http.StatusOK:
			return nil, &ServiceError{Op: op, Status: status, Err: errUnexpectedStatus}
		}

		items, err := parse(body)
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrUserNotFound, username)
		}
		if err != nil {
			return nil, &ServiceError{Op: op, Status: status, Err: err}
		}
		return items, nil
	}
}

// Things returns full details for the given game or expansion ids, batching
// requests.
func (c *Client) Things(ctx context.Context, ids ...int64) ([]Item, error) {
	var items []Item
	for start := 0; start < len(ids); start += maxThingIDs {
		end := min(start+maxThingIDs, len(ids))

		parts := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			parts = append(parts, strconv.FormatInt(id, 10))
		}

		params := url.Values{}
		params.Set("id", strings.Join(parts, ","))
		params.Set("stats", "1")

		status, body, err := c.get(ctx, "thing", "thing", params)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, &ServiceError{Op: "thing", Status: status, Err: errUnexpectedStatus}
		}

		batch, err := parseThings(body)
		if err != nil {
			return nil, &ServiceError{Op: "thing", Status: status, Err: err}
		}
		items = append(items, batch...)
	}
	return items, nil
}

// Search looks up board games by name.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("type", "boardgame")

	status, body, err := c.get(ctx, "search", "search", params)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &ServiceError{Op: "search", Status: status, Err: errUnexpectedStatus}
	}

	results, err := parseSearch(body, limit)
	if err != nil {
		return nil, &ServiceError{Op: "search", Status: status, Err: err}
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values) (int, []byte, error) {
	u := c.baseURL + "/" + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, &ServiceError{Op: op, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &ServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, &ServiceError{Op: op, Status: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, body, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
