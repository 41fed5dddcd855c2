// Package danbooru implements the tag source and BUR submitter against the
// Danbooru JSON API.
package danbooru

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	autoimply "github.com/boorubot/autoimply"
)

// Config configures the Danbooru API client.
type Config struct {
	// BaseURL is the site root, without a trailing slash.
	BaseURL string

	// Login and APIKey authenticate requests. Both must be set to submit
	// bulk update requests; reads work anonymously at a lower rate limit.
	Login  string
	APIKey string

	// UserAgent identifies the bot to the site.
	UserAgent string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RequestsPerSecond throttles outgoing requests.
	RequestsPerSecond float64

	// PageLimit is the page size for list endpoints, capped at 1000 by
	// the site.
	PageLimit int
}

// DefaultConfig returns sensible defaults for the public site.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://danbooru.donmai.us",
		UserAgent:         "autoimply/1.0",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 5,
		PageLimit:         1000,
	}
}

// TagResolver resolves tag records locally, typically from the store's tag
// mirror. Names it does not know are fetched from the site instead.
type TagResolver interface {
	TagsByNames(ctx context.Context, names []string) (map[string]autoimply.Tag, error)
}

// Client talks to the Danbooru JSON API. It implements both the tag
// source and the submitter interfaces.
type Client struct {
	cfg      Config
	http     *http.Client
	limiter  *rate.Limiter
	resolver TagResolver
	log      *zap.Logger
}

// New creates a Danbooru client.
func New(cfg Config, log *zap.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.PageLimit <= 0 || cfg.PageLimit > 1000 {
		cfg.PageLimit = def.PageLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		log:     log,
	}
}

// Name returns the source name.
func (c *Client) Name() string {
	return "danbooru"
}

// SetTagResolver installs a local tag mirror that is consulted before the
// site API when resolving wiki-linked tag names.
func (c *Client) SetTagResolver(r TagResolver) {
	c.resolver = r
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return autoimply.NewSourceError("danbooru", op, "build request").WithCause(err)
	}
	return c.do(op, req, out)
}

func (c *Client) postForm(ctx context.Context, op, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return autoimply.NewSourceError("danbooru", op, "build request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.cfg.Login != "" && c.cfg.APIKey != "" {
		req.SetBasicAuth(c.cfg.Login, c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return autoimply.NewSourceError("danbooru", op, "request failed").
			WithCategory(autoimply.ErrorCategoryNetwork).
			WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return autoimply.NewSourceError("danbooru", op, "read response").
			WithCategory(autoimply.ErrorCategoryNetwork).
			WithCause(err)
	}

	if resp.StatusCode >= 400 {
		return autoimply.NewSourceError("danbooru", op, apiErrorMessage(body)).
			WithStatusCode(resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return autoimply.NewSourceError("danbooru", op, "decode response").WithCause(err)
	}
	return nil
}

// apiErrorMessage pulls the message out of a Danbooru error payload,
// falling back to a body snippet.
func apiErrorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	if snippet == "" {
		snippet = "request failed"
	}
	return snippet
}

func pageParams(limit, page int) url.Values {
	return url.Values{
		"limit": {fmt.Sprint(limit)},
		"page":  {fmt.Sprint(page)},
	}
}
