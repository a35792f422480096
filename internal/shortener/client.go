package shortener

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wesleyorama2/shortload/internal/logger"
	"github.com/wesleyorama2/shortload/internal/performance"
)

// Endpoint paths and the names requests are reported under.
const (
	CreatePath = "/api/v1/urls/"

	NameCreate   = "POST /api/v1/urls/"
	NameRedirect = "GET /[shortUrlId]"
	NameStats    = "GET /api/v1/urls/[shortUrlId]"
)

// ClientOptions configure a Client.
type ClientOptions struct {
	// BaseURL is the service root without a trailing slash.
	BaseURL   string
	UserAgent string
	Headers   map[string]string
}

// Response is what the checks need from an HTTP exchange.
type Response struct {
	StatusCode int
	Body       []byte
	Elapsed    time.Duration
}

// Client calls the shortener API. It reuses the given *http.Client, so
// redirects are followed or not according to that client.
type Client struct {
	rc *resty.Client
}

type createRequest struct {
	OriginalURL string `json:"originalUrl"`
}

// NewClient wraps httpClient. A nil httpClient gets a fresh non-redirecting
// pooled client.
func NewClient(httpClient *http.Client, opts ClientOptions) *Client {
	if httpClient == nil {
		httpClient = performance.NewHTTPClient(performance.DefaultHTTPClientConfig())
	}

	rc := resty.NewWithClient(httpClient).
		SetBaseURL(opts.BaseURL).
		SetLogger(logger.Log)
	if opts.UserAgent != "" {
		rc.SetHeader("User-Agent", opts.UserAgent)
	}
	rc.SetHeaders(opts.Headers)

	return &Client{rc: rc}
}

// Create posts originalURL to the create endpoint.
func (c *Client) Create(ctx context.Context, originalURL string) (*Response, error) {
	req := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(createRequest{OriginalURL: originalURL})
	return c.send(req, http.MethodPost, CreatePath)
}

// Redirect requests the short URL itself.
func (c *Client) Redirect(ctx context.Context, id string) (*Response, error) {
	return c.send(c.rc.R().SetContext(ctx), http.MethodGet, "/"+url.PathEscape(id))
}

// Stats fetches the click statistics of a short URL.
func (c *Client) Stats(ctx context.Context, id string) (*Response, error) {
	return c.send(c.rc.R().SetContext(ctx), http.MethodGet, CreatePath+url.PathEscape(id))
}

func (c *Client) send(req *resty.Request, method, path string) (*Response, error) {
	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		return &Response{Elapsed: time.Since(start)}, err
	}

	elapsed := resp.Time()
	if elapsed <= 0 {
		elapsed = time.Since(start)
	}
	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Elapsed:    elapsed,
	}, nil
}
