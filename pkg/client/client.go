package client

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-go-golems/livelog/pkg/build"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// DefaultBuildsPath lists the builds of a scope.
const DefaultBuildsPath = "/api/v1/spaces/%s/+/executions"

type Options struct {
	Timeout    time.Duration
	Token      string
	BuildsPath string
	Retries    int
}

// Client reads finished build output and build lists from the server.
type Client struct {
	r    *resty.Client
	opts Options
}

func New(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BuildsPath == "" {
		opts.BuildsPath = DefaultBuildsPath
	}
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	r.AddRetryCondition(retryCondition)
	if opts.Token != "" {
		r.SetAuthToken(opts.Token)
	}
	return &Client{r: r, opts: opts}
}

// Streaming returns a resty client for long lived responses, sharing base URL
// and credentials but without a request timeout.
func (c *Client) Streaming() *resty.Client {
	s := resty.New().SetBaseURL(c.r.BaseURL)
	if c.opts.Token != "" {
		s.SetAuthToken(c.opts.Token)
	}
	return s
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == 429 || code == 408
}

// FetchLog returns the body at path as text.
func (c *Client) FetchLog(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.r.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, errors.Wrap(err, "fetch log")
	}
	if resp.IsError() {
		return nil, errors.Errorf("fetch log %s: status %d", path, resp.StatusCode())
	}
	return resp.Body(), nil
}

func (c *Client) ListBuilds(ctx context.Context, scope string) ([]build.Record, error) {
	path := strings.Replace(c.opts.BuildsPath, "%s", url.PathEscape(scope), 1)
	resp, err := c.r.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(path)
	if err != nil {
		return nil, errors.Wrap(err, "list builds")
	}
	if resp.IsError() {
		return nil, errors.Errorf("list builds: status %d", resp.StatusCode())
	}
	records, err := build.FromList(resp.Body())
	if err != nil {
		return nil, errors.Wrap(err, "decode builds")
	}
	return records, nil
}
