package aurweb

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/aurgrab/pkg/buildinfo"
	"github.com/matzehuels/aurgrab/pkg/cache"
	"github.com/matzehuels/aurgrab/pkg/errors"
	"github.com/matzehuels/aurgrab/pkg/observability"
)

const (
	// DefaultURL is the public AUR.
	DefaultURL = "https://aur.archlinux.org"

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 10 * time.Second

	// DefaultTTL is how long cached responses stay valid.
	DefaultTTL = time.Hour
)

// Options configures a [Client]. Zero values select the defaults.
type Options struct {
	BaseURL string
	Timeout time.Duration

	Cache cache.Cache // nil disables caching
	Keyer cache.Keyer
	TTL   time.Duration

	// Refresh bypasses cache reads; fresh responses are still stored.
	Refresh bool
}

// Client talks to one aurweb instance.
type Client struct {
	http    *http.Client
	baseURL string
	cache   cache.Cache
	keyer   cache.Keyer
	ttl     time.Duration
	refresh bool
	headers map[string]string
}

// NewClient creates a Client with its own HTTP transport.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		cache:   opts.Cache,
		keyer:   opts.Keyer,
		ttl:     opts.TTL,
		refresh: opts.Refresh,
		headers: map[string]string{
			"User-Agent": buildinfo.UserAgent(),
		},
	}
}

// BaseURL returns the aurweb root this client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// cached returns the payload stored under key, or runs fetch with retries.
// fetch returns the bytes to store; a nil payload is not stored.
func (c *Client) cached(ctx context.Context, key, keyType string, fetch func() ([]byte, error)) ([]byte, bool, error) {
	if !c.refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok {
			observability.Cache().OnCacheHit(ctx, keyType)
			return data, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, keyType)
	}

	var data []byte
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		data, err = fetch()
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if data != nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err == nil {
			observability.Cache().OnCacheSet(ctx, keyType, len(data))
		}
	}
	return data, false, nil
}

// get performs a GET and returns the open body of a 200 response.
func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, transportError(err, path)
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode, path); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// getBytes performs a GET and reads the whole body.
func (c *Client) getBytes(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, cache.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "read response"))
	}
	return buf.Bytes(), nil
}

func transportError(err error, path string) error {
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	var ne net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &ne) && ne.Timeout()) {
		return cache.Retryable(errors.Wrap(errors.ErrCodeTimeout, err, "GET %s", path))
	}
	return cache.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "GET %s", path))
}

func checkStatus(code int, path string) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return errors.Wrap(errors.ErrCodeNotFound, cache.ErrNotFound, "GET %s", path)
	case code == http.StatusTooManyRequests || code >= 500:
		return cache.Retryable(errors.Wrap(errors.ErrCodeNetwork, cache.ErrNetwork, "GET %s: status %d", path, code))
	default:
		return errors.Wrap(errors.ErrCodeNetwork, cache.ErrNetwork, "GET %s: status %d", path, code)
	}
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}
