package replay

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// maxResponseBody caps how much of a replayed response body is retained.
const maxResponseBody = 10 * 1024 * 1024

// Client sends replay requests. Redirects are never followed: a redirect
// is a response worth diffing against the baseline, not a hop to chase.
type Client struct {
	mu        sync.Mutex
	client    *http.Client
	userAgent string
}

// NewClient creates a replay client from the replay configuration.
func NewClient(cfg types.ReplaySettings) *Client {
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxConcurrent * 2,
		MaxIdleConnsPerHost: cfg.MaxConcurrent,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifySSL,
		},
	}
	if cfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = types.DefaultTimeout
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: cfg.UserAgent,
	}
}

// SetTimeout updates the per-request timeout for subsequent requests.
func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	c.mu.Lock()
	c.client.Timeout = timeout
	c.mu.Unlock()
}

// Do sends one request and captures status, headers, body and elapsed
// time. Transport failures are returned as errors; the caller records
// them as status-0 responses.
func (c *Client) Do(ctx context.Context, method, rawURL string, headers map[string]string, body []byte) (*types.ReplayedResponse, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, err
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for key, values := range resp.Header {
		respHeaders[key] = strings.Join(values, ", ")
	}

	return &types.ReplayedResponse{
		StatusCode:     resp.StatusCode,
		Headers:        respHeaders,
		Body:           respBody,
		ContentLength:  int64(len(respBody)),
		ResponseTimeMs: elapsed.Milliseconds(),
		Timestamp:      time.Now().UTC(),
	}, nil
}

func (c *Client) httpClient() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}
