// Package toolbelt implements the verification tools an evaluation agent
// calls while auditing one tracked document: batch reachability checks,
// full-content fetch, latest-stable-version extraction, and content-hash
// comparison. Every tool reports expected failures inside its result rather
// than raising, so the calling agent can invoke them in any order without
// correctness hazards.
package toolbelt

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// DefaultUserAgent identifies driftwatch to the sites it audits.
const DefaultUserAgent = "driftwatch/1.0 (+https://github.com/c360studio/driftwatch)"

// FetchResult contains the result of fetching a web page.
type FetchResult struct {
	StatusCode  int
	Body        []byte
	ContentType string
	Truncated   bool
}

// Fetcher fetches web content over one long-lived, connection-pooled client.
// It holds no per-call state, so concurrent tool calls need no locking.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a new web fetcher.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				return nil
			},
		},
		userAgent: userAgent,
	}
}

// validateURL rejects anything that is not an absolute http(s) URL.
func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// Get retrieves up to maxBytes of content from the given URL. The status
// code is available from the response headers before any body is read, so
// non-2xx responses still produce a bounded snippet of the error page.
func (f *Fetcher) Get(ctx context.Context, rawURL string, maxBytes int64) (*FetchResult, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	result := &FetchResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if int64(len(body)) > maxBytes {
		body = body[:maxBytes]
		result.Truncated = true
	}

	result.Body = body
	return result, nil
}
