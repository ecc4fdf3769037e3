package toolbelt

import (
	"context"
	"regexp"
	"strings"
)

// snippetMaxBytes bounds the captured content per URL so a batch check over
// many references cannot grow memory without bound.
const snippetMaxBytes = 500

// reachabilityFetchCap bounds how much body is read per reachability probe.
const reachabilityFetchCap = 8 * 1024

var whitespaceRe = regexp.MustCompile(`\s+`)

// ReachabilityResult is the per-URL outcome of a reachability check.
type ReachabilityResult struct {
	URL        string `json:"url"`
	StatusCode int    `json:"statusCode"`
	Accessible bool   `json:"isAccessible"`
	Snippet    string `json:"snippet,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CheckReachability probes each URL and reports status plus a short content
// snippet. Network failures are reported per URL, never raised: a dead link
// is a finding, not a fault.
func (t *Tools) CheckReachability(ctx context.Context, urls []string) []ReachabilityResult {
	results := make([]ReachabilityResult, 0, len(urls))

	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		results = append(results, t.checkOne(ctx, u))
	}

	return results
}

func (t *Tools) checkOne(ctx context.Context, url string) ReachabilityResult {
	res, err := t.fetcher.Get(ctx, url, reachabilityFetchCap)
	if err != nil {
		return ReachabilityResult{URL: url, Error: err.Error()}
	}

	result := ReachabilityResult{
		URL:        url,
		StatusCode: res.StatusCode,
		Accessible: res.StatusCode >= 200 && res.StatusCode < 400,
	}

	snippet := string(res.Body)
	if IsHTML(res.ContentType) {
		if title := ExtractTitle(res.Body); title != "" {
			snippet = title + " | " + snippet
		}
	}
	result.Snippet = truncateSnippet(snippet, snippetMaxBytes)

	return result
}

// truncateSnippet collapses whitespace and bounds the snippet length.
func truncateSnippet(s string, max int) string {
	s = whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
	if len(s) > max {
		s = s[:max]
	}
	return s
}
