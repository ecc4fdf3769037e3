package toolbelt

import (
	"context"
	"fmt"
)

// contentMaxBytes caps the content returned to the agent.
const contentMaxBytes = 50 * 1024

// contentFetchCap bounds the raw page read before conversion. HTML pages
// shrink considerably once converted, so the raw cap is larger.
const contentFetchCap = 512 * 1024

// ContentResult is the outcome of a full-content fetch.
type ContentResult struct {
	URL       string `json:"url"`
	Content   string `json:"content,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FetchFullContent retrieves a page and returns its text, converted from
// HTML to markdown when applicable and truncated to a fixed cap. Used only
// when the agent decides deeper inspection is warranted.
func (t *Tools) FetchFullContent(ctx context.Context, url string) ContentResult {
	res, err := t.fetcher.Get(ctx, url, contentFetchCap)
	if err != nil {
		return ContentResult{URL: url, Error: err.Error()}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return ContentResult{URL: url, Error: fmt.Sprintf("HTTP %d", res.StatusCode)}
	}

	content := string(res.Body)
	if IsHTML(res.ContentType) {
		if markdown, err := t.converter.Convert(res.Body, url); err == nil {
			content = markdown
		} else {
			t.logger.Debug("HTML conversion failed, using raw body", "url", url, "error", err)
		}
	}

	result := ContentResult{URL: url, Content: content, Truncated: res.Truncated}
	if len(result.Content) > contentMaxBytes {
		result.Content = result.Content[:contentMaxBytes]
		result.Truncated = true
	}
	return result
}
