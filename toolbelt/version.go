package toolbelt

import (
	"context"
	"fmt"
	"regexp"
)

// versionFetchCap bounds the page read for version scanning.
const versionFetchCap = 256 * 1024

// versionPageSnippetBytes bounds the page snippet returned alongside the
// candidate list.
const versionPageSnippetBytes = 1000

// maxVersionCandidates caps the candidate list handed back to the agent.
const maxVersionCandidates = 50

var (
	// versionPattern matches dotted numeric versions with an optional
	// suffix, e.g. "3.13.1", "2.0.0-rc1", "3.14.0b1".
	versionPattern = regexp.MustCompile(`\b\d+(?:\.\d+)+(?:[-.]?[0-9A-Za-z]+)*`)

	// prereleasePattern matches candidates that denote prereleases and must
	// be filtered out before the agent compares versions.
	prereleasePattern = regexp.MustCompile(`(?i)(alpha|beta|rc\d*|preview|dev|canary|nightly|pre\b|snapshot|insider|\d[ab]\d)`)
)

// VersionResult is the outcome of scanning a version source page.
type VersionResult struct {
	SourceURL           string   `json:"sourceUrl"`
	CurrentVersion      string   `json:"currentVersion"`
	StableVersionsFound []string `json:"stableVersionsFound"`
	PageSnippet         string   `json:"pageSnippet,omitempty"`
	Error               string   `json:"error,omitempty"`
}

// DetectLatestStableVersion fetches the version source page and extracts
// every stable version candidate found on it. The tool only filters
// prereleases; deciding whether any candidate is newer than the current
// version is the calling agent's job.
func (t *Tools) DetectLatestStableVersion(ctx context.Context, sourceURL, currentVersion, topic string) VersionResult {
	result := VersionResult{SourceURL: sourceURL, CurrentVersion: currentVersion}

	res, err := t.fetcher.Get(ctx, sourceURL, versionFetchCap)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		result.Error = fmt.Sprintf("HTTP %d", res.StatusCode)
		return result
	}

	page := string(res.Body)
	if IsHTML(res.ContentType) {
		if markdown, err := t.converter.Convert(res.Body, sourceURL); err == nil {
			page = markdown
		}
	}

	result.StableVersionsFound = ExtractStableVersions(page)
	result.PageSnippet = truncateSnippet(page, versionPageSnippetBytes)

	t.logger.Debug("Scanned version source",
		"topic", topic,
		"url", sourceURL,
		"candidates", len(result.StableVersionsFound))

	return result
}

// ExtractStableVersions returns the deduplicated dotted-version candidates
// in the text, with prerelease candidates removed.
func ExtractStableVersions(text string) []string {
	matches := versionPattern.FindAllString(text, -1)

	seen := map[string]bool{}
	stable := []string{}
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		if prereleasePattern.MatchString(m) {
			continue
		}
		stable = append(stable, m)
		if len(stable) >= maxVersionCandidates {
			break
		}
	}

	return stable
}
