// Package frontmatter parses and serializes the YAML metadata block that
// prefixes every tracked best-practices document, and extracts the reference
// URLs tracked in the document's Resources section.
package frontmatter

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Metadata is the structured front-matter of a tracked document.
// Version and hash values are opaque strings: they are compared for
// equality only, never parsed semantically.
type Metadata struct {
	// LanguageVersion is the subject version the document was written against.
	LanguageVersion string `yaml:"language_version"`

	// LastChecked is the ISO date of the last drift audit.
	LastChecked string `yaml:"last_checked"`

	// ResourceHash is the hex digest of the tracked source content.
	// Empty string means the document has never been hash-checked.
	ResourceHash string `yaml:"resource_hash"`

	// VersionSourceURL is the canonical page to consult for new releases.
	VersionSourceURL string `yaml:"version_source_url"`
}

// IsZero reports whether no metadata field is set.
func (m Metadata) IsZero() bool {
	return m == Metadata{}
}

// referencesHeading is the section heading that bounds tracked reference URLs.
const referencesHeading = "Resources"

// absoluteURLPattern matches absolute http(s) URLs in markdown text.
var absoluteURLPattern = regexp.MustCompile(`https?://[^\s<>()\[\]"']+`)

// headingPattern matches an ATX markdown heading and captures its marker and title.
var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)

// Parse splits a document into its front-matter metadata and body.
// It fails soft: a document without a recognizable metadata block yields
// zero-valued metadata and the original text, unchanged, as the body.
func Parse(document string) (Metadata, string) {
	if !strings.HasPrefix(document, "---\n") && !strings.HasPrefix(document, "---\r\n") {
		return Metadata{}, document
	}

	meta, body, err := extractBlock(document)
	if err != nil {
		return Metadata{}, document
	}
	return meta, body
}

// extractBlock parses the fenced YAML block at the top of the document.
func extractBlock(document string) (Metadata, string, error) {
	const delimiter = "---"

	// Skip the opening delimiter and its newline.
	start := len(delimiter)
	if len(document) > start && document[start] == '\r' {
		start++
	}
	if len(document) > start && document[start] == '\n' {
		start++
	}

	closeIdx := strings.Index(document[start:], "\n"+delimiter)
	if closeIdx == -1 {
		return Metadata{}, "", fmt.Errorf("no closing front-matter delimiter")
	}

	yamlContent := document[start : start+closeIdx]

	// Body starts after the closing delimiter line.
	bodyStart := start + closeIdx + 1 + len(delimiter)
	for bodyStart < len(document) && (document[bodyStart] == '\n' || document[bodyStart] == '\r') {
		bodyStart++
	}

	body := ""
	if bodyStart < len(document) {
		body = document[bodyStart:]
	}

	// Unknown keys are ignored; only the schema fields are decoded.
	var meta Metadata
	if err := yaml.Unmarshal([]byte(yamlContent), &meta); err != nil {
		return Metadata{}, "", fmt.Errorf("parse YAML front-matter: %w", err)
	}

	return meta, body, nil
}

// Serialize re-emits a document from metadata and body. The metadata block
// field order is fixed by the schema, so Parse(Serialize(m, b)) round-trips
// every metadata field exactly.
func Serialize(meta Metadata, body string) string {
	var sb strings.Builder
	sb.WriteString("---\n")
	sb.WriteString("language_version: ")
	sb.WriteString(quoteYAMLValue(meta.LanguageVersion))
	sb.WriteString("\nlast_checked: ")
	sb.WriteString(quoteYAMLValue(meta.LastChecked))
	sb.WriteString("\nresource_hash: ")
	sb.WriteString(quoteYAMLValue(meta.ResourceHash))
	sb.WriteString("\nversion_source_url: ")
	sb.WriteString(quoteYAMLValue(meta.VersionSourceURL))
	sb.WriteString("\n---\n\n")
	sb.WriteString(body)
	return sb.String()
}

// quoteYAMLValue quotes a scalar so version strings like "4.1" survive a
// YAML round trip as strings rather than floats.
func quoteYAMLValue(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

// ExtractReferenceURLs collects every absolute URL between the Resources
// heading and the next heading of the same or higher level. A document
// without a Resources section yields an empty list.
func ExtractReferenceURLs(document string) []string {
	lines := strings.Split(document, "\n")

	sectionLevel := 0
	inSection := false
	urls := []string{}
	seen := map[string]bool{}

	for _, line := range lines {
		m := headingPattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m != nil {
			level := len(m[1])
			title := m[2]
			if inSection && level <= sectionLevel {
				break
			}
			if !inSection && title == referencesHeading {
				inSection = true
				sectionLevel = level
			}
			continue
		}

		if !inSection {
			continue
		}

		for _, raw := range absoluteURLPattern.FindAllString(line, -1) {
			url := strings.TrimRight(raw, ".,;:")
			if !seen[url] {
				seen[url] = true
				urls = append(urls, url)
			}
		}
	}

	return urls
}
