package toolbelt

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Pre-compiled regexes to strip noise before conversion.
var (
	scriptRe         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
)

// Converter converts fetched HTML into markdown text the evaluation agent
// can reason over. It extracts the main article content first so navigation
// chrome does not drown the signal.
type Converter struct {
	converter *md.Converter
}

// NewConverter creates a new HTML to markdown converter.
func NewConverter() *Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &Converter{converter: converter}
}

// Convert transforms HTML content to markdown. pageURL helps the content
// extractor resolve relative links; it may be empty.
func (c *Converter) Convert(htmlContent []byte, pageURL string) (string, error) {
	cleaned := extractMainContent(htmlContent, pageURL)

	markdown, err := c.converter.ConvertString(cleaned)
	if err != nil {
		return "", err
	}

	markdown = excessiveLinesRe.ReplaceAllString(markdown, "\n\n\n")
	return strings.TrimSpace(markdown), nil
}

// extractMainContent pulls the main article HTML from a full page, falling
// back to a script/style-stripped version of the whole page.
func extractMainContent(content []byte, pageURL string) string {
	parsedURL, _ := url.Parse(pageURL)

	article, err := readability.FromReader(bytes.NewReader(content), parsedURL)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		return article.Content
	}

	stripped := scriptRe.ReplaceAll(content, nil)
	stripped = styleRe.ReplaceAll(stripped, nil)
	return string(stripped)
}

// IsHTML reports whether a Content-Type header denotes an HTML document.
func IsHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// ExtractTitle extracts the <title> of an HTML document, empty if none.
func ExtractTitle(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	var title string
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if title != "" {
				return
			}
			extract(c)
		}
	}
	extract(doc)

	return title
}
