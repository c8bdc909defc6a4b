package htmltext

import (
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

const minHTMLChars = 50

var structuralMarkers = []string{"<html", "<body", "<div"}

// LooksLikeHTML accepts content that is long enough to be a real page and
// carries at least one structural marker. Proxies that answer 200 with an
// error string or an empty shell fail this check.
func LooksLikeHTML(s string) bool {
	if len([]rune(s)) < minHTMLChars {
		return false
	}
	lower := strings.ToLower(s)
	for _, m := range structuralMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

type PageMeta struct {
	Title    string `json:"title,omitempty"`
	Byline   string `json:"byline,omitempty"`
	SiteName string `json:"siteName,omitempty"`
	Excerpt  string `json:"excerpt,omitempty"`
}

// Meta pulls descriptive metadata with readability. It never fails: pages
// readability cannot handle yield an empty PageMeta.
func Meta(raw, pageURL string) PageMeta {
	u, err := url.Parse(pageURL)
	if err != nil {
		return PageMeta{}
	}
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(raw), u)
	if err != nil {
		return PageMeta{}
	}
	return PageMeta{
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		SiteName: strings.TrimSpace(article.SiteName),
		Excerpt:  strings.TrimSpace(article.Excerpt),
	}
}
