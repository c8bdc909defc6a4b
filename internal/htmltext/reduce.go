package htmltext

import (
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrNoContent is returned when a document has no body or the body reduces
// to nothing.
var ErrNoContent = errors.New("no readable text content")

// removedSelector lists elements that never carry readable page content.
const removedSelector = "script, style, head, nav, footer, header, aside, noscript, " +
	"iframe, frame, frameset, img, video, audio, picture, source, track, object, embed, canvas, " +
	"svg, math, meta, link, title, template"

var blockElements = map[string]bool{
	"address": true, "article": true, "blockquote": true, "br": true, "dd": true, "details": true,
	"div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true, "figure": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true, "li": true, "main": true, "ol": true, "p": true, "pre": true, "section": true,
	"summary": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

var horizontalSpace = regexp.MustCompile(`[^\S\n]+`)

// Reduce parses raw HTML, strips non-content elements and returns the body
// text with whitespace runs collapsed to single spaces and blank-line runs
// collapsed to single newlines.
func Reduce(raw string) (string, error) {
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", err
	}
	doc := goquery.NewDocumentFromNode(root)

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return "", ErrNoContent
	}
	body.Find(removedSelector).Remove()

	var sb strings.Builder
	for _, n := range body.Nodes {
		collectText(&sb, n)
	}

	text := Normalize(sb.String())
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}

// Normalize collapses horizontal whitespace runs to one space and drops blank
// lines, leaving single newlines between text lines.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = horizontalSpace.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func collectText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		sb.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(sb, c)
	}
	if block {
		sb.WriteByte('\n')
	}
}
