package identify

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var whitespaceRun = regexp.MustCompile(`[\s\xA0]+`)

// NormalizeText lowercases and collapses whitespace so trivial formatting
// differences between two copies of the same email do not change identity.
func NormalizeText(s string) string {
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// StripHTML extracts the visible text of an HTML email body. Script and
// style contents are dropped. On unparseable input it falls back to the raw
// string; extraction never fails.
func StripHTML(htmlBody string) string {
	if htmlBody == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return htmlBody
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(b.String())
}
