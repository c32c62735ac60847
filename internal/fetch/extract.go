package fetch

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// skipTags are elements whose text content is never page prose.
var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"svg":      true,
	"canvas":   true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"iframe":   true,
}

// ExtractText parses markup and returns its visible text with
// whitespace collapsed to single spaces. Plain-text bodies pass through
// unchanged apart from whitespace collapsing, since the HTML parser
// treats bare text as a text node. Extraction is a pure function of the
// input bytes.
func ExtractText(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(n *html.Node, skip bool)
	walk = func(n *html.Node, skip bool) {
		if n == nil {
			return
		}
		if n.Type == html.ElementNode && skipTags[strings.ToLower(n.Data)] {
			skip = true
		}
		if n.Type == html.TextNode && !skip {
			if seg := strings.TrimSpace(n.Data); seg != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(seg)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skip)
		}
	}
	walk(doc, false)

	return strings.Join(strings.Fields(b.String()), " ")
}
