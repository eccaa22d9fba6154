package message

import (
	"strings"

	"golang.org/x/net/html"
)

// blockElements end a line of text when rendered
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// HTMLText extracts readable text from an HTML form view. Scripts and
// styles are dropped, block elements become line breaks and runs of
// whitespace collapse to one space.
func HTMLText(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var lines []string
	var current strings.Builder

	flush := func() {
		line := strings.Join(strings.Fields(current.String()), " ")
		if line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "head") {
			return
		}
		if n.Type == html.TextNode {
			current.WriteString(n.Data)
			current.WriteString(" ")
		}
		if n.Type == html.ElementNode && n.Data == "input" {
			for _, attr := range n.Attr {
				if attr.Key == "value" {
					current.WriteString(attr.Val)
					current.WriteString(" ")
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			flush()
		}
	}
	walk(doc)
	flush()

	return strings.Join(lines, "\n"), nil
}
