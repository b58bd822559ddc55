package assets

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/codefionn/hyphertext/internal/logger"
)

var multipleNewlines = regexp.MustCompile(`\n{3,}`)

var unwantedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"meta":     true,
	"link":     true,
	"head":     true,
	"iframe":   true,
	"svg":      true,
	"nav":      true,
}

var contentIdentifiers = []string{
	"content", "main", "article", "post", "entry", "story",
}

// ExtractHTML converts an uploaded HTML document to markdown. Only the main
// content is kept when a main, article or content container exists.
func ExtractHTML(_ context.Context, data []byte) (Extraction, error) {
	input := string(data)
	cleaned, err := preprocessHTML(input)
	if err != nil {
		logger.Warn("Failed to preprocess uploaded HTML: %v, using original", err)
		cleaned = input
	}

	markdown, err := htmltomarkdown.ConvertString(cleaned)
	if err != nil {
		logger.Warn("Failed to convert uploaded HTML to markdown: %v", err)
		return ExtractText(context.Background(), data)
	}
	markdown = strings.TrimSpace(multipleNewlines.ReplaceAllString(markdown, "\n\n"))

	var budget textBudget
	budget.add(markdown, 0, docxTruncatedMarker)
	var out Extraction
	budget.finish(&out)
	return out, nil
}

// ExtractText stores plain text uploads as they are.
func ExtractText(_ context.Context, data []byte) (Extraction, error) {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	var budget textBudget
	budget.add(text, 0, docxTruncatedMarker)
	var out Extraction
	budget.finish(&out)
	return out, nil
}

func preprocessHTML(input string) (string, error) {
	doc, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return input, err
	}

	root := findMainContent(doc)
	removeUnwantedNodes(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return input, err
	}
	return buf.String(), nil
}

func removeUnwantedNodes(n *html.Node) {
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		removeUnwantedNodes(child)
		child = next
	}
	if n.Type == html.ElementNode && unwantedTags[n.Data] && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// findMainContent prefers main, then article, then an element whose id or
// class names content, then body.
func findMainContent(doc *html.Node) *html.Node {
	var mains, articles, tagged, bodies []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "main":
				mains = append(mains, n)
			case "article":
				articles = append(articles, n)
			case "body":
				bodies = append(bodies, n)
			default:
				if hasContentIdentifier(n) {
					tagged = append(tagged, n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, group := range [][]*html.Node{mains, articles, tagged, bodies} {
		if len(group) > 0 {
			return group[0]
		}
	}
	return doc
}

func hasContentIdentifier(n *html.Node) bool {
	for _, attr := range n.Attr {
		var values []string
		switch strings.ToLower(attr.Key) {
		case "id":
			values = []string{attr.Val}
		case "class":
			values = strings.Fields(attr.Val)
		default:
			continue
		}
		for _, v := range values {
			v = strings.ToLower(v)
			for _, id := range contentIdentifiers {
				if strings.Contains(v, id) {
					return true
				}
			}
		}
	}
	return false
}
