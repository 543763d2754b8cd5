package search

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// extractHTMLPage parses one built page into an indexable Page. Headings with
// an id attribute open a new section; text between headings accumulates into
// the current one. Text before the first heading goes into an unnamed lead
// section.
func extractHTMLPage(path, relPath string) (*Page, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, err
	}

	page := &Page{Path: relPath}
	current := Section{}
	var content strings.Builder

	flush := func() {
		text := collapseWhitespace(content.String())
		content.Reset()
		if text == "" && current.Title == "" {
			return
		}
		current.Content = text
		page.Sections = append(page.Sections, current)
		current = Section{}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "header", "footer":
				return
			case "title":
				if page.Title == "" {
					page.Title = collapseWhitespace(nodeText(n))
				}
				return
			case "h1", "h2", "h3", "h4":
				flush()
				current.ID = attr(n, "id")
				current.Title = collapseWhitespace(nodeText(n))
				if page.Title == "" {
					page.Title = current.Title
				}
				return
			}
		}
		if n.Type == html.TextNode {
			content.WriteString(n.Data)
			content.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	flush()

	return page, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
