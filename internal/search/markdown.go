package search

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractMarkdownPage indexes a markdown source file directly. Used for
// sources the generator did not render into indexable HTML, for example
// pages excluded from navigation.
func ExtractMarkdownPage(path, relPath string) (*Page, error) {
	body, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return extractMarkdown(body, relPath), nil
}

func extractMarkdown(body []byte, relPath string) *Page {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))

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

	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading:
			flush()
			title := collapseWhitespace(string(nodeSourceText(node, body)))
			current.Title = title
			current.ID = headingID(title)
			if page.Title == "" {
				page.Title = title
			}
			return gmast.WalkSkipChildren, nil
		case *gmast.Text:
			content.Write(node.Segment.Value(body))
			content.WriteByte(' ')
		}
		return gmast.WalkContinue, nil
	})
	flush()

	return page
}

func nodeSourceText(n gmast.Node, body []byte) []byte {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*gmast.Text); ok {
			b.Write(t.Segment.Value(body))
		}
	}
	return []byte(b.String())
}

// headingID mimics the generators' anchor slugs closely enough for search
// result deep links.
func headingID(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
