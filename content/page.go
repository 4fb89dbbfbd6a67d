package content

import (
	"strings"

	"github.com/nickjmiller/floneum/resource"
)

// Node is one element of a page's content tree. Nodes are immutable once the
// page is built, so several node handles may share a node.
type Node struct {
	Tag      string
	Text     string
	Children []*Node
}

// ResourceKind implements resource.Resource.
func (n *Node) ResourceKind() resource.Kind {
	return resource.KindNode
}

// AllText returns the text of n and its descendants, depth first, joined by
// newlines.
func (n *Node) AllText() string {
	var parts []string
	var walk func(*Node)
	walk = func(x *Node) {
		if x.Text != "" {
			parts = append(parts, x.Text)
		}
		for _, c := range x.Children {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, "\n")
}

// Page is a fetched document.
type Page struct {
	URL   string
	Title string
	Body  string
	Root  *Node
}

// ResourceKind implements resource.Resource.
func (p *Page) ResourceKind() resource.Kind {
	return resource.KindPage
}

// NewTextPage builds a page from plain text. Paragraphs separated by blank
// lines become "p" children of a "body" root; a non-empty title becomes a
// leading "h1".
func NewTextPage(url, title, body string) *Page {
	root := &Node{Tag: "body"}
	if title != "" {
		root.Children = append(root.Children, &Node{Tag: "h1", Text: title})
	}
	for _, para := range Paragraphs(body) {
		root.Children = append(root.Children, &Node{Tag: "p", Text: para})
	}
	return &Page{
		URL:   url,
		Title: title,
		Body:  body,
		Root:  root,
	}
}

// Paragraphs splits text on blank lines and trims each paragraph. Empty
// paragraphs are dropped.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			out = append(out, block)
		}
	}
	return out
}
