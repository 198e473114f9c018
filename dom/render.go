package dom

import (
	"bytes"

	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"bitbucket.org/novatechnologies/liveview/domain"
)

// RenderHTML serializes nodes to an HTML fragment. Text and attribute values
// are escaped.
func RenderHTML(nodes ...domain.Node) (string, error) {
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, toHTMLNode(n)); err != nil {
			return "", errors.Wrap(err, "render node")
		}
	}

	return buf.String(), nil
}

func toHTMLNode(n domain.Node) *html.Node {
	if n.Tag == "" {
		return &html.Node{Type: html.TextNode, Data: n.Text}
	}

	out := &html.Node{
		Type: html.ElementNode,
		Data: n.Tag,
	}
	for _, a := range n.Attrs {
		out.Attr = append(out.Attr, html.Attribute{Key: a.Key, Val: a.Val})
	}
	for _, c := range n.Children {
		out.AppendChild(toHTMLNode(c))
	}

	return out
}
