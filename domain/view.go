package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Element ids of the rendered regions.
const (
	RegionPrice       = "price"
	RegionChange      = "change"
	RegionSubmissions = "submissions"
	RegionFunding     = "funding"
	RegionGraph       = "graph"
)

// Node is a structured view node: an element with attributes and children,
// or a text node when Tag is empty.
type Node struct {
	Tag      string
	Attrs    []Attr
	Text     string
	Children []Node
}

type Attr struct {
	Key string
	Val string
}

func El(tag string, attrs []Attr, children ...Node) Node {
	return Node{Tag: tag, Attrs: attrs, Children: children}
}

func Text(s string) Node {
	return Node{Text: s}
}

// Attr returns the value of the named attribute.
func (n Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}

	return "", false
}

// TextContent concatenates all text below n.
func (n Node) TextContent() string {
	if n.Tag == "" {
		return n.Text
	}
	s := ""
	for _, c := range n.Children {
		s += c.TextContent()
	}

	return s
}

// Element is a text and animation capable view region.
type Element interface {
	Data(key string) string
	SetData(key, value string)
	SetContent(nodes ...Node)
	SetClass(class string)
	Animate(effect string)
}

// Chart is the chart-rendering collaborator.
type Chart interface {
	SetLabels(labels []time.Time)
	SetData(series string, data []decimal.Decimal)
	Update()
}

type UpdateOp = string

const (
	OpContent = "content"
	OpClass   = "class"
	OpAnimate = "animate"
	OpData    = "data"
	OpChart   = "chart"
)

// RegionUpdate describes one mutation of a rendered region.
type RegionUpdate struct {
	Region   string          `json:"region"`
	Op       UpdateOp        `json:"op"`
	HTML     string          `json:"html,omitempty"`
	Class    string          `json:"class,omitempty"`
	Effect   string          `json:"effect,omitempty"`
	Key      string          `json:"key,omitempty"`
	Value    string          `json:"value,omitempty"`
	Chart    json.RawMessage `json:"chart,omitempty"`
	Revision uint64          `json:"revision"`
}

// ViewObserver receives region updates. Implementations must not block.
type ViewObserver interface {
	OnRegionUpdate(u RegionUpdate)
}
