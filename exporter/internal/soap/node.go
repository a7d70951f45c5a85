package soap

import (
	"encoding/xml"
	"strings"
)

// Node is a generic XML element tree. KDP records are loosely typed
// (numbers arrive as strings, optional fields as xsi:nil), so responses are
// decoded into Nodes first and mapped to typed records by the caller.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []*Node    `xml:",any"`
}

// Name returns the element's local name.
func (n *Node) Name() string {
	return n.XMLName.Local
}

// Nil reports whether the element carries xsi:nil="true".
func (n *Node) Nil() bool {
	for _, a := range n.Attrs {
		if a.Name.Local == "nil" && (a.Value == "true" || a.Value == "1") {
			return true
		}
	}
	return false
}

// Empty reports whether the element has neither children nor text.
func (n *Node) Empty() bool {
	return len(n.Children) == 0 && strings.TrimSpace(n.Text) == ""
}

// Value returns the trimmed text content.
func (n *Node) Value() string {
	return strings.TrimSpace(n.Text)
}

// Child returns the first direct child with the given local name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			return c
		}
	}
	return nil
}
