// Package xmlutil provides pure Go XML parsing, XPath location, and document
// isolation for dictionary entry rendering.
//
// Entry XML arrives either as a full stored document (the ENTRYFREE tree) or as
// loose fragments carried on senses, notes, citations and supplements. Both are
// parsed with the xmlquery library, which uses Go's encoding/xml internally and
// inherits its security properties (no external entity fetching).
package xmlutil

import (
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/fernwood/lexweb/core/errors"
)

// Parse parses an XML document and returns its document node.
func Parse(data []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, errors.NewParse("XML", "", err)
	}
	return doc, nil
}

// ParseFragment wraps a bare XML fragment in a container element and parses it.
// Definition fragments are often inline runs with no single enclosing element;
// wrapping makes them a well-formed standalone document.
func ParseFragment(fragment, container string) (*xmlquery.Node, error) {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(container)
	b.WriteByte('>')
	b.WriteString(fragment)
	b.WriteString("</")
	b.WriteString(container)
	b.WriteByte('>')

	doc, err := xmlquery.Parse(strings.NewReader(b.String()))
	if err != nil {
		return nil, errors.NewParse("XML", container, err)
	}
	return doc, nil
}

// FirstMatch evaluates path against doc and returns the first matching node in
// document order, or nil when nothing matches. A syntactically invalid path is
// a programmer error and returns a QueryError.
func FirstMatch(doc *xmlquery.Node, path string) (*xmlquery.Node, error) {
	expr, err := xpath.Compile(path)
	if err != nil {
		return nil, errors.NewQuery(path, err)
	}
	return xmlquery.QuerySelector(doc, expr), nil
}

// Matches evaluates path against doc and returns every matching node in
// document order.
func Matches(doc *xmlquery.Node, path string) ([]*xmlquery.Node, error) {
	expr, err := xpath.Compile(path)
	if err != nil {
		return nil, errors.NewQuery(path, err)
	}
	return xmlquery.QuerySelectorAll(doc, expr), nil
}

// Isolate produces a standalone document containing only the given node.
//
//   - nil input yields nil.
//   - A document node yields an independent duplicate of the whole document.
//   - Any other node becomes the sole child of a fresh document node.
//
// The returned tree never aliases the source: downstream transforms are free
// to walk it while concurrent renders share the original entry tree.
func Isolate(node *xmlquery.Node) *xmlquery.Node {
	if node == nil {
		return nil
	}
	if node.Type == xmlquery.DocumentNode {
		return CloneTree(node)
	}
	doc := &xmlquery.Node{Type: xmlquery.DocumentNode}
	child := CloneTree(node)
	child.Parent = doc
	doc.FirstChild = child
	doc.LastChild = child
	return doc
}

// CloneTree returns a deep copy of the subtree rooted at n. Sibling links
// outside the subtree are not carried over; the copy is self-contained.
func CloneTree(n *xmlquery.Node) *xmlquery.Node {
	if n == nil {
		return nil
	}
	clone := &xmlquery.Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
	}
	if len(n.Attr) > 0 {
		clone.Attr = make([]xmlquery.Attr, len(n.Attr))
		copy(clone.Attr, n.Attr)
	}
	var prev *xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		cc := CloneTree(c)
		cc.Parent = clone
		if prev == nil {
			clone.FirstChild = cc
		} else {
			prev.NextSibling = cc
			cc.PrevSibling = prev
		}
		prev = cc
	}
	clone.LastChild = prev
	return clone
}

// CountNodes returns the number of nodes in the subtree rooted at n,
// counting n itself. Used to verify isolation leaves sources untouched.
func CountNodes(n *xmlquery.Node) int {
	if n == nil {
		return 0
	}
	count := 1
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count += CountNodes(c)
	}
	return count
}
