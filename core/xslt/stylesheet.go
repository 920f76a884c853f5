// Package xslt provides a compiled XSLT 1.0 subset processor over xmlquery.
//
// The processor covers the instruction set the entry stylesheets use:
// template matching by pattern, apply-templates, value-of, for-each,
// if/choose, named templates with parameters, and literal result elements
// with attribute value templates. Parameters passed at apply time are
// injected into expressions as quoted string literals.
//
// A compiled Stylesheet is immutable and safe for concurrent Apply calls.
package xslt

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/fernwood/lexweb/core/errors"
)

// Namespace is the XSLT namespace URI.
const Namespace = "http://www.w3.org/1999/XSL/Transform"

// Stylesheet is a compiled transform. Immutable once compiled; identified by
// the resource name it was compiled from.
type Stylesheet struct {
	name   string
	method string // output method: "html" (default), "xml" or "text"

	templates []*template          // match templates in document order
	named     map[string]*template // name -> template
	params    map[string]string    // top-level parameter defaults

	exprs struct {
		sync.RWMutex
		m map[string]*xpath.Expr
	}
}

// template is one xsl:template rule.
type template struct {
	match    string
	name     string
	priority float64
	explicit bool // priority attribute present
	body     *xmlquery.Node
}

// Compile parses and compiles a stylesheet source. The name identifies the
// resource in error messages and transform failures.
func Compile(name string, src []byte) (*Stylesheet, error) {
	doc, err := xmlquery.Parse(strings.NewReader(string(src)))
	if err != nil {
		return nil, fmt.Errorf("stylesheet %s: %w", name, err)
	}

	root := firstElement(doc)
	if root == nil {
		return nil, fmt.Errorf("stylesheet %s: no root element", name)
	}
	if root.NamespaceURI != Namespace || (root.Data != "stylesheet" && root.Data != "transform") {
		return nil, fmt.Errorf("stylesheet %s: root element is not xsl:stylesheet", name)
	}

	s := &Stylesheet{
		name:   name,
		method: "html",
		named:  make(map[string]*template),
		params: make(map[string]string),
	}
	s.exprs.m = make(map[string]*xpath.Expr)

	for n := root.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode || n.NamespaceURI != Namespace {
			continue
		}
		switch n.Data {
		case "output":
			if m := attrValue(n, "method"); m != "" {
				s.method = m
			}
		case "param":
			pname := attrValue(n, "name")
			if pname == "" {
				return nil, fmt.Errorf("stylesheet %s: top-level xsl:param without name", name)
			}
			s.params[pname] = strings.TrimSpace(n.InnerText())
		case "template":
			t := &template{
				match: attrValue(n, "match"),
				name:  attrValue(n, "name"),
				body:  n,
			}
			if t.match == "" && t.name == "" {
				return nil, fmt.Errorf("stylesheet %s: xsl:template needs match or name", name)
			}
			if p := attrValue(n, "priority"); p != "" {
				f, err := strconv.ParseFloat(p, 64)
				if err != nil {
					return nil, fmt.Errorf("stylesheet %s: bad priority %q", name, p)
				}
				t.priority = f
				t.explicit = true
			}
			if t.match != "" {
				// Patterns are validated at compile time so broken
				// stylesheets fail at load, not mid-render.
				if err := checkPattern(t.match); err != nil {
					return nil, fmt.Errorf("stylesheet %s: %w", name, err)
				}
				s.templates = append(s.templates, t)
			}
			if t.name != "" {
				if _, dup := s.named[t.name]; dup {
					return nil, fmt.Errorf("stylesheet %s: duplicate template name %q", name, t.name)
				}
				s.named[t.name] = t
			}
		}
	}

	return s, nil
}

// Name returns the resource name the stylesheet was compiled from.
func (s *Stylesheet) Name() string {
	return s.name
}

// OutputMethod returns the declared output method.
func (s *Stylesheet) OutputMethod() string {
	return s.method
}

// Apply runs the stylesheet against an isolated document and returns the
// serialized output. A nil document yields an empty string: absence is a
// value, not an error. Params are bound as quoted string literals and win
// over top-level defaults.
func (s *Stylesheet) Apply(doc *xmlquery.Node, params map[string]string) (string, error) {
	if doc == nil {
		return "", nil
	}

	vars := make(map[string]string, len(s.params)+len(params))
	for k, v := range s.params {
		vars[k] = v
	}
	for k, v := range params {
		vars[k] = v
	}

	ctx := &execContext{
		sheet: s,
		out:   &strings.Builder{},
		vars:  vars,
	}
	if err := ctx.applyTemplates(doc); err != nil {
		return "", errors.NewTransform(s.name, err)
	}
	return ctx.out.String(), nil
}

// compiledExpr returns the compiled form of an XPath expression, caching
// the result. Expressions with injected parameters vary per call and are
// cached under their expanded text.
func (s *Stylesheet) compiledExpr(expr string) (*xpath.Expr, error) {
	s.exprs.RLock()
	e, ok := s.exprs.m[expr]
	s.exprs.RUnlock()
	if ok {
		return e, nil
	}

	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", expr, err)
	}

	s.exprs.Lock()
	s.exprs.m[expr] = compiled
	s.exprs.Unlock()
	return compiled, nil
}

// bestMatch returns the highest-ranked template matching node, or nil.
// Among equal ranks the later template wins, matching common processor
// behavior for import-free stylesheets.
func (s *Stylesheet) bestMatch(node *xmlquery.Node) *template {
	var best *template
	bestRank := -1.0
	for _, t := range s.templates {
		r := matchRank(node, t.match)
		if r < 0 {
			continue
		}
		if t.explicit {
			r = t.priority
		}
		if r >= bestRank {
			best = t
			bestRank = r
		}
	}
	return best
}

func firstElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

func attrValue(n *xmlquery.Node, name string) string {
	for _, a := range n.Attr {
		if a.Name.Local == name && a.Name.Space == "" {
			return a.Value
		}
	}
	return ""
}
