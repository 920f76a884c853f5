package xslt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// execContext carries the mutable state of one Apply call: the output
// buffer and the in-scope parameter bindings. The stylesheet itself is
// shared and read-only.
type execContext struct {
	sheet *Stylesheet
	out   *strings.Builder
	vars  map[string]string
}

// instruction executors, keyed by XSLT local name.
var executers map[string]func(*execContext, *xmlquery.Node, *xmlquery.Node) error

func init() {
	executers = map[string]func(*execContext, *xmlquery.Node, *xmlquery.Node) error{
		"apply-templates": (*execContext).execApplyTemplates,
		"value-of":        (*execContext).execValueOf,
		"for-each":        (*execContext).execForEach,
		"if":              (*execContext).execIf,
		"choose":          (*execContext).execChoose,
		"call-template":   (*execContext).execCallTemplate,
		"param":           (*execContext).execParam,
		"variable":        (*execContext).execVariable,
		"text":            (*execContext).execText,
	}
}

// applyTemplates processes one source node: the best matching template
// rule runs, or the built-in rules take over (recurse for documents and
// elements, copy text through).
func (c *execContext) applyTemplates(node *xmlquery.Node) error {
	if t := c.sheet.bestMatch(node); t != nil {
		return c.instantiate(t.body, node)
	}

	switch node.Type {
	case xmlquery.DocumentNode, xmlquery.ElementNode:
		for n := node.FirstChild; n != nil; n = n.NextSibling {
			if err := c.applyTemplates(n); err != nil {
				return err
			}
		}
	case xmlquery.TextNode, xmlquery.CharDataNode:
		c.writeEscaped(node.Data)
	}
	return nil
}

// instantiate executes the children of a template (or other instruction
// container) against the current source node.
func (c *execContext) instantiate(container, current *xmlquery.Node) error {
	for n := container.FirstChild; n != nil; n = n.NextSibling {
		if err := c.execNode(n, current); err != nil {
			return err
		}
	}
	return nil
}

func (c *execContext) execNode(n, current *xmlquery.Node) error {
	switch n.Type {
	case xmlquery.TextNode, xmlquery.CharDataNode:
		// Whitespace-only runs between instructions are formatting noise;
		// deliberate whitespace goes through xsl:text.
		if strings.TrimSpace(n.Data) == "" {
			return nil
		}
		c.writeEscaped(n.Data)
		return nil
	case xmlquery.CommentNode:
		return nil
	case xmlquery.ElementNode:
		if n.NamespaceURI == Namespace {
			exec, ok := executers[n.Data]
			if !ok {
				return fmt.Errorf("unsupported instruction xsl:%s", n.Data)
			}
			return exec(c, n, current)
		}
		return c.execLiteral(n, current)
	}
	return nil
}

func (c *execContext) execApplyTemplates(n, current *xmlquery.Node) error {
	sel := attrValue(n, "select")
	if sel == "" {
		for child := current.FirstChild; child != nil; child = child.NextSibling {
			if err := c.applyTemplates(child); err != nil {
				return err
			}
		}
		return nil
	}
	nodes, err := c.evalNodes(current, sel)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		if err := c.applyTemplates(node); err != nil {
			return err
		}
	}
	return nil
}

func (c *execContext) execValueOf(n, current *xmlquery.Node) error {
	sel := attrValue(n, "select")
	if sel == "" {
		return fmt.Errorf("xsl:value-of requires select")
	}
	value, err := c.evalString(current, sel)
	if err != nil {
		return err
	}
	if attrValue(n, "disable-output-escaping") == "yes" {
		c.out.WriteString(value)
	} else {
		c.writeEscaped(value)
	}
	return nil
}

func (c *execContext) execForEach(n, current *xmlquery.Node) error {
	sel := attrValue(n, "select")
	if sel == "" {
		return fmt.Errorf("xsl:for-each requires select")
	}
	nodes, err := c.evalNodes(current, sel)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		if err := c.instantiate(n, node); err != nil {
			return err
		}
	}
	return nil
}

func (c *execContext) execIf(n, current *xmlquery.Node) error {
	test := attrValue(n, "test")
	if test == "" {
		return fmt.Errorf("xsl:if requires test")
	}
	ok, err := c.evalBool(current, test)
	if err != nil {
		return err
	}
	if ok {
		return c.instantiate(n, current)
	}
	return nil
}

func (c *execContext) execChoose(n, current *xmlquery.Node) error {
	for branch := n.FirstChild; branch != nil; branch = branch.NextSibling {
		if branch.Type != xmlquery.ElementNode || branch.NamespaceURI != Namespace {
			continue
		}
		switch branch.Data {
		case "when":
			ok, err := c.evalBool(current, attrValue(branch, "test"))
			if err != nil {
				return err
			}
			if ok {
				return c.instantiate(branch, current)
			}
		case "otherwise":
			return c.instantiate(branch, current)
		default:
			return fmt.Errorf("unexpected xsl:%s inside xsl:choose", branch.Data)
		}
	}
	return nil
}

func (c *execContext) execCallTemplate(n, current *xmlquery.Node) error {
	name := attrValue(n, "name")
	t, ok := c.sheet.named[name]
	if !ok {
		return fmt.Errorf("no template named %q", name)
	}

	// with-param bindings shadow the caller's scope for the callee only.
	callee := &execContext{
		sheet: c.sheet,
		out:   c.out,
		vars:  make(map[string]string, len(c.vars)),
	}
	for k, v := range c.vars {
		callee.vars[k] = v
	}
	for p := n.FirstChild; p != nil; p = p.NextSibling {
		if p.Type != xmlquery.ElementNode || p.NamespaceURI != Namespace || p.Data != "with-param" {
			continue
		}
		pname := attrValue(p, "name")
		if pname == "" {
			return fmt.Errorf("xsl:with-param without name")
		}
		value, err := c.paramValue(p, current)
		if err != nil {
			return err
		}
		callee.vars[pname] = value
	}
	return callee.instantiate(t.body, current)
}

func (c *execContext) execParam(n, current *xmlquery.Node) error {
	name := attrValue(n, "name")
	if name == "" {
		return fmt.Errorf("xsl:param without name")
	}
	// Params only supply a default; an existing binding wins.
	if _, bound := c.vars[name]; bound {
		return nil
	}
	value, err := c.paramValue(n, current)
	if err != nil {
		return err
	}
	c.vars[name] = value
	return nil
}

func (c *execContext) execVariable(n, current *xmlquery.Node) error {
	name := attrValue(n, "name")
	if name == "" {
		return fmt.Errorf("xsl:variable without name")
	}
	value, err := c.paramValue(n, current)
	if err != nil {
		return err
	}
	c.vars[name] = value
	return nil
}

func (c *execContext) execText(n, current *xmlquery.Node) error {
	if attrValue(n, "disable-output-escaping") == "yes" {
		c.out.WriteString(n.InnerText())
		return nil
	}
	c.writeEscaped(n.InnerText())
	return nil
}

// paramValue resolves a param/variable/with-param value from its select
// attribute or, failing that, its text content.
func (c *execContext) paramValue(n, current *xmlquery.Node) (string, error) {
	if sel := attrValue(n, "select"); sel != "" {
		return c.evalString(current, sel)
	}
	return strings.TrimSpace(n.InnerText()), nil
}

// htmlVoid lists elements serialized without a closing tag in html output.
var htmlVoid = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// execLiteral copies a literal result element to the output, expanding
// attribute value templates.
func (c *execContext) execLiteral(n, current *xmlquery.Node) error {
	name := n.Data
	if n.Prefix != "" {
		name = n.Prefix + ":" + n.Data
	}

	c.out.WriteByte('<')
	c.out.WriteString(name)
	for _, a := range n.Attr {
		// The stylesheet's own namespace declaration has no place in output.
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns" && a.Value == Namespace) {
			continue
		}
		value, err := c.expandAVT(current, a.Value)
		if err != nil {
			return err
		}
		c.out.WriteByte(' ')
		if a.Name.Space != "" {
			c.out.WriteString(a.Name.Space)
			c.out.WriteByte(':')
		}
		c.out.WriteString(a.Name.Local)
		c.out.WriteString(`="`)
		c.writeAttrEscaped(value)
		c.out.WriteByte('"')
	}

	if n.FirstChild == nil {
		if c.sheet.method == "html" {
			if htmlVoid[strings.ToLower(name)] {
				c.out.WriteByte('>')
				return nil
			}
			c.out.WriteString("></")
			c.out.WriteString(name)
			c.out.WriteByte('>')
			return nil
		}
		c.out.WriteString("/>")
		return nil
	}

	c.out.WriteByte('>')
	if err := c.instantiate(n, current); err != nil {
		return err
	}
	c.out.WriteString("</")
	c.out.WriteString(name)
	c.out.WriteByte('>')
	return nil
}

// expandAVT expands attribute value templates: {expr} evaluates, {{ and }}
// escape literal braces.
func (c *execContext) expandAVT(current *xmlquery.Node, value string) (string, error) {
	if !strings.ContainsAny(value, "{}") {
		return value, nil
	}
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '{':
			if i+1 < len(value) && value[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(value[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated value template in %q", value)
			}
			expr := value[i+1 : i+end]
			s, err := c.evalString(current, expr)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
			i += end
		case '}':
			if i+1 < len(value) && value[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("stray '}' in value template %q", value)
		default:
			b.WriteByte(value[i])
		}
	}
	return b.String(), nil
}

// injectParams replaces $name references with quoted string literals so the
// XPath engine sees plain expressions. This is how per-call parameters reach
// selects and tests.
func (c *execContext) injectParams(expr string) (string, error) {
	if !strings.ContainsRune(expr, '$') {
		return expr, nil
	}
	var b strings.Builder
	for i := 0; i < len(expr); i++ {
		if expr[i] != '$' {
			b.WriteByte(expr[i])
			continue
		}
		j := i + 1
		for j < len(expr) && isNameByte(expr[j]) {
			j++
		}
		name := expr[i+1 : j]
		if name == "" {
			return "", fmt.Errorf("stray '$' in expression %q", expr)
		}
		value, bound := c.vars[name]
		if !bound {
			return "", fmt.Errorf("unbound parameter $%s in expression %q", name, expr)
		}
		if strings.ContainsRune(value, '\'') {
			return "", fmt.Errorf("parameter $%s contains a quote and cannot be injected", name)
		}
		b.WriteByte('\'')
		b.WriteString(value)
		b.WriteByte('\'')
		i = j - 1
	}
	return b.String(), nil
}

func isNameByte(b byte) bool {
	return b == '_' || b == '-' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (c *execContext) evalNodes(current *xmlquery.Node, expr string) ([]*xmlquery.Node, error) {
	expanded, err := c.injectParams(expr)
	if err != nil {
		return nil, err
	}
	compiled, err := c.sheet.compiledExpr(expanded)
	if err != nil {
		return nil, err
	}
	return xmlquery.QuerySelectorAll(current, compiled), nil
}

func (c *execContext) evalString(current *xmlquery.Node, expr string) (string, error) {
	// A bare parameter reference resolves directly from scope.
	if strings.HasPrefix(expr, "$") && !strings.ContainsAny(expr[1:], " ()[]/|+-=<>!") {
		value, bound := c.vars[expr[1:]]
		if !bound {
			return "", fmt.Errorf("unbound parameter %s", expr)
		}
		return value, nil
	}

	expanded, err := c.injectParams(expr)
	if err != nil {
		return "", err
	}
	compiled, err := c.sheet.compiledExpr(expanded)
	if err != nil {
		return "", err
	}

	switch v := compiled.Evaluate(xmlquery.CreateXPathNavigator(current)).(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case *xpath.NodeIterator:
		if v.MoveNext() {
			return v.Current().Value(), nil
		}
		return "", nil
	default:
		return "", fmt.Errorf("expression %q: unexpected result type %T", expr, v)
	}
}

func (c *execContext) evalBool(current *xmlquery.Node, expr string) (bool, error) {
	if expr == "" {
		return false, fmt.Errorf("empty test expression")
	}
	expanded, err := c.injectParams(expr)
	if err != nil {
		return false, err
	}
	compiled, err := c.sheet.compiledExpr(expanded)
	if err != nil {
		return false, err
	}

	switch v := compiled.Evaluate(xmlquery.CreateXPathNavigator(current)).(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case string:
		return v != "", nil
	case *xpath.NodeIterator:
		return v.MoveNext(), nil
	default:
		return false, fmt.Errorf("expression %q: unexpected result type %T", expr, v)
	}
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

var attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func (c *execContext) writeEscaped(s string) {
	textEscaper.WriteString(c.out, s)
}

func (c *execContext) writeAttrEscaped(s string) {
	attrEscaper.WriteString(c.out, s)
}
