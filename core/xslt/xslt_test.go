package xslt

import (
	"strings"
	"testing"

	"github.com/fernwood/lexweb/core/errors"
	"github.com/fernwood/lexweb/core/xmlutil"
)

const header = `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">`

func compileSheet(t *testing.T, body string) *Stylesheet {
	t.Helper()
	s, err := Compile("test", []byte(header+body+`</xsl:stylesheet>`))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return s
}

// TestCompileRejectsBadSheets verifies compile-time failures.
func TestCompileRejectsBadSheets(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"not xml", `<oops`},
		{"wrong root", `<stylesheet/>`},
		{"template without match or name", header + `<xsl:template/></xsl:stylesheet>`},
		{"bad priority", header + `<xsl:template match="A" priority="high"/></xsl:stylesheet>`},
		{"empty pattern step", header + `<xsl:template match="A//B"/></xsl:stylesheet>`},
		{"duplicate named template", header +
			`<xsl:template name="x"/><xsl:template name="x"/></xsl:stylesheet>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile("bad", []byte(tt.src)); err == nil {
				t.Error("Compile should fail")
			}
		})
	}
}

// TestApplyNilDocument verifies absence propagates as an empty result.
func TestApplyNilDocument(t *testing.T) {
	s := compileSheet(t, `<xsl:template match="/"><p>never</p></xsl:template>`)
	out, err := s.Apply(nil, nil)
	if err != nil {
		t.Fatalf("Apply(nil) failed: %v", err)
	}
	if out != "" {
		t.Errorf("Apply(nil) = %q, want empty", out)
	}
}

func apply(t *testing.T, s *Stylesheet, src string, params map[string]string) string {
	t.Helper()
	doc, err := xmlutil.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	out, err := s.Apply(doc, params)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	return out
}

// TestValueOfAndLiterals verifies basic template instantiation.
func TestValueOfAndLiterals(t *testing.T) {
	s := compileSheet(t, `
		<xsl:template match="/"><xsl:apply-templates/></xsl:template>
		<xsl:template match="FORM">
			<span class="form"><xsl:value-of select="HDORTH"/></span>
		</xsl:template>`)

	out := apply(t, s, `<FORM><HDORTH>worde</HDORTH></FORM>`, nil)
	if out != `<span class="form">worde</span>` {
		t.Errorf("unexpected output: %q", out)
	}
}

// TestBuiltinRules verifies unmatched elements recurse and text copies through.
func TestBuiltinRules(t *testing.T) {
	s := compileSheet(t, `
		<xsl:template match="HI"><i><xsl:apply-templates/></i></xsl:template>`)

	out := apply(t, s, `<ETYM>OE <HI>word</HI> cognate</ETYM>`, nil)
	if out != `OE <i>word</i> cognate` {
		t.Errorf("unexpected output: %q", out)
	}
}

// TestTextEscaping verifies markup characters in source text are escaped.
func TestTextEscaping(t *testing.T) {
	s := compileSheet(t, ``)
	out := apply(t, s, `<DEF>5 &lt; 6 &amp; more</DEF>`, nil)
	if out != `5 &lt; 6 &amp; more` {
		t.Errorf("unexpected output: %q", out)
	}
}

// TestParamInjection verifies per-call parameters reach selects, tests and
// attribute value templates as quoted string literals.
func TestParamInjection(t *testing.T) {
	s := compileSheet(t, `
		<xsl:param name="bibid"/>
		<xsl:template match="/"><xsl:apply-templates/></xsl:template>
		<xsl:template match="CIT">
			<xsl:choose>
				<xsl:when test="$bibid != ''">
					<a href="/bibliography/{$bibid}"><xsl:apply-templates/></a>
				</xsl:when>
				<xsl:otherwise><span><xsl:apply-templates/></span></xsl:otherwise>
			</xsl:choose>
		</xsl:template>`)

	t.Run("bound", func(t *testing.T) {
		out := apply(t, s, `<CIT>c1225 Ancr.</CIT>`, map[string]string{"bibid": "123"})
		if out != `<a href="/bibliography/123">c1225 Ancr.</a>` {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("empty falls back", func(t *testing.T) {
		out := apply(t, s, `<CIT>c1225 Ancr.</CIT>`, map[string]string{"bibid": ""})
		if out != `<span>c1225 Ancr.</span>` {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("default from xsl:param", func(t *testing.T) {
		out := apply(t, s, `<CIT>c1225 Ancr.</CIT>`, nil)
		if out != `<span>c1225 Ancr.</span>` {
			t.Errorf("unexpected output: %q", out)
		}
	})
}

// TestForEach verifies iteration order.
func TestForEach(t *testing.T) {
	s := compileSheet(t, `
		<xsl:template match="FORM">
			<ul><xsl:for-each select="HDORTH"><li><xsl:value-of select="."/></li></xsl:for-each></ul>
		</xsl:template>`)

	out := apply(t, s, `<FORM><HDORTH>worde</HDORTH><HDORTH>worden</HDORTH></FORM>`, nil)
	if out != `<ul><li>worde</li><li>worden</li></ul>` {
		t.Errorf("unexpected output: %q", out)
	}
}

// TestCallTemplate verifies named templates and with-param scoping.
func TestCallTemplate(t *testing.T) {
	s := compileSheet(t, `
		<xsl:template match="POS">
			<xsl:call-template name="abbrev">
				<xsl:with-param name="code" select="."/>
			</xsl:call-template>
		</xsl:template>
		<xsl:template name="abbrev">
			<xsl:param name="code"/>
			<abbr><xsl:value-of select="$code"/></abbr>
		</xsl:template>`)

	out := apply(t, s, `<FORM><POS>n</POS></FORM>`, nil)
	if out != `<abbr>n</abbr>` {
		t.Errorf("unexpected output: %q", out)
	}
}

// TestDisableOutputEscaping verifies raw passthrough of marked-up values.
func TestDisableOutputEscaping(t *testing.T) {
	s := compileSheet(t, `
		<xsl:template match="SNIPPET">
			<xsl:value-of select="." disable-output-escaping="yes"/>
		</xsl:template>`)

	out := apply(t, s, `<SNIPPET>&lt;em&gt;worde&lt;/em&gt;</SNIPPET>`, nil)
	if out != `<em>worde</em>` {
		t.Errorf("unexpected output: %q", out)
	}
}

// TestHTMLVoidElements verifies html-method serialization of empty elements.
func TestHTMLVoidElements(t *testing.T) {
	s := compileSheet(t, `
		<xsl:output method="html"/>
		<xsl:template match="SENSE"><br/><span/></xsl:template>`)

	out := apply(t, s, `<SENSE>x</SENSE>`, nil)
	if out != `<br><span></span>` {
		t.Errorf("unexpected output: %q", out)
	}
}

// TestMatchSpecificity verifies more specific patterns win.
func TestMatchSpecificity(t *testing.T) {
	s := compileSheet(t, `
		<xsl:template match="*"><any><xsl:apply-templates/></any></xsl:template>
		<xsl:template match="HDORTH"><b><xsl:apply-templates/></b></xsl:template>
		<xsl:template match="FORM/HDORTH"><hw><xsl:apply-templates/></hw></xsl:template>`)

	out := apply(t, s, `<FORM><HDORTH>worde</HDORTH></FORM>`, nil)
	if out != `<any><hw>worde</hw></any>` {
		t.Errorf("unexpected output: %q", out)
	}
}

// TestAnchoredMatch verifies absolute patterns only match from the root.
func TestAnchoredMatch(t *testing.T) {
	s := compileSheet(t, `
		<xsl:template match="/ENTRYFREE/FORM"><top/></xsl:template>
		<xsl:template match="FORM"><nested/></xsl:template>`)

	out := apply(t, s, `<ENTRYFREE><FORM/><SENSE><FORM/></SENSE></ENTRYFREE>`, nil)
	if out != `<top></top><nested></nested>` {
		t.Errorf("unexpected output: %q", out)
	}
}

// TestUnsupportedInstruction verifies unknown instructions surface as
// transform errors instead of silently vanishing.
func TestUnsupportedInstruction(t *testing.T) {
	s := compileSheet(t, `
		<xsl:template match="/"><xsl:message>nope</xsl:message></xsl:template>`)

	doc, err := xmlutil.Parse([]byte(`<X/>`))
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Apply(doc, nil)
	if err == nil {
		t.Fatal("Apply should fail for unsupported instructions")
	}
	if !errors.Is(err, errors.ErrTransform) {
		t.Errorf("error should match ErrTransform, got %v", err)
	}
}

// TestUnboundParameter verifies references to missing parameters fail loudly.
func TestUnboundParameter(t *testing.T) {
	s := compileSheet(t, `
		<xsl:template match="/"><xsl:value-of select="$missing"/></xsl:template>`)

	doc, err := xmlutil.Parse([]byte(`<X/>`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Apply(doc, nil); err == nil {
		t.Fatal("Apply should fail for an unbound parameter")
	}
}

// TestConcurrentApply verifies a compiled stylesheet is safe to share.
func TestConcurrentApply(t *testing.T) {
	s := compileSheet(t, `
		<xsl:template match="FORM"><b><xsl:value-of select="HDORTH"/></b></xsl:template>`)

	done := make(chan string, 16)
	for i := 0; i < 16; i++ {
		go func() {
			doc, err := xmlutil.Parse([]byte(`<FORM><HDORTH>worde</HDORTH></FORM>`))
			if err != nil {
				done <- "parse error"
				return
			}
			out, err := s.Apply(doc, nil)
			if err != nil {
				done <- err.Error()
				return
			}
			done <- out
		}()
	}
	for i := 0; i < 16; i++ {
		if got := <-done; got != `<b>worde</b>` {
			t.Errorf("concurrent Apply produced %q", got)
		}
	}
}

// TestAVTEscapes verifies literal braces in attribute value templates.
func TestAVTEscapes(t *testing.T) {
	s := compileSheet(t, `
		<xsl:template match="X"><span data-tpl="{{raw}}"><xsl:apply-templates/></span></xsl:template>`)

	out := apply(t, s, `<X>v</X>`, nil)
	if !strings.Contains(out, `data-tpl="{raw}"`) {
		t.Errorf("unexpected output: %q", out)
	}
}
