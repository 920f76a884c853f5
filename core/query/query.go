// Package query parses user search queries into a structured form that can
// be rendered as an SQLite FTS5 MATCH expression.
//
// The syntax is deliberately small: bare terms, quoted phrases, optional
// field qualifiers (headword:worde, pos:n), and AND/OR connectors with
// implicit AND between adjacent clauses.
package query

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/fernwood/lexweb/core/errors"
)

// Fields a query may qualify on. These mirror the search index columns.
var knownFields = map[string]bool{
	"headword":          true,
	"official_headword": true,
	"pos":               true,
	"def":               true,
}

// Clause is one term or phrase, optionally field-qualified. Op is the
// connector joining it to the previous clause; empty means implicit AND.
type Clause struct {
	Op     string
	Field  string
	Term   string
	Phrase bool
}

// Query is a parsed search query.
type Query struct {
	Clauses []Clause
}

//nolint:govet // participle grammar tags are not standard struct tags
type queryGrammar struct {
	First *clauseGrammar `parser:"@@"`
	Rest  []*restGrammar `parser:"@@*"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type restGrammar struct {
	Op     string         `parser:"@( 'AND' | 'OR' )?"`
	Clause *clauseGrammar `parser:"@@"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type clauseGrammar struct {
	Field  string  `parser:"( @Term ':' )?"`
	Phrase *string `parser:"( @String"`
	Term   *string `parser:"| @Term )"`
}

// queryLexer tokenizes search input. A Term is any run free of whitespace,
// quotes and colons; phrases keep their quotes until normalization.
var queryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Term", Pattern: `[^\s:"]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var queryParser = participle.MustBuild[queryGrammar](
	participle.Lexer(queryLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Parse parses a search query string.
func Parse(s string) (*Query, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.NewQuery(s, fmt.Errorf("empty query"))
	}

	parsed, err := queryParser.ParseString("", s)
	if err != nil {
		return nil, errors.NewQuery(s, err)
	}

	q := &Query{}
	if err := q.appendClause("", parsed.First); err != nil {
		return nil, errors.NewQuery(s, err)
	}
	for _, r := range parsed.Rest {
		if err := q.appendClause(r.Op, r.Clause); err != nil {
			return nil, errors.NewQuery(s, err)
		}
	}
	return q, nil
}

func (q *Query) appendClause(op string, g *clauseGrammar) error {
	c := Clause{Op: op, Field: g.Field}
	if c.Field != "" && !knownFields[c.Field] {
		return fmt.Errorf("unknown field %q", c.Field)
	}
	switch {
	case g.Phrase != nil:
		c.Term = strings.Trim(*g.Phrase, `"`)
		c.Phrase = true
	case g.Term != nil:
		c.Term = *g.Term
	}
	if c.Term == "" {
		return fmt.Errorf("empty term")
	}
	q.Clauses = append(q.Clauses, c)
	return nil
}

// FTS5 renders the query as an SQLite FTS5 MATCH expression. Terms are
// always double-quoted so FTS5 operators inside them stay literal.
func (q *Query) FTS5() string {
	var b strings.Builder
	for i, c := range q.Clauses {
		if i > 0 {
			if c.Op == "OR" {
				b.WriteString(" OR ")
			} else {
				b.WriteString(" AND ")
			}
		}
		if c.Field != "" {
			b.WriteString(c.Field)
			b.WriteByte(':')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(c.Term, `"`, `""`))
		b.WriteByte('"')
	}
	return b.String()
}

// String reconstructs a human-readable form of the query.
func (q *Query) String() string {
	var parts []string
	for i, c := range q.Clauses {
		if i > 0 && c.Op != "" {
			parts = append(parts, c.Op)
		}
		s := c.Term
		if c.Phrase {
			s = `"` + s + `"`
		}
		if c.Field != "" {
			s = c.Field + ":" + s
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}
