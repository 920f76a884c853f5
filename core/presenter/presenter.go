// Package presenter renders one dictionary entry's sections to HTML.
//
// A Presenter is created per search hit and discarded after the render.
// It owns an isolated copy of the entry's XML document, so concurrent
// renders sharing the same stored entry never observe each other's work.
package presenter

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/fernwood/lexweb/core/biblio"
	"github.com/fernwood/lexweb/core/entry"
	"github.com/fernwood/lexweb/core/errors"
	"github.com/fernwood/lexweb/core/search"
	"github.com/fernwood/lexweb/core/styles"
	"github.com/fernwood/lexweb/core/xmlutil"
)

// Paths into the entry document.
const (
	formPath = "/ENTRYFREE/FORM"
	etymPath = "/ENTRYFREE/ETYM"
)

// defContainer wraps bare definition fragments so they parse as standalone
// documents.
const defContainer = "DEFBLOCK"

// placeholder stands in for the entry's regularized headword inside
// definition fragments.
const placeholder = "~"

// Presenter renders the sections of one entry for one search hit.
type Presenter struct {
	entry  *entry.Entry
	rec    search.Record
	doc    *xmlquery.Node
	styles *styles.Cache
	biblio *biblio.Mapper

	searchField string
	substituted bool
}

// New builds a presenter from the entry, its underlying search record, and
// the entry's full XML representation. The XML is parsed once and isolated
// so later transforms cannot touch the caller's data. searchField names the
// field the user searched on.
func New(e *entry.Entry, rec search.Record, entryXML []byte, st *styles.Cache, bib *biblio.Mapper, searchField string) (*Presenter, error) {
	doc, err := xmlutil.Parse(entryXML)
	if err != nil {
		return nil, err
	}
	return &Presenter{
		entry:       e,
		rec:         rec,
		doc:         xmlutil.Isolate(doc),
		styles:      st,
		biblio:      bib,
		searchField: searchField,
	}, nil
}

// Entry returns the underlying entry.
func (p *Presenter) Entry() *entry.Entry {
	return p.entry
}

// Record returns the underlying search-result record.
func (p *Presenter) Record() search.Record {
	return p.rec
}

// SearchField returns the field the user searched on.
func (p *Presenter) SearchField() string {
	return p.searchField
}

// FormHTML renders the entry's FORM section, or "" when absent.
func (p *Presenter) FormHTML() (string, error) {
	return p.sectionHTML(formPath, styles.FormOnly)
}

// EtymHTML renders the entry's ETYM section, or "" when absent.
func (p *Presenter) EtymHTML() (string, error) {
	return p.sectionHTML(etymPath, styles.EtymOnly)
}

// sectionHTML locates a section in the entry document, isolates it, and
// transforms it. Absence is a value: no node means an empty result, not
// an error.
func (p *Presenter) sectionHTML(path, style string) (string, error) {
	node, err := xmlutil.FirstMatch(p.doc, path)
	if err != nil {
		return "", err
	}
	if node == nil {
		return "", nil
	}
	sheet, err := p.styles.Get(style)
	if err != nil {
		return "", err
	}
	return sheet.Apply(xmlutil.Isolate(node), nil)
}

// DefHTML renders one sense's definition. The fragment is wrapped in a
// container element first: definitions are often bare inline runs that
// would not parse as a standalone document.
func (p *Presenter) DefHTML(s *entry.Sense) (string, error) {
	doc, err := xmlutil.ParseFragment(s.DefXML, defContainer)
	if err != nil {
		return "", err
	}
	sheet, err := p.styles.Get(styles.DefOnly)
	if err != nil {
		return "", err
	}
	return sheet.Apply(doc, nil)
}

// NoteHTML renders one note.
func (p *Presenter) NoteHTML(n entry.Note) (string, error) {
	return p.fragmentHTML(n.XML, "note", styles.NoteOnly, nil)
}

// SupplementHTML renders one supplement.
func (p *Presenter) SupplementHTML(s entry.Supplement) (string, error) {
	return p.fragmentHTML(s.XML, "supplement", styles.SupplementOnly, nil)
}

// CitHTML renders one citation. The citation's stencil reference id is
// resolved through the bibliography mapper and passed to the transform as
// the bibid parameter. A lookup miss binds an empty bibid: the citation
// renders unlinked rather than failing.
func (p *Presenter) CitHTML(c entry.Citation) (string, error) {
	bibid, _ := p.biblio.Lookup(c.RefID)
	return p.fragmentHTML(c.XML, "citation", styles.CitOnly, map[string]string{"bibid": bibid})
}

// CiteHTML is an alias for CitHTML.
func (p *Presenter) CiteHTML(c entry.Citation) (string, error) {
	return p.CitHTML(c)
}

// CitationHTML is an alias for CitHTML.
func (p *Presenter) CitationHTML(c entry.Citation) (string, error) {
	return p.CitHTML(c)
}

func (p *Presenter) fragmentHTML(xml, section, style string, params map[string]string) (string, error) {
	doc, err := xmlutil.Parse([]byte(xml))
	if err != nil {
		return "", errors.NewParse("XML", section, err)
	}
	sheet, err := p.styles.Get(style)
	if err != nil {
		return "", err
	}
	return sheet.Apply(doc, params)
}

// Senses returns the entry's senses with the regularized-headword
// placeholder substituted into each definition fragment. Substitution
// mutates the fragments in place, exactly once per render; repeat calls
// are no-ops since no placeholder survives the first pass.
func (p *Presenter) Senses() []*entry.Sense {
	if !p.substituted {
		reg := p.entry.FirstRegularized()
		for _, s := range p.entry.Senses {
			s.DefXML = strings.ReplaceAll(s.DefXML, placeholder, reg)
		}
		p.substituted = true
	}
	return p.entry.Senses
}

// QuoteCount returns the entry's total quotation count.
func (p *Presenter) QuoteCount() int {
	return p.entry.QuoteCount()
}

// PartOfSpeechAbbrev returns the entry's stored part-of-speech code,
// unmodified.
func (p *Presenter) PartOfSpeechAbbrev() string {
	return p.entry.Pos
}
