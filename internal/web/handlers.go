package web

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/fernwood/lexweb/core/entry"
	"github.com/fernwood/lexweb/core/errors"
	"github.com/fernwood/lexweb/core/presenter"
	"github.com/fernwood/lexweb/core/query"
	"github.com/fernwood/lexweb/core/search"
	"github.com/fernwood/lexweb/internal/logging"
	"github.com/fernwood/lexweb/internal/store"
)

// hitView is one rendered search result.
type hitView struct {
	ID             string
	Official       string
	OtherSpellings []string
	Pos            string
	Form           template.HTML
	Defs           []template.HTML
	QuoteCount     int
}

// searchView backs the search page template.
type searchView struct {
	Query string
	Error string
	Hits  []hitView
}

// entryView backs the full entry page template.
type entryView struct {
	ID          string
	Official    string
	Pos         string
	Form        template.HTML
	Etym        template.HTML
	Defs        []template.HTML
	Notes       []template.HTML
	Citations   []template.HTML
	Supplements []template.HTML
	QuoteCount  int
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()

	view := searchView{Query: strings.TrimSpace(r.FormValue("q"))}
	if view.Query != "" {
		q, err := query.Parse(view.Query)
		if err != nil {
			view.Error = "unrecognized query"
			logging.WarnContext(ctx, "bad search query", "query", view.Query, "error", err)
			s.render(w, ctx, "search.html", view)
			return
		}
		hits, err := s.store.Search(ctx, q, s.cfg.SearchLimit)
		if err != nil {
			logging.ErrorContext(ctx, "search failed", "query", view.Query, "error", err)
			http.Error(w, "search failed", http.StatusInternalServerError)
			return
		}
		field := primaryField(q)
		for _, hit := range hits {
			hv, err := s.renderHit(ctx, hit, field)
			if err != nil {
				logging.ErrorContext(ctx, "hit render failed", "entry_id", hit.ID, "error", err)
				continue
			}
			view.Hits = append(view.Hits, hv)
		}
	}
	s.render(w, ctx, "search.html", view)
}

// renderHit loads a hit's entry and renders its result-list sections. A
// section that fails to render is logged and dropped; the hit survives.
func (s *Server) renderHit(ctx context.Context, hit store.Hit, field string) (hitView, error) {
	e, rawXML, err := s.store.GetEntry(ctx, hit.ID)
	if err != nil {
		return hitView{}, err
	}
	p, err := presenter.New(e, hit.Record, rawXML, s.styles, s.biblio, field)
	if err != nil {
		return hitView{}, err
	}

	hv := hitView{
		ID:             hit.ID,
		Official:       search.OfficialHeadword(hit.Record),
		OtherSpellings: search.OtherSpellings(hit.Record),
		Pos:            p.PartOfSpeechAbbrev(),
		QuoteCount:     p.QuoteCount(),
	}
	if html, err := p.FormHTML(); err != nil {
		logging.SectionError(ctx, "form", hit.ID, err)
	} else {
		hv.Form = template.HTML(html)
	}
	for _, sense := range p.Senses() {
		html, err := p.DefHTML(sense)
		if err != nil {
			logging.SectionError(ctx, "def", hit.ID, err)
			continue
		}
		hv.Defs = append(hv.Defs, template.HTML(html))
	}
	return hv, nil
}

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimPrefix(r.URL.Path, "/entry/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	e, rawXML, err := s.store.GetEntry(ctx, id)
	if errors.Is(err, errors.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logging.ErrorContext(ctx, "entry load failed", "entry_id", id, "error", err)
		http.Error(w, "entry load failed", http.StatusInternalServerError)
		return
	}

	// The page is a pure function of the stored XML, so its checksum
	// works as a strong validator.
	etag := fmt.Sprintf("\"%x\"", blake3.Sum256(rawXML))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	view, err := s.renderEntry(ctx, e, rawXML)
	if err != nil {
		logging.ErrorContext(ctx, "entry render failed", "entry_id", id, "error", err)
		http.Error(w, "entry render failed", http.StatusInternalServerError)
		return
	}
	s.render(w, ctx, "entry.html", view)
}

// renderEntry renders every section of an entry page. Individual section
// failures degrade to an empty section; only an unparseable entry document
// fails the page.
func (s *Server) renderEntry(ctx context.Context, e *entry.Entry, rawXML []byte) (entryView, error) {
	rec := &search.MapRecord{}
	rec.SetField(search.FieldOfficialHeadword, e.FirstRegularized())

	p, err := presenter.New(e, rec, rawXML, s.styles, s.biblio, search.FieldHeadword)
	if err != nil {
		return entryView{}, err
	}

	view := entryView{
		ID:         e.ID,
		Official:   e.FirstRegularized(),
		Pos:        p.PartOfSpeechAbbrev(),
		QuoteCount: p.QuoteCount(),
	}
	section := func(name string, render func() (string, error)) template.HTML {
		html, err := render()
		if err != nil {
			logging.SectionError(ctx, name, e.ID, err)
			return ""
		}
		return template.HTML(html)
	}

	view.Form = section("form", p.FormHTML)
	view.Etym = section("etym", p.EtymHTML)
	for _, sense := range p.Senses() {
		sense := sense
		if html := section("def", func() (string, error) { return p.DefHTML(sense) }); html != "" {
			view.Defs = append(view.Defs, html)
		}
	}
	for _, n := range e.Notes {
		n := n
		if html := section("note", func() (string, error) { return p.NoteHTML(n) }); html != "" {
			view.Notes = append(view.Notes, html)
		}
	}
	for _, c := range e.Citations {
		c := c
		if html := section("citation", func() (string, error) { return p.CitHTML(c) }); html != "" {
			view.Citations = append(view.Citations, html)
		}
	}
	for _, sup := range e.Supplements {
		sup := sup
		if html := section("supplement", func() (string, error) { return p.SupplementHTML(sup) }); html != "" {
			view.Supplements = append(view.Supplements, html)
		}
	}
	return view, nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Count(r.Context())
	if err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "ok %d entries\n", n)
}

func (s *Server) render(w http.ResponseWriter, ctx context.Context, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		logging.ErrorContext(ctx, "template execution failed", "template", name, "error", err)
	}
}

// primaryField picks the field a search targeted, for highlight selection
// downstream. The first qualified clause wins; bare queries search headwords.
func primaryField(q *query.Query) string {
	for _, c := range q.Clauses {
		if c.Field != "" {
			return c.Field
		}
	}
	return search.FieldHeadword
}
