// Package store persists dictionary entries in SQLite and serves full-text
// search over them. Entry payloads and raw XML are xz-compressed blobs; the
// searchable columns are indexed in an external-content FTS5 table so
// highlight() can mark up matches.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/fernwood/lexweb/core/entry"
	"github.com/fernwood/lexweb/core/errors"
	"github.com/fernwood/lexweb/core/query"
	"github.com/fernwood/lexweb/core/search"
	"github.com/fernwood/lexweb/core/sqlite"
	"github.com/fernwood/lexweb/core/xmlutil"
)

// headwordSep joins multiple headword spellings into one indexed column.
const headwordSep = " | "

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id INTEGER PRIMARY KEY,
	entry_id TEXT NOT NULL UNIQUE,
	headword TEXT NOT NULL,
	official_headword TEXT NOT NULL,
	pos TEXT NOT NULL DEFAULT '',
	def TEXT NOT NULL DEFAULT '',
	xml BLOB NOT NULL,
	payload BLOB NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
	headword, official_headword, pos, def,
	content='entries', content_rowid='id'
);

CREATE TABLE IF NOT EXISTS bibliography (
	ref_id TEXT PRIMARY KEY,
	bib_id TEXT NOT NULL
);
`

// Hit is one search result: the entry id plus a record carrying the raw
// indexed fields and any highlight snippets the engine produced.
type Hit struct {
	ID     string
	Record *search.MapRecord
}

// Store is a SQLite-backed entry database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the entry database at path.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.NewConfig("database", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewConfig("database", path, err)
	}
	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing entry database without write access.
func OpenReadOnly(path string) (*Store, error) {
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewConfig("database", path, err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for callers that need raw access,
// such as bibliography loading.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores an entry and its raw XML, replacing any previous version, and
// reindexes its searchable fields.
func (s *Store) Put(ctx context.Context, e *entry.Entry, rawXML []byte) error {
	if e.ID == "" {
		return fmt.Errorf("entry has no id")
	}
	payload, err := e.Encode()
	if err != nil {
		return err
	}
	compressedPayload, err := compress(payload)
	if err != nil {
		return fmt.Errorf("compressing payload for %s: %w", e.ID, err)
	}
	compressedXML, err := compress(rawXML)
	if err != nil {
		return fmt.Errorf("compressing xml for %s: %w", e.ID, err)
	}

	headword := strings.Join(headwordSpellings(e), headwordSep)
	official := e.FirstRegularized()
	def := defText(e)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Drop any stale FTS row before replacing the content row.
	var oldID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM entries WHERE entry_id = ?`, e.ID).Scan(&oldID)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entries_fts (entries_fts, rowid, headword, official_headword, pos, def)
			 SELECT 'delete', id, headword, official_headword, pos, def
			 FROM entries WHERE id = ?`, oldID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entries WHERE id = ?`, oldID); err != nil {
			return err
		}
	case err != sql.ErrNoRows:
		return err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO entries (entry_id, headword, official_headword, pos, def, xml, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, headword, official, e.Pos, def, compressedXML, compressedPayload)
	if err != nil {
		return err
	}
	rowid, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entries_fts (rowid, headword, official_headword, pos, def)
		 VALUES (?, ?, ?, ?, ?)`,
		rowid, headword, official, e.Pos, def); err != nil {
		return err
	}
	return tx.Commit()
}

// GetEntry loads an entry and its raw XML by entry id.
func (s *Store) GetEntry(ctx context.Context, id string) (*entry.Entry, []byte, error) {
	var compressedXML, compressedPayload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT xml, payload FROM entries WHERE entry_id = ?`, id).
		Scan(&compressedXML, &compressedPayload)
	if err == sql.ErrNoRows {
		return nil, nil, errors.Wrapf(errors.ErrNotFound, "entry %s", id)
	}
	if err != nil {
		return nil, nil, err
	}

	payload, err := decompress(compressedPayload)
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing payload for %s: %w", id, err)
	}
	rawXML, err := decompress(compressedXML)
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing xml for %s: %w", id, err)
	}
	e, err := entry.Decode(payload)
	if err != nil {
		return nil, nil, err
	}
	return e, rawXML, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n)
	return n, err
}

// Search runs a parsed query against the full-text index. Highlight
// snippets are attached to a hit's record only for fields the engine
// actually marked up; raw field values are always present.
func (s *Store) Search(ctx context.Context, q *query.Query, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.entry_id, e.headword, e.official_headword, e.pos, e.def,
		        highlight(entries_fts, 0, '<em>', '</em>'),
		        highlight(entries_fts, 1, '<em>', '</em>'),
		        highlight(entries_fts, 2, '<em>', '</em>'),
		        highlight(entries_fts, 3, '<em>', '</em>')
		 FROM entries_fts
		 JOIN entries e ON e.id = entries_fts.rowid
		 WHERE entries_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`, q.FTS5(), limit)
	if err != nil {
		return nil, errors.NewQuery(q.String(), err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var id, headword, official, pos, def string
		var hlHeadword, hlOfficial, hlPos, hlDef sql.NullString
		if err := rows.Scan(&id, &headword, &official, &pos, &def,
			&hlHeadword, &hlOfficial, &hlPos, &hlDef); err != nil {
			return nil, err
		}

		rec := &search.MapRecord{}
		setField(rec, search.FieldHeadword, headword, true)
		setField(rec, search.FieldOfficialHeadword, official, false)
		setField(rec, search.FieldPos, pos, false)
		setField(rec, search.FieldDef, def, false)
		setHighlight(rec, search.FieldHeadword, hlHeadword, true)
		setHighlight(rec, search.FieldOfficialHeadword, hlOfficial, false)
		setHighlight(rec, search.FieldPos, hlPos, false)
		setHighlight(rec, search.FieldDef, hlDef, false)

		hits = append(hits, Hit{ID: id, Record: rec})
	}
	return hits, rows.Err()
}

// PutBibliography stores one stencil-to-bibliography mapping.
func (s *Store) PutBibliography(ctx context.Context, refID, bibID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bibliography (ref_id, bib_id) VALUES (?, ?)
		 ON CONFLICT (ref_id) DO UPDATE SET bib_id = excluded.bib_id`,
		refID, bibID)
	return err
}

func setField(rec *search.MapRecord, field, value string, multi bool) {
	if value == "" {
		return
	}
	if multi {
		rec.SetField(field, strings.Split(value, headwordSep)...)
		return
	}
	rec.SetField(field, value)
}

// setHighlight attaches a highlight only when the engine inserted markers;
// an unmarked column comes back identical to the raw value.
func setHighlight(rec *search.MapRecord, field string, v sql.NullString, multi bool) {
	if !v.Valid || !strings.Contains(v.String, "<em>") {
		return
	}
	if multi {
		rec.SetHighlight(field, strings.Split(v.String, headwordSep)...)
		return
	}
	rec.SetHighlight(field, v.String)
}

// headwordSpellings collects every spelling of the entry, orthographic and
// regularized, in first-seen order. Dedup is case-insensitive: WORDE and
// worde are one spelling, and the first-seen form is kept.
func headwordSpellings(e *entry.Entry) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}
	for _, h := range e.Headwords {
		add(h.Orth)
		for _, r := range h.Regularized() {
			add(r)
		}
	}
	return out
}

// defText flattens the entry's definition XML to plain text for indexing.
// Fragments that fail to parse are skipped rather than failing the write.
func defText(e *entry.Entry) string {
	var parts []string
	for _, sense := range e.Senses {
		if sense.DefXML == "" {
			continue
		}
		doc, err := xmlutil.ParseFragment(sense.DefXML, "DEFBLOCK")
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(doc.InnerText()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
