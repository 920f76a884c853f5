// Package biblio maps citation reference ids to bibliography ids.
//
// The mapping is process-wide, loaded once from the reference table and
// read-mostly afterward. Lookups are case-insensitive: reference ids are
// normalized to uppercase on both load and lookup.
package biblio

import (
	"context"
	"database/sql"
	"strings"
	"sync"
)

// Mapper resolves citation reference ids to bibliography ids.
// Safe for concurrent use.
type Mapper struct {
	mu     sync.RWMutex
	ids    map[string]string
	loaded bool
}

// NewMapper creates an empty mapper. Lookup on an unloaded mapper misses.
func NewMapper() *Mapper {
	return &Mapper{ids: make(map[string]string)}
}

// Load replaces the mapping with the given reference table. Keys are
// normalized to uppercase.
func (m *Mapper) Load(pairs map[string]string) {
	ids := make(map[string]string, len(pairs))
	for ref, bib := range pairs {
		ids[strings.ToUpper(ref)] = bib
	}
	m.mu.Lock()
	m.ids = ids
	m.loaded = true
	m.mu.Unlock()
}

// LoadFromDB loads the reference table from the bibliography table.
func (m *Mapper) LoadFromDB(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT ref_id, bib_id FROM bibliography`)
	if err != nil {
		return err
	}
	defer rows.Close()

	pairs := make(map[string]string)
	for rows.Next() {
		var ref, bib string
		if err := rows.Scan(&ref, &bib); err != nil {
			return err
		}
		pairs[ref] = bib
	}
	if err := rows.Err(); err != nil {
		return err
	}
	m.Load(pairs)
	return nil
}

// Lookup resolves a reference id, case-insensitively. The second return is
// false when the table has no mapping; callers render the citation without
// a bibliography link in that case rather than failing.
func (m *Mapper) Lookup(ref string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bib, ok := m.ids[strings.ToUpper(ref)]
	return bib, ok
}

// Loaded reports whether a reference table has been loaded.
func (m *Mapper) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Len returns the number of mappings.
func (m *Mapper) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}
