// Package search defines the search-result record consumed by entry
// rendering and the highlight-resolution rules that choose between
// search-engine snippets and raw stored field values.
package search

// Field names the resolver knows about.
const (
	FieldOfficialHeadword = "official_headword"
	FieldHeadword         = "headword"
	FieldPos              = "pos"
	FieldDef              = "def"
)

// Record is the capability set entry rendering needs from a search hit.
// The search layer supplies an implementation; rendering never reaches
// past these four operations.
type Record interface {
	// HasHighlight reports whether the search engine produced highlight
	// snippets for the field.
	HasHighlight(field string) bool

	// Highlight returns the marked-up snippets for the field, in engine
	// order, duplicates preserved.
	Highlight(field string) []string

	// HasField reports whether the raw stored field is present.
	HasField(field string) bool

	// Fetch returns the raw stored values for the field.
	Fetch(field string) []string
}

// MapRecord is a Record backed by plain maps. The zero value is usable.
type MapRecord struct {
	Fields     map[string][]string
	Highlights map[string][]string
}

// HasHighlight implements Record.
func (r *MapRecord) HasHighlight(field string) bool {
	return len(r.Highlights[field]) > 0
}

// Highlight implements Record.
func (r *MapRecord) Highlight(field string) []string {
	return r.Highlights[field]
}

// HasField implements Record.
func (r *MapRecord) HasField(field string) bool {
	return len(r.Fields[field]) > 0
}

// Fetch implements Record.
func (r *MapRecord) Fetch(field string) []string {
	return r.Fields[field]
}

// SetField sets a raw field value, allocating lazily.
func (r *MapRecord) SetField(field string, values ...string) {
	if r.Fields == nil {
		r.Fields = make(map[string][]string)
	}
	r.Fields[field] = values
}

// SetHighlight sets highlight snippets for a field, allocating lazily.
func (r *MapRecord) SetHighlight(field string, snippets ...string) {
	if r.Highlights == nil {
		r.Highlights = make(map[string][]string)
	}
	r.Highlights[field] = snippets
}
