// Package entry models a dictionary entry as deserialized from its stored
// JSON payload: headwords with regularized spellings, senses, notes,
// citations and supplements, each carrying an XML fragment.
package entry

import (
	"encoding/json"
	"fmt"

	"github.com/fernwood/lexweb/core/errors"
)

// Headword is one headword form with its regularized spellings.
type Headword struct {
	Orth string   `json:"orth"`
	Reg  []string `json:"reg,omitempty"`
}

// Regularized returns the headword's regularized-spelling sequence.
// Callers go through this accessor rather than the field so the
// representation can change without touching every consumer.
func (h Headword) Regularized() []string {
	return h.Reg
}

// Sense is one sense of an entry. DefXML is an XML snippet and may contain
// the placeholder character '~' standing in for the entry's regularized
// headword.
type Sense struct {
	DefXML     string `json:"def_xml"`
	Quotations int    `json:"quotations,omitempty"`
}

// Note wraps a raw XML fragment.
type Note struct {
	XML string `json:"xml"`
}

// Citation wraps a raw XML fragment plus the bibliographic reference id of
// its stencil.
type Citation struct {
	XML   string `json:"xml"`
	RefID string `json:"ref_id,omitempty"`
}

// Supplement wraps a raw XML fragment.
type Supplement struct {
	XML string `json:"xml"`
}

// Entry is a dictionary headword's full structured record.
type Entry struct {
	ID          string       `json:"id,omitempty"`
	Headwords   []Headword   `json:"headwords"`
	Pos         string       `json:"pos,omitempty"`
	Senses      []*Sense     `json:"senses,omitempty"`
	Notes       []Note       `json:"notes,omitempty"`
	Citations   []Citation   `json:"citations,omitempty"`
	Supplements []Supplement `json:"supplements,omitempty"`
}

// Decode deserializes a stored entry payload.
func Decode(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.NewParse("JSON", "entry", err)
	}
	if len(e.Headwords) == 0 {
		return nil, errors.NewParse("JSON", "entry", fmt.Errorf("entry has no headwords"))
	}
	return &e, nil
}

// Encode serializes the entry for storage.
func (e *Entry) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding entry %s: %w", e.ID, err)
	}
	return data, nil
}

// FirstRegularized returns the entry's first regularized headword spelling,
// falling back to the first headword's orthography when no regularized
// spelling is recorded.
func (e *Entry) FirstRegularized() string {
	if len(e.Headwords) == 0 {
		return ""
	}
	if regs := e.Headwords[0].Regularized(); len(regs) > 0 {
		return regs[0]
	}
	return e.Headwords[0].Orth
}

// QuoteCount sums the quotations across all senses.
func (e *Entry) QuoteCount() int {
	total := 0
	for _, s := range e.Senses {
		total += s.Quotations
	}
	return total
}
