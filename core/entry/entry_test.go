package entry

import (
	"testing"

	"github.com/fernwood/lexweb/core/errors"
)

const payload = `{
	"id": "MED53445",
	"headwords": [
		{"orth": "wǒrd", "reg": ["worde", "wordes"]},
		{"orth": "wurd"}
	],
	"pos": "n",
	"senses": [
		{"def_xml": "<DEF>an utterance</DEF>", "quotations": 12},
		{"def_xml": "see ~ above", "quotations": 3}
	],
	"notes": [{"xml": "<NOTE>chiefly northern</NOTE>"}],
	"citations": [{"xml": "<CIT><BIBL><STNCL>Ancr.</STNCL></BIBL></CIT>", "ref_id": "wb12"}],
	"supplements": [{"xml": "<SUPPL>later use</SUPPL>"}]
}`

// TestDecode verifies deserialization of a stored payload.
func TestDecode(t *testing.T) {
	e, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(e.Headwords) != 2 {
		t.Errorf("headwords = %d, want 2", len(e.Headwords))
	}
	if e.Pos != "n" {
		t.Errorf("pos = %q, want n", e.Pos)
	}
	if len(e.Senses) != 2 || len(e.Notes) != 1 || len(e.Citations) != 1 || len(e.Supplements) != 1 {
		t.Error("sections not fully decoded")
	}
	if e.Citations[0].RefID != "wb12" {
		t.Errorf("citation ref id = %q, want wb12", e.Citations[0].RefID)
	}
}

// TestDecodeErrors verifies malformed payloads fail as ParseError.
func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"headwords": [`},
		{"no headwords", `{"pos": "n"}`},
		{"empty headwords", `{"headwords": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			if err == nil {
				t.Fatal("Decode should fail")
			}
			if !errors.Is(err, errors.ErrParse) {
				t.Errorf("error should match ErrParse, got %v", err)
			}
		})
	}
}

// TestRegularizedAccessor verifies the explicit accessor.
func TestRegularizedAccessor(t *testing.T) {
	h := Headword{Orth: "wǒrd", Reg: []string{"worde", "wordes"}}
	regs := h.Regularized()
	if len(regs) != 2 || regs[0] != "worde" {
		t.Errorf("Regularized = %v", regs)
	}
}

// TestFirstRegularized verifies fallback behavior.
func TestFirstRegularized(t *testing.T) {
	tests := []struct {
		name string
		e    Entry
		want string
	}{
		{"regularized present", Entry{Headwords: []Headword{{Orth: "wǒrd", Reg: []string{"worde"}}}}, "worde"},
		{"fallback to orth", Entry{Headwords: []Headword{{Orth: "wurd"}}}, "wurd"},
		{"no headwords", Entry{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.FirstRegularized(); got != tt.want {
				t.Errorf("FirstRegularized = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestQuoteCount verifies the sum over senses.
func TestQuoteCount(t *testing.T) {
	e, err := Decode([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if got := e.QuoteCount(); got != 15 {
		t.Errorf("QuoteCount = %d, want 15", got)
	}

	empty := Entry{Headwords: []Headword{{Orth: "x"}}}
	if got := empty.QuoteCount(); got != 0 {
		t.Errorf("QuoteCount = %d, want 0", got)
	}
}

// TestEncodeRoundTrip verifies Encode output decodes to the same entry shape.
func TestEncodeRoundTrip(t *testing.T) {
	e, err := Decode([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	data, err := e.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("re-Decode failed: %v", err)
	}
	if back.ID != e.ID || len(back.Senses) != len(e.Senses) || back.QuoteCount() != e.QuoteCount() {
		t.Error("round trip lost data")
	}
}
