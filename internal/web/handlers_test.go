package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/fernwood/lexweb/core/entry"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(Config{
		Port:   0,
		DBPath: filepath.Join(t.TempDir(), "lex.db"),
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedEntry(t *testing.T, s *Server, id string) {
	t.Helper()
	e := &entry.Entry{
		ID: id,
		Headwords: []entry.Headword{
			{Orth: "WORDE", Reg: []string{"word"}},
		},
		Pos: "n",
		Senses: []*entry.Sense{
			{DefXML: `<DEF>An utterance of ~.</DEF>`, Quotations: 3},
		},
		Citations: []entry.Citation{
			{XML: `<CIT><BIBL><STNCL>Chaucer CT</STNCL></BIBL></CIT>`, RefID: "chaucer ct"},
		},
	}
	xml := []byte(`<ENTRYFREE><FORM><HDORTH>WORDE</HDORTH><POS>n</POS></FORM><ETYM><LANG>OE</LANG> word</ETYM></ENTRYFREE>`)
	if err := s.store.Put(context.Background(), e, xml); err != nil {
		t.Fatalf("seeding entry failed: %v", err)
	}
}

// TestSearchPage verifies the search form renders and a query returns a
// rendered hit.
func TestSearchPage(t *testing.T) {
	s := newTestServer(t)
	seedEntry(t, s, "e1")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/?q=worde")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := readBody(t, resp)
	if !strings.Contains(body, `href="/entry/e1"`) {
		t.Error("result should link to the entry page")
	}
	if !strings.Contains(body, "word") {
		t.Error("result should show the official headword")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("response should carry a request id")
	}
}

// TestSearchPageBadQuery verifies a malformed query degrades to an error
// message instead of a 500.
func TestSearchPageBadQuery(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + `/?q=unknown:field`)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(readBody(t, resp), "unrecognized query") {
		t.Error("page should show the query error")
	}
}

// TestEntryPage verifies the full entry page renders every section and
// serves a usable ETag.
func TestEntryPage(t *testing.T) {
	s := newTestServer(t)
	seedEntry(t, s, "e1")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/entry/e1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := readBody(t, resp)
	for _, want := range []string{"entry-form", "etym", "An utterance of word.", "Chaucer CT", "3 quotation"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("entry page should carry an ETag")
	}
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/entry/e1", nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotModified {
		t.Errorf("conditional GET status = %d, want 304", resp2.StatusCode)
	}
}

// TestEntryPageNotFound verifies unknown ids 404.
func TestEntryPageNotFound(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/entry/absent")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

// TestHealthz verifies the health endpoint reports the entry count.
func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	seedEntry(t, s, "e1")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, "ok 1 entries") {
		t.Errorf("body = %q", body)
	}
}

// TestLiveSearch verifies the WebSocket endpoint answers queries on one
// connection.
func TestLiveSearch(t *testing.T) {
	s := newTestServer(t)
	seedEntry(t, s, "e1")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/search"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(liveQuery{Query: "worde"}); err != nil {
		t.Fatal(err)
	}
	var res liveResult
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatal(err)
	}
	if res.Error != "" {
		t.Fatalf("unexpected error %q", res.Error)
	}
	if len(res.Hits) != 1 || res.Hits[0].ID != "e1" || res.Hits[0].Headword != "word" {
		t.Errorf("hits = %+v", res.Hits)
	}

	// Bad query on the same connection degrades, not disconnects.
	if err := conn.WriteJSON(liveQuery{Query: "bad:field"}); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatal(err)
	}
	if res.Error == "" {
		t.Error("bad query should report an error")
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}
