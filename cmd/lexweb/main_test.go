package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const ingestLine = `{"id":"e1","headwords":[{"orth":"WORDE","reg":["word"]}],"pos":"n","senses":[{"def_xml":"<DEF>An utterance.</DEF>","quotations":1}],"entry_xml":"<ENTRYFREE><FORM><HDORTH>WORDE</HDORTH></FORM></ENTRYFREE>"}`

// TestIngestAndRender verifies a full ingest-then-render round trip
// through the command layer.
func TestIngestAndRender(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "lex.db")
	input := writeFile(t, dir, "entries.jsonl", ingestLine+"\n\n")
	biblio := writeFile(t, dir, "biblio.tsv", "# comment\nChaucer CT\tCHAUCER-CT\n")

	ingest := &IngestCmd{Path: input, DB: db, Biblio: biblio}
	if err := ingest.Run(); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	render := &RenderCmd{ID: "e1", DB: db, Section: "all"}
	if err := render.Run(); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	missing := &RenderCmd{ID: "absent", DB: db, Section: "all"}
	if err := missing.Run(); err == nil {
		t.Error("rendering an unknown entry should fail")
	}
}

// TestIngestRejectsMalformed verifies a bad line aborts with its line number.
func TestIngestRejectsMalformed(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "bad.jsonl", "{not json}\n")

	ingest := &IngestCmd{Path: input, DB: filepath.Join(dir, "lex.db")}
	err := ingest.Run()
	if err == nil {
		t.Fatal("malformed input should fail")
	}
	if !strings.Contains(err.Error(), "line 1") {
		t.Errorf("error should name the line: %v", err)
	}
}

// TestStylesCheck verifies the embedded stylesheets all compile.
func TestStylesCheck(t *testing.T) {
	cmd := &StylesCheckCmd{}
	if err := cmd.Run(); err != nil {
		t.Fatalf("styles check failed: %v", err)
	}
}

// TestVersion verifies the version command runs.
func TestVersion(t *testing.T) {
	cmd := &VersionCmd{}
	if err := cmd.Run(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
}
