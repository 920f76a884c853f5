// Command lexweb is the dictionary toolkit CLI. It serves the web UI,
// ingests entry data, renders single entries, and checks stylesheets.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/fernwood/lexweb/core/biblio"
	"github.com/fernwood/lexweb/core/entry"
	"github.com/fernwood/lexweb/core/presenter"
	"github.com/fernwood/lexweb/core/search"
	"github.com/fernwood/lexweb/core/sqlite"
	"github.com/fernwood/lexweb/core/styles"
	"github.com/fernwood/lexweb/internal/logging"
	"github.com/fernwood/lexweb/internal/store"
	"github.com/fernwood/lexweb/internal/web"
)

const version = "0.1.0"

// CLI defines the command-line interface for lexweb.
var CLI struct {
	LogLevel  string `help:"Log level (debug, info, warn, error)" enum:"debug,info,warn,error" default:"info"`
	LogFormat string `help:"Log format (json, text)" enum:"json,text" default:"text"`

	Serve   ServeCmd   `cmd:"" help:"Start the dictionary web server"`
	Render  RenderCmd  `cmd:"" help:"Render one entry's sections to HTML on stdout"`
	Ingest  IngestCmd  `cmd:"" help:"Ingest entries from a JSON-lines file"`
	Styles  StylesCmd  `cmd:"" help:"Stylesheet operations"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// ServeCmd starts the web server.
type ServeCmd struct {
	Port        int    `help:"Listen port" default:"8080"`
	DB          string `required:"" help:"Path to entry database" type:"path"`
	StylesDir   string `help:"Directory of stylesheet overrides" type:"path"`
	SearchLimit int    `help:"Maximum results per search" default:"50"`
	TLSCert     string `help:"Path to TLS certificate file" type:"path"`
	TLSKey      string `help:"Path to TLS private key file" type:"path"`
}

func (c *ServeCmd) Run() error {
	srv, err := web.NewServer(web.Config{
		Port:        c.Port,
		DBPath:      c.DB,
		StylesDir:   c.StylesDir,
		SearchLimit: c.SearchLimit,
		TLS: web.TLSConfig{
			Enabled:  c.TLSCert != "" || c.TLSKey != "",
			CertFile: c.TLSCert,
			KeyFile:  c.TLSKey,
		},
	})
	if err != nil {
		return err
	}
	defer srv.Close()
	return srv.Start()
}

// RenderCmd renders one entry to HTML on stdout.
type RenderCmd struct {
	ID        string `arg:"" help:"Entry id to render"`
	DB        string `required:"" help:"Path to entry database" type:"path"`
	StylesDir string `help:"Directory of stylesheet overrides" type:"path"`
	Section   string `help:"Section to render" enum:"all,form,etym,def,citation,note,supplement" default:"all"`
}

func (c *RenderCmd) Run() error {
	ctx := context.Background()

	st, err := store.OpenReadOnly(c.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	sheets := styles.NewCache(c.StylesDir)
	mapper := biblio.NewMapper()
	if err := mapper.LoadFromDB(ctx, st.DB()); err != nil {
		logging.Warn("bibliography load failed, citations will render unlinked", "error", err)
	}

	e, rawXML, err := st.GetEntry(ctx, c.ID)
	if err != nil {
		return err
	}
	rec := &search.MapRecord{}
	rec.SetField(search.FieldOfficialHeadword, e.FirstRegularized())
	p, err := presenter.New(e, rec, rawXML, sheets, mapper, search.FieldHeadword)
	if err != nil {
		return err
	}

	want := func(section string) bool {
		return c.Section == "all" || c.Section == section
	}
	emit := func(section string, render func() (string, error)) error {
		if !want(section) {
			return nil
		}
		html, err := render()
		if err != nil {
			return fmt.Errorf("rendering %s of %s: %w", section, c.ID, err)
		}
		if html != "" {
			fmt.Println(html)
		}
		return nil
	}

	if err := emit("form", p.FormHTML); err != nil {
		return err
	}
	if err := emit("etym", p.EtymHTML); err != nil {
		return err
	}
	for _, sense := range p.Senses() {
		sense := sense
		if err := emit("def", func() (string, error) { return p.DefHTML(sense) }); err != nil {
			return err
		}
	}
	for _, cit := range e.Citations {
		cit := cit
		if err := emit("citation", func() (string, error) { return p.CitHTML(cit) }); err != nil {
			return err
		}
	}
	for _, n := range e.Notes {
		n := n
		if err := emit("note", func() (string, error) { return p.NoteHTML(n) }); err != nil {
			return err
		}
	}
	for _, sup := range e.Supplements {
		sup := sup
		if err := emit("supplement", func() (string, error) { return p.SupplementHTML(sup) }); err != nil {
			return err
		}
	}
	return nil
}

// IngestCmd loads entries (and optionally bibliography mappings) into the
// database.
type IngestCmd struct {
	Path   string `arg:"" help:"JSON-lines file of entries" type:"existingfile"`
	DB     string `required:"" help:"Path to entry database" type:"path"`
	Biblio string `help:"Tab-separated ref-id/bib-id file" type:"existingfile"`
}

// ingestRecord is one line of ingest input: the entry payload plus its full
// XML representation.
type ingestRecord struct {
	entry.Entry
	XML string `json:"entry_xml"`
}

func (c *IngestCmd) Run() error {
	ctx := context.Background()

	st, err := store.Open(c.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 16<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec ingestRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("line %d: %w", count+1, err)
		}
		if err := st.Put(ctx, &rec.Entry, []byte(rec.XML)); err != nil {
			return fmt.Errorf("entry %s: %w", rec.ID, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Printf("Ingested %d entries into %s\n", count, c.DB)

	if c.Biblio != "" {
		n, err := ingestBiblio(ctx, st, c.Biblio)
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %d bibliography mappings\n", n)
	}
	return nil
}

func ingestBiblio(ctx context.Context, st *store.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return count, fmt.Errorf("malformed bibliography line: %q", line)
		}
		if err := st.PutBibliography(ctx, parts[0], parts[1]); err != nil {
			return count, err
		}
		count++
	}
	return count, scanner.Err()
}

// StylesCmd groups stylesheet operations.
type StylesCmd struct {
	Check StylesCheckCmd `cmd:"" help:"Compile every stylesheet and print checksums"`
}

// StylesCheckCmd compiles all stylesheets up front.
type StylesCheckCmd struct {
	StylesDir string `help:"Directory of stylesheet overrides" type:"path"`
}

func (c *StylesCheckCmd) Run() error {
	cache := styles.NewCache(c.StylesDir)
	failed := 0
	for _, name := range styles.KnownNames() {
		sum, err := cache.Checksum(name)
		if err != nil {
			fmt.Printf("  [FAIL] %s: %v\n", name, err)
			failed++
			continue
		}
		fmt.Printf("  [OK] %s %s\n", name, sum)
	}
	if failed > 0 {
		return fmt.Errorf("%d stylesheet(s) failed to compile", failed)
	}
	fmt.Println("All stylesheets compiled.")
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("lexweb %s\n", version)
	fmt.Printf("  sqlite driver: %s (%s)\n", sqlite.DriverName(), sqlite.DriverType())
	return nil
}

func initLogging() {
	var level logging.Level
	switch CLI.LogLevel {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	default:
		level = logging.LevelInfo
	}
	format := logging.FormatText
	if CLI.LogFormat == "json" {
		format = logging.FormatJSON
	}
	logging.InitLogger(level, format)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("lexweb"),
		kong.Description("Dictionary entry rendering and search toolkit"),
		kong.UsageOnError(),
	)
	initLogging()
	if err := ctx.Run(); err != nil {
		logging.Error("command failed", "error", err)
		os.Exit(1)
	}
}
