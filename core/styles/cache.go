// Package styles loads and caches the compiled section stylesheets.
//
// Six named transforms cover the entry sections: FormOnly, DefOnly, CitOnly,
// EtymOnly, NoteOnly and SupplementOnly. Each is compiled at most once per
// process; every caller observes the same compiled object. Defaults are
// embedded in the binary and can be overridden from a configured directory,
// either as plain .xsl files or xz-compressed .xsl.xz files.
package styles

import (
	"embed"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/fernwood/lexweb/core/errors"
	"github.com/fernwood/lexweb/core/xslt"
)

//go:embed resources/*.xsl
var embedded embed.FS

// Stylesheet names for the entry sections.
const (
	FormOnly       = "FormOnly"
	DefOnly        = "DefOnly"
	CitOnly        = "CitOnly"
	EtymOnly       = "EtymOnly"
	NoteOnly       = "NoteOnly"
	SupplementOnly = "SupplementOnly"
)

// KnownNames returns the fixed set of section stylesheet names.
func KnownNames() []string {
	return []string{FormOnly, DefOnly, CitOnly, EtymOnly, NoteOnly, SupplementOnly}
}

// Cache compiles named stylesheets on first use and serves the compiled
// object thereafter. Safe for concurrent use; compilation of a given name
// happens at most once even under concurrent first access.
type Cache struct {
	dir string // override directory; empty means embedded only

	mu      sync.Mutex
	entries map[string]*cacheEntry

	loads atomic.Int64
}

// cacheEntry latches one compile attempt. The sync.Once guarantees a fully
// initialized sheet (or error) is published before any caller reads it.
type cacheEntry struct {
	once  sync.Once
	sheet *xslt.Stylesheet
	sum   string
	err   error
}

// NewCache creates a stylesheet cache. dir overrides the embedded resources
// when non-empty; a name missing from dir falls back to the embedded copy.
func NewCache(dir string) *Cache {
	return &Cache{
		dir:     dir,
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns the compiled stylesheet for name, compiling it on first use.
// A missing or uncompilable resource yields a ConfigError; the failure is
// latched and returned to every subsequent caller without retrying.
func (c *Cache) Get(name string) (*xslt.Stylesheet, error) {
	e := c.entry(name)
	e.once.Do(func() { c.load(name, e) })
	return e.sheet, e.err
}

// Checksum returns the BLAKE3 hex digest of the stylesheet source, compiling
// it first if needed. Used for cache-busting headers and startup reporting.
func (c *Cache) Checksum(name string) (string, error) {
	e := c.entry(name)
	e.once.Do(func() { c.load(name, e) })
	return e.sum, e.err
}

// Loads reports how many compile attempts have run. Exposed for tests and
// startup logging; a warmed cache holds at most one load per known name.
func (c *Cache) Loads() int64 {
	return c.loads.Load()
}

// Warm compiles every known stylesheet, returning the first failure.
// Called at server startup so configuration errors abort before traffic.
func (c *Cache) Warm() error {
	for _, name := range KnownNames() {
		if _, err := c.Get(name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) entry(name string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	if !ok {
		e = &cacheEntry{}
		c.entries[name] = e
	}
	return e
}

func (c *Cache) load(name string, e *cacheEntry) {
	c.loads.Add(1)

	src, path, err := c.readSource(name)
	if err != nil {
		e.err = errors.NewConfig(name, path, err)
		return
	}

	sum := blake3.Sum256(src)
	e.sum = hex.EncodeToString(sum[:])

	sheet, err := xslt.Compile(name, src)
	if err != nil {
		e.err = errors.NewConfig(name, path, err)
		return
	}
	e.sheet = sheet
}

// readSource locates the stylesheet source. Directory overrides are tried
// first (plain, then xz-compressed), then the embedded defaults.
func (c *Cache) readSource(name string) ([]byte, string, error) {
	if c.dir != "" {
		plain := filepath.Join(c.dir, name+".xsl")
		if data, err := os.ReadFile(plain); err == nil {
			return data, plain, nil
		} else if !os.IsNotExist(err) {
			return nil, plain, err
		}

		packed := filepath.Join(c.dir, name+".xsl.xz")
		if f, err := os.Open(packed); err == nil {
			defer f.Close()
			r, err := xz.NewReader(f)
			if err != nil {
				return nil, packed, err
			}
			data, err := io.ReadAll(r)
			if err != nil {
				return nil, packed, err
			}
			return data, packed, nil
		} else if !os.IsNotExist(err) {
			return nil, packed, err
		}
	}

	embeddedPath := "resources/" + name + ".xsl"
	data, err := embedded.ReadFile(embeddedPath)
	if err != nil {
		return nil, embeddedPath, errors.ErrNotFound
	}
	return data, embeddedPath, nil
}
