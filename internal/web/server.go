// Package web provides the dictionary web UI server: search, entry pages,
// and a live-search WebSocket endpoint.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"os"

	"github.com/fernwood/lexweb/core/biblio"
	"github.com/fernwood/lexweb/core/styles"
	"github.com/fernwood/lexweb/internal/logging"
	"github.com/fernwood/lexweb/internal/store"
)

//go:embed templates/*.html
var templatesFS embed.FS

// defaultSearchLimit caps result lists when the config leaves it unset.
const defaultSearchLimit = 50

// Config holds server configuration.
type Config struct {
	Port        int
	DBPath      string
	StylesDir   string
	SearchLimit int
	TLS         TLSConfig
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

// Server serves the dictionary UI over one entry database.
type Server struct {
	cfg       Config
	store     *store.Store
	styles    *styles.Cache
	biblio    *biblio.Mapper
	templates *template.Template
}

// NewServer opens the entry database, warms the stylesheet cache, loads the
// bibliography, and parses templates. Stylesheet problems are fatal here
// rather than at first request.
func NewServer(cfg Config) (*Server, error) {
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return nil, fmt.Errorf("TLS enabled but cert or key file not specified")
		}
		if _, err := os.Stat(cfg.TLS.CertFile); err != nil {
			return nil, fmt.Errorf("TLS cert file not found: %w", err)
		}
		if _, err := os.Stat(cfg.TLS.KeyFile); err != nil {
			return nil, fmt.Errorf("TLS key file not found: %w", err)
		}
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = defaultSearchLimit
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	sheets := styles.NewCache(cfg.StylesDir)
	if err := sheets.Warm(); err != nil {
		st.Close()
		return nil, err
	}

	mapper := biblio.NewMapper()
	if err := mapper.LoadFromDB(context.Background(), st.DB()); err != nil {
		logging.Warn("bibliography load failed, citations will render unlinked", "error", err)
	}

	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Server{
		cfg:       cfg,
		store:     st,
		styles:    sheets,
		biblio:    mapper,
		templates: tmpl,
	}, nil
}

// Close releases the server's database handle.
func (s *Server) Close() error {
	return s.store.Close()
}

// Handler returns the server's full handler chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSearch)
	mux.HandleFunc("/entry/", s.handleEntry)
	mux.HandleFunc("/ws/search", s.handleLiveSearch)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return requestIDMiddleware(loggingMiddleware(mux))
}

// Start runs the server until the listener fails.
func (s *Server) Start() error {
	protocol := "http"
	if s.cfg.TLS.Enabled {
		protocol = "https"
		logging.Info("TLS enabled", "cert_file", s.cfg.TLS.CertFile)
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.Info("server starting",
		"protocol", protocol,
		"port", s.cfg.Port,
		"db", s.cfg.DBPath,
		"styles_dir", s.cfg.StylesDir)

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	handler := s.Handler()
	if s.cfg.TLS.Enabled {
		return http.ListenAndServeTLS(addr, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile, handler)
	}
	return http.ListenAndServe(addr, handler)
}

// cachedTemplateFuncs is initialized once at package load time.
var cachedTemplateFuncs = template.FuncMap{
	"add": func(a, b int) int {
		return a + b
	},
	"truncate": func(s string, n int) string {
		if len(s) <= n {
			return s
		}
		return s[:n] + "..."
	},
}

// templateFuncs returns the cached template helper functions.
func templateFuncs() template.FuncMap {
	return cachedTemplateFuncs
}
