package server

import (
	"net/http"
	"time"

	"github.com/smtindex/smtindex/internal/utils"
	"github.com/smtindex/smtindex/pkg/catalog"
	"github.com/smtindex/smtindex/pkg/storage"
)

// Server serves a loaded catalog read-only. DB is optional and only backs
// the change history.
type Server struct {
	Catalog  *catalog.Catalog
	DB       *storage.DB
	Username string
	Password string

	byID map[string]int
}

func New(c *catalog.Catalog, db *storage.DB, user, pass string) *Server {
	byID := make(map[string]int, len(c.Templates))
	for i, t := range c.Templates {
		if _, ok := byID[t.ID]; !ok {
			byID[t.ID] = i
		}
	}
	return &Server{
		Catalog:  c,
		DB:       db,
		Username: user,
		Password: pass,
		byID:     byID,
	}
}

// Handler returns the routed handler, basic auth included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /templates", s.basicAuth(s.handleTemplates))
	mux.HandleFunc("GET /templates/{id}", s.basicAuth(s.handleTemplate))
	mux.HandleFunc("GET /index", s.basicAuth(s.handleIndex))
	mux.HandleFunc("GET /stats", s.basicAuth(s.handleStats))
	mux.HandleFunc("GET /changes", s.basicAuth(s.handleChanges))
	mux.HandleFunc("GET /{$}", s.basicAuth(s.handleHome))

	return mux
}

func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	utils.Log.Infof("Serving %d templates on %s", len(s.Catalog.Templates), addr)
	return srv.ListenAndServe()
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
