// Package server exposes the session workflow over HTTP together with an
// embedded single-page UI.
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/fridge-chef/internal/session"
)

// Server handles HTTP requests for cooking sessions
type Server struct {
	manager   *session.Manager
	options   Options
	basicAuth BasicAuth
	mux       *http.ServeMux
	http      *http.Server
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Options are the limits advertised to the UI
type Options struct {
	MaxImages  int
	MaxRecipes int
	// MaxUploadBytes bounds a whole multipart upload request
	MaxUploadBytes int64
}

const defaultMaxUploadBytes = 50 << 20

// NewServer creates a new Server with default mux
func NewServer(manager *session.Manager, options Options, basicAuth BasicAuth) *Server {
	return NewServerWithMux(manager, options, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(manager *session.Manager, options Options, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	if options.MaxUploadBytes <= 0 {
		options.MaxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{
		manager:   manager,
		options:   options,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers and answers preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Fridge Chef"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /static/app.css", s.requireAuth(s.handleStaticCSS))
	s.mux.HandleFunc("GET /static/app.js", s.requireAuth(s.handleStaticJS))

	s.mux.HandleFunc("GET /api/options", s.requireAuth(s.handleOptions))

	s.mux.HandleFunc("POST /api/sessions", s.requireAuth(s.handleCreateSession))
	s.mux.HandleFunc("GET /api/sessions/{id}", s.requireAuth(s.handleGetSession))
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.requireAuth(s.handleDeleteSession))

	s.mux.HandleFunc("POST /api/sessions/{id}/images", s.requireAuth(s.handleUploadImages))
	s.mux.HandleFunc("DELETE /api/sessions/{id}/images", s.requireAuth(s.handleClearImages))
	s.mux.HandleFunc("POST /api/sessions/{id}/extract", s.requireAuth(s.handleExtract))

	s.mux.HandleFunc("POST /api/sessions/{id}/ingredients", s.requireAuth(s.handleAddIngredient))
	s.mux.HandleFunc("PUT /api/sessions/{id}/ingredients/{index}", s.requireAuth(s.handleEditIngredient))
	s.mux.HandleFunc("DELETE /api/sessions/{id}/ingredients/{index}", s.requireAuth(s.handleRemoveIngredient))

	s.mux.HandleFunc("POST /api/sessions/{id}/confirm", s.requireAuth(s.handleConfirm))
	s.mux.HandleFunc("POST /api/sessions/{id}/recipes", s.requireAuth(s.handleGenerate))
	s.mux.HandleFunc("POST /api/sessions/{id}/recipes/{index}/select", s.requireAuth(s.handleSelect))

	s.mux.HandleFunc("POST /api/sessions/{id}/document", s.requireAuth(s.handleRender))
	s.mux.HandleFunc("GET /api/sessions/{id}/document", s.requireAuth(s.handleDownload))

	// Static HTML interface (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.requireAuth(s.handleIndex))
	s.mux.HandleFunc("GET /{$}", s.requireAuth(s.handleIndex))
}

// Start serves on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.corsMiddleware(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("Starting server", "address", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
