package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"calwidget/internal/config"
	"calwidget/internal/engine"
	appLog "calwidget/internal/log"
	"calwidget/internal/timeutil"
)

// Server exposes the widget over HTTP: the JSON view for dashboard hosts
// that consume data, the server-rendered HTML view for hosts that embed a
// frame, and the last captured preview image.
type Server struct {
	cfg         *config.Config
	eng         *engine.Engine
	cal         *timeutil.Calendar
	previewPath string
	router      *mux.Router
}

// NewServer constructs a Server around a running engine. previewPath is
// where the capture step writes preview.png; it may be empty if capture is
// disabled.
func NewServer(cfg *config.Config, eng *engine.Engine, cal *timeutil.Calendar, previewPath string) *Server {
	s := &Server{
		cfg:         cfg,
		eng:         eng,
		cal:         cal,
		previewPath: previewPath,
		router:      mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the full handler, with basic auth wrapped around it when
// configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/widget", s.handleWidget).Methods(http.MethodGet)
	s.router.HandleFunc("/api/refresh", s.handleRefresh).Methods(http.MethodPost)
	s.router.HandleFunc("/widget", s.handleWidgetView).Methods(http.MethodGet)
	s.router.HandleFunc("/preview.png", s.handlePreview).Methods(http.MethodGet)
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password is treated as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="calwidget", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer runs the HTTP server until ListenAndServe returns. Graceful
// shutdown is left to the caller wrapping http.Server if needed.
func StartServer(_ context.Context, cfg *config.Config, eng *engine.Engine, cal *timeutil.Calendar, previewPath string) error {
	s := NewServer(cfg, eng, cal, previewPath)
	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	return http.ListenAndServe(cfg.Listen, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleWidget returns the last computed view: ordered day buckets plus the
// failed-source list. Both are fully computed before handoff; this handler
// never triggers a fetch.
func (s *Server) handleWidget(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.View())
}

// handleRefresh asks the engine to consider a cycle. The throttle still
// applies unless force=1. The response reports whether a cycle ran.
//
// POST /api/refresh?force=1
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "1"
	ran := s.eng.Refresh(r.Context(), force)
	writeJSON(w, http.StatusOK, map[string]bool{"refreshed": ran})
}

// handlePreview serves the last captured PNG snapshot of the widget view.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.previewPath == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, s.previewPath)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}
