package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"weekgrid/internal/config"
	"weekgrid/internal/layout"
	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
	"weekgrid/internal/refresh"
	"weekgrid/internal/store"
)

// EventSource supplies calendar events to the handlers. *refresh.Refresher
// implements it.
type EventSource interface {
	Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error)
	RefreshNow(ctx context.Context) (*refresh.Snapshot, error)
}

// Options are the dependencies of a Server.
type Options struct {
	Config   *config.Config
	Engine   *layout.Engine
	Store    *store.Store
	Events   EventSource
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server provides the HTTP API and the rendered calendar page.
type Server struct {
	cfg    *config.Config
	engine *layout.Engine
	store  *store.Store
	events EventSource
	loc    *time.Location
	now    func() time.Time
	mux    *http.ServeMux

	// In-memory cache for /api/week responses, keyed by week. Any mutation
	// (toggle, agent event, refresh) clears it.
	weekMu    sync.RWMutex
	weekCache map[string]weekCacheEntry
}

type weekCacheEntry struct {
	resp      weekResponse
	updatedAt time.Time
}

const weekCacheTTL = 30 * time.Second

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Engine == nil {
		opts.Engine = layout.DefaultEngine(opts.Config.PendingCalendarID)
	}
	s := &Server{
		cfg:       opts.Config,
		engine:    opts.Engine,
		store:     opts.Store,
		events:    opts.Events,
		loc:       opts.Location,
		now:       opts.Now,
		mux:       http.NewServeMux(),
		weekCache: make(map[string]weekCacheEntry),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth instead of locking everyone out.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="weekgrid", charset="UTF-8"`)
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

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/week", s.handleWeek)
	s.mux.HandleFunc("GET /api/calendars", s.handleCalendars)
	s.mux.HandleFunc("POST /api/calendars/{id}/toggle", s.handleToggle)
	s.mux.HandleFunc("GET /api/conflicts", s.handleConflicts)
	s.mux.HandleFunc("POST /api/proposals", s.handleProposals)
	s.mux.HandleFunc("GET /api/agent-events", s.handleListAgentEvents)
	s.mux.HandleFunc("POST /api/agent-events", s.handleCreateAgentEvent)
	s.mux.HandleFunc("POST /api/agent-events/{id}/status", s.handleAgentStatus)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	s.mux.HandleFunc("GET /calendar", s.handleCalendarPage)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last captured PNG preview from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.PreviewPath())
}

// toggles merges the configured selection with the toggles persisted at
// runtime; persisted values win.
func (s *Server) toggles(ctx context.Context) (model.Toggles, error) {
	if s.store == nil {
		return model.TogglesFrom(s.cfg.CalendarList()), nil
	}
	return s.store.EffectiveToggles(ctx, s.cfg.CalendarList())
}

// Invalidate drops every cached week so the next request recomputes it from
// fresh events.
func (s *Server) Invalidate() {
	s.weekMu.Lock()
	clear(s.weekCache)
	s.weekMu.Unlock()
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
