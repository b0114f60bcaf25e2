// Package http serves the nota pages and the JSON API on top of a
// services.NotaService.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync/atomic"
	"time"

	"nota/internal/cache"
	"nota/internal/core"
	applog "nota/internal/log"
	"nota/internal/middleware/ratelimit"
	"nota/internal/middleware/security"
	"nota/internal/middleware/trace"
	"nota/internal/services"
	appweb "nota/web"
)

const (
	totalsCacheSize = 256
	totalsCacheTTL  = 10 * time.Minute
	cleanupInterval = 5 * time.Minute
	staticMaxAge    = 3600
)

// Server is the nota web frontend.
type Server struct {
	http.Server

	svc       *services.NotaService
	templates *template.Template
	logger    *applog.Logger
	sl        *applog.StructuredLogger

	totalsCache  *cache.LRUCache[core.Totals]
	cacheManager *cache.Manager
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	clientIP     *security.ClientIP

	started time.Time
	ready   atomic.Bool
}

// Options tunes a Server. Zero values pick the defaults.
type Options struct {
	Logger            *applog.Logger
	RequestsPerMinute int
}

// NewServer builds the handler tree. The service must already be open.
func NewServer(addr string, svc *services.NotaService, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		svc:          svc,
		templates:    tmpl,
		logger:       logger,
		sl:           applog.NewStructuredLogger(logger),
		totalsCache:  cache.NewLRUCache[core.Totals](totalsCacheSize, totalsCacheTTL),
		cacheManager: cache.NewManager(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RequestsPerMinute,
		}),
		tracer:   trace.NewMiddleware(logger),
		clientIP: security.NewClientIP(),
		started:  time.Now(),
	}
	s.cacheManager.Register(s.totalsCache)
	s.cacheManager.StartCleanup(cleanupInterval)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.clientIP.Extract, ratelimit.Mutating, s.handleRateLimited)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.Middleware(logger, trace.GetRequestIDFromRequest)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.ready.Store(true)
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	staticFS, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(
		http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /kelola", s.handleManage)
	mux.HandleFunc("GET /nota/{id}/edit", s.handleEditForm)
	mux.HandleFunc("POST /nota", s.handleCreate)
	mux.HandleFunc("POST /nota/{id}", s.handleUpdate)
	mux.HandleFunc("POST /nota/{id}/delete", s.handleDelete)

	mux.HandleFunc("GET /api/nota", s.apiList)
	mux.HandleFunc("GET /api/totals", s.apiTotals)
	mux.HandleFunc("POST /api/nota", s.apiCreate)
	mux.HandleFunc("PUT /api/nota/{id}", s.apiUpdate)
	mux.HandleFunc("DELETE /api/nota/{id}", s.apiDelete)
	mux.HandleFunc("PUT /api/nota/at/{index}", s.apiUpdateAt)
	mux.HandleFunc("DELETE /api/nota/at/{index}", s.apiDeleteAt)
}

// Shutdown stops accepting requests and releases the background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	s.limiter.Stop()
	s.cacheManager.Stop()
	return s.Server.Shutdown(ctx)
}

// totals serves getTotals through the cache. Entries are keyed by the
// collection version so a mutation never serves stale sums.
func (s *Server) totals(date *core.Date) (core.Totals, error) {
	key := fmt.Sprintf("%d|", s.svc.Version())
	if date != nil {
		key += date.String()
	}
	if t, ok := s.totalsCache.Get(key); ok {
		return t, nil
	}
	t, err := s.svc.Totals(date)
	if err != nil {
		return core.Totals{}, err
	}
	s.totalsCache.Set(key, t)
	return t, nil
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.clientIP.Extract(r),
		applog.FieldPath, r.URL.Path)
	if isAPI(r) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
		return
	}
	ErrorResponse(http.StatusTooManyRequests, "Terlalu banyak permintaan, coba lagi sebentar lagi.").Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	code := http.StatusOK
	checks := map[string]any{}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if _, err := s.svc.Records(); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = map[string]any{"records": s.svc.Len(), "version": s.svc.Version()}
	}

	if !s.ready.Load() {
		status, code = "shutting_down", http.StatusServiceUnavailable
	}

	stats := s.totalsCache.Stats()
	metrics := s.tracer.GetMetrics()
	checks["cache"] = map[string]any{"entries": stats.Size, "hits": stats.Hits, "misses": stats.Misses}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients(), "rejected": s.limiter.Rejected()}
	checks["requests"] = map[string]any{"total": metrics.TotalRequests, "server_errors": metrics.ServerErrors}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
