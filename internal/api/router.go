package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/yegors/skyview/internal/config"
	"github.com/yegors/skyview/internal/metrics"
	"github.com/yegors/skyview/pkg/logger"
)

const apiTimeout = 30 * time.Second

// Router builds the HTTP routes
type Router struct {
	handler *Handler
	ws      http.HandlerFunc
	metrics *metrics.Collector
	static  http.Handler
	cfg     config.ServerConfig
	logger  *logger.Logger
}

// NewRouter creates the router. ws handles WebSocket upgrades on /ws;
// a nil metrics collector leaves /metrics unregistered.
func NewRouter(handler *Handler, ws http.HandlerFunc, collector *metrics.Collector, cfg config.ServerConfig, log *logger.Logger) *Router {
	rt := &Router{
		handler: handler,
		ws:      ws,
		metrics: collector,
		cfg:     cfg,
		logger:  log.Named("router"),
	}
	if cfg.StaticFilesDir != "" {
		rt.static = NewStaticFileHandler(cfg.StaticFilesDir, log)
	}
	return rt
}

// Routes returns the root handler shared by every listener
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.cors)
		r.Use(middleware.Timeout(apiTimeout))
		r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })

		h := rt.handler
		r.Get("/health", h.GetHealth)
		r.Get("/config", h.GetConfig)
		r.Get("/stats", h.GetStats)
		r.Get("/airlines", h.GetAirlines)

		r.Get("/entities", h.GetEntities)
		r.Get("/entities/{kind}/{id}", h.GetEntity)

		r.Get("/sessions", h.GetSessions)
		r.Get("/sessions/{id}", h.GetSession)
		r.Post("/sessions/{id}/input", h.PostSessionInput)

		if h.deps.Saved != nil {
			r.Get("/saved-sessions", h.GetSavedSessions)
			r.Delete("/saved-sessions/{name}", h.DeleteSavedSession)
		}
	})

	if rt.ws != nil {
		r.Get("/ws", rt.ws)
	}
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}
	if rt.static != nil {
		r.Handle("/*", rt.static)
	}
	return r
}

// cors answers preflight requests and sets the allow headers for origins
// listed in server.cors_allowed_origins
func (rt *Router) cors(next http.Handler) http.Handler {
	allowAll := slices.Contains(rt.cfg.CORSAllowedOrigins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || slices.Contains(rt.cfg.CORSAllowedOrigins, origin)) {
			h := w.Header()
			if allowAll {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}, ", "))
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs every request at debug level
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}
