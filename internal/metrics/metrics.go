// Package metrics holds the Prometheus collectors for the HTTP surface, the
// entity store, the feeds and the per session debug overlay.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/internal/feed"
)

// Collector bundles every skyview metric against one registry
type Collector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	StoreEntities *prometheus.GaugeVec
	SweptTotal    prometheus.Counter

	FeedUp       *prometheus.GaugeVec
	FeedEntities *prometheus.GaugeVec
	FeedRestarts *prometheus.GaugeVec

	Sessions  prometheus.Gauge
	Frames    prometheus.Counter
	ViewDebug *prometheus.GaugeVec
}

// New registers the collectors against reg, or the default registry when
// reg is nil
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skyview_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"path", "method", "code"}),
		HTTPDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skyview_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		StoreEntities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skyview_store_entities",
			Help: "Entities currently held in the store, by kind.",
		}, []string{"kind"}),
		SweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skyview_store_swept_total",
			Help: "Entities removed by the staleness sweeper.",
		}),
		FeedUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skyview_feed_up",
			Help: "1 when the feed source's last report was healthy.",
		}, []string{"source"}),
		FeedEntities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skyview_feed_delivered_entities",
			Help: "Entity updates delivered by each feed source.",
		}, []string{"source"}),
		FeedRestarts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skyview_feed_restarts",
			Help: "Restarts of each feed source after failure.",
		}, []string{"source"}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skyview_view_sessions",
			Help: "Active map view sessions.",
		}),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skyview_frames_total",
			Help: "Frames rendered across all sessions.",
		}),
		ViewDebug: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skyview_view_debug",
			Help: "Debug overlay metrics of sessions with debug enabled.",
		}, []string{"session", "metric"}),
	}

	for _, col := range []prometheus.Collector{
		c.HTTPRequests, c.HTTPDurations,
		c.StoreEntities, c.SweptTotal,
		c.FeedUp, c.FeedEntities, c.FeedRestarts,
		c.Sessions, c.Frames, c.ViewDebug,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Handler returns the Prometheus metrics HTTP handler for this registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// SetStoreCounts records the store population
func (c *Collector) SetStoreCounts(counts map[entity.Kind]int) {
	for _, k := range entity.Kinds {
		c.StoreEntities.WithLabelValues(k.String()).Set(float64(counts[k]))
	}
}

// ObserveFeed records one feed status; it is a feed.StatusFunc
func (c *Collector) ObserveFeed(st feed.Status) {
	up := 0.0
	if st.OK {
		up = 1
	}
	c.FeedUp.WithLabelValues(st.Source).Set(up)
	c.FeedEntities.WithLabelValues(st.Source).Set(float64(st.Entities))
	c.FeedRestarts.WithLabelValues(st.Source).Set(float64(st.Restarts))
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request. Paths are
// labelled by their chi route pattern so ids do not explode the label set.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// websocket upgrades need the raw writer's Hijacker
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := routePattern(r)
		c.HTTPRequests.WithLabelValues(path, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		c.HTTPDurations.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
