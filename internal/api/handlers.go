package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/skyview/internal/config"
	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/internal/feed"
	"github.com/yegors/skyview/internal/filter"
	"github.com/yegors/skyview/internal/geo"
	"github.com/yegors/skyview/internal/store"
	"github.com/yegors/skyview/internal/view"
	"github.com/yegors/skyview/pkg/logger"
)

// maxInputBody caps REST input messages at the same size the socket accepts
const maxInputBody = 64 * 1024

// FeedStatuses reports the health of every feed source
type FeedStatuses interface {
	Statuses() []feed.Status
}

// SavedSessions lists and deletes persisted view sessions
type SavedSessions interface {
	ListSessions(ctx context.Context) ([]string, error)
	DeleteSession(ctx context.Context, name string) (bool, error)
}

// ClientCounter reports connected WebSocket clients
type ClientCounter interface {
	ClientCount() int
}

// Deps are the services the handlers read from. Feeds, Saved, Sweeper and
// Clients may be nil.
type Deps struct {
	Store   *store.Store
	Views   *view.Manager
	Feeds   FeedStatuses
	Saved   SavedSessions
	Sweeper *store.Sweeper
	Clients ClientCounter
	Config  *config.Config
}

// Handler contains the API handlers
type Handler struct {
	deps    Deps
	started time.Time
	logger  *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(deps Deps, log *logger.Logger) *Handler {
	return &Handler{
		deps:    deps,
		started: time.Now(),
		logger:  log.Named("api-handler"),
	}
}

// GetHealth returns the health status of the API. Any failing feed
// degrades it; a closed store fails it.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	var failing []string
	for _, st := range h.feedStatuses() {
		if !st.OK {
			failing = append(failing, st.Source)
		}
	}
	if len(failing) > 0 {
		status = "degraded"
	}
	if h.deps.Store.Closed() {
		status, code = "down", http.StatusServiceUnavailable
	}

	WriteJSON(w, code, map[string]any{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"failing_feeds":  failing,
	})
}

// GetConfig returns the public part of the configuration a client needs to
// draw the map
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.deps.Config
	WriteJSON(w, http.StatusOK, map[string]any{
		"station": map[string]any{
			"latitude":       cfg.Station.Latitude,
			"longitude":      cfg.Station.Longitude,
			"elevation_feet": cfg.Station.ElevationFeet,
			"airport_code":   cfg.Station.AirportCode,
		},
		"map": map[string]any{
			"projection":    h.deps.Store.Projection().Name(),
			"zoom_min":      cfg.Map.ZoomMin,
			"zoom_max":      cfg.Map.ZoomMax,
			"initial_zoom":  cfg.Map.InitialZoom,
			"tile_size":     cfg.Map.TileSize,
			"frame_rate_hz": cfg.Map.FrameRateHz,
			"layer_order":   cfg.Map.LayerOrder,
		},
		"render": map[string]any{
			"encoding": cfg.Render.Encoding,
		},
	})
}

// EntitiesResponse is the plain JSON form of an entity query
type EntitiesResponse struct {
	Count    int             `json:"count"`
	Entities []entity.Entity `json:"entities"`
}

// GetEntities returns entities inside an optional bounding box. Query
// parameters: kind, sw_lat, sw_lon, ne_lat, ne_lon and format=geojson.
func (h *Handler) GetEntities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kinds := entity.Kinds
	if name := q.Get("kind"); name != "" {
		kind, err := entity.ParseKind(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		kinds = []entity.Kind{kind}
	}

	rects, err := h.parseBBox(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entities := make([]entity.Entity, 0)
	for _, kind := range kinds {
		for _, rect := range rects {
			entities = append(entities, h.deps.Store.Query(kind, rect, nil)...)
		}
	}

	h.logger.Debug("Entity query",
		logger.Int("kinds", len(kinds)),
		logger.Int("rects", len(rects)),
		logger.Int("count", len(entities)))

	if q.Get("format") == "geojson" {
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(entity.NewFeatureCollection(entities)); err != nil {
			h.logger.Warn("Failed to write GeoJSON", logger.Error(err))
		}
		return
	}
	WriteJSON(w, http.StatusOK, EntitiesResponse{Count: len(entities), Entities: entities})
}

// parseBBox turns the sw/ne corner parameters into world rectangles. No
// parameters means the whole world; a box crossing the antimeridian
// (sw_lon > ne_lon) becomes two rectangles.
func (h *Handler) parseBBox(r *http.Request) ([]geo.Rect, error) {
	proj := h.deps.Store.Projection()
	q := r.URL.Query()
	names := []string{"sw_lat", "sw_lon", "ne_lat", "ne_lon"}

	present := 0
	for _, n := range names {
		if q.Has(n) {
			present++
		}
	}
	if present == 0 {
		return []geo.Rect{proj.WorldBounds()}, nil
	}
	if present != len(names) {
		return nil, errors.New("bounding box needs sw_lat, sw_lon, ne_lat and ne_lon")
	}

	var v [4]float64
	for i, n := range names {
		f, err := strconv.ParseFloat(q.Get(n), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", n, err)
		}
		v[i] = f
	}
	sw, err := geo.NewPoint(v[0], v[1])
	if err != nil {
		return nil, fmt.Errorf("invalid south-west corner: %w", err)
	}
	ne, err := geo.NewPoint(v[2], v[3])
	if err != nil {
		return nil, fmt.Errorf("invalid north-east corner: %w", err)
	}

	if sw.Longitude <= ne.Longitude {
		return []geo.Rect{geo.NewRect(proj.Project(sw), proj.Project(ne))}, nil
	}
	east := geo.GeoPoint{Latitude: ne.Latitude, Longitude: 180}
	west := geo.GeoPoint{Latitude: sw.Latitude, Longitude: -180}
	return []geo.Rect{
		geo.NewRect(proj.Project(sw), proj.Project(east)),
		geo.NewRect(proj.Project(west), proj.Project(ne)),
	}, nil
}

// GetEntity returns one entity by kind and ID
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	kind, err := entity.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing entity ID", http.StatusBadRequest)
		return
	}

	e, found := h.deps.Store.Get(kind, id)
	if !found {
		http.Error(w, "Entity not found", http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, e)
}

// StatsResponse summarises the running system
type StatsResponse struct {
	Entities  map[string]int `json:"entities"`
	Sessions  int            `json:"sessions"`
	Clients   int            `json:"clients"`
	Feeds     []feed.Status  `json:"feeds"`
	LastSweep *SweepStats    `json:"last_sweep,omitempty"`
}

// SweepStats describes the most recent expiry pass
type SweepStats struct {
	At      time.Time `json:"at"`
	Removed int       `json:"removed"`
	Window  string    `json:"window"`
}

// GetStats returns store counts, session counts and feed health
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Entities: make(map[string]int, len(entity.Kinds)),
		Sessions: h.deps.Views.Len(),
		Feeds:    h.feedStatuses(),
	}
	for kind, n := range h.deps.Store.Counts() {
		resp.Entities[kind.String()] = n
	}
	if h.deps.Clients != nil {
		resp.Clients = h.deps.Clients.ClientCount()
	}
	if h.deps.Sweeper != nil {
		at, removed := h.deps.Sweeper.LastSweep()
		if !at.IsZero() {
			resp.LastSweep = &SweepStats{At: at, Removed: removed, Window: h.deps.Sweeper.Window().String()}
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetSessions returns the published state of every live view session
func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.deps.Views.Snapshots())
}

// GetSession returns the published state of one view session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.deps.Views.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, s.Snapshot())
}

// PostSessionInput queues one input message for a live session. The body
// uses the WebSocket message format.
func (h *Handler) PostSessionInput(w http.ResponseWriter, r *http.Request) {
	s, ok := h.deps.Views.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxInputBody+1))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxInputBody {
		http.Error(w, "Message too large", http.StatusRequestEntityTooLarge)
		return
	}

	ev, err := view.DecodeEvent(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.Submit(ev) {
		http.Error(w, "Input queue full", http.StatusTooManyRequests)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// GetSavedSessions lists the names of persisted sessions
func (h *Handler) GetSavedSessions(w http.ResponseWriter, r *http.Request) {
	names, err := h.deps.Saved.ListSessions(r.Context())
	if err != nil {
		h.logger.Error("Failed to list saved sessions", logger.Error(err))
		http.Error(w, "Failed to list saved sessions", http.StatusInternalServerError)
		return
	}
	if names == nil {
		names = []string{}
	}
	WriteJSON(w, http.StatusOK, names)
}

// DeleteSavedSession forgets a persisted session
func (h *Handler) DeleteSavedSession(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	found, err := h.deps.Saved.DeleteSession(r.Context(), name)
	if err != nil {
		h.logger.Error("Failed to delete saved session", logger.String("name", name), logger.Error(err))
		http.Error(w, "Failed to delete saved session", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAirlines returns the airline filter keys in panel order
func (h *Handler) GetAirlines(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, filter.Airlines)
}

func (h *Handler) feedStatuses() []feed.Status {
	if h.deps.Feeds == nil {
		return []feed.Status{}
	}
	return h.deps.Feeds.Statuses()
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
