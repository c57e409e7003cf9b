package compositor

import (
	"math"
	"sort"
	"time"

	"github.com/yegors/skyview/internal/camera"
	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/internal/filter"
	"github.com/yegors/skyview/internal/geo"
	"github.com/yegors/skyview/internal/physics"
	"github.com/yegors/skyview/internal/store"
	"github.com/yegors/skyview/pkg/logger"
)

// DefaultCullMarginPx pads the visible rect so icons straddling the edge
// are still drawn
const DefaultCullMarginPx = 32.0

// EntityReader is the read side of the entity store
type EntityReader interface {
	Projection() geo.Projection
	Query(kind entity.Kind, rect geo.Rect, pred store.Predicate) []entity.Entity
}

// Options configures a Compositor
type Options struct {
	LayerOrder   []Layer
	CullMarginPx float64
	Graticule    bool

	// Declinations enables magnetic headings on plane hints when set
	Declinations *physics.Declinations
}

// Compositor turns store contents into ordered, screen space draw items.
// It only reads the store, camera and filter. A Compositor belongs to one
// view session and is not safe for concurrent use.
type Compositor struct {
	reader EntityReader
	proj   geo.Projection
	order  []Layer
	rank   map[Layer]int
	opts   Options
	sink   DebugSink
	logger *logger.Logger

	clock      func() time.Time
	lastRender time.Time
	fps        float64
}

// Option configures optional compositor collaborators
type Option func(*Compositor)

// WithDebugSink sets where debug metrics go while debug is enabled
func WithDebugSink(sink DebugSink) Option {
	return func(c *Compositor) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// WithClock overrides the time source used for frame times and fps
func WithClock(clock func() time.Time) Option {
	return func(c *Compositor) {
		c.clock = clock
	}
}

// New creates a compositor reading from reader
func New(reader EntityReader, opts Options, log *logger.Logger, options ...Option) *Compositor {
	if opts.CullMarginPx < 0 {
		opts.CullMarginPx = 0
	}
	order := NormalizeLayerOrder(opts.LayerOrder)
	rank := make(map[Layer]int, len(order))
	for i, l := range order {
		rank[l] = i
	}

	c := &Compositor{
		reader: reader,
		proj:   reader.Projection(),
		order:  order,
		rank:   rank,
		opts:   opts,
		sink:   NopSink{},
		logger: log.Named("compositor"),
		clock:  time.Now,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// LayerOrder returns the effective bottom to top layer order
func (c *Compositor) LayerOrder() []Layer {
	return append([]Layer(nil), c.order...)
}

// Build produces the frame for the current camera and filter without
// rendering it
func (c *Compositor) Build(cam *camera.Camera, f *filter.State) (*Frame, Stats) {
	start := c.clock()
	w, h := cam.ViewportSize()

	frame := &Frame{
		Time:   start,
		Camera: cam.State(),
		Width:  w,
		Height: h,
		Overlay: Overlay{
			Planes:         f.ShowPlanes,
			Weather:        f.ShowWeather,
			Airports:       f.ShowAirports,
			StrongWeather:  f.StrongWeatherOnly,
			Debug:          f.DebugEnabled,
			ActiveAirlines: f.AirlineList(),
		},
	}
	stats := Stats{Zoom: cam.Zoom()}

	visible := cam.VisibleRect()
	culled := visible.Expand(cam.PixelsToWorld(c.opts.CullMarginPx))

	if c.opts.Graticule {
		for _, line := range geo.Graticule(c.proj, visible, w, h) {
			frame.Grid = append(frame.Grid, GridItem{
				Axis:  line.Axis,
				Value: line.Value,
				From:  cam.WorldToScreen(line.From),
				To:    cam.WorldToScreen(line.To),
				Label: line.Label,
			})
		}
		stats.GridLines = len(frame.Grid)
	}

	// query every shown layer first so the stage timings stay separable
	shifts := worldShifts(c.proj.WorldBounds(), culled)
	queried := make(map[Layer][]placed, len(c.order))
	for _, layer := range c.order {
		kind := layer.Kind()
		if !f.ShowsKind(kind) {
			continue
		}
		queried[layer] = c.query(kind, culled, shifts, cam.Center().X, f)
	}
	queryDone := c.clock()
	stats.QueryMs = msSince(start, queryDone)

	for _, layer := range c.order {
		for i := range queried[layer] {
			p := &queried[layer][i]
			frame.Items = append(frame.Items, c.drawItem(cam, layer, &p.entity, p.dx, f))
		}
	}
	projectDone := c.clock()
	stats.ProjectMs = msSince(queryDone, projectDone)

	sort.SliceStable(frame.Items, func(i, j int) bool {
		a, b := &frame.Items[i], &frame.Items[j]
		if ra, rb := c.rank[a.Layer], c.rank[b.Layer]; ra != rb {
			return ra < rb
		}
		return a.EntityID < b.EntityID
	})
	end := c.clock()
	stats.SortMs = msSince(projectDone, end)
	stats.BuildMs = msSince(start, end)

	stats.PlanesVisible = frame.Count(LayerPlanes)
	stats.WeatherVisible = frame.Count(LayerWeather)
	stats.AirportsVisible = frame.Count(LayerAirports)
	stats.FPS = c.fps

	return frame, stats
}

// Render builds a frame and hands it to r. Debug metrics reach the sink and
// the frame only while the filter has debug enabled.
func (c *Compositor) Render(cam *camera.Camera, f *filter.State, r Renderer) (*Frame, error) {
	frame, stats := c.Build(cam, f)
	c.tick(frame.Time)
	stats.FPS = c.fps

	var sink DebugSink = NopSink{}
	if f.DebugEnabled {
		sink = c.sink
		frame.Debug = &stats
	}
	stats.Emit(sink)

	if err := r.Render(frame); err != nil {
		c.logger.Debug("Renderer rejected frame", logger.Int("items", len(frame.Items)), logger.Error(err))
		return frame, err
	}
	return frame, nil
}

// FPS returns the smoothed render rate
func (c *Compositor) FPS() float64 {
	return c.fps
}

func (c *Compositor) tick(now time.Time) {
	if !c.lastRender.IsZero() {
		if dt := now.Sub(c.lastRender).Seconds(); dt > 0 {
			inst := 1 / dt
			if c.fps == 0 {
				c.fps = inst
			} else {
				c.fps = 0.9*c.fps + 0.1*inst
			}
		}
	}
	c.lastRender = now
}

// placed is a query hit and the world copy it is drawn in
type placed struct {
	entity entity.Entity
	dx     float64
}

// maxWorldCopies bounds how many side by side copies of the world one
// frame draws from at the lowest zoom
const maxWorldCopies = 3

// worldShifts returns the x offsets of every world copy that view overlaps.
// The camera may pan past the antimeridian, so a view near the world's edge
// also shows the copy on the other side.
func worldShifts(bounds, view geo.Rect) []float64 {
	w := bounds.Width()
	if w <= 0 {
		return []float64{0}
	}
	first := math.Floor((view.Min.X - bounds.Min.X) / w)
	last := math.Floor((view.Max.X - bounds.Min.X) / w)
	if last-first >= maxWorldCopies {
		last = first + maxWorldCopies - 1
	}
	shifts := make([]float64, 0, int(last-first)+1)
	for k := first; k <= last; k++ {
		shifts = append(shifts, k*w)
	}
	return shifts
}

// query collects kind from each world copy in shifts. An entity seen in
// more than one copy is drawn once, in the copy nearest centerX.
func (c *Compositor) query(kind entity.Kind, culled geo.Rect, shifts []float64, centerX float64, f *filter.State) []placed {
	var out []placed
	seen := make(map[string]int)
	for _, dx := range shifts {
		rect := geo.Rect{
			Min: geo.WorldPoint{X: culled.Min.X - dx, Y: culled.Min.Y},
			Max: geo.WorldPoint{X: culled.Max.X - dx, Y: culled.Max.Y},
		}
		for _, e := range c.reader.Query(kind, rect, f.Matches) {
			hit := placed{entity: e, dx: dx}
			i, ok := seen[e.ID]
			if !ok {
				seen[e.ID] = len(out)
				out = append(out, hit)
				continue
			}
			x := c.proj.Project(e.Position).X
			if math.Abs(x+dx-centerX) < math.Abs(x+out[i].dx-centerX) {
				out[i] = hit
			}
		}
	}
	return out
}

func (c *Compositor) drawItem(cam *camera.Camera, layer Layer, e *entity.Entity, dx float64, f *filter.State) DrawItem {
	item := DrawItem{
		EntityID: e.ID,
		Kind:     e.Kind,
		Layer:    layer,
		Screen:   cam.WorldToScreen(c.proj.Project(e.Position).Add(geo.WorldPoint{X: dx})),
	}

	switch {
	case e.Plane != nil:
		p := e.Plane
		item.Hint = RenderHint{
			Label:         p.Callsign,
			Name:          p.AirlineName,
			Airline:       p.Airline,
			HeadingDeg:    p.TrackDeg,
			AltitudeFt:    p.AltitudeFt,
			GroundSpeedKt: p.GroundSpeedKt,
		}
		// without a declination source the magnetic heading stays unset
		if c.opts.Declinations != nil {
			v := c.opts.Declinations.At(e.Position.Latitude, e.Position.Longitude)
			item.Hint.MagHeadingDeg = physics.MagneticHeading(p.TrackDeg, v)
		}
	case e.Weather != nil:
		item.Hint = RenderHint{
			Intensity: e.Weather.Intensity,
			Strong:    e.Weather.Intensity >= f.StrongThreshold,
			RadiusPx:  c.radiusPx(cam, e.Position, e.Weather.RadiusNM),
		}
	case e.Airport != nil:
		item.Hint = RenderHint{
			Label:      e.Airport.Code,
			Name:       e.Airport.Name,
			AltitudeFt: e.Airport.ElevationFt,
		}
	}
	return item
}

// radiusPx converts a ground distance into pixels at the cell's latitude
func (c *Compositor) radiusPx(cam *camera.Camera, center geo.GeoPoint, radiusNM float64) float64 {
	if radiusNM <= 0 {
		return 0
	}
	lat, lon := physics.DestinationPoint(center.Latitude, center.Longitude, 90, radiusNM)
	edge, err := geo.NewPoint(lat, lon)
	if err != nil {
		return 0
	}
	a := c.proj.Project(center)
	b := c.proj.Project(edge)
	d := b.Sub(a)
	return math.Hypot(d.X, d.Y) * cam.Scale()
}

func msSince(from, to time.Time) float64 {
	return float64(to.Sub(from).Microseconds()) / 1000
}
