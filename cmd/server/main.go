package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/yegors/skyview/internal/airports"
	"github.com/yegors/skyview/internal/api"
	"github.com/yegors/skyview/internal/compositor"
	"github.com/yegors/skyview/internal/config"
	"github.com/yegors/skyview/internal/feed"
	"github.com/yegors/skyview/internal/geo"
	"github.com/yegors/skyview/internal/metrics"
	"github.com/yegors/skyview/internal/storage/sqlite"
	"github.com/yegors/skyview/internal/store"
	"github.com/yegors/skyview/internal/view"
	"github.com/yegors/skyview/internal/websocket"
	"github.com/yegors/skyview/pkg/logger"
	"golang.org/x/sync/errgroup"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	bundleOut := flag.String("bundle-airports", "", "Convert the station airports CSV into a compressed bundle at this path and exit")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return
	}

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *bundleOut != "" {
		if err := bundleAirports(cfg.Station.AirportsDBPath, *bundleOut); err != nil {
			log.Error("Failed to build airport bundle", logger.Error(err))
			os.Exit(1)
		}
		log.Info("Wrote airport bundle", logger.String("path", *bundleOut))
		return
	}

	log.Info("Starting skyview server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
		logger.Float64("station_lat", cfg.Station.Latitude),
		logger.Float64("station_lon", cfg.Station.Longitude))

	if err := run(cfg, log); err != nil {
		log.Error("Server exited with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Server fully stopped")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proj, err := geo.NewProjection(cfg.Map.Projection)
	if err != nil {
		return err
	}
	entities := store.New(proj, log)
	defer entities.Close()

	var collector *metrics.Collector
	if cfg.Server.MetricsEnabled {
		if collector, err = metrics.New(nil); err != nil {
			return err
		}
	}

	sweeper := store.NewSweeper(entities, cfg.StalenessWindow(), cfg.SweepInterval(), log)
	if collector != nil {
		sweeper.OnSweep(func(removed int) {
			collector.SweptTotal.Add(float64(removed))
			collector.SetStoreCounts(entities.Counts())
		})
	}

	// persistence is optional; keep the interfaces nil without it
	var (
		states view.StateStore
		saved  api.SavedSessions
	)
	if cfg.Storage.Type == "sqlite" {
		if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create database directory: %w", err)
			}
		}
		sessions, err := sqlite.NewSessionStorage(cfg.Storage.SQLitePath, log)
		if err != nil {
			return err
		}
		defer sessions.Close()
		states, saved = sessions, sessions
	} else {
		log.Info("Session persistence disabled")
	}

	wsServer := websocket.NewServer(websocket.Options{
		Encoding:       cfg.Render.Encoding,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
	}, log)

	opts, err := view.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	if collector != nil && cfg.Debug.Prometheus {
		opts.DebugVec = collector.ViewDebug
	}
	views := view.NewManager(entities, opts, states, log)
	if collector != nil {
		views.OnCount(func(n int) { collector.Sessions.Set(float64(n)) })
		views.OnFrame(func(*compositor.Frame) { collector.Frames.Inc() })
	}
	wsServer.SetSessionHandler(view.NewSocketHandler(views, log))

	feeds := feed.NewManagerFromConfig(cfg, entities, log)
	if collector != nil {
		feeds.OnStatus(collector.ObserveFeed)
	}
	feeds.OnStatus(func(st feed.Status) {
		wsServer.Broadcast(&websocket.Message{Type: websocket.MessageTypeFeedStatus, Data: st})
	})
	if feeds.Len() == 0 {
		log.Warn("No feed sources enabled; the map will only show what arrives over the API")
	}

	handler := api.NewHandler(api.Deps{
		Store:   entities,
		Views:   views,
		Feeds:   feeds,
		Saved:   saved,
		Sweeper: sweeper,
		Clients: wsServer,
		Config:  cfg,
	}, log)
	routes := api.NewRouter(handler, wsServer.HandleConnection, collector, cfg.Server, log).Routes()

	wsCtx, wsCancel := context.WithCancel(context.Background())
	wsDone := make(chan struct{})
	go func() {
		defer close(wsDone)
		wsServer.Run(wsCtx)
	}()

	sweeper.Start(ctx)
	if err := feeds.Start(ctx); err != nil {
		wsCancel()
		return err
	}

	allPorts := append([]int{cfg.Server.Port}, cfg.Server.AdditionalPorts...)
	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	servers := make([]*http.Server, 0, len(allPorts))
	for _, port := range allPorts {
		servers = append(servers, &http.Server{
			Addr:         net.JoinHostPort(cfg.Server.Host, fmt.Sprint(port)),
			Handler:      routes,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
			BaseContext:  func(net.Listener) context.Context { return ctx },
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info("Starting HTTP server", logger.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		// sessions save their state before the sockets go away
		views.Stop()
		feeds.Stop()
		sweeper.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}

		wsCancel()
		<-wsDone
		return nil
	})

	err = g.Wait()
	if feedErr := feeds.Wait(); feedErr != nil && !errors.Is(feedErr, context.Canceled) {
		log.Warn("Feed manager stopped with error", logger.Error(feedErr))
	}
	return err
}

// bundleAirports converts an airports CSV into the zstd msgpack bundle the
// airports feed can load faster at startup
func bundleAirports(csvPath, out string) error {
	if csvPath == "" {
		return errors.New("station.airports_db_path is not set")
	}
	all, err := airports.Load(csvPath)
	if err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}
	if err := airports.WriteBundle(f, all); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
