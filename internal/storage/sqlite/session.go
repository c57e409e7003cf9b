package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yegors/skyview/internal/view"
	"github.com/yegors/skyview/pkg/logger"
	_ "modernc.org/sqlite"
)

// SessionStorage is a SQLite-based store for named view session state
type SessionStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSessionStorage opens (or creates) the session database at dbPath
func NewSessionStorage(dbPath string, log *logger.Logger) (*SessionStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &SessionStorage{db: db, logger: storageLogger}, nil
}

// Close closes the database connection
func (s *SessionStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS view_sessions (
			name TEXT PRIMARY KEY,
			zoom REAL NOT NULL,
			center_lat REAL NOT NULL,
			center_lon REAL NOT NULL,
			active_airlines TEXT,   -- JSON array of ICAO codes
			show_planes INTEGER DEFAULT 1,
			show_weather INTEGER DEFAULT 0,
			show_airports INTEGER DEFAULT 0,
			strong_weather INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create view_sessions table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_view_sessions_updated ON view_sessions(updated_at)`)
	if err != nil {
		return fmt.Errorf("failed to create view_sessions index: %w", err)
	}
	return nil
}

// LoadSession returns the saved state for name; ok is false when none exists
func (s *SessionStorage) LoadSession(ctx context.Context, name string) (view.SavedState, bool, error) {
	var (
		st       view.SavedState
		airlines sql.NullString
		updated  sql.NullTime
		planes   int
		weather  int
		airports int
		strong   int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT zoom, center_lat, center_lon, active_airlines,
			show_planes, show_weather, show_airports, strong_weather, updated_at
		FROM view_sessions WHERE name = ?`, name).
		Scan(&st.Zoom, &st.CenterLat, &st.CenterLon, &airlines,
			&planes, &weather, &airports, &strong, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return view.SavedState{}, false, nil
	}
	if err != nil {
		return view.SavedState{}, false, fmt.Errorf("failed to load session %s: %w", name, err)
	}

	if airlines.Valid && airlines.String != "" {
		if err := json.Unmarshal([]byte(airlines.String), &st.ActiveAirlines); err != nil {
			return view.SavedState{}, false, fmt.Errorf("failed to decode airlines for session %s: %w", name, err)
		}
	}
	st.ShowPlanes = planes != 0
	st.ShowWeather = weather != 0
	st.ShowAirports = airports != 0
	st.StrongWeather = strong != 0
	if updated.Valid {
		st.UpdatedAt = updated.Time
	}
	return st, true, nil
}

// SaveSession upserts the state for name
func (s *SessionStorage) SaveSession(ctx context.Context, name string, st view.SavedState) error {
	airlines := "[]"
	if len(st.ActiveAirlines) > 0 {
		b, err := json.Marshal(st.ActiveAirlines)
		if err != nil {
			return fmt.Errorf("failed to encode airlines: %w", err)
		}
		airlines = string(b)
	}
	updated := st.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO view_sessions (
			name, zoom, center_lat, center_lon, active_airlines,
			show_planes, show_weather, show_airports, strong_weather, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			zoom = excluded.zoom,
			center_lat = excluded.center_lat,
			center_lon = excluded.center_lon,
			active_airlines = excluded.active_airlines,
			show_planes = excluded.show_planes,
			show_weather = excluded.show_weather,
			show_airports = excluded.show_airports,
			strong_weather = excluded.strong_weather,
			updated_at = excluded.updated_at`,
		name, st.Zoom, st.CenterLat, st.CenterLon, airlines,
		boolToInt(st.ShowPlanes), boolToInt(st.ShowWeather),
		boolToInt(st.ShowAirports), boolToInt(st.StrongWeather),
		updated.UTC())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", name, err)
	}

	s.logger.Debug("Saved view session", logger.String("name", name))
	return nil
}

// ListSessions returns the names of saved sessions, most recently updated first
func (s *SessionStorage) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM view_sessions ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan session name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteSession removes a saved session; it reports whether one existed
func (s *SessionStorage) DeleteSession(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM view_sessions WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete session %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete session %s: %w", name, err)
	}
	return n > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
