package store

import (
	"context"
	"sync"
	"time"

	"github.com/yegors/skyview/pkg/logger"
)

// Sweeper periodically expires stale entities from a Store. All sweeps run
// on one goroutine so they never overlap.
type Sweeper struct {
	store    *Store
	window   time.Duration
	interval time.Duration
	clock    func() time.Time
	logger   *logger.Logger

	resetMu  sync.Mutex
	resetCh  chan time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu        sync.Mutex
	lastSweep time.Time
	lastCount int
	onSweep   func(removed int)
}

// NewSweeper creates a sweeper dropping entities older than window every interval
func NewSweeper(s *Store, window, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		store:    s,
		window:   window,
		interval: interval,
		clock:    time.Now,
		logger:   log.Named("sweeper"),
		resetCh:  make(chan time.Duration, 1),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop
func (w *Sweeper) Start(ctx context.Context) {
	w.logger.Info("Starting sweeper",
		logger.Duration("window", w.window),
		logger.Duration("interval", w.interval))

	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop ends the sweep loop and waits for it to exit
func (w *Sweeper) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
}

// OnSweep registers a callback run on the sweep goroutine after each pass
func (w *Sweeper) OnSweep(fn func(removed int)) {
	w.mu.Lock()
	w.onSweep = fn
	w.mu.Unlock()
}

// Reschedule changes the sweep interval for subsequent ticks
func (w *Sweeper) Reschedule(interval time.Duration) {
	if interval <= 0 {
		return
	}
	w.resetMu.Lock()
	defer w.resetMu.Unlock()
	// keep only the most recent request
	select {
	case <-w.resetCh:
	default:
	}
	select {
	case w.resetCh <- interval:
	default:
	}
}

// Window returns the staleness window
func (w *Sweeper) Window() time.Duration {
	return w.window
}

// LastSweep returns when the last sweep ran and how many entities it removed
func (w *Sweeper) LastSweep() (time.Time, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSweep, w.lastCount
}

func (w *Sweeper) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case interval := <-w.resetCh:
			w.interval = interval
			ticker.Reset(interval)
			w.logger.Debug("Sweep interval changed", logger.Duration("interval", interval))
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Sweeper) sweep() {
	now := w.clock()
	removed := w.store.Sweep(now, w.window)

	w.mu.Lock()
	w.lastSweep = now
	w.lastCount = removed
	fn := w.onSweep
	w.mu.Unlock()

	if fn != nil {
		fn(removed)
	}

	if removed > 0 {
		w.logger.Debug("Swept stale entities", logger.Int("removed", removed))
	}
}
