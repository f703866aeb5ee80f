// Package notification keeps the admin dashboard's "new in the last 24
// hours" counters current.
package notification

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dragon-bridge-community/community-api/internal/realtime"
	"github.com/dragon-bridge-community/community-api/pkg/metrics"
)

// Tracked tables.
const (
	ServicesTable = "services"
	UsersTable    = "profiles"
	EventsTable   = "events"
)

// Window is how far back a row still counts as new.
const Window = 24 * time.Hour

var trackedTables = []string{ServicesTable, UsersTable, EventsTable}

// Counts is the triple shown on the admin dashboard.
type Counts struct {
	NewServices int `json:"newServices"`
	NewUsers    int `json:"newUsers"`
	NewEvents   int `json:"newEvents"`
}

func (c Counts) Total() int { return c.NewServices + c.NewUsers + c.NewEvents }

// Counter issues one count-only query.
type Counter interface {
	CountSince(ctx context.Context, table string, cutoff time.Time) (int, error)
}

var ErrAlreadyStarted = errors.New("notification: aggregator already started")

// Aggregator recomputes all three counts on start, on demand, and whenever
// a row is inserted into any tracked table. Each fetch carries a sequence
// number; a fetch that completes after a newer one has been applied is
// discarded.
type Aggregator struct {
	counter Counter
	bus     realtime.Bus
	logger  *zap.SugaredLogger
	now     func() time.Time

	seq atomic.Uint64

	mu       sync.Mutex
	counts   Counts
	applied  uint64
	inflight int
	started  bool
	handles  []realtime.Handle
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewAggregator(counter Counter, bus realtime.Bus, logger *zap.SugaredLogger) *Aggregator {
	return &Aggregator{counter: counter, bus: bus, logger: logger, now: time.Now}
}

// Start subscribes to inserts on every tracked table and performs the
// initial fetch. The aggregator stays active until Stop or until ctx ends.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	handles := make([]realtime.Handle, 0, len(trackedTables))
	for _, table := range trackedTables {
		h, err := a.bus.Subscribe(table, realtime.Insert, a.onInsert)
		if err != nil {
			a.mu.Unlock()
			a.release(handles)
			return err
		}
		handles = append(handles, h)
	}
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.handles = handles
	a.started = true
	runCtx := a.ctx
	a.mu.Unlock()

	a.Refresh(runCtx)
	return nil
}

// Stop releases every subscription, cancels in-flight fetches and waits for
// them to return. It is safe to call more than once.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	a.started = false
	handles := a.handles
	a.handles = nil
	cancel := a.cancel
	a.mu.Unlock()

	a.release(handles)
	cancel()
	a.wg.Wait()
}

func (a *Aggregator) release(handles []realtime.Handle) {
	for _, h := range handles {
		if err := a.bus.Unsubscribe(h); err != nil {
			a.logger.Warnw("unsubscribe failed", "table", h.Table, "err", err)
		}
	}
}

// onInsert runs on the bus delivery goroutine; the recomputation happens
// in the background so delivery is never held up by the database.
func (a *Aggregator) onInsert(ev realtime.Event) {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	ctx := a.ctx
	a.wg.Add(1)
	a.mu.Unlock()

	a.logger.Debugw("row inserted, refreshing counts", "table", ev.Table)
	go func() {
		defer a.wg.Done()
		a.Refresh(ctx)
	}()
}

// Refresh recomputes all three counts and returns the counts in effect
// afterwards. Failures are logged and count as zero for their table only.
func (a *Aggregator) Refresh(ctx context.Context) Counts {
	seq := a.seq.Add(1)
	a.mu.Lock()
	a.inflight++
	a.mu.Unlock()

	cutoff := a.now().Add(-Window)
	var next Counts
	var g errgroup.Group
	g.Go(func() error { next.NewServices = a.count(ctx, ServicesTable, cutoff); return nil })
	g.Go(func() error { next.NewUsers = a.count(ctx, UsersTable, cutoff); return nil })
	g.Go(func() error { next.NewEvents = a.count(ctx, EventsTable, cutoff); return nil })
	_ = g.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.inflight--
	switch {
	case ctx.Err() != nil:
		metrics.NotificationRefreshes.WithLabelValues("cancelled").Inc()
	case seq <= a.applied:
		a.logger.Debugw("discarding stale counts", "seq", seq, "applied", a.applied)
		metrics.NotificationRefreshes.WithLabelValues("stale").Inc()
	default:
		a.applied = seq
		a.counts = next
		metrics.NotificationRefreshes.WithLabelValues("applied").Inc()
	}
	return a.counts
}

func (a *Aggregator) count(ctx context.Context, table string, cutoff time.Time) int {
	n, err := a.counter.CountSince(ctx, table, cutoff)
	if err != nil {
		a.logger.Warnw("count query failed", "table", table, "err", err)
		metrics.CountQueryErrors.WithLabelValues(table).Inc()
		return 0
	}
	return n
}

// Counts returns the most recently applied counts.
func (a *Aggregator) Counts() Counts {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts
}

// Loading reports whether a fetch is in flight.
func (a *Aggregator) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inflight > 0
}
