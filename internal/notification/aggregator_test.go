package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dragon-bridge-community/community-api/internal/realtime"
)

// fakeCounter returns fixed counts per table and records every call.
type fakeCounter struct {
	mu      sync.Mutex
	counts  map[string]int
	errs    map[string]error
	calls   map[string]int
	cutoffs []time.Time
	// hook, when set, replaces the fixed lookup; call is 1-based per table.
	hook func(ctx context.Context, table string, call int) (int, error)
}

func newFakeCounter(counts map[string]int) *fakeCounter {
	return &fakeCounter{counts: counts, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeCounter) CountSince(ctx context.Context, table string, cutoff time.Time) (int, error) {
	f.mu.Lock()
	f.calls[table]++
	call := f.calls[table]
	f.cutoffs = append(f.cutoffs, cutoff)
	hook := f.hook
	n, err := f.counts[table], f.errs[table]
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx, table, call)
	}
	return n, err
}

func (f *fakeCounter) callsFor(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[table]
}

func newTestAggregator(c Counter, bus realtime.Bus) *Aggregator {
	return NewAggregator(c, bus, zap.NewNop().Sugar())
}

func TestInitialLoadCounts(t *testing.T) {
	counter := newFakeCounter(map[string]int{ServicesTable: 3, UsersTable: 0, EventsTable: 5})
	bus := realtime.NewMemoryBus()
	agg := newTestAggregator(counter, bus)
	fixed := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	agg.now = func() time.Time { return fixed }

	require.NoError(t, agg.Start(context.Background()))
	defer agg.Stop()

	assert.Equal(t, Counts{NewServices: 3, NewUsers: 0, NewEvents: 5}, agg.Counts())
	assert.Equal(t, 8, agg.Counts().Total())
	assert.False(t, agg.Loading())
	require.Len(t, counter.cutoffs, 3)
	for _, c := range counter.cutoffs {
		assert.Equal(t, fixed.Add(-24*time.Hour), c)
	}
}

func TestInsertTriggersExactlyOneFullRefetch(t *testing.T) {
	counter := newFakeCounter(map[string]int{ServicesTable: 3, UsersTable: 0, EventsTable: 5})
	bus := realtime.NewMemoryBus()
	agg := newTestAggregator(counter, bus)
	require.NoError(t, agg.Start(context.Background()))
	defer agg.Stop()

	counter.mu.Lock()
	counter.counts[ServicesTable] = 4
	counter.mu.Unlock()

	assert.Equal(t, 1, bus.Publish(realtime.Event{Table: ServicesTable, Type: realtime.Insert}))

	assert.Eventually(t, func() bool { return agg.Counts().NewServices == 4 }, time.Second, 5*time.Millisecond)
	agg.Stop()
	for _, table := range trackedTables {
		assert.Equal(t, 2, counter.callsFor(table), table)
	}
}

func TestResyncRefreshesCounts(t *testing.T) {
	counter := newFakeCounter(map[string]int{ServicesTable: 1, UsersTable: 1, EventsTable: 1})
	bus := realtime.NewMemoryBus()
	agg := newTestAggregator(counter, bus)
	require.NoError(t, agg.Start(context.Background()))
	defer agg.Stop()

	counter.mu.Lock()
	counter.counts[UsersTable] = 7
	counter.mu.Unlock()

	assert.Len(t, bus.Resync(), len(trackedTables))
	assert.Eventually(t, func() bool { return agg.Counts().NewUsers == 7 }, time.Second, 5*time.Millisecond)
}

func TestUpdatesDoNotTriggerRefetch(t *testing.T) {
	counter := newFakeCounter(map[string]int{})
	bus := realtime.NewMemoryBus()
	agg := newTestAggregator(counter, bus)
	require.NoError(t, agg.Start(context.Background()))
	defer agg.Stop()

	assert.Equal(t, 0, bus.Publish(realtime.Event{Table: EventsTable, Type: realtime.Update}))
	assert.Equal(t, 0, bus.Publish(realtime.Event{Table: "comments", Type: realtime.Insert}))
	assert.Equal(t, 1, counter.callsFor(EventsTable))
}

func TestPartialFailureKeepsOtherCounts(t *testing.T) {
	counter := newFakeCounter(map[string]int{ServicesTable: 2, UsersTable: 7, EventsTable: 1})
	counter.errs[UsersTable] = errors.New("connection reset")
	agg := newTestAggregator(counter, realtime.NewMemoryBus())

	got := agg.Refresh(context.Background())
	assert.Equal(t, Counts{NewServices: 2, NewUsers: 0, NewEvents: 1}, got)
}

func TestStopReleasesAllSubscriptions(t *testing.T) {
	bus := realtime.NewMemoryBus()
	agg := newTestAggregator(newFakeCounter(map[string]int{}), bus)

	require.NoError(t, agg.Start(context.Background()))
	assert.Equal(t, 3, bus.Active())

	agg.Stop()
	assert.Equal(t, 0, bus.Active())

	// idempotent, and restartable
	agg.Stop()
	require.NoError(t, agg.Start(context.Background()))
	assert.Equal(t, 3, bus.Active())
	agg.Stop()
	assert.Equal(t, 0, bus.Active())
}

func TestStartTwiceFails(t *testing.T) {
	bus := realtime.NewMemoryBus()
	agg := newTestAggregator(newFakeCounter(map[string]int{}), bus)
	require.NoError(t, agg.Start(context.Background()))
	defer agg.Stop()

	assert.ErrorIs(t, agg.Start(context.Background()), ErrAlreadyStarted)
	assert.Equal(t, 3, bus.Active())
}

func TestStartReleasesPartialSubscriptionsOnError(t *testing.T) {
	bus := &failingBus{MemoryBus: realtime.NewMemoryBus(), failOn: EventsTable}
	agg := newTestAggregator(newFakeCounter(map[string]int{}), bus)

	assert.Error(t, agg.Start(context.Background()))
	assert.Equal(t, 0, bus.Active())
}

type failingBus struct {
	*realtime.MemoryBus
	failOn string
}

func (b *failingBus) Subscribe(table string, ev realtime.EventType, fn realtime.Handler) (realtime.Handle, error) {
	if table == b.failOn {
		return realtime.Handle{}, errors.New("channel error")
	}
	return b.MemoryBus.Subscribe(table, ev, fn)
}

func TestOutOfOrderCompletionKeepsNewestResult(t *testing.T) {
	counter := newFakeCounter(map[string]int{})
	entered := make(chan struct{})
	release := make(chan struct{})
	counter.hook = func(ctx context.Context, table string, call int) (int, error) {
		if table != ServicesTable {
			return 0, nil
		}
		if call == 1 {
			close(entered)
			<-release
			return 1, nil
		}
		return 2, nil
	}
	agg := newTestAggregator(counter, realtime.NewMemoryBus())

	done := make(chan Counts)
	go func() { done <- agg.Refresh(context.Background()) }()
	<-entered
	assert.True(t, agg.Loading())

	newer := agg.Refresh(context.Background())
	assert.Equal(t, 2, newer.NewServices)

	close(release)
	older := <-done
	assert.Equal(t, 2, older.NewServices, "stale fetch must not overwrite")
	assert.Equal(t, 2, agg.Counts().NewServices)
	assert.False(t, agg.Loading())
}

func TestStopCancelsInFlightRefresh(t *testing.T) {
	counter := newFakeCounter(map[string]int{ServicesTable: 9})
	bus := realtime.NewMemoryBus()
	agg := newTestAggregator(counter, bus)
	require.NoError(t, agg.Start(context.Background()))

	entered := make(chan struct{}, 3)
	counter.mu.Lock()
	counter.hook = func(ctx context.Context, table string, call int) (int, error) {
		entered <- struct{}{}
		<-ctx.Done()
		return 0, ctx.Err()
	}
	counter.mu.Unlock()

	bus.Publish(realtime.Event{Table: EventsTable, Type: realtime.Insert})
	<-entered
	agg.Stop()

	assert.Equal(t, 9, agg.Counts().NewServices, "cancelled fetch must not zero the counts")
	assert.False(t, agg.Loading())
}
