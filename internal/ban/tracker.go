package ban

import (
	"context"
	"sync"

	"github.com/dragon-bridge-community/community-api/internal/auth"
	"github.com/dragon-bridge-community/community-api/internal/realtime"
)

// BansTable is the table whose changes make a Tracker re-check.
const BansTable = "user_bans"

// Tracker holds the ban status of whoever is currently signed in. It
// re-checks when the identity changes and on demand; a result computed for
// a previous identity is never stored.
type Tracker struct {
	checker *Checker

	mu     sync.Mutex
	user   *auth.User
	gen    uint64
	status Status
	valid  bool
}

func NewTracker(checker *Checker) *Tracker {
	return &Tracker{checker: checker}
}

// SetUser switches the tracked identity. The same identity does not
// trigger a new check once a status is known.
func (t *Tracker) SetUser(ctx context.Context, u *auth.User) Status {
	t.mu.Lock()
	if t.valid && sameUser(t.user, u) {
		s := t.status
		t.mu.Unlock()
		return s
	}
	t.user = u
	t.gen++
	t.valid = false
	t.mu.Unlock()
	return t.Recheck(ctx)
}

// Recheck re-evaluates the status of the current identity. A result is
// stored only if the identity is unchanged and ctx is still live.
func (t *Tracker) Recheck(ctx context.Context) Status {
	t.mu.Lock()
	u, gen := t.user, t.gen
	t.mu.Unlock()

	s := t.checker.Check(ctx, u)

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen == t.gen && ctx.Err() == nil {
		t.status = s
		t.valid = true
	}
	return s
}

// Status returns the last stored status.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Follow re-checks whenever a row of user_bans changes. The returned func
// releases the subscription, cancels rechecks in flight and waits for them;
// a cancelled recheck does not update the status.
func (t *Tracker) Follow(ctx context.Context, bus realtime.Bus) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	var (
		mu      sync.Mutex
		stopped bool
		wg      sync.WaitGroup
	)
	h, err := bus.Subscribe(BansTable, realtime.All, func(realtime.Event) {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		wg.Add(1)
		mu.Unlock()
		go func() {
			defer wg.Done()
			t.Recheck(ctx)
		}()
	})
	if err != nil {
		cancel()
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = bus.Unsubscribe(h)
			mu.Lock()
			stopped = true
			mu.Unlock()
			cancel()
			wg.Wait()
		})
	}, nil
}

func sameUser(a, b *auth.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}
