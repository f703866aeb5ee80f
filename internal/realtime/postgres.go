package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresBus receives notifications sent with pg_notify on Channel by the
// triggers installed by EnsureTriggers.
type PostgresBus struct {
	*Registry
	listener *pq.Listener
	logger   *zap.SugaredLogger
	done     chan struct{}
	wg       sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// NewPostgresBus opens a dedicated LISTEN connection on dsn.
func NewPostgresBus(dsn string, logger *zap.SugaredLogger) (*PostgresBus, error) {
	l := pq.NewListener(dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warnw("realtime listener event", "event", ev, "err", err)
		}
	})
	if err := l.Listen(Channel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("listen %s: %w", Channel, err)
	}
	return newPostgresBus(l, logger), nil
}

func newPostgresBus(l *pq.Listener, logger *zap.SugaredLogger) *PostgresBus {
	b := &PostgresBus{Registry: NewRegistry(), listener: l, logger: logger, done: make(chan struct{})}
	b.wg.Add(1)
	go b.run()
	return b
}

func (b *PostgresBus) run() {
	defer b.wg.Done()
	keepalive := time.NewTicker(90 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-b.done:
			return
		case n, ok := <-b.listener.Notify:
			if !ok {
				return
			}
			b.handle(n)
		case <-keepalive.C:
			go func() {
				if err := b.listener.Ping(); err != nil {
					b.logger.Debugw("realtime listener ping failed", "err", err)
				}
			}()
		}
	}
}

// handle dispatches one notification. A nil notification means the
// connection was re-established and anything sent meanwhile is lost, so
// every subscribed table is told to resync.
func (b *PostgresBus) handle(n *pq.Notification) {
	if n == nil {
		tables := b.Resync()
		b.logger.Infow("realtime listener reconnected, resyncing subscribers", "tables", tables)
		return
	}
	ev, err := DecodeEvent([]byte(n.Extra))
	if err != nil {
		b.logger.Warnw("dropping realtime notification", "err", err, "payload", n.Extra)
		return
	}
	b.Dispatch(ev)
}

// Close stops delivery and releases the LISTEN connection. Later calls
// return the first call's result.
func (b *PostgresBus) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
		b.closeRegistry()
		b.closeErr = b.listener.Close()
	})
	return b.closeErr
}

const notifyFunction = `
CREATE OR REPLACE FUNCTION realtime_notify() RETURNS trigger AS $$
BEGIN
  PERFORM pg_notify('` + Channel + `', json_build_object('table', TG_TABLE_NAME, 'type', TG_OP, 'at', now())::text);
  RETURN NULL;
END;
$$ LANGUAGE plpgsql`

// EnsureTriggers installs the notify function and a row trigger on every
// table (idempotent). Meant for development bootstrap; production databases
// should carry the same objects through migrations.
func EnsureTriggers(ctx context.Context, db *sqlx.DB, tables ...string) error {
	if _, err := db.ExecContext(ctx, notifyFunction); err != nil {
		return fmt.Errorf("create realtime_notify: %w", err)
	}
	for _, t := range tables {
		tbl := pq.QuoteIdentifier(t)
		if _, err := db.ExecContext(ctx, `DROP TRIGGER IF EXISTS realtime_notify ON `+tbl); err != nil {
			return fmt.Errorf("drop trigger on %s: %w", t, err)
		}
		create := `CREATE TRIGGER realtime_notify AFTER INSERT OR UPDATE OR DELETE ON ` + tbl +
			` FOR EACH ROW EXECUTE FUNCTION realtime_notify()`
		if _, err := db.ExecContext(ctx, create); err != nil {
			return fmt.Errorf("create trigger on %s: %w", t, err)
		}
	}
	return nil
}
