package realtime

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPostgresBusHandle(t *testing.T) {
	b := &PostgresBus{Registry: NewRegistry(), logger: zap.NewNop().Sugar()}
	var got []Event
	_, err := b.Subscribe("services", Insert, func(ev Event) { got = append(got, ev) })
	require.NoError(t, err)

	b.handle(&pq.Notification{Channel: Channel, Extra: `{"table":"public.services","type":"insert"}`})
	b.handle(&pq.Notification{Channel: Channel, Extra: `not json`})
	require.Len(t, got, 1)
	assert.Equal(t, Insert, got[0].Type)

	// a reconnect may have lost inserts, so subscribers are told to re-read
	b.handle(nil)
	require.Len(t, got, 2)
	assert.Equal(t, "services", got[1].Table)
	assert.Equal(t, All, got[1].Type)
}

func TestPostgresBusCloseTwice(t *testing.T) {
	l := pq.NewListener("postgres://127.0.0.1:1/none?sslmode=disable&connect_timeout=1", 10*time.Millisecond, 20*time.Millisecond,
		func(pq.ListenerEventType, error) {})
	b := newPostgresBus(l, zap.NewNop().Sugar())

	require.NotPanics(t, func() {
		assert.NoError(t, b.Close())
		assert.NoError(t, b.Close())
	})
	_, err := b.Subscribe("services", Insert, func(Event) {})
	assert.ErrorIs(t, err, ErrClosed)
}
