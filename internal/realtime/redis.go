package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// RedisBus fans change events out to every instance subscribed to Channel.
type RedisBus struct {
	*Registry
	client *redis.Client
	pubsub *redis.PubSub
	logger *zap.SugaredLogger
	wg     sync.WaitGroup
}

// NewRedisBus subscribes to Channel and waits for the subscription to be
// confirmed before returning.
func NewRedisBus(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) (*RedisBus, error) {
	ps := client.Subscribe(ctx, Channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Channel, err)
	}
	b := &RedisBus{Registry: NewRegistry(), client: client, pubsub: ps, logger: logger}
	b.wg.Add(1)
	go b.run(ps.Channel())
	return b, nil
}

func (b *RedisBus) run(ch <-chan *redis.Message) {
	defer b.wg.Done()
	for msg := range ch {
		ev, err := DecodeEvent([]byte(msg.Payload))
		if err != nil {
			b.logger.Warnw("dropping realtime message", "err", err, "payload", msg.Payload)
			continue
		}
		b.Dispatch(ev)
	}
}

// Publish announces ev to all subscribed instances, this one included.
func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close ends the subscription. The client is owned by the caller.
func (b *RedisBus) Close() error {
	err := b.pubsub.Close()
	b.wg.Wait()
	b.closeRegistry()
	return err
}
