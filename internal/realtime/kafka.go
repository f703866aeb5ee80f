package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaBus consumes change events published to a topic by a CDC pipeline.
type KafkaBus struct {
	*Registry
	reader *kafka.Reader
	logger *zap.SugaredLogger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewKafkaBus(cfg KafkaConfig, logger *zap.SugaredLogger) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka bus: brokers and topic are required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  500 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	b := &KafkaBus{Registry: NewRegistry(), reader: reader, logger: logger, cancel: cancel}
	b.wg.Add(1)
	go b.run(ctx)
	return b, nil
}

func (b *KafkaBus) run(ctx context.Context) {
	defer b.wg.Done()
	for {
		m, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warnw("kafka read failed", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		ev, err := DecodeEvent(m.Value)
		if err != nil {
			b.logger.Warnw("dropping kafka change event", "err", err, "offset", m.Offset)
			continue
		}
		b.Dispatch(ev)
	}
}

func (b *KafkaBus) Close() error {
	b.cancel()
	b.wg.Wait()
	b.closeRegistry()
	return b.reader.Close()
}
