package realtime

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type Config struct {
	Driver   string
	RedisURL string
	Kafka    KafkaConfig
}

// ConfigFromEnv reads REALTIME_DRIVER (postgres, redis, kafka or memory) and
// the driver-specific settings.
func ConfigFromEnv() Config {
	driver := strings.ToLower(os.Getenv("REALTIME_DRIVER"))
	if driver == "" {
		driver = "postgres"
	}
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	var brokers []string
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "community.changes"
	}
	group := os.Getenv("KAFKA_GROUP_ID")
	if group == "" {
		group = "community-api"
	}
	return Config{Driver: driver, RedisURL: redisURL, Kafka: KafkaConfig{Brokers: brokers, Topic: topic, GroupID: group}}
}

// Driver is a Bus that owns background resources.
type Driver interface {
	Bus
	Active() int
	Close() error
}

// Open builds the driver selected by cfg. dsn is used by the postgres driver.
func Open(ctx context.Context, cfg Config, dsn string, logger *zap.SugaredLogger) (Driver, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryBus(), nil
	case "postgres":
		return NewPostgresBus(dsn, logger)
	case "redis":
		client, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		b, err := NewRedisBus(ctx, client, logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &ownedRedisBus{RedisBus: b}, nil
	case "kafka":
		return NewKafkaBus(cfg.Kafka, logger)
	default:
		return nil, fmt.Errorf("unknown realtime driver %q", cfg.Driver)
	}
}

// ownedRedisBus also closes the client Open created.
type ownedRedisBus struct {
	*RedisBus
}

func (b *ownedRedisBus) Close() error {
	err := b.RedisBus.Close()
	if cerr := b.client.Close(); err == nil {
		err = cerr
	}
	return err
}
