package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("REALTIME_DRIVER", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_TOPIC", "")
	cfg := ConfigFromEnv()
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "community.changes", cfg.Kafka.Topic)
}

func TestConfigFromEnvKafka(t *testing.T) {
	t.Setenv("REALTIME_DRIVER", "Kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	cfg := ConfigFromEnv()
	assert.Equal(t, "kafka", cfg.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestOpenMemoryAndUnknown(t *testing.T) {
	log := zap.NewNop().Sugar()
	d, err := Open(context.Background(), Config{Driver: "memory"}, "", log)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Active())
	require.NoError(t, d.Close())

	_, err = Open(context.Background(), Config{Driver: "carrier-pigeon"}, "", log)
	assert.Error(t, err)

	_, err = NewKafkaBus(KafkaConfig{}, log)
	assert.Error(t, err)
}
