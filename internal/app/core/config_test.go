package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/preorder-gateway/internal/clients/http/balance"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "BALANCE_SERVICE_URL", "POSTGRES_DSN", "REDIS_ADDR", "KAFKA_BROKERS", "KAFKA_TOPIC",
		"TEMPORAL_DISABLED", "CACHE_PRODUCTS_TTL", "CACHE_BALANCE_TTL", "OUTBOX_POLL_INTERVAL", "RESILIENCE_CONFIG_FILE"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, balance.DefaultBaseURL, cfg.BalanceServiceURL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Minute, cfg.ProductsTTL)
	assert.Equal(t, 30*time.Minute, cfg.BalanceTTL)
	assert.Equal(t, 10*time.Second, cfg.OutboxPollInterval)
	assert.False(t, cfg.TemporalDisabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("TEMPORAL_DISABLED", "yes")
	t.Setenv("CACHE_BALANCE_TTL", "45s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.TemporalDisabled)
	assert.Equal(t, 45*time.Second, cfg.BalanceTTL)
}

func TestLoadConfig_RejectsBadDuration(t *testing.T) {
	t.Setenv("CACHE_PRODUCTS_TTL", "soon")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "CACHE_PRODUCTS_TTL")
}
