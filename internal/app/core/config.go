package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/Apurer/preorder-gateway/internal/clients/http/balance"
	preorderkafka "github.com/Apurer/preorder-gateway/internal/domains/preorders/adapters/events/kafka"
)

// Config carries environment-driven settings shared by the API and the worker.
type Config struct {
	Port                 string
	BalanceServiceURL    string
	PostgresDSN          string
	RedisAddr            string
	KafkaBrokers         []string
	KafkaTopic           string
	TemporalAddress      string
	TemporalNamespace    string
	TemporalDisabled     bool
	ProductsTTL          time.Duration
	BalanceTTL           time.Duration
	ResilienceConfigFile string
	OutboxPollInterval   time.Duration
}

// LoadConfig reads environment variables, applies defaults, and validates basic constraints.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:                 envDefault("PORT", "8080"),
		BalanceServiceURL:    envDefault("BALANCE_SERVICE_URL", balance.DefaultBaseURL),
		PostgresDSN:          strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		RedisAddr:            strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		KafkaBrokers:         splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:           envDefault("KAFKA_TOPIC", preorderkafka.DefaultTopic),
		TemporalAddress:      envDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		TemporalNamespace:    envDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		TemporalDisabled:     isTruthy(os.Getenv("TEMPORAL_DISABLED")),
		ResilienceConfigFile: strings.TrimSpace(os.Getenv("RESILIENCE_CONFIG_FILE")),
	}
	var err error
	if cfg.ProductsTTL, err = envDuration("CACHE_PRODUCTS_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.BalanceTTL, err = envDuration("CACHE_BALANCE_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = envDuration("OUTBOX_POLL_INTERVAL", 10*time.Second); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration such as 30m", key)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}
