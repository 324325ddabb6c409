package resilience

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Operation names a logical remote operation. Each operation owns its own
// circuit breaker and retry budget.
type Operation string

const (
	OperationProducts Operation = "products"
	OperationBalance  Operation = "balance"
	OperationPreOrder Operation = "pre-order"
)

// Config tunes the policy pipeline.
type Config struct {
	MaxConcurrent    int           `yaml:"maxConcurrent"`
	MaxQueue         int           `yaml:"maxQueue"`
	FailureThreshold int           `yaml:"failureThreshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
	AttemptTimeout   time.Duration `yaml:"attemptTimeout"`
	BaseBackoff      time.Duration `yaml:"baseBackoff"`
	MaxBackoff       time.Duration `yaml:"maxBackoff"`
	ReadRetries      int           `yaml:"readRetries"`
	MutationRetries  int           `yaml:"mutationRetries"`
}

// DefaultConfig mirrors the production policy: bulkhead 10+20, breaker after 2
// consecutive failures for 60s, 10s per attempt, 2^n second backoff, 3 read
// retries and 5 pre-order retries.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:    10,
		MaxQueue:         20,
		FailureThreshold: 2,
		Cooldown:         time.Minute,
		AttemptTimeout:   10 * time.Second,
		BaseBackoff:      2 * time.Second,
		MaxBackoff:       time.Minute,
		ReadRetries:      3,
		MutationRetries:  5,
	}
}

// Validate rejects configurations that would disable admission or the breaker.
func (c Config) Validate() error {
	var errs []error
	if c.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("maxConcurrent must be positive"))
	}
	if c.MaxQueue < 0 {
		errs = append(errs, errors.New("maxQueue must not be negative"))
	}
	if c.FailureThreshold <= 0 {
		errs = append(errs, errors.New("failureThreshold must be positive"))
	}
	if c.Cooldown <= 0 {
		errs = append(errs, errors.New("cooldown must be positive"))
	}
	if c.AttemptTimeout < 0 {
		errs = append(errs, errors.New("attemptTimeout must not be negative"))
	}
	if c.BaseBackoff <= 0 {
		errs = append(errs, errors.New("baseBackoff must be positive"))
	}
	if c.ReadRetries < 0 || c.MutationRetries < 0 {
		errs = append(errs, errors.New("retry counts must not be negative"))
	}
	return errors.Join(errs...)
}

// RetriesFor returns the retry budget of an operation.
func (c Config) RetriesFor(op Operation) int {
	if op == OperationPreOrder {
		return c.MutationRetries
	}
	return c.ReadRetries
}

// CallBudget is the longest an operation can spend inside the pipeline once
// admitted: every attempt timing out plus every backoff wait between them.
func (c Config) CallBudget(op Operation) time.Duration {
	retries := c.RetriesFor(op)
	budget := time.Duration(retries+1) * c.AttemptTimeout
	wait := c.BaseBackoff
	for i := 0; i < retries; i++ {
		if c.MaxBackoff > 0 && wait > c.MaxBackoff {
			wait = c.MaxBackoff
		}
		budget += wait
		wait *= 2
	}
	return budget
}

// SingleAttempt returns the policy with retries disabled, for callers that
// retry on their own schedule.
func (c Config) SingleAttempt() Config {
	c.ReadRetries = 0
	c.MutationRetries = 0
	return c
}

// LoadConfigFile overlays a YAML policy file on top of DefaultConfig. An empty
// path returns the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read resilience config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse resilience config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid resilience config: %w", err)
	}
	return cfg, nil
}
