// Package cli implements preorderctl, the operator tool for compensation
// tasks that the relay could not settle on its own.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Apurer/preorder-gateway/internal/app/core"
	preorderapp "github.com/Apurer/preorder-gateway/internal/domains/preorders/application"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
	platformobservability "github.com/Apurer/preorder-gateway/internal/platform/observability"
)

const envPrefix = "PREORDERCTL"

var ErrOutboxNotDurable = errors.New("compensation tasks need a reachable postgres outbox (set --postgres-dsn or PREORDERCTL_POSTGRES_DSN)")

// Operator is the slice of the compensation stack the CLI drives.
type Operator struct {
	Outbox  ports.CompensationOutbox
	Relay   *preorderapp.CompensationRelay
	Handler *preorderapp.CompensationHandler
	Durable bool
	Close   func()
}

// OpenFunc wires an Operator from the resolved configuration.
type OpenFunc func(ctx context.Context, cfg core.Config, logger *slog.Logger) (*Operator, error)

// Execute runs the root command.
func Execute(version string) error {
	root := NewRootCommand(OpenCore)
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// NewRootCommand builds the command tree. Flags fall back to PREORDERCTL_*
// environment variables, then to the service's own environment.
func NewRootCommand(open OpenFunc) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "preorderctl",
		Short:         "Inspect and settle pre-order compensations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.String("postgres-dsn", "", "PostgreSQL DSN of the compensation outbox")
	flags.String("balance-url", "", "Base URL of the balance service")
	flags.String("redis-addr", "", "Redis address of the balance cache")
	flags.String("resilience-config", "", "YAML file with resilience policies")
	flags.String("log-level", "warn", "Log level written to stderr")
	_ = v.BindPFlags(flags)

	env := &environment{viper: v, open: open}
	root.AddCommand(newTasksCommand(env))
	root.AddCommand(newCompensateCommand(env))
	return root
}

type environment struct {
	viper *viper.Viper
	open  OpenFunc
}

func (e *environment) config() (core.Config, error) {
	cfg, err := core.LoadConfig()
	if err != nil {
		return core.Config{}, err
	}
	if dsn := e.viper.GetString("postgres-dsn"); dsn != "" {
		cfg.PostgresDSN = dsn
	}
	if url := e.viper.GetString("balance-url"); url != "" {
		cfg.BalanceServiceURL = url
	}
	if addr := e.viper.GetString("redis-addr"); addr != "" {
		cfg.RedisAddr = addr
	}
	if file := e.viper.GetString("resilience-config"); file != "" {
		cfg.ResilienceConfigFile = file
	}
	// Operator runs print their own outcome, so events stay on the services.
	cfg.KafkaBrokers = nil
	return cfg, nil
}

func (e *environment) operator(cmd *cobra.Command, requireDurable bool) (*Operator, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.viper.GetString("log-level"))); err != nil {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	op, err := e.open(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}
	if requireDurable && !op.Durable {
		op.close()
		return nil, ErrOutboxNotDurable
	}
	return op, nil
}

func (o *Operator) close() {
	if o.Close != nil {
		o.Close()
	}
}

// OpenCore wires the operator from the same components the services use.
func OpenCore(ctx context.Context, cfg core.Config, logger *slog.Logger) (*Operator, error) {
	components, err := core.Build(ctx, cfg, &platformobservability.Instruments{Logger: logger})
	if err != nil {
		return nil, err
	}
	return &Operator{
		Outbox:  components.Outbox,
		Relay:   components.Relay(cfg),
		Handler: components.Compensation,
		Durable: components.DurableOutbox,
		Close:   components.Close,
	}, nil
}
