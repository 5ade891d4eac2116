package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	eventagent "github.com/epicstage/Event-agent-backend-kr-sub004"
	"github.com/epicstage/Event-agent-backend-kr-sub004/internal/config"
	"github.com/epicstage/Event-agent-backend-kr-sub004/internal/logging"
	"github.com/epicstage/Event-agent-backend-kr-sub004/internal/metrics"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/adapters/memory"
	redisAdapter "github.com/epicstage/Event-agent-backend-kr-sub004/pkg/adapters/redis"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/catalog"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/gate"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/ports"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/router"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/session"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/tasks"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
)

var rootCmd = &cobra.Command{
	Use:   "eventagent",
	Short: "Control layer for the event-management AI agent",
	Long: `eventagent routes free-form questions to task handlers, tracks session
context, and gates high-risk actions behind human confirmation.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a yaml config file")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return logging.New(level)
}

// buildAgent assembles the agent from configuration. The returned cleanup
// closes the redis client when one was opened.
func buildAgent(cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (*eventagent.Agent, func(), error) {
	b := catalog.NewBuilder()
	tasks.Register(b)

	var (
		sessionStore      ports.SessionStore
		confirmationStore ports.ConfirmationStore
		cleanup           = func() {}
	)
	opts := []eventagent.Option{
		eventagent.WithLogger(logger),
		eventagent.WithRequestTimeout(cfg.RequestTimeout),
		eventagent.WithRouterConfig(router.Config{
			ConfidenceThreshold: cfg.Router.ConfidenceThreshold,
			Margin:              cfg.Router.Margin,
			RecencyBonus:        cfg.Router.RecencyBonus,
			MaxAlternatives:     cfg.Router.MaxAlternatives,
		}),
		eventagent.WithSessionConfig(session.Config{
			MaxEntries:   cfg.Session.MaxEntries,
			WriteRetries: cfg.Session.WriteRetries,
			Detector: session.Detector{
				Window:    cfg.Session.FrustrationWindow,
				Threshold: cfg.Session.FrustrationThreshold,
			},
		}),
		eventagent.WithGateOptions(
			gate.WithCeiling(cfg.Gate.MonetaryCeiling),
			gate.WithTTL(cfg.Gate.ConfirmationTTL),
		),
	}

	if cfg.Redis.Enabled {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sessionStore = redisAdapter.NewSessionStore(client, redisAdapter.WithTTL(cfg.Session.TTL))
		confirmationStore = redisAdapter.NewConfirmationStore(client)
		opts = append(opts,
			eventagent.WithLocker(redisAdapter.NewLocker(client, "user_session:")),
			eventagent.WithGateOptions(gate.WithLocker(redisAdapter.NewLocker(client, "confirmation:"))),
		)
		cleanup = func() { _ = client.Close() }
	} else {
		sessionStore = memory.NewSessionStore(memory.WithSessionTTL(cfg.Session.TTL))
		confirmationStore = memory.NewConfirmationStore()
	}

	if reg != nil {
		opts = append(opts, eventagent.WithMetrics(metrics.New(reg)))
	}

	agent, err := eventagent.New(b.Build(), sessionStore, confirmationStore, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return agent, cleanup, nil
}
