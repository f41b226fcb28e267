package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amerhub/amerhub/internal/assist"
	"github.com/amerhub/amerhub/internal/config"
	"github.com/amerhub/amerhub/internal/gateway"
	"github.com/amerhub/amerhub/internal/hub"
	"github.com/amerhub/amerhub/internal/logging"
	"github.com/amerhub/amerhub/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the amerhub server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Hub.Port = port
			}
			if bind != "" {
				cfg.Hub.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if logLevel == "" && cfg.Logging.Level != "" {
				if cfg.Logging.Style == "json" {
					log = logging.NewJSON(cfg.Logging.Level)
				} else {
					log = logging.New(nil, cfg.Logging.Level)
				}
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			dbPath := cfg.Storage.Path
			if dbPath == "" {
				dbPath = filepath.Join(paths.Data, "amerhub.db")
			}
			db, err := store.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			messages := store.NewMessageStore(db)
			directory := store.NewDirectory(db)

			var assistant hub.TextAssistant
			if cfg.Assistant.Enabled {
				assistant = assist.New(
					cfg.Assistant.Endpoint,
					cfg.Assistant.Model,
					time.Duration(cfg.Assistant.TimeoutSeconds)*time.Second,
				)
				log.Info().
					Str("endpoint", cfg.Assistant.Endpoint).
					Str("model", cfg.Assistant.Model).
					Msg("automated assistant enabled")
			}

			h := hub.New(hub.Options{
				MaxConnectionsPerIdentity: cfg.Hub.Limits.MaxConnectionsPerUser,
				MessageLimit:              cfg.Hub.Limits.MessagesPerMinute,
				MessageWindow:             time.Minute,
				AttemptLimit:              cfg.Hub.Limits.ConnectionAttemptsPerMinute,
				AttemptWindow:             time.Minute,
				HeartbeatInterval:         time.Duration(cfg.Hub.Heartbeat.IntervalSeconds) * time.Second,
				ProbeAfter:                time.Duration(cfg.Hub.Heartbeat.ProbeAfterSeconds) * time.Second,
				CloseAfter:                time.Duration(cfg.Hub.Heartbeat.CloseAfterSeconds) * time.Second,
				RequestTTL:                time.Duration(cfg.Hub.Matchmaking.RequestTTLMinutes) * time.Minute,
				HistoryLimit:              cfg.Hub.Matchmaking.HistoryLimit,
				AssistTimeout:             time.Duration(cfg.Assistant.TimeoutSeconds) * time.Second,
			}, messages, assistant, directory, log)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := gateway.New(cfg, h, log)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}
