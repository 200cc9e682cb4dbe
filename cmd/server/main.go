package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/boardsync/internal/app"
	"github.com/vovakirdan/boardsync/internal/auth"
	"github.com/vovakirdan/boardsync/internal/config"
	"github.com/vovakirdan/boardsync/internal/log"
)

type flags struct {
	configPath string
	addr       string
	logLevel   string
	store      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "boardsync",
		Short:         "Real-time whiteboard sync server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), f)
		},
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level override")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, SSE and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), f)
		},
	}
	for _, c := range []*cobra.Command{root, serveCmd} {
		c.Flags().StringVar(&f.addr, "addr", "", "HTTP listen address override")
		c.Flags().StringVar(&f.store, "store", "", "snapshot store driver: sqlite, redis or memory")
	}

	root.AddCommand(serveCmd, newTokenCmd(&f))
	return root
}

func loadConfig(f flags) (config.Config, error) {
	bootLogger := log.New("info")
	cfg, path, err := config.Load(bootLogger, f.configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if f.addr != "" {
		cfg.Addr = f.addr
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.store != "" {
		cfg.Store.Driver = f.store
	}
	bootLogger.Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}

func serve(parent context.Context, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	logger := log.New(cfg.LogLevel)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting boardsync server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newTokenCmd(f *flags) *cobra.Command {
	var (
		subject string
		name    string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*f)
			if err != nil {
				return err
			}
			if subject == "" {
				subject = uuid.NewString()
			}
			svc := auth.NewService(&auth.JWTConfig{
				Secret:   []byte(cfg.JWTSecret),
				Issuer:   cfg.JWTIssuer,
				Audience: cfg.JWTAudience,
				TTL:      ttl,
			}, app.Policy(&cfg))
			token, err := svc.Issue(subject, name, role)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject, random when empty")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "student", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
