package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iurnickita/poscashup/internal/auth"
	"github.com/iurnickita/poscashup/internal/config"
	"github.com/iurnickita/poscashup/internal/handler"
	"github.com/iurnickita/poscashup/internal/hook"
	"github.com/iurnickita/poscashup/internal/logger"
	"github.com/iurnickita/poscashup/internal/service"
	"github.com/iurnickita/poscashup/internal/store"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the terminal API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return errors.New("auth.secret is not configured")
	}

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	hooks := hook.NewPipeline(zaplog)
	if cfg.Hook.WebhookURL != "" {
		hooks.Register(hook.NewWebhook(cfg.Hook))
		zaplog.Info("webhook enabled", zap.String("url", cfg.Hook.WebhookURL))
	}

	auth := auth.NewAuth(cfg.Auth)
	service := service.NewService(cfg.Service, store, hooks, zaplog)

	return handler.Serve(ctx, cfg.Handler, auth, service, zaplog)
}
