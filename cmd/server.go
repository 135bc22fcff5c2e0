package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	app "csv-share-access/internal"
	"csv-share-access/internal/config"
	"csv-share-access/internal/storage"
	"csv-share-access/internal/utils"
	"csv-share-access/internal/validate"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const SHUTDOWN_TIMEOUT = 10 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the CSV share server",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println("Starting CSV share server...")
		if err := ServerMain(ctx, cfg, provider); err != nil {
			fatal("Server failed", err)
		}
	},
}

// Initialize logger
func initLogger(cfg *config.Config) *slog.Logger {
	// Determine level from config and set it on the handler options.
	var level slog.Level
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
		println("Invalid log level in config, defaulting to INFO")
	}
	handlerOpts := &slog.HandlerOptions{
		Level: level,
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	slog.SetDefault(logger)

	slog.Debug("Logger initialized", "level", level.String())
	return logger
}

func ServerMain(ctx context.Context, cfg *config.Config, storageProvider storage.Provider) error {
	initLogger(cfg)

	if storageProvider == nil {
		return errors.New("storage provider is nil")
	}
	if err := validate.AdminPassword(cfg.Admin.Password); err != nil {
		return fmt.Errorf("admin password rejected: %w", err)
	}
	if !cfg.Dev() {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := app.New(ctx, cfg, storageProvider)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Server.Janitor.Start()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           app.HTTPServer(a.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening", "addr", cfg.Listen, "version", utils.GetVersion(), "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
