package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/fakeapi"
	"github.com/jakechorley/desk-booking/pkg/utils/logging"
)

func main() {
	var (
		addr        string
		prefix      string
		signingKey  string
		windowsUser string
		logDir      string
		tokenTTL    time.Duration
	)

	rootCmd := &cobra.Command{
		Use:   "fakeapi",
		Short: "Run an in-memory desk booking service for local development",
		Long: `Serves the desk booking API from memory. Accounts admin@example.com,
lead@example.com and user@example.com are seeded (passwords admin123, lead123, user123).
Settings can also come from FAKEAPI_ADDR and FAKEAPI_SIGNING_KEY, read from .env when present.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			if !cmd.Flags().Changed("addr") {
				addr = cmp.Or(os.Getenv("FAKEAPI_ADDR"), addr)
			}
			signingKey = cmp.Or(signingKey, os.Getenv("FAKEAPI_SIGNING_KEY"))

			logger, err := logging.InitLogger("fakeapi", logDir)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			server, err := fakeapi.New(fakeapi.Options{
				PathPrefix:  prefix,
				SigningKey:  []byte(signingKey),
				TokenTTL:    tokenTTL,
				WindowsUser: windowsUser,
				AccessLog:   os.Stdout,
				Logger:      logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			return serve(cmd.Context(), logger, addr, server.Handler())
		},
	}

	rootCmd.Flags().StringVar(&addr, "addr", ":5000", "Listen address")
	rootCmd.Flags().StringVar(&prefix, "prefix", fakeapi.DefaultPathPrefix, "Path prefix for every route")
	rootCmd.Flags().StringVar(&signingKey, "signing-key", "", "HMAC key for issued tokens (a fixed development key when empty)")
	rootCmd.Flags().StringVar(&windowsUser, "windows-user", "", "Email that integrated login signs in as")
	rootCmd.Flags().StringVar(&logDir, "log-dir", "logs", "Directory for log files")
	rootCmd.Flags().DurationVar(&tokenTTL, "token-ttl", fakeapi.DefaultTokenTTL, "Lifetime of issued tokens")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// serve runs the HTTP server until ctx is cancelled, then drains open requests
func serve(ctx context.Context, logger *zap.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Fake booking API listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
