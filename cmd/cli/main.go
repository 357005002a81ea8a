package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/cmd/cli/commands"
	"github.com/jakechorley/desk-booking/internal/config"
	"github.com/jakechorley/desk-booking/pkg/api"
	"github.com/jakechorley/desk-booking/pkg/apiclient"
	"github.com/jakechorley/desk-booking/pkg/cache"
	"github.com/jakechorley/desk-booking/pkg/core/services"
	"github.com/jakechorley/desk-booking/pkg/postgres"
	"github.com/jakechorley/desk-booking/pkg/session"
	"github.com/jakechorley/desk-booking/pkg/sqlite"
	"github.com/jakechorley/desk-booking/pkg/utils/logging"
	"github.com/jakechorley/desk-booking/pkg/utils/telemetry"
)

var (
	env      string
	app = &commands.AppContext{}
	closers  []func(context.Context) error
	skipAuth = map[string]bool{"login": true, "help": true, "completion": true}
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Desk Booking CLI - Reserve office desks",
		Long:  `A CLI tool for browsing floors and desks, booking and cancelling reservations, and administering users and roles.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			shutdown()
		},
		SilenceUsage: true,
	}

	// Add persistent environment flag
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.LoginCmd(app))
	rootCmd.AddCommand(commands.LogoutCmd(app))
	rootCmd.AddCommand(commands.WhoAmICmd(app))
	rootCmd.AddCommand(commands.FloorsCmd(app))
	rootCmd.AddCommand(commands.CreateFloorCmd(app))
	rootCmd.AddCommand(commands.UpdateFloorCmd(app))
	rootCmd.AddCommand(commands.DeleteFloorCmd(app))
	rootCmd.AddCommand(commands.DesksCmd(app))
	rootCmd.AddCommand(commands.AvailableCmd(app))
	rootCmd.AddCommand(commands.CreateDeskCmd(app))
	rootCmd.AddCommand(commands.UpdateDeskCmd(app))
	rootCmd.AddCommand(commands.DeleteDeskCmd(app))
	rootCmd.AddCommand(commands.ReserveCmd(app))
	rootCmd.AddCommand(commands.CancelCmd(app))
	rootCmd.AddCommand(commands.MyReservationsCmd(app))
	rootCmd.AddCommand(commands.DeskReservationsCmd(app))
	rootCmd.AddCommand(commands.UsersCmd(app))
	rootCmd.AddCommand(commands.RolesCmd(app))
	rootCmd.AddCommand(commands.AssignRoleCmd(app))
	rootCmd.AddCommand(commands.RemoveRoleCmd(app))
	rootCmd.AddCommand(commands.CreateRoleCmd(app))
	rootCmd.AddCommand(commands.WatchCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, session, API client and services
func initApp(cmd *cobra.Command) error {
	var err error
	app.Ctx = context.Background()

	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app.Logger, err = logging.InitLogger(env, app.Cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger.Debug("Starting application",
		zap.String("environment", env),
		zap.String("api_base_url", app.Cfg.APIBaseURL))

	closers = append(closers, telemetry.Setup(app.Ctx, telemetry.Options{
		Endpoint:    app.Cfg.Telemetry.OTLPEndpoint,
		Insecure:    app.Cfg.Telemetry.Insecure,
		ServiceName: app.Cfg.Telemetry.ServiceName,
	}, app.Logger))

	storage, err := openSessionStorage(app.Ctx, app.Cfg.Session)
	if err != nil {
		return err
	}
	app.Session = session.NewStore(storage, app.Logger)
	if err := app.Session.Init(app.Ctx); err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if app.Cfg.AuthToken != "" {
		if err := app.Session.SetToken(app.Ctx, app.Cfg.AuthToken); err != nil {
			return fmt.Errorf("failed to store token from environment: %w", err)
		}
	}
	app.Logger.Debug("Session loaded", zap.String("driver", app.Cfg.Session.Driver), zap.Bool("authenticated", app.Session.IsAuthenticated()))

	clientOpts := apiclient.Options{
		BaseURL:   app.Cfg.APIBaseURL,
		Timeout:   app.Cfg.RequestTimeout,
		LoginPath: app.Cfg.LoginPath,
		Logger:    app.Logger,
	}
	if app.Cfg.AuthMode == config.AuthBearer {
		clientOpts.TokenSource = app.Session
	}
	client, err := apiclient.New(clientOpts)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}
	app.Navigator = commands.NewNavigator(cmd.Name(), client.LoginPath(), os.Stderr)

	cacheCfg := cache.Config{
		MaxEntries:    app.Cfg.Cache.MaxEntries,
		RetryAttempts: cache.DefaultRetryAttempts,
		RetryInterval: app.Cfg.Cache.RetryInterval,
		Retryable:     services.Retryable,
		Logger:        app.Logger,
	}
	if app.Cfg.Cache.RetryAttempts != nil {
		cacheCfg.RetryAttempts = *app.Cfg.Cache.RetryAttempts
	}
	app.Cache, err = cache.New(cacheCfg)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}

	app.Services = services.New(services.Deps{
		Cache:    app.Cache,
		Repos:    api.NewRepositories(client),
		Session:  app.Session,
		Notifier: services.LogNotifier{Logger: app.Logger},
		Logger:   app.Logger,
	})
	// a 401 drops the session and the cache together
	client.SetSession(app.Services, app.Navigator)

	if !skipAuth[cmd.Name()] {
		app.Services.Auth.Probe(app.Ctx)
	}
	return nil
}

func openSessionStorage(ctx context.Context, cfg config.SessionConfig) (session.Storage, error) {
	switch cfg.Driver {
	case config.SessionMemory:
		return session.NewMemoryStorage(), nil
	case config.SessionSQLite:
		storage, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open session database: %w", err)
		}
		closers = append(closers, func(context.Context) error { return storage.Close() })
		return storage, nil
	case config.SessionPostgres:
		db, err := postgres.NewDB(ctx, cfg.DSN, app.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to session database: %w", err)
		}
		closers = append(closers, func(context.Context) error { db.Close(); return nil })
		if err := db.RunMigrations(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate session database: %w", err)
		}
		return db.SessionStorage(cfg.Namespace), nil
	default:
		return session.NewFileStorage(cfg.Path), nil
	}
}

func shutdown() {
	if app.Cache != nil {
		app.Cache.Wait()
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](context.Background()); err != nil && app.Logger != nil {
			app.Logger.Warn("Shutdown step failed", zap.Error(err))
		}
	}
	closers = nil
	if app.Logger != nil {
		app.Logger.Sync()
	}
}
