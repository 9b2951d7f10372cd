// Package server wires the msgbox server together: storage, services, the
// command dispatcher, the TCP transport, the gRPC health endpoint and the
// Prometheus metrics endpoint.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/msgbox/internal/logging"
	"github.com/dmitrijs2005/msgbox/internal/server/auth"
	"github.com/dmitrijs2005/msgbox/internal/server/commands"
	"github.com/dmitrijs2005/msgbox/internal/server/config"
	"github.com/dmitrijs2005/msgbox/internal/server/metrics"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/msgbox/internal/server/services"
	"github.com/dmitrijs2005/msgbox/internal/server/tcp"

	gs "github.com/dmitrijs2005/msgbox/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	storage repomanager.RepositoryManager
	users   *services.UserService
	metrics *metrics.Metrics
	tcp     *tcp.Server
	health  *gs.HealthServer
}

func limitsFrom(c *config.Config) services.Limits {
	return services.Limits{
		MinUsernameLength: c.MinUsernameLength,
		MaxUsernameLength: c.MaxUsernameLength,
		MinPasswordLength: c.MinPasswordLength,
		MaxPasswordLength: c.MaxPasswordLength,
		MaxMessageLength:  c.MaxMessageLength,
		MailboxQuota:      c.MailboxQuota,
	}
}

// NewApp opens the configured storage and builds every component on top of
// it. The returned App owns the storage and closes it when Run returns.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	storage, err := repomanager.Open(ctx, repomanager.Options{
		Backend: c.Storage,
		DataDir: c.DataDir,
		DSN:     c.DatabaseDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	limits := limitsFrom(c)
	us := services.NewUserService(storage, auth.NewHasher(c.BcryptCost), limits, nil)
	ms := services.NewMailboxService(storage, services.NewIDGenerator(c.IDRandomBits, nil), limits, nil)
	m := metrics.New()

	d, err := commands.NewDispatcher(us, ms, auth.DefaultPermissions, logger, m)
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("dispatcher init error: %w", err)
	}

	srv := tcp.NewServer(tcp.Config{
		Address:          c.ListenAddr,
		MaxConnections:   c.MaxConnections,
		ReadTimeout:      c.ReadTimeout,
		WriteTimeout:     c.WriteTimeout,
		MaxRequestSize:   c.MaxRequestSize,
		MaxCommandLength: c.MaxCommandLength,
	}, d, logger, m)

	app := &App{
		config:  c,
		logger:  logger.With("module", "app"),
		storage: storage,
		users:   us,
		metrics: m,
		tcp:     srv,
	}
	if c.HealthAddr != "" {
		app.health = gs.NewHealthServer(c.HealthAddr, logger, storage, c.HealthInterval)
	}
	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func (app *App) bootstrapAdmin(ctx context.Context) error {
	created, err := app.users.EnsureAdmin(ctx, app.config.AdminUser, app.config.AdminPassword)
	if err != nil {
		return fmt.Errorf("admin bootstrap: %w", err)
	}
	if created {
		app.logger.Info(ctx, "bootstrap admin created", "username", app.config.AdminUser)
	}
	return nil
}

// Run serves until ctx is done, a termination signal arrives or one of the
// servers fails. Storage is closed after every server has stopped.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	stopSignals := app.initSignalHandler(cancelFunc)
	defer stopSignals()

	defer func() {
		if err := app.storage.Close(); err != nil {
			app.logger.Error(ctx, "storage close failed", "error", err.Error())
		}
	}()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.Storage)

	if err := app.bootstrapAdmin(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.tcp.Run(gctx)
	})
	if app.health != nil {
		g.Go(func() error {
			return app.health.Run(gctx)
		})
	}
	g.Go(func() error {
		return app.metrics.Serve(gctx, app.config.MetricsAddr, app.logger)
	})

	err := g.Wait()
	app.logger.Info(ctx, "App stopped")
	return err
}
