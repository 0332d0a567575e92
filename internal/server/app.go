// Package server wires configuration, storage, mail delivery and the
// account services together and runs the HTTP and gRPC endpoints until
// the process is signalled.
package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"github.com/dmitrijs2005/gophaccounts/internal/server/httpapi"
	"github.com/dmitrijs2005/gophaccounts/internal/server/mail"
	"github.com/dmitrijs2005/gophaccounts/internal/server/observability"
	"github.com/dmitrijs2005/gophaccounts/internal/server/services"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/gophaccounts/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	storage  *Storage
	metrics  *observability.Metrics
	auth     *services.AuthService
	accounts *services.AccountService
}

// NewApp opens storage, applies migrations and builds the services.
// Log output goes to w. A missing secret key is replaced by a random one
// for the memory registry only; with a real database it is a
// configuration error.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {
	logger := logging.New(w, c.LogFormat)

	if c.SecretKey == "" {
		if c.DatabaseDSN != config.MemoryDSN {
			return nil, oops.Code("CONFIG_INVALID").
				With("operation", "new app").
				Wrapf(common.ErrValidation, "secret key is required unless the database is %q", config.MemoryDSN)
		}
		key, err := common.MakeRandHexString(32)
		if err != nil {
			return nil, oops.Code("SECRET_KEY_GENERATION_FAILED").Wrap(err)
		}
		c.SecretKey = key
		logger.Warn(ctx, "no secret key configured, using a random one; tokens will not survive a restart")
	}

	storage, err := OpenStorage(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	mailer, err := mail.New(ctx, c, logger)
	if err != nil {
		storage.Close()
		return nil, err
	}

	auth, err := services.NewAuthService(storage.db, storage.repos, storage.hasher, c, logger)
	if err != nil {
		storage.Close()
		return nil, err
	}

	return &App{
		config:   c,
		logger:   logger,
		storage:  storage,
		metrics:  observability.NewMetrics(),
		auth:     auth,
		accounts: storage.AccountService(mailer, c.PasswordResetURL, logger),
	}, nil
}

// Close releases the database handle.
func (app *App) Close() {
	app.storage.Close()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) grpcServer() *gs.GRPCServer {
	if app.storage.db == nil {
		return gs.NewGRPCServer(app.config.EndpointAddrGRPC, nil, app.logger)
	}
	return gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.storage.db, app.logger)
}

// Run serves HTTP and, when configured, gRPC until ctx is cancelled, a
// termination signal arrives or one of the servers fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		srv := httpapi.NewServer(app.config.EndpointAddrHTTP, app.auth, app.accounts, app.metrics, app.logger)
		return srv.Run(ctx)
	})

	if app.config.EndpointAddrGRPC != "" {
		g.Go(func() error {
			return app.grpcServer().Run(ctx)
		})
	}

	err := g.Wait()
	app.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		app.logger.Error(ctx, "app stopped with error", "error", err)
		return err
	}

	app.logger.Info(ctx, "App stopped")
	return nil
}
