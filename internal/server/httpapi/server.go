// Package httpapi exposes the account operations over HTTP with fiber.
package httpapi

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/dmitrijs2005/gophaccounts/internal/server/observability"
	"github.com/dmitrijs2005/gophaccounts/internal/server/policy"
	"github.com/dmitrijs2005/gophaccounts/internal/server/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type AuthService interface {
	Login(ctx context.Context, in services.LoginInput) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (*policy.Principal, error)
}

type AccountService interface {
	Register(ctx context.Context, in services.AccountInput) (*models.Account, error)
	AdminCreate(ctx context.Context, p *policy.Principal, in services.AccountInput) (*models.Account, error)
	List(ctx context.Context, p *policy.Principal) ([]*models.Account, error)
	Get(ctx context.Context, p *policy.Principal, id string) (*models.Account, error)
	Update(ctx context.Context, p *policy.Principal, id string, in services.UpdateInput) (*models.Account, error)
	Deactivate(ctx context.Context, p *policy.Principal, id string) (*models.Account, error)
	RequestPasswordReset(ctx context.Context, in services.PasswordResetInput) error
}

type Server struct {
	app      *fiber.App
	addr     string
	auth     AuthService
	accounts AccountService
	metrics  *observability.Metrics
	logger   logging.Logger
}

func NewServer(addr string, auth AuthService, accounts AccountService, metrics *observability.Metrics, logger logging.Logger) *Server {
	s := &Server{
		addr:     addr,
		auth:     auth,
		accounts: accounts,
		metrics:  metrics,
		logger:   logger.With("module", "http"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "gophaccounts",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           60 * time.Second,
	})
	s.routes()

	return s
}

func (s *Server) routes() {
	s.app.Use(s.observe)
	s.app.Use(recover.New())

	s.app.Get("/healthz", s.health)
	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	s.app.Post("/register", s.register)
	s.app.Post("/login", s.login)
	s.app.Post("/token/refresh", s.refresh)
	s.app.Post("/password-email", s.passwordEmail)

	admin := s.app.Group("/user", s.authenticate, s.requireAdmin)
	admin.Post("", s.adminCreate)
	admin.Get("", s.list)
	admin.Get("/:id", s.retrieve)
	admin.Patch("/:id", s.update)
	admin.Delete("/:id", s.deactivate)
}

// App exposes the fiber application, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server started", "addr", ln.Addr().String())
		errCh <- s.app.Listener(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = s.app.ShutdownWithContext(shutdownCtx)
	// Listener may not have started serving yet.
	_ = ln.Close()
	<-errCh

	s.logger.Info(ctx, "http server stopped")
	return err
}
