package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/access"
	"github.com/mystudenthub/backend/core/circle"
	"github.com/mystudenthub/backend/core/material"
	"github.com/mystudenthub/backend/core/notification"
	"github.com/mystudenthub/backend/core/user"
)

// Deps holds everything the API handlers need.
type Deps struct {
	Conf        *core.Config
	Logger      core.Logger
	Validate    *validator.Validate
	Translator  ut.Translator
	UserSvc     *user.Service
	Provisioner *user.Provisioner
	MaterialSvc *material.Service
	CircleSvc   *circle.Service
	NotifSvc    *notification.Service
	Enforcer    *access.Enforcer
	Revoker     core.TokenRevoker
	Registry    *prometheus.Registry
}

type Server struct {
	app      *echo.Echo
	deps     *Deps
	tokens   *TokenIssuer
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps *Deps) (*Server, error) {
	s := &Server{
		app:      echo.New(),
		deps:     deps,
		tokens:   NewTokenIssuer(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	if err := s.setup(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setup() error {
	conf := s.deps.Conf

	metrics, err := newMetrics(s.deps.Registry)
	if err != nil {
		return errors.Wrap(err, "registering http metrics")
	}
	authLimit, err := newRateLimit(conf.Server.LoginRate)
	if err != nil {
		return errors.Wrap(err, "parsing login rate")
	}

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(metrics.middleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", home)
	s.app.GET("/health", health)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{})))

	v1 := s.app.Group("/v1")
	auth := s.authMiddleware
	admin := v1.Group("/admin", auth, s.adminGate)

	registerSessionAPI(v1, auth, authLimit, s.deps, s.tokens)
	registerDashboardAPI(v1, admin, auth, s.deps)
	registerUserAPI(v1, admin, auth, s.deps)
	registerMaterialAPI(v1, auth, s.deps)
	registerCircleAPI(v1, admin, auth, s.deps)
	registerNotificationAPI(v1, admin, auth, s.deps)
	return nil
}

func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to MyStudentHub API!")
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
