package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Temutjin2k/driver-match-system/config"
	"github.com/Temutjin2k/driver-match-system/internal/adapter/http/handler"
	"github.com/Temutjin2k/driver-match-system/internal/adapter/http/middleware"
	wshandler "github.com/Temutjin2k/driver-match-system/internal/adapter/http/ws"
	"github.com/Temutjin2k/driver-match-system/pkg/logger"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
)

const serverIPAddress = "%s:%s"

type API struct {
	mux    *http.ServeMux
	server *http.Server
	routes *handlers
	m      *middleware.Middleware

	addr string
	cfg  config.Config
	log  logger.Logger
}

type handlers struct {
	matching *handler.Matching
	auth     *handler.Auth
	health   *handler.Health
	driverWS *wshandler.DriverHub
}

func New(
	cfg config.Config,
	matchingService handler.MatchingService,
	tokenService handler.TokenService,
	tokenValidator middleware.TokenValidator,
	driverChecker handler.DriverChecker,
	driverHub *wshandler.DriverHub,
	log logger.Logger,
) (*API, error) {
	if tokenValidator == nil {
		return nil, errors.New("token validator is required")
	}

	addr := fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Server.Port)

	routes := &handlers{
		matching: handler.NewMatching(matchingService, log),
		auth:     handler.NewAuth(tokenService, driverChecker, log),
		health:   handler.NewHealth(cfg.ServiceName, log),
		driverWS: driverHub,
	}

	mid := middleware.NewMiddleware(tokenValidator, log)

	api := &API{
		mux:    http.NewServeMux(),
		routes: routes,
		m:      mid,
		addr:   addr,
		cfg:    cfg,
		log:    log,
	}

	api.server = &http.Server{
		Addr:    api.addr,
		Handler: api.withMiddleware(),
	}

	setupRoutes(api.mux, api.routes, api.m, cfg.ServiceName)

	return api, nil
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
	}()
}

// withMiddleware applies middlewares to the mux
func (a *API) withMiddleware() http.Handler {
	chain := a.m.Metrics(a.cfg.ServiceName)(a.mux)
	chain = a.m.Logging(chain)
	chain = a.m.Auth(chain)
	chain = a.m.RequestID(chain)
	return a.m.Recover(chain)
}
