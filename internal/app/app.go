package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Temutjin2k/driver-match-system/config"
	"github.com/Temutjin2k/driver-match-system/internal/adapter/http/server"
	wshandler "github.com/Temutjin2k/driver-match-system/internal/adapter/http/ws"
	repo "github.com/Temutjin2k/driver-match-system/internal/adapter/postgres"
	rabbitadapter "github.com/Temutjin2k/driver-match-system/internal/adapter/rabbit"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/internal/service/assign"
	"github.com/Temutjin2k/driver-match-system/internal/service/auth"
	"github.com/Temutjin2k/driver-match-system/internal/service/dispatch"
	"github.com/Temutjin2k/driver-match-system/internal/service/matching"
	"github.com/Temutjin2k/driver-match-system/internal/service/metricsagg"
	"github.com/Temutjin2k/driver-match-system/internal/service/selector"
	"github.com/Temutjin2k/driver-match-system/internal/service/timeout"
	"github.com/Temutjin2k/driver-match-system/pkg/clock"
	"github.com/Temutjin2k/driver-match-system/pkg/logger"
	"github.com/Temutjin2k/driver-match-system/pkg/postgres"
	"github.com/Temutjin2k/driver-match-system/pkg/rabbit"
	"github.com/Temutjin2k/driver-match-system/pkg/trm"
	ws "github.com/Temutjin2k/driver-match-system/pkg/wsHub"
)

// App wires the matching service together: postgres, rabbitmq, the
// coordinator with its timers, and the HTTP server.
type App struct {
	postgresDB *postgres.PostgreDB
	rabbitMQ   *rabbit.RabbitMQ
	connHub    *ws.ConnectionHub
	timeouts   *timeout.Manager
	matcher    *matching.Service
	httpServer *server.API

	cfg config.Config
	log logger.Logger
}

func NewApplication(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	postgresDB, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Error(ctx, "Failed to setup database", err)
		return nil, err
	}

	rabbitMQ, err := rabbit.New(ctx, cfg.RabbitMQ.GetDSN(), log)
	if err != nil {
		log.Error(ctx, "Failed to setup rabbitmq", err)
		return nil, err
	}

	messenger, err := rabbitadapter.NewMessenger(rabbitMQ)
	if err != nil {
		log.Error(ctx, "Failed to setup messenger", err)
		return nil, err
	}
	adminNotifier, err := rabbitadapter.NewAdminNotifier(rabbitMQ)
	if err != nil {
		log.Error(ctx, "Failed to setup admin notifier", err)
		return nil, err
	}

	bookingRepo := repo.NewBookingRepo(postgresDB.Pool)
	driverRepo := repo.NewDriverRepo(postgresDB.Pool)
	customerRepo := repo.NewCustomerRepo(postgresDB.Pool)
	notificationRepo := repo.NewNotificationRepo(postgresDB.Pool)
	metricRepo := repo.NewMetricRepo(postgresDB.Pool)

	txManager := trm.New(postgresDB.Pool)
	clk := clock.Real()

	connHub := ws.NewConnHub(log)

	sel := selector.New(driverRepo, nil)
	aggregator := metricsagg.New(metricRepo, log)
	transactor := assign.New(txManager, bookingRepo, driverRepo, metricRepo, clk)
	timeouts := timeout.NewManager(log)

	// The driver hub needs the coordinator for inbound answers and the
	// dispatcher needs the hub for outbound pushes, so the hub is built
	// first with a late-bound handler.
	driverHub := wshandler.NewDriverHub(connHub, nil, log)

	dispatcher := dispatch.New(notificationRepo, messenger, driverHub, log, clk)

	matcher := matching.NewService(
		matching.Config{
			DriverResponseTimeout: cfg.Matching.DriverResponseTimeout,
			BookingTimeout:        cfg.Matching.BookingTimeout,
			MaxDistanceKm:         cfg.Matching.MaxDistanceKm,
			Priority:              types.PriorityMode(cfg.Matching.Priority),
		},
		bookingRepo,
		customerRepo,
		driverRepo,
		notificationRepo,
		sel,
		dispatcher,
		transactor,
		aggregator,
		timeouts,
		messenger,
		adminNotifier,
		log,
		clk,
	)
	timeouts.SetHandler(matcher)
	driverHub.SetResponseHandler(matcher)

	tokenService := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.DriverTokenTTL)

	httpServer, err := server.New(cfg, matcher, tokenService, tokenService, driverRepo, driverHub, log)
	if err != nil {
		log.Error(ctx, "Failed to setup http server", err)
		return nil, err
	}

	return &App{
		postgresDB: postgresDB,
		rabbitMQ:   rabbitMQ,
		connHub:    connHub,
		timeouts:   timeouts,
		matcher:    matcher,
		httpServer: httpServer,
		cfg:        cfg,
		log:        log,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	// Bookings that were mid-matching when the previous process died get
	// their timers re-armed before traffic arrives.
	if err := a.matcher.RecoverPending(ctx); err != nil {
		a.log.Error(ctx, "failed to recover pending matching attempts", err)
	}

	a.httpServer.Run(ctx, errCh)
	defer func() {
		a.close(ctx)
		a.log.Info(ctx, "matching service closed")
	}()

	// Waiting signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	a.log.Info(ctx, "matching service started")

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		a.log.Info(ctx, "shutting down application", "signal", sig.String())
		return nil
	}
}

func (a *App) close(ctx context.Context) {
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Warn(ctx, "Failed to gracefully close http server", "error", err.Error())
		}
	}

	if a.timeouts != nil {
		a.timeouts.ClearAllTimeouts()
	}

	if a.connHub != nil {
		a.connHub.Close()
	}

	if a.rabbitMQ != nil {
		if err := a.rabbitMQ.Close(ctx); err != nil {
			a.log.Warn(ctx, "Failed to gracefully close rabbitmq", "error", err.Error())
		}
	}

	if a.postgresDB != nil && a.postgresDB.Pool != nil {
		a.postgresDB.Pool.Close()
	}
}
