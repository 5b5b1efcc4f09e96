package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/vendorpos/internal/db"
	"github.com/nkiryanov/vendorpos/internal/handlers"
	"github.com/nkiryanov/vendorpos/internal/logger"
	"github.com/nkiryanov/vendorpos/internal/metrics"
	"github.com/nkiryanov/vendorpos/internal/ratelimit"
	"github.com/nkiryanov/vendorpos/internal/repository/postgres"
	"github.com/nkiryanov/vendorpos/internal/service/account"
	"github.com/nkiryanov/vendorpos/internal/service/auth"
	"github.com/nkiryanov/vendorpos/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/vendorpos/internal/service/ledger"
	"github.com/nkiryanov/vendorpos/internal/service/report"
	"github.com/nkiryanov/vendorpos/internal/service/sale"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger
	pool   *pgxpool.Pool
	redis  *redis.Client
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	location, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return nil, fmt.Errorf("error while loading report timezone. Err: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	app := &ServerApp{ListenAddr: c.ListenAddr, logger: logger, pool: pool}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey}, storage.Refresh())
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	authService, err := auth.NewService(auth.Config{}, tokenManager, storage.Account())
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	accountService := account.NewService(auth.DefaultHasher, storage, logger.With("service", "account"))
	ledgerService := ledger.NewService(storage, logger.With("service", "ledger"))
	saleService := sale.NewService(ledgerService, logger.With("service", "sale"))
	reportService, err := report.NewService(report.Config{Location: location, Currency: c.Currency}, storage)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating report service. Err: %w", err)
	}

	created, err := accountService.EnsureAdmin(ctx, c.AdminEmail, c.AdminPassword)
	switch {
	case err != nil:
		// Not fatal: an existing deployment may be started without bootstrap credentials
		logger.Warn("Admin bootstrap skipped", "error", err)
	case created:
		logger.Info("Admin account created", "email", c.AdminEmail)
	}

	services := handlers.Services{
		Auth:    authService,
		Account: accountService,
		Ledger:  ledgerService,
		Report:  reportService,
		Sale:    saleService,
		Metrics: metrics.Handler(),
	}

	if c.RedisAddr != "" {
		app.redis, err = newRedisClient(c.RedisAddr)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("error while configuring redis. Err: %w", err)
		}
		if err := app.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis is unreachable, login rate limiting fails open", "error", err)
		}

		limiter, err := ratelimit.New(ratelimit.Config{Limit: c.LoginRateLimit, KeyPrefix: "vendorpos:login"}, app.redis)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("error while creating rate limiter. Err: %w", err)
		}
		services.LoginLimiter = limiter
	}

	app.Handler = handlers.NewRouter(services, logger)
	return app, nil
}

// Accepts redis://... URLs and plain host:port
func newRedisClient(addr string) (*redis.Client, error) {
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}

// Release db and redis connections
func (s *ServerApp) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("Redis close error", "error", err)
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
