package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vendorpos/internal/handlers/middleware"
	"github.com/nkiryanov/vendorpos/internal/logger"
	"github.com/nkiryanov/vendorpos/internal/models"
	"github.com/nkiryanov/vendorpos/internal/ratelimit"
	"github.com/nkiryanov/vendorpos/internal/service/account"
	"github.com/nkiryanov/vendorpos/internal/service/ledger"
	"github.com/nkiryanov/vendorpos/internal/service/report"
	"github.com/nkiryanov/vendorpos/internal/service/sale"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Services struct {
	Auth    authService
	Account accountService
	Ledger  ledgerService
	Report  reportService
	Sale    saleService

	// Login attempts limiter. Nil disables limiting
	LoginLimiter loginLimiter

	// Served on /metrics when set
	Metrics http.Handler
}

func NewRouter(s Services, logger logger.Logger) http.Handler {
	withAuth := middleware.AuthMiddleware(s.Auth)
	adminOnly := func(h http.Handler) http.Handler {
		return chain(h, withAuth, middleware.RequireRole(models.RoleAdmin))
	}
	vendorOnly := func(h http.Handler) http.Handler {
		return chain(h, withAuth, middleware.RequireRole(models.RoleVendor))
	}

	login := handleLogin(s.Auth, s.LoginLimiter, logger)
	if s.LoginLimiter != nil {
		login = middleware.RateLimitMiddleware(s.LoginLimiter, logger)(login)
	}

	api := http.NewServeMux()

	api.Handle("POST /auth/login", login)
	api.Handle("POST /auth/refresh", handleTokenRefresh(s.Auth, logger))

	api.Handle("GET /me", withAuth(handleMe()))
	api.Handle("POST /pin", withAuth(handleChangePIN(s.Account, logger)))

	api.Handle("GET /vendors", adminOnly(handleListVendors(s.Account, logger)))
	api.Handle("GET /vendors/{id}/balance", withAuth(handleVendorBalance(s.Ledger, logger)))
	api.Handle("GET /ledger/balance", adminOnly(handleGlobalBalance(s.Ledger, logger)))
	api.Handle("POST /ledger/transfer", adminOnly(handleTransfer(s.Ledger, logger)))
	api.Handle("POST /ledger/fund", adminOnly(handleFund(s.Ledger, logger)))

	api.Handle("GET /transactions", withAuth(handleListTransactions(s.Report, logger)))
	api.Handle("GET /transactions/export", withAuth(handleExportTransactions(s.Report, logger)))
	api.Handle("GET /dashboard", adminOnly(handleDashboard(s.Report, logger)))

	api.Handle("GET /users", adminOnly(handleListUsers(s.Account, logger)))
	api.Handle("POST /users", adminOnly(handleCreateUser(s.Account, logger)))
	api.Handle("PATCH /users/{id}", adminOnly(handleUpdateUser(s.Account, logger)))
	api.Handle("DELETE /users/{id}", adminOnly(handleDeleteUser(s.Account, logger)))

	api.Handle("GET /packages", vendorOnly(handlePackages()))
	api.Handle("POST /sales/recharges", vendorOnly(handleRechargeSale(s.Sale, logger)))
	api.Handle("POST /sales/packages", vendorOnly(handlePackageSale(s.Sale, logger)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	if s.Metrics != nil {
		root.Handle("GET /metrics", s.Metrics)
	}

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Login with email and password
	// Has to return apperrors.ErrAuthentication on any mismatch
	Login(ctx context.Context, email string, password string) (models.Account, models.TokenPair, error)

	// Refresh tokens using refresh token
	// If token expired: has to return apperrors.ErrRefreshTokenExpired
	// If token not found: has to return apperrors.ErrRefreshTokenNotFound
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)

	// Set auth tokens (access, refresh) to response
	SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair)

	// Get refresh token from request
	GetRefreshString(r *http.Request) (string, error)

	// Get request and return account if it authenticated or error
	Auth(ctx context.Context, r *http.Request) (models.Account, error)
}

type loginLimiter interface {
	Allow(ctx context.Context, clientID string) (ratelimit.Decision, error)
	Reset(ctx context.Context, clientID string) error
}

type accountService interface {
	Create(ctx context.Context, in account.CreateAccount) (models.Account, error)
	Get(ctx context.Context, id uuid.UUID) (models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
	ListVendors(ctx context.Context) ([]models.Account, error)
	Update(ctx context.Context, id uuid.UUID, in account.UpdateAccount) (models.Account, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ChangePIN(ctx context.Context, id uuid.UUID, p *account.PinChange) error
}

type ledgerService interface {
	Transfer(ctx context.Context, adminID uuid.UUID, vendorID uuid.UUID, amount decimal.Decimal) (ledger.TransferResult, error)
	Fund(ctx context.Context, adminID uuid.UUID, amount decimal.Decimal) (ledger.FundResult, error)
	GetGlobalBalance(ctx context.Context) (decimal.Decimal, error)
	GetVendorBalance(ctx context.Context, vendorID uuid.UUID) (decimal.Decimal, error)
}

type reportService interface {
	Report(ctx context.Context, q report.Query) (report.Report, error)
	Export(ctx context.Context, w io.Writer, q report.Query, layout report.Layout) (string, error)
	Dashboard(ctx context.Context, now time.Time) (report.Dashboard, error)
	Currency() string
}

type saleService interface {
	Commit(ctx context.Context, s *sale.Sale) error
}
