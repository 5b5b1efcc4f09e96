package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/vendorpos/internal/apperrors"
	"github.com/nkiryanov/vendorpos/internal/models"
	"github.com/nkiryanov/vendorpos/internal/repository"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshCookieName = "refreshToken"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

var DefaultHasher PasswordHasher = BcryptHasher{}

type tokenManager interface {
	GeneratePair(ctx context.Context, account models.Account) (models.TokenPair, error)
	UseRefresh(ctx context.Context, refresh string) (models.RefreshToken, error)
	ParseAccess(ctx context.Context, access string) (uuid.UUID, error)
}

type Config struct {
	// Header to put access token to. Default is 'Authorization'
	AccessHeaderName string

	// Scheme prefix of the access header value. Default is 'Bearer'
	AccessAuthScheme string

	// Cookie to keep refresh token in. Default is 'refreshToken'
	RefreshCookieName string

	// Hasher to compare passwords on login
	Hasher PasswordHasher
}

type AuthService struct {
	accessHeaderName  string
	accessAuthScheme  string
	refreshCookieName string

	hasher   PasswordHasher
	tokens   tokenManager
	accounts repository.AccountRepo

	// Compared against when account not exists, so both branches cost the same
	dummyHash func() (string, error)
}

func NewService(cfg Config, tokens tokenManager, accounts repository.AccountRepo) (*AuthService, error) {
	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessHeaderName, defaultAccessHeaderName)
	setDefault(&cfg.AccessAuthScheme, defaultAccessAuthScheme)
	setDefault(&cfg.RefreshCookieName, defaultRefreshCookieName)

	if cfg.Hasher == nil {
		cfg.Hasher = DefaultHasher
	}

	hasher := cfg.Hasher
	return &AuthService{
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		refreshCookieName: cfg.RefreshCookieName,
		hasher:            hasher,
		tokens:            tokens,
		accounts:          accounts,
		dummyHash: sync.OnceValues(func() (string, error) {
			return hasher.Hash("not-a-real-password")
		}),
	}, nil
}

// Login by email and password.
// Any mismatch is reported as apperrors.ErrAuthentication
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.Account, models.TokenPair, error) {
	account, err := s.accounts.GetAccountByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		if hash, hashErr := s.dummyHash(); hashErr == nil {
			_ = s.hasher.Compare(hash, password)
		}
		return models.Account{}, models.TokenPair{}, apperrors.ErrAuthentication
	case err != nil:
		return models.Account{}, models.TokenPair{}, fmt.Errorf("can't get account. Err: %w", err)
	}

	if err := s.hasher.Compare(account.HashedPassword, password); err != nil {
		return models.Account{}, models.TokenPair{}, apperrors.ErrAuthentication
	}

	pair, err := s.tokens.GeneratePair(ctx, account)
	if err != nil {
		return models.Account{}, models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return account, pair, nil
}

// Exchange refresh token to the new pair. Refresh token could be used only once
func (s *AuthService) RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error) {
	token, err := s.tokens.UseRefresh(ctx, refresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	account, err := s.accounts.GetAccountByID(ctx, token.AccountID)
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return models.TokenPair{}, apperrors.ErrAuthentication
	case err != nil:
		return models.TokenPair{}, fmt.Errorf("can't get account. Err: %w", err)
	}

	return s.tokens.GeneratePair(ctx, account)
}

func (s *AuthService) SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair) {
	w.Header().Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)

	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    pair.Refresh.Value,
		Path:     "/api/auth/refresh",
		Expires:  pair.Refresh.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *AuthService) GetRefreshString(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil {
		return "", apperrors.ErrRefreshTokenNotFound
	}
	return cookie.Value, nil
}

// Authenticate request by access token.
// Account is re-read on every request so role changes and deletions apply immediately
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.Account, error) {
	header := r.Header.Get(s.accessHeaderName)
	access, found := strings.CutPrefix(header, s.accessAuthScheme+" ")
	if !found || access == "" {
		return models.Account{}, apperrors.ErrAuthentication
	}

	accountID, err := s.tokens.ParseAccess(ctx, access)
	if err != nil {
		return models.Account{}, errors.Join(apperrors.ErrAuthentication, err)
	}

	account, err := s.accounts.GetAccountByID(ctx, accountID)
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return models.Account{}, apperrors.ErrAuthentication
	case err != nil:
		return models.Account{}, fmt.Errorf("can't get account. Err: %w", err)
	}

	return account, nil
}
