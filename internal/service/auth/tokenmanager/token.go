package tokenmanager

import (
	"cmp"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/vendorpos/internal/apperrors"
	"github.com/nkiryanov/vendorpos/internal/models"
	"github.com/nkiryanov/vendorpos/internal/repository"
)

const (
	DefaultIssuer = "vendorpos"

	defaultAlg        = "HS256"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 12 * time.Hour

	refreshTokenBytes = 32
)

// Access token claims. The account id travels in 'sub'
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Role models.Role `json:"role"`
}

func (c AccessTokenClaims) AccountID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

type Config struct {
	// HMAC key, required
	SecretKey string

	// HS256 when empty
	Alg string

	// Written to and checked against 'iss'. DefaultIssuer when empty
	Issuer string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issues short lived JWT access tokens and opaque single use refresh tokens
type TokenManager struct {
	key        []byte
	alg        jwt.SigningMethod
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration

	refreshRepo repository.RefreshTokenRepo
}

func New(cfg Config, refreshRepo repository.RefreshTokenRepo) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	m := &TokenManager{
		key:         []byte(cfg.SecretKey),
		alg:         jwt.GetSigningMethod(cmp.Or(cfg.Alg, defaultAlg)),
		issuer:      cmp.Or(cfg.Issuer, DefaultIssuer),
		accessTTL:   cmp.Or(cfg.AccessTTL, defaultAccessTTL),
		refreshTTL:  cmp.Or(cfg.RefreshTTL, defaultRefreshTTL),
		refreshRepo: refreshRepo,
	}
	if m.alg == nil {
		return nil, fmt.Errorf("unknown signing method %q", cfg.Alg)
	}

	return m, nil
}

func (m *TokenManager) GeneratePair(ctx context.Context, account models.Account) (models.TokenPair, error) {
	now := time.Now().Truncate(time.Second)

	access, err := m.signAccess(account, now)
	if err != nil {
		return models.TokenPair{}, err
	}

	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return models.TokenPair{}, fmt.Errorf("error while generating refresh token. Err: %w", err)
	}

	refresh, err := m.refreshRepo.Save(ctx, models.RefreshToken{
		ID:        uuid.New(),
		AccountID: account.ID,
		Token:     hex.EncodeToString(b),
		CreatedAt: now,
		ExpiresAt: now.Add(m.refreshTTL),
	})
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.TokenPair{
		Access:  access,
		Refresh: models.IssuedToken{Value: refresh.Token, ExpiresAt: refresh.ExpiresAt},
	}, nil
}

func (m *TokenManager) signAccess(account models.Account, now time.Time) (models.IssuedToken, error) {
	expiresAt := now.Add(m.accessTTL)

	token := jwt.NewWithClaims(m.alg, AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: account.Role(),
	})

	signed, err := token.SignedString(m.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Mark the refresh token used and return it. Fails if it was used before or is expired
func (m *TokenManager) UseRefresh(ctx context.Context, refresh string) (models.RefreshToken, error) {
	token, err := m.refreshRepo.GetAndMarkUsed(ctx, refresh)
	if err != nil {
		return token, fmt.Errorf("refresh token rejected. Err: %w", err)
	}

	if !token.ExpiresAt.After(time.Now()) {
		return token, fmt.Errorf("refresh token rejected. Err: %w", apperrors.ErrRefreshTokenExpired)
	}

	return token, nil
}

// Verify signature, issuer and expiry and return the account id from 'sub'
func (m *TokenManager) ParseAccess(_ context.Context, access string) (uuid.UUID, error) {
	claims := &AccessTokenClaims{}

	_, err := jwt.ParseWithClaims(access, claims,
		func(*jwt.Token) (any, error) { return m.key, nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("access token rejected. Err: %w", err)
	}

	accountID, err := claims.AccountID()
	if err != nil {
		return uuid.Nil, fmt.Errorf("access token rejected, bad subject. Err: %w", err)
	}

	return accountID, nil
}
