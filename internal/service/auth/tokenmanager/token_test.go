package tokenmanager

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vendorpos/internal/apperrors"
	"github.com/nkiryanov/vendorpos/internal/models"
	"github.com/nkiryanov/vendorpos/internal/repository/postgres"
	"github.com/nkiryanov/vendorpos/internal/testutil"
)

const testKey = "test-secret-key"

func TestNew(t *testing.T) {
	m, err := New(Config{SecretKey: "secret"}, nil)
	require.NoError(t, err)
	require.Equal(t, defaultAccessTTL, m.accessTTL)
	require.Equal(t, defaultRefreshTTL, m.refreshTTL)
	require.Equal(t, defaultAlg, m.alg.Alg())
	require.Equal(t, DefaultIssuer, m.issuer)

	m, err = New(Config{SecretKey: "secret", Alg: "HS512", Issuer: "pos-test", AccessTTL: time.Minute}, nil)
	require.NoError(t, err)
	require.Equal(t, "HS512", m.alg.Alg())
	require.Equal(t, "pos-test", m.issuer)
	require.Equal(t, time.Minute, m.accessTTL)

	_, err = New(Config{}, nil)
	require.Error(t, err, "secret key is required")

	_, err = New(Config{SecretKey: "secret", Alg: "nope"}, nil)
	require.Error(t, err, "unknown alg must be rejected")
}

func TestTokenManager(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Every case gets its own vendor and manager inside a rolled back transaction
	withManager := func(t *testing.T, cfg Config, fn func(m *TokenManager, vendor models.Account)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			vendor, err := storage.Account().CreateAccount(t.Context(), models.Account{
				Name:           "Tienda Uno",
				Email:          "uno@example.com",
				HashedPassword: "hashed_password",
				Details:        models.VendorDetails{},
			})
			require.NoError(t, err)

			cfg.SecretKey = testKey
			m, err := New(cfg, storage.Refresh())
			require.NoError(t, err)

			fn(m, vendor)
		})
	}

	parse := func(t *testing.T, access string) *AccessTokenClaims {
		claims := &AccessTokenClaims{}
		_, err := jwt.ParseWithClaims(access, claims, func(*jwt.Token) (any, error) {
			return []byte(testKey), nil
		})
		require.NoError(t, err)
		return claims
	}

	t.Run("GeneratePair", func(t *testing.T) {
		t.Run("access and refresh lifetimes", func(t *testing.T) {
			withManager(t, Config{AccessTTL: 10 * time.Minute, RefreshTTL: 6 * time.Hour}, func(m *TokenManager, vendor models.Account) {
				pair, err := m.GeneratePair(t.Context(), vendor)
				require.NoError(t, err)

				require.NotEmpty(t, pair.Access.Value)
				require.WithinDuration(t, time.Now().Add(10*time.Minute), pair.Access.ExpiresAt, time.Second)
				require.Len(t, pair.Refresh.Value, 2*refreshTokenBytes, "hex encoded refresh token")
				require.WithinDuration(t, time.Now().Add(6*time.Hour), pair.Refresh.ExpiresAt, time.Second)
			})
		})

		t.Run("access claims", func(t *testing.T) {
			withManager(t, Config{}, func(m *TokenManager, vendor models.Account) {
				pair, err := m.GeneratePair(t.Context(), vendor)
				require.NoError(t, err)

				claims := parse(t, pair.Access.Value)

				accountID, err := claims.AccountID()
				require.NoError(t, err)
				require.Equal(t, vendor.ID, accountID)
				require.Equal(t, models.RoleVendor, claims.Role)
				require.Equal(t, DefaultIssuer, claims.Issuer)
				require.NotEmpty(t, claims.ID, "jti")
				require.WithinDuration(t, pair.Access.ExpiresAt, claims.ExpiresAt.Time, 0)
			})
		})

		t.Run("tokens differ between calls", func(t *testing.T) {
			withManager(t, Config{}, func(m *TokenManager, vendor models.Account) {
				first, err := m.GeneratePair(t.Context(), vendor)
				require.NoError(t, err)
				second, err := m.GeneratePair(t.Context(), vendor)
				require.NoError(t, err)

				require.NotEqual(t, first.Refresh.Value, second.Refresh.Value)
				require.NotEqual(t, first.Access.Value, second.Access.Value)
			})
		})
	})

	t.Run("UseRefresh", func(t *testing.T) {
		t.Run("single use", func(t *testing.T) {
			withManager(t, Config{}, func(m *TokenManager, vendor models.Account) {
				pair, err := m.GeneratePair(t.Context(), vendor)
				require.NoError(t, err)

				token, err := m.UseRefresh(t.Context(), pair.Refresh.Value)
				require.NoError(t, err)
				require.Equal(t, vendor.ID, token.AccountID)
				require.NotNil(t, token.UsedAt)

				_, err = m.UseRefresh(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenIsUsed)
			})
		})

		t.Run("unknown token", func(t *testing.T) {
			withManager(t, Config{}, func(m *TokenManager, _ models.Account) {
				_, err := m.UseRefresh(t.Context(), "deadbeef")
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
			})
		})

		t.Run("expired", func(t *testing.T) {
			withManager(t, Config{RefreshTTL: time.Second}, func(m *TokenManager, vendor models.Account) {
				pair, err := m.GeneratePair(t.Context(), vendor)
				require.NoError(t, err)

				time.Sleep(time.Second)

				_, err = m.UseRefresh(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenExpired)
			})
		})
	})

	t.Run("ParseAccess", func(t *testing.T) {
		sign := func(t *testing.T, method jwt.SigningMethod, key any, claims AccessTokenClaims) string {
			access, err := jwt.NewWithClaims(method, claims).SignedString(key)
			require.NoError(t, err)
			return access
		}

		validClaims := func(accountID uuid.UUID) AccessTokenClaims {
			return AccessTokenClaims{
				RegisteredClaims: jwt.RegisteredClaims{
					Issuer:    DefaultIssuer,
					Subject:   accountID.String(),
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
				},
				Role: models.RoleVendor,
			}
		}

		t.Run("issued token", func(t *testing.T) {
			withManager(t, Config{}, func(m *TokenManager, vendor models.Account) {
				pair, err := m.GeneratePair(t.Context(), vendor)
				require.NoError(t, err)

				accountID, err := m.ParseAccess(t.Context(), pair.Access.Value)
				require.NoError(t, err)
				require.Equal(t, vendor.ID, accountID)
			})
		})

		t.Run("expired", func(t *testing.T) {
			withManager(t, Config{AccessTTL: time.Second}, func(m *TokenManager, vendor models.Account) {
				pair, err := m.GeneratePair(t.Context(), vendor)
				require.NoError(t, err)

				time.Sleep(time.Second)

				_, err = m.ParseAccess(t.Context(), pair.Access.Value)
				require.ErrorIs(t, err, jwt.ErrTokenExpired)
			})
		})

		t.Run("rejected tokens", func(t *testing.T) {
			withManager(t, Config{}, func(m *TokenManager, vendor models.Account) {
				noExpiry := validClaims(vendor.ID)
				noExpiry.ExpiresAt = nil

				otherIssuer := validClaims(vendor.ID)
				otherIssuer.Issuer = "someone-else"

				badSubject := validClaims(vendor.ID)
				badSubject.Subject = "not-a-uuid"

				tests := map[string]string{
					"garbage":      "invalid token",
					"alg none":     sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims(vendor.ID)),
					"other key":    sign(t, jwt.SigningMethodHS256, []byte("other-key"), validClaims(vendor.ID)),
					"other alg":    sign(t, jwt.SigningMethodHS512, []byte(testKey), validClaims(vendor.ID)),
					"no expiry":    sign(t, jwt.SigningMethodHS256, []byte(testKey), noExpiry),
					"other issuer": sign(t, jwt.SigningMethodHS256, []byte(testKey), otherIssuer),
					"bad subject":  sign(t, jwt.SigningMethodHS256, []byte(testKey), badSubject),
				}

				for name, access := range tests {
					_, err := m.ParseAccess(t.Context(), access)
					require.Error(t, err, name)
				}
			})
		})
	})
}
