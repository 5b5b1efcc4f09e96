package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/vendorpos/internal/apperrors"
	"github.com/nkiryanov/vendorpos/internal/handlers/middleware"
	"github.com/nkiryanov/vendorpos/internal/handlers/render"
	"github.com/nkiryanov/vendorpos/internal/logger"
)

// Successful login clears the client's failed attempts when a limiter is set
func handleLogin(authService authService, limiter loginLimiter, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		account, pair, err := authService.Login(r.Context(), data.Email, data.Password)
		if err != nil {
			if !errors.Is(err, apperrors.ErrAuthentication) {
				l.Error("Login failed", "error", err)
			}
			renderServiceError(w, l, err)
			return
		}

		if limiter != nil {
			if err := limiter.Reset(r.Context(), middleware.ClientKey(r)); err != nil {
				l.Warn("can't reset login attempts", "remote", middleware.ClientIP(r), "error", err)
			}
		}

		authService.SetTokenPairToResponse(w, pair)
		render.JSON(w, newAccountResponse(account))
	})
}

func handleTokenRefresh(authService authService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := authService.GetRefreshString(r)
		if err != nil {
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		}

		pair, err := authService.RefreshPair(r.Context(), refresh)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrRefreshTokenExpired):
			render.ServiceError(w, "Refresh token expired", http.StatusUnauthorized)
			return
		case errors.Is(err, apperrors.ErrRefreshTokenIsUsed),
			errors.Is(err, apperrors.ErrRefreshTokenNotFound),
			errors.Is(err, apperrors.ErrAuthentication):
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		default:
			l.Error("Token refresh failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		authService.SetTokenPairToResponse(w, pair)
		render.JSON(w, response{Message: "Tokens refreshed successfully"})
	})
}
