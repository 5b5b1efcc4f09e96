package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/vendorpos/internal/apperrors"
	"github.com/nkiryanov/vendorpos/internal/handlers/render"
	"github.com/nkiryanov/vendorpos/internal/logger"
)

// Render service error with the status it maps to.
// Unexpected errors are logged and hidden behind 500
func renderServiceError(w http.ResponseWriter, l logger.Logger, err error) {
	var fields apperrors.FieldErrors
	if errors.As(err, &fields) {
		render.FieldErrors(w, fields, http.StatusUnprocessableEntity)
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrInvalidAmount),
		errors.Is(err, apperrors.ErrInvalidInput),
		errors.Is(err, apperrors.ErrInvalidSaleState):
		render.ServiceError(w, errorMessage(err), http.StatusUnprocessableEntity)
	case errors.Is(err, apperrors.ErrAuthentication):
		render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrForbidden):
		render.ServiceError(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, apperrors.ErrAccountNotFound),
		errors.Is(err, apperrors.ErrPackageNotFound):
		render.ServiceError(w, errorMessage(err), http.StatusNotFound)
	case errors.Is(err, apperrors.ErrAccountAlreadyExists),
		errors.Is(err, apperrors.ErrBalanceNotEmpty),
		errors.Is(err, apperrors.ErrLastAdmin):
		render.ServiceError(w, errorMessage(err), http.StatusConflict)
	case errors.Is(err, apperrors.ErrPINMismatch):
		render.FieldErrors(w, apperrors.FieldErrors{"oldPin": apperrors.ErrPINMismatch.Error()}, http.StatusUnprocessableEntity)
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		render.ServiceError(w, "Insufficient funds", http.StatusPaymentRequired)
	case errors.Is(err, apperrors.ErrOutcomeUnknown):
		l.Warn("Operation outcome unknown", "error", err)
		render.ServiceError(w, "Operation is still in progress, check balances before retrying", http.StatusGatewayTimeout)
	default:
		l.Error("Internal server error", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Message of the first known sentinel in the chain
func errorMessage(err error) string {
	for _, known := range []error{
		apperrors.ErrInvalidAmount,
		apperrors.ErrInvalidSaleState,
		apperrors.ErrAccountNotFound,
		apperrors.ErrPackageNotFound,
		apperrors.ErrAccountAlreadyExists,
		apperrors.ErrBalanceNotEmpty,
		apperrors.ErrLastAdmin,
		apperrors.ErrInvalidInput,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}
