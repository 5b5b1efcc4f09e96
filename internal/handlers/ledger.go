package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/vendorpos/internal/handlers/render"
	"github.com/nkiryanov/vendorpos/internal/handlers/userctx"
	"github.com/nkiryanov/vendorpos/internal/logger"
)

func handleGlobalBalance(ledgerService ledgerService, l logger.Logger) http.Handler {
	type response struct {
		GlobalBalance float64 `json:"globalBalance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		balance, err := ledgerService.GetGlobalBalance(r.Context())
		if err != nil {
			renderServiceError(w, l, err)
			return
		}
		render.JSON(w, response{GlobalBalance: balance.InexactFloat64()})
	})
}

// Admins read any vendor, vendors only themselves
func handleVendorBalance(ledgerService ledgerService, l logger.Logger) http.Handler {
	type response struct {
		VendorID uuid.UUID `json:"vendorId"`
		Balance  float64   `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, _ := userctx.FromContext(r.Context())

		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if !current.IsAdmin() && current.ID != id {
			render.ServiceError(w, "Forbidden", http.StatusForbidden)
			return
		}

		balance, err := ledgerService.GetVendorBalance(r.Context(), id)
		if err != nil {
			renderServiceError(w, l, err)
			return
		}
		render.JSON(w, response{VendorID: id, Balance: balance.InexactFloat64()})
	})
}

func handleTransfer(ledgerService ledgerService, l logger.Logger) http.Handler {
	type request struct {
		AdminID  *uuid.UUID    `json:"adminId"`
		VendorID uuid.UUID     `json:"vendorId" validate:"required"`
		Amount   render.Amount `json:"amount"`
	}
	type response struct {
		NewGlobalBalance float64 `json:"newGlobalBalance"`
		NewVendorBalance float64 `json:"newVendorBalance"`
		TransactionID    string  `json:"transactionId"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, _ := userctx.FromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if data.AdminID != nil && *data.AdminID != current.ID {
			render.ServiceError(w, "Transfers can only be made on behalf of yourself", http.StatusForbidden)
			return
		}

		res, err := ledgerService.Transfer(r.Context(), current.ID, data.VendorID, data.Amount.Decimal)
		if err != nil {
			renderServiceError(w, l, err)
			return
		}

		render.JSON(w, response{
			NewGlobalBalance: res.NewGlobalBalance.InexactFloat64(),
			NewVendorBalance: res.NewVendorBalance.InexactFloat64(),
			TransactionID:    res.Transaction.ID,
		})
	})
}

func handleFund(ledgerService ledgerService, l logger.Logger) http.Handler {
	type request struct {
		Amount render.Amount `json:"amount"`
	}
	type response struct {
		NewGlobalBalance float64 `json:"newGlobalBalance"`
		TransactionID    string  `json:"transactionId"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, _ := userctx.FromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		res, err := ledgerService.Fund(r.Context(), current.ID, data.Amount.Decimal)
		if err != nil {
			renderServiceError(w, l, err)
			return
		}

		render.JSON(w, response{
			NewGlobalBalance: res.NewGlobalBalance.InexactFloat64(),
			TransactionID:    res.Transaction.ID,
		})
	})
}
