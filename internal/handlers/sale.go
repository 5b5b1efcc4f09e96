package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/nkiryanov/vendorpos/internal/apperrors"
	"github.com/nkiryanov/vendorpos/internal/handlers/render"
	"github.com/nkiryanov/vendorpos/internal/handlers/userctx"
	"github.com/nkiryanov/vendorpos/internal/logger"
	"github.com/nkiryanov/vendorpos/internal/models"
	"github.com/nkiryanov/vendorpos/internal/service/sale"
)

type saleResponse struct {
	State            sale.State             `json:"state"`
	Type             models.TransactionType `json:"type"`
	Phone            string                 `json:"phone"`
	Detail           string                 `json:"detail"`
	Amount           float64                `json:"amount"`
	TransactionID    string                 `json:"transactionId,omitempty"`
	ProcessedAt      *time.Time             `json:"processedAt,omitempty"`
	NewVendorBalance *float64               `json:"newVendorBalance,omitempty"`
}

func newSaleResponse(s *sale.Sale) saleResponse {
	res := saleResponse{
		State:  s.State(),
		Type:   s.Type,
		Phone:  s.Phone,
		Detail: s.Detail,
		Amount: s.Amount.InexactFloat64(),
	}
	if s.State() == sale.StateCommitted {
		balance := s.NewVendorBalance.InexactFloat64()
		processed := s.Transaction.ProcessedAt
		res.TransactionID = s.Transaction.ID
		res.ProcessedAt = &processed
		res.NewVendorBalance = &balance
	}
	return res
}

func handlePackages() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, sale.Catalog())
	})
}

func handleRechargeSale(saleService saleService, l logger.Logger) http.Handler {
	type request struct {
		Phone     string        `json:"phone" validate:"required,phone"`
		Amount    render.Amount `json:"amount"`
		Confirmed bool          `json:"confirmed"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, _ := userctx.FromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		processSale(w, r, saleService, l, sale.NewRecharge(current.ID, data.Phone, data.Amount.Decimal), data.Confirmed)
	})
}

func handlePackageSale(saleService saleService, l logger.Logger) http.Handler {
	type request struct {
		Phone     string `json:"phone" validate:"required,phone"`
		PackageID string `json:"packageId" validate:"required"`
		Confirmed bool   `json:"confirmed"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, _ := userctx.FromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if _, ok := sale.FindPackage(data.PackageID); !ok {
			renderServiceError(w, l, apperrors.ErrPackageNotFound)
			return
		}

		processSale(w, r, saleService, l, sale.NewPackage(current.ID, data.Phone, data.PackageID), data.Confirmed)
	})
}

// Validate the sale; return the quote unless the seller confirmed it, commit otherwise
func processSale(w http.ResponseWriter, r *http.Request, saleService saleService, l logger.Logger, s *sale.Sale, confirmed bool) {
	if err := s.Validate(); err != nil {
		renderServiceError(w, l, err)
		return
	}

	if !confirmed {
		render.JSON(w, newSaleResponse(s))
		return
	}

	if err := s.Confirm(); err != nil {
		renderServiceError(w, l, err)
		return
	}

	err := saleService.Commit(r.Context(), s)
	switch {
	case err == nil:
		render.JSONWithStatus(w, newSaleResponse(s), http.StatusCreated)
	case errors.Is(err, apperrors.ErrAccountNotFound):
		// Vendor deleted while logged in
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
	default:
		renderServiceError(w, l, err)
	}
}
