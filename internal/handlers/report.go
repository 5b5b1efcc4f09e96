package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/vendorpos/internal/apperrors"
	"github.com/nkiryanov/vendorpos/internal/handlers/render"
	"github.com/nkiryanov/vendorpos/internal/handlers/userctx"
	"github.com/nkiryanov/vendorpos/internal/logger"
	"github.com/nkiryanov/vendorpos/internal/models"
	"github.com/nkiryanov/vendorpos/internal/service/report"
)

type transactionResponse struct {
	ID          string                   `json:"id"`
	VendorID    *uuid.UUID               `json:"vendorId,omitempty"`
	VendorName  string                   `json:"vendorName,omitempty"`
	Type        models.TransactionType   `json:"type"`
	Detail      string                   `json:"detail"`
	Target      string                   `json:"target,omitempty"`
	Amount      float64                  `json:"amount"`
	Status      models.TransactionStatus `json:"status"`
	ProcessedAt time.Time                `json:"processedAt"`
}

func newTransactionResponse(t models.Transaction) transactionResponse {
	res := transactionResponse{
		ID:          t.ID,
		VendorName:  t.VendorName,
		Type:        t.Type,
		Detail:      t.Detail,
		Target:      t.Target,
		Amount:      t.Amount.InexactFloat64(),
		Status:      t.Status,
		ProcessedAt: t.ProcessedAt,
	}
	if t.VendorID != uuid.Nil {
		id := t.VendorID
		res.VendorID = &id
	}
	return res
}

// Query from request parameters. Vendors are always limited to their own records
func reportQuery(r *http.Request) (report.Query, error) {
	current, _ := userctx.FromContext(r.Context())
	params := r.URL.Query()

	period, err := report.ParsePeriod(params.Get("startDate"), params.Get("endDate"))
	if err != nil {
		return report.Query{}, err
	}
	q := report.Query{Period: period}

	if !current.IsAdmin() {
		id := current.ID
		q.VendorID = &id
		return q, nil
	}

	if raw := params.Get("vendorId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return report.Query{}, apperrors.FieldErrors{"vendorId": "vendor id is not valid"}
		}
		q.VendorID = &id
	}

	return q, nil
}

// Bad query parameters are a request validation failure
func renderQueryError(w http.ResponseWriter, l logger.Logger, err error) {
	var fields apperrors.FieldErrors
	if errors.As(err, &fields) {
		render.FieldErrors(w, fields, http.StatusBadRequest)
		return
	}
	renderServiceError(w, l, err)
}

func handleListTransactions(reportService reportService, l logger.Logger) http.Handler {
	type summary struct {
		Count        int     `json:"count"`
		TotalAmount  float64 `json:"totalAmount"`
		TotalDisplay string  `json:"totalDisplay"`
	}
	type response struct {
		Transactions []transactionResponse `json:"transactions"`
		Summary      summary               `json:"summary"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q, err := reportQuery(r)
		if err != nil {
			renderQueryError(w, l, err)
			return
		}

		rep, err := reportService.Report(r.Context(), q)
		if err != nil {
			renderServiceError(w, l, err)
			return
		}

		res := response{
			Transactions: make([]transactionResponse, 0, len(rep.Transactions)),
			Summary: summary{
				Count:        rep.Summary.Count,
				TotalAmount:  rep.Summary.TotalAmount.InexactFloat64(),
				TotalDisplay: rep.Summary.Display(reportService.Currency()),
			},
		}
		for _, t := range rep.Transactions {
			res.Transactions = append(res.Transactions, newTransactionResponse(t))
		}

		render.JSON(w, res)
	})
}

// Vendors get their sales report, admins the general one
func handleExportTransactions(reportService reportService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, _ := userctx.FromContext(r.Context())

		q, err := reportQuery(r)
		if err != nil {
			renderQueryError(w, l, err)
			return
		}

		layout := report.LayoutVendor
		if current.IsAdmin() {
			layout = report.LayoutAdmin
		}

		var buf bytes.Buffer
		filename, err := reportService.Export(r.Context(), &buf, q, layout)
		if err != nil {
			renderServiceError(w, l, err)
			return
		}

		render.CSV(w, filename, buf.Bytes())
	})
}

func handleDashboard(reportService reportService, l logger.Logger) http.Handler {
	type response struct {
		GlobalBalance     float64 `json:"globalBalance"`
		DailySalesCount   int     `json:"dailySalesCount"`
		DailySalesTotal   float64 `json:"dailySalesTotal"`
		DailySalesDisplay string  `json:"dailySalesDisplay"`
		ActiveVendors     int     `json:"activeVendors"`
		LowBalanceVendors int     `json:"lowBalanceVendors"`
		Currency          string  `json:"currency"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := reportService.Dashboard(r.Context(), time.Now())
		if err != nil {
			renderServiceError(w, l, err)
			return
		}

		render.JSON(w, response{
			GlobalBalance:     d.GlobalBalance.InexactFloat64(),
			DailySalesCount:   d.DailySales.Count,
			DailySalesTotal:   d.DailySales.TotalAmount.InexactFloat64(),
			DailySalesDisplay: d.DailySales.Display(d.Currency),
			ActiveVendors:     d.ActiveVendors,
			LowBalanceVendors: d.LowBalanceVendors,
			Currency:          d.Currency,
		})
	})
}
