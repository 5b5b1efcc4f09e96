package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vendorpos/internal/apperrors"
)

const (
	OperationTransfer = "transfer"
	OperationDebit    = "debit"
	OperationFund     = "fund"
)

var (
	ledgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendorpos_ledger_operations_total",
			Help: "Total number of ledger operations by result",
		},
		[]string{"operation", "result"},
	)

	ledgerAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendorpos_ledger_amount_total",
			Help: "Total amount moved by successful ledger operations",
		},
		[]string{"operation"},
	)

	ledgerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vendorpos_ledger_operation_duration_seconds",
			Help:    "Duration of ledger operations as seen by the caller",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"operation"},
	)
)

// Record one finished ledger operation
func ObserveLedger(operation string, amount decimal.Decimal, start time.Time, err error) {
	result := Result(err)

	ledgerOperations.WithLabelValues(operation, result).Inc()
	ledgerDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err == nil {
		value, _ := amount.Float64()
		ledgerAmount.WithLabelValues(operation).Add(value)
	}
}

// Low cardinality label for an operation error
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, apperrors.ErrOutcomeUnknown):
		return "outcome_unknown"
	default:
		return "error"
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
