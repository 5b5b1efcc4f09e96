package postgres

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/nkiryanov/vendorpos/internal/models"
)

type TransactionRepo struct {
	DB DBTX
}

const createTransaction = `-- name: CreateTransaction
INSERT INTO transactions (id, vendor_id, actor_id, type, detail, target, amount, processed_at, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING seq
`

func (r *TransactionRepo) CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ProcessedAt.IsZero() {
		t.ProcessedAt = time.Now()
	}
	if t.ID == "" {
		t.ID = ulid.MustNew(ulid.Timestamp(t.ProcessedAt), rand.Reader).String()
	}
	if t.Status == "" {
		t.Status = models.TransactionSuccess
	}

	var vendorID *uuid.UUID
	if t.VendorID != uuid.Nil {
		vendorID = &t.VendorID
	}

	rows, _ := r.DB.Query(ctx, createTransaction,
		t.ID, vendorID, t.ActorID, t.Type, t.Detail, t.Target, t.Amount, t.ProcessedAt, t.Status)
	seq, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])
	if err != nil {
		return t, fmt.Errorf("db error: %w", err)
	}

	t.Seq = seq
	return t, nil
}

const listTransactions = `-- name: ListTransactions
SELECT t.seq, t.id, t.vendor_id, t.actor_id, t.type, t.detail, t.target, t.amount, t.processed_at, t.status, a.name
FROM transactions t
LEFT JOIN accounts a ON a.id = t.vendor_id
WHERE ($1::uuid IS NULL OR t.vendor_id = $1)
	AND ($2::timestamptz IS NULL OR t.processed_at >= $2)
	AND ($3::timestamptz IS NULL OR t.processed_at <= $3)
	AND (cardinality($4::text[]) = 0 OR t.type = ANY($4))
ORDER BY t.seq
`

func (r *TransactionRepo) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	types := make([]string, 0, len(filter.Types))
	for _, tt := range filter.Types {
		types = append(types, string(tt))
	}

	rows, _ := r.DB.Query(ctx, listTransactions, filter.VendorID, filter.From, filter.To, types)
	transactions, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return transactions, nil
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var (
		t          models.Transaction
		vendorID   *uuid.UUID
		vendorName *string
	)

	err := row.Scan(&t.Seq, &t.ID, &vendorID, &t.ActorID, &t.Type, &t.Detail, &t.Target, &t.Amount, &t.ProcessedAt, &t.Status, &vendorName)
	if vendorID != nil {
		t.VendorID = *vendorID
	}
	if vendorName != nil {
		t.VendorName = *vendorName
	}

	return t, err
}
