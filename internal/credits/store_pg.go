package credits

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PGStore implements Store using Postgres.
type PGStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed credit store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{DB: db}
}

// Ensure returns the owner's ledger, creating it with the starting grant if absent.
func (s *PGStore) Ensure(ctx context.Context, ownerID string, startingGrant int) (Ledger, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Ledger{}, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
INSERT INTO credit_ledgers (owner_id, balance, created_at, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (owner_id) DO NOTHING`, ownerID, startingGrant, now)
	if err != nil {
		return Ledger{}, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return Ledger{}, err
	}
	if inserted > 0 && startingGrant > 0 {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO credit_transactions (id, owner_id, amount, kind, description, reference_id, created_at)
VALUES ($1, $2, $3, $4, $5, NULL, $6)`,
			uuid.NewString(), ownerID, startingGrant, KindGrant, "starting grant", now); err != nil {
			return Ledger{}, err
		}
	}

	ledger, err := getLedger(ctx, tx, ownerID)
	if err != nil {
		return Ledger{}, err
	}
	if err := tx.Commit(); err != nil {
		return Ledger{}, err
	}
	return ledger, nil
}

// Get returns the owner's ledger.
func (s *PGStore) Get(ctx context.Context, ownerID string) (Ledger, error) {
	return getLedger(ctx, s.DB, ownerID)
}

// Debit decrements the balance with a conditional update so two concurrent
// submissions cannot both spend the last credit, appending the transaction in
// the same database transaction.
func (s *PGStore) Debit(ctx context.Context, ownerID string, amount int, txn Transaction) (Ledger, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Ledger{}, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
UPDATE credit_ledgers
SET balance = balance - $2, updated_at = $3
WHERE owner_id = $1 AND balance >= $2`, ownerID, amount, now)
	if err != nil {
		return Ledger{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Ledger{}, err
	}
	if affected == 0 {
		if _, err := getLedger(ctx, tx, ownerID); err != nil {
			return Ledger{}, err
		}
		return Ledger{}, ErrInsufficientCredits
	}

	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO credit_transactions (id, owner_id, amount, kind, description, reference_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		txn.ID, ownerID, txn.Amount, txn.Kind, txn.Description, nullString(txn.ReferenceID), txn.CreatedAt); err != nil {
		return Ledger{}, err
	}

	ledger, err := getLedger(ctx, tx, ownerID)
	if err != nil {
		return Ledger{}, err
	}
	if err := tx.Commit(); err != nil {
		return Ledger{}, err
	}
	return ledger, nil
}

// ListTransactions returns the owner's transactions, newest first.
func (s *PGStore) ListTransactions(ctx context.Context, ownerID string, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, owner_id, amount, kind, description, reference_id, created_at
FROM credit_transactions
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := []Transaction{}
	for rows.Next() {
		var txn Transaction
		var referenceID sql.NullString
		if err := rows.Scan(&txn.ID, &txn.OwnerID, &txn.Amount, &txn.Kind, &txn.Description, &referenceID, &txn.CreatedAt); err != nil {
			return nil, err
		}
		txn.ReferenceID = referenceID.String
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getLedger(ctx context.Context, q queryRower, ownerID string) (Ledger, error) {
	var ledger Ledger
	err := q.QueryRowContext(ctx, `
SELECT owner_id, balance, created_at, updated_at
FROM credit_ledgers
WHERE owner_id = $1
LIMIT 1`, ownerID).Scan(&ledger.OwnerID, &ledger.Balance, &ledger.CreatedAt, &ledger.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Ledger{}, ErrNotFound
	}
	if err != nil {
		return Ledger{}, err
	}
	return ledger, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Store = (*PGStore)(nil)
