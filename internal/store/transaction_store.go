// Package store persists payment transactions, wallets and the credit
// idempotency guard. The reconciliation engine only sees the interfaces
// declared in the services package; everything here is one implementation.
package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/automart/backend/internal/apperrors"
	"github.com/automart/backend/internal/models"
)

type TransactionStore struct {
	db *sql.DB
}

func NewTransactionStore(db *sql.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// Create inserts a new pending transaction. The unique index on reference
// makes duplicate initiations fail loudly instead of silently forking the
// payment attempt.
func (s *TransactionStore) Create(ctx context.Context, tx *models.Transaction) error {
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO transactions (reference, user_id, amount, credits_requested, status, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        RETURNING id, created_at, updated_at`,
		tx.Reference, tx.UserID, tx.Amount, tx.CreditsRequested, tx.Status, tx.Metadata,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return apperrors.Storage("create transaction", err)
	}
	return nil
}

func (s *TransactionStore) GetByReference(ctx context.Context, reference string) (models.Transaction, error) {
	var tx models.Transaction
	err := s.db.QueryRowContext(ctx, `
        SELECT id, reference, user_id, amount, credits_requested, status, metadata, created_at, updated_at
        FROM transactions
        WHERE reference = $1`,
		reference,
	).Scan(&tx.ID, &tx.Reference, &tx.UserID, &tx.Amount, &tx.CreditsRequested, &tx.Status, &tx.Metadata, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, apperrors.ErrNotFound
	}
	if err != nil {
		return models.Transaction{}, apperrors.Storage("get transaction", err)
	}
	return tx, nil
}

// UpdateStatusIf transitions reference from expected to next in a single
// conditional write and reports whether the write applied. Concurrent
// callers racing on the same reference see exactly one true result; the
// RowsAffected check is the compare-and-swap that keeps terminal states
// final without any in-process lock.
func (s *TransactionStore) UpdateStatusIf(ctx context.Context, reference string, expected, next models.TransactionStatus, patch models.Metadata) (bool, error) {
	if patch == nil {
		patch = models.Metadata{}
	}
	result, err := s.db.ExecContext(ctx, `
        UPDATE transactions
        SET status = $3, metadata = metadata || $4, updated_at = NOW()
        WHERE reference = $1 AND status = $2`,
		reference, expected, next, patch,
	)
	if err != nil {
		return false, apperrors.Storage("update transaction status", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Storage("update transaction status", err)
	}
	return affected == 1, nil
}

// CompleteAndCredit transitions reference from pending to completed and
// credits the user's wallet in one database transaction, together with an
// idempotency row in credit_applications. Either all three writes commit or
// none do: a credit_applications row exists exactly when the credit is
// durably applied, and a crash mid-flight rolls everything back for the
// redelivery to retry. Returns whether the transition (and therefore the
// credit) happened; false means another writer finished the transaction
// first and nothing was changed.
func (s *TransactionStore) CompleteAndCredit(ctx context.Context, reference, userID string, credits int64, patch models.Metadata) (bool, error) {
	if patch == nil {
		patch = models.Metadata{}
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, apperrors.Storage("begin completion", err)
	}
	defer dbTx.Rollback()

	result, err := dbTx.ExecContext(ctx, `
        UPDATE transactions
        SET status = $3, metadata = metadata || $4, updated_at = NOW()
        WHERE reference = $1 AND status = $2`,
		reference, models.StatusPending, models.StatusCompleted, patch,
	)
	if err != nil {
		return false, apperrors.Storage("complete transaction", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Storage("complete transaction", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := dbTx.ExecContext(ctx, `
        INSERT INTO wallets (user_id, credits, updated_at)
        VALUES ($1, 0, NOW())
        ON CONFLICT (user_id) DO NOTHING`,
		userID,
	); err != nil {
		return false, apperrors.Storage("ensure wallet", err)
	}

	if _, err := dbTx.ExecContext(ctx, `
        UPDATE wallets
        SET credits = credits + $2, updated_at = NOW()
        WHERE user_id = $1`,
		userID, credits,
	); err != nil {
		return false, apperrors.Storage("credit wallet", err)
	}

	// Unique on reference; a conflict here means a credit was applied for
	// this reference outside the pending -> completed transition, which is
	// a bug worth failing loudly on.
	if _, err := dbTx.ExecContext(ctx, `
        INSERT INTO credit_applications (reference, user_id, credits, applied_at)
        VALUES ($1, $2, $3, NOW())`,
		reference, userID, credits,
	); err != nil {
		return false, apperrors.Storage("record credit application", err)
	}

	if err := dbTx.Commit(); err != nil {
		return false, apperrors.Storage("commit completion", err)
	}
	return true, nil
}
