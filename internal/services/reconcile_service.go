package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/automart/backend/internal/apperrors"
	"github.com/automart/backend/internal/models"
)

// TransactionStore is the persistence the engine needs for payment attempts.
// UpdateStatusIf must be a single conditional write: it applies only when the
// current status still equals expected at write time, and reports the result.
// CompleteAndCredit must make the pending -> completed transition, the wallet
// credit and the durable credit record one atomic unit: either all commit or
// none do.
type TransactionStore interface {
	GetByReference(ctx context.Context, reference string) (models.Transaction, error)
	UpdateStatusIf(ctx context.Context, reference string, expected, next models.TransactionStatus, patch models.Metadata) (bool, error)
	CompleteAndCredit(ctx context.Context, reference, userID string, credits int64, patch models.Metadata) (bool, error)
}

// WalletStore serializes balance changes per user.
type WalletStore interface {
	GetOrCreate(ctx context.Context, userID string) (models.Wallet, error)
	CreditBalance(ctx context.Context, userID string, delta int64) (models.Wallet, error)
}

// Outcome describes what a reconcile call did.
type Outcome struct {
	Reference       string                   `json:"reference"`
	Status          models.TransactionStatus `json:"status"`
	Transitioned    bool                     `json:"transitioned"`
	AlreadyTerminal bool                     `json:"alreadyTerminal"`
	CreditsAdded    int64                    `json:"creditsAdded,omitempty"`
}

const (
	storageAttempts = 3
	storageBackoff  = 50 * time.Millisecond
)

// ReconcileService is the single path allowed to mutate transaction status
// and wallet balances. It is safe to call concurrently for the same
// reference from any number of processes: correctness rests entirely on the
// storage-level conditional writes, never on in-memory locking.
type ReconcileService struct {
	transactions TransactionStore
}

func NewReconcileService(transactions TransactionStore) *ReconcileService {
	return &ReconcileService{transactions: transactions}
}

// Reconcile folds one gateway observation into local state. Terminal
// statuses are final: once a transaction completed, failed or was cancelled,
// every later observation no-ops regardless of what it claims.
func (s *ReconcileService) Reconcile(ctx context.Context, reference string, observed models.ObservedStatus, event *models.PaymentEvent) (Outcome, error) {
	var tx models.Transaction
	err := s.withRetry(ctx, func() error {
		var getErr error
		tx, getErr = s.transactions.GetByReference(ctx, reference)
		return getErr
	})
	if err != nil {
		return Outcome{Reference: reference}, err
	}

	if tx.Status.Terminal() {
		return Outcome{Reference: reference, Status: tx.Status, AlreadyTerminal: true}, nil
	}

	switch observed {
	case models.ObservedSuccess:
		return s.complete(ctx, tx, event)
	case models.ObservedFailed, models.ObservedCancelled:
		return s.finalize(ctx, tx, models.TransactionStatus(observed))
	default:
		// Still pending at the gateway: evidence only, nothing to do.
		return Outcome{Reference: reference, Status: models.StatusPending}, nil
	}
}

// complete transitions pending -> completed with the wallet credit in the
// same storage transaction, so a completed transaction always holds exactly
// one credit. A failure rolls everything back and the redelivered
// observation retries the whole step; a lost race means another caller
// already finished the transaction and nothing here changed.
func (s *ReconcileService) complete(ctx context.Context, tx models.Transaction, event *models.PaymentEvent) (Outcome, error) {
	credits := tx.CreditsToAdd()

	var applied bool
	err := s.withRetry(ctx, func() error {
		var completeErr error
		applied, completeErr = s.transactions.CompleteAndCredit(ctx, tx.Reference, tx.UserID, credits, successPatch(event))
		return completeErr
	})
	if err != nil {
		return Outcome{Reference: tx.Reference, Status: tx.Status}, err
	}
	if !applied {
		current, err := s.transactions.GetByReference(ctx, tx.Reference)
		if err != nil {
			return Outcome{Reference: tx.Reference, Status: tx.Status}, err
		}
		return Outcome{Reference: tx.Reference, Status: current.Status, AlreadyTerminal: current.Status.Terminal()}, nil
	}

	log.Printf("[RECONCILE] Credited %d to user %s for reference %s", credits, tx.UserID, tx.Reference)
	return Outcome{Reference: tx.Reference, Status: models.StatusCompleted, Transitioned: true, CreditsAdded: credits}, nil
}

// finalize transitions pending -> failed|cancelled. No wallet mutation.
func (s *ReconcileService) finalize(ctx context.Context, tx models.Transaction, next models.TransactionStatus) (Outcome, error) {
	patch := models.Metadata{"failed_at": time.Now().UTC().Format(time.RFC3339)}

	var applied bool
	err := s.withRetry(ctx, func() error {
		var updateErr error
		applied, updateErr = s.transactions.UpdateStatusIf(ctx, tx.Reference, models.StatusPending, next, patch)
		return updateErr
	})
	if err != nil {
		return Outcome{Reference: tx.Reference, Status: tx.Status}, err
	}
	if !applied {
		current, err := s.transactions.GetByReference(ctx, tx.Reference)
		if err != nil {
			return Outcome{Reference: tx.Reference, Status: tx.Status}, err
		}
		return Outcome{Reference: tx.Reference, Status: current.Status, AlreadyTerminal: current.Status.Terminal()}, nil
	}
	return Outcome{Reference: tx.Reference, Status: next, Transitioned: true}, nil
}

// withRetry retries storage failures a bounded number of times before
// surfacing them. Anything that is not a StorageError returns immediately.
func (s *ReconcileService) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= storageAttempts; attempt++ {
		if err = fn(); err == nil || !apperrors.IsStorage(err) {
			return err
		}
		if attempt < storageAttempts {
			select {
			case <-time.After(storageBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			}
		}
	}
	return err
}

func successPatch(event *models.PaymentEvent) models.Metadata {
	patch := models.Metadata{}
	if event == nil {
		return patch
	}
	if event.PaidAt != nil {
		patch["paid_at"] = event.PaidAt.UTC().Format(time.RFC3339)
	}
	if event.Customer.Email != "" {
		patch["customer_email"] = event.Customer.Email
	}
	if event.Channel != "" {
		patch["channel"] = event.Channel
	}
	if event.EventID != "" {
		patch["gateway_event_id"] = event.EventID
	}
	return patch
}
