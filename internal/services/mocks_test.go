package services

import (
	"context"
	"sync"

	"github.com/automart/backend/internal/apperrors"
	"github.com/automart/backend/internal/models"
)

// memTransactionStore implements TransactionStore with the same atomicity
// as the Postgres store: the status check and write are one step, and
// CompleteAndCredit either applies the transition together with the wallet
// credit or changes nothing at all.
type memTransactionStore struct {
	mu      sync.Mutex
	txs     map[string]*models.Transaction
	wallets *memWalletStore

	// failGets / failUpdates / failCompletes inject that many consecutive
	// storage errors on the corresponding operation.
	failGets      int
	failUpdates   int
	failCompletes int
}

func newMemTransactionStore(wallets *memWalletStore, txs ...*models.Transaction) *memTransactionStore {
	s := &memTransactionStore{txs: make(map[string]*models.Transaction), wallets: wallets}
	for _, tx := range txs {
		if tx.Metadata == nil {
			tx.Metadata = models.Metadata{}
		}
		s.txs[tx.Reference] = tx
	}
	return s
}

func (s *memTransactionStore) GetByReference(_ context.Context, reference string) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGets > 0 {
		s.failGets--
		return models.Transaction{}, apperrors.Storage("get transaction", errInjected)
	}
	tx, ok := s.txs[reference]
	if !ok {
		return models.Transaction{}, apperrors.ErrNotFound
	}
	return *tx, nil
}

func (s *memTransactionStore) UpdateStatusIf(_ context.Context, reference string, expected, next models.TransactionStatus, patch models.Metadata) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdates > 0 {
		s.failUpdates--
		return false, apperrors.Storage("update transaction status", errInjected)
	}
	tx, ok := s.txs[reference]
	if !ok {
		return false, nil
	}
	if tx.Status != expected {
		return false, nil
	}
	tx.Status = next
	for k, v := range patch {
		tx.Metadata[k] = v
	}
	return true, nil
}

func (s *memTransactionStore) CompleteAndCredit(ctx context.Context, reference, userID string, credits int64, patch models.Metadata) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCompletes > 0 {
		s.failCompletes--
		return false, apperrors.Storage("complete transaction", errInjected)
	}
	tx, ok := s.txs[reference]
	if !ok || tx.Status != models.StatusPending {
		return false, nil
	}
	// Credit before mutating status so an injected wallet failure leaves
	// the transaction untouched, like a rolled back database transaction.
	if _, err := s.wallets.CreditBalance(ctx, userID, credits); err != nil {
		return false, err
	}
	tx.Status = models.StatusCompleted
	for k, v := range patch {
		tx.Metadata[k] = v
	}
	return true, nil
}

func (s *memTransactionStore) status(reference string) models.TransactionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txs[reference].Status
}

// memWalletStore counts every credit so tests can assert at-most-once.
type memWalletStore struct {
	mu          sync.Mutex
	credits     map[string]int64
	creditCalls int
	failCredits int
}

func newMemWalletStore() *memWalletStore {
	return &memWalletStore{credits: make(map[string]int64)}
}

func (s *memWalletStore) GetOrCreate(_ context.Context, userID string) (models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credits[userID]; !ok {
		s.credits[userID] = 0
	}
	return models.Wallet{UserID: userID, Credits: s.credits[userID]}, nil
}

func (s *memWalletStore) CreditBalance(_ context.Context, userID string, delta int64) (models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCredits > 0 {
		s.failCredits--
		return models.Wallet{}, apperrors.Storage("credit wallet", errInjected)
	}
	if s.credits[userID]+delta < 0 {
		return models.Wallet{}, apperrors.ErrInsufficientCredits
	}
	s.credits[userID] += delta
	s.creditCalls++
	return models.Wallet{UserID: userID, Credits: s.credits[userID]}, nil
}

func (s *memWalletStore) balance(userID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credits[userID]
}

func (s *memWalletStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creditCalls
}
