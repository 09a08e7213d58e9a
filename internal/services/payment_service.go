package services

import (
	"context"
	"strconv"

	"github.com/automart/backend/internal/gateway"
	"github.com/automart/backend/internal/models"
	"github.com/google/uuid"
)

// TransactionCreator is the slice of the transaction store the initiation
// flow needs. Creating the pending record is the only write that happens
// outside the reconciliation engine.
type TransactionCreator interface {
	Create(ctx context.Context, tx *models.Transaction) error
}

// Gateway is the provider adapter surface used by payment flows.
type Gateway interface {
	Verify(ctx context.Context, reference string) (*models.PaymentEvent, error)
	Initialize(ctx context.Context, reference, email string, amount int64, currency string) (*gateway.Checkout, error)
}

const defaultCurrency = "NGN"

// PaymentService owns payment initiation and the wallet read surface. All
// status and balance mutation stays with the ReconcileService.
type PaymentService struct {
	transactions TransactionCreator
	wallets      WalletStore
	gateway      Gateway
}

func NewPaymentService(transactions TransactionCreator, wallets WalletStore, gw Gateway) *PaymentService {
	return &PaymentService{transactions: transactions, wallets: wallets, gateway: gw}
}

// Initiate creates the pending transaction and registers it with the
// provider. Credits defaults to the charged amount; a differing positive
// value is recorded once as the metadata override and never recomputed.
func (s *PaymentService) Initiate(ctx context.Context, userID, email string, amount, credits int64) (*models.Transaction, *gateway.Checkout, error) {
	tx := &models.Transaction{
		Reference:        uuid.NewString(),
		UserID:           userID,
		Amount:           amount,
		CreditsRequested: amount,
		Status:           models.StatusPending,
		Metadata:         models.Metadata{},
	}
	if credits > 0 && credits != amount {
		tx.CreditsRequested = credits
		tx.Metadata[models.MetadataCreditsKey] = strconv.FormatInt(credits, 10)
	}

	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, nil, err
	}

	checkout, err := s.gateway.Initialize(ctx, tx.Reference, email, amount, defaultCurrency)
	if err != nil {
		return nil, nil, err
	}
	return tx, checkout, nil
}

// WalletBalance returns the user's current credit balance, creating an
// empty wallet on first read.
func (s *PaymentService) WalletBalance(ctx context.Context, userID string) (models.Wallet, error) {
	return s.wallets.GetOrCreate(ctx, userID)
}
