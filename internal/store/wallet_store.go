package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/automart/backend/internal/apperrors"
	"github.com/automart/backend/internal/models"
)

type WalletStore struct {
	db *sql.DB
}

func NewWalletStore(db *sql.DB) *WalletStore {
	return &WalletStore{db: db}
}

func (s *WalletStore) Get(ctx context.Context, userID string) (models.Wallet, error) {
	var w models.Wallet
	err := s.db.QueryRowContext(ctx, `
        SELECT user_id, credits, updated_at
        FROM wallets
        WHERE user_id = $1`,
		userID,
	).Scan(&w.UserID, &w.Credits, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Wallet{}, apperrors.ErrNotFound
	}
	if err != nil {
		return models.Wallet{}, apperrors.Storage("get wallet", err)
	}
	return w, nil
}

func (s *WalletStore) GetOrCreate(ctx context.Context, userID string) (models.Wallet, error) {
	if w, err := s.Get(ctx, userID); err == nil {
		return w, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return models.Wallet{}, err
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO wallets (user_id, credits, updated_at)
        VALUES ($1, 0, NOW())
        ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return models.Wallet{}, apperrors.Storage("create wallet", err)
	}
	return s.Get(ctx, userID)
}

// CreditBalance adds delta to the wallet in one atomic increment. The row
// lock taken by UPDATE serializes concurrent changes per user, and the
// balance guard refuses any delta that would leave the wallet negative.
func (s *WalletStore) CreditBalance(ctx context.Context, userID string, delta int64) (models.Wallet, error) {
	var w models.Wallet
	err := s.db.QueryRowContext(ctx, `
        UPDATE wallets
        SET credits = credits + $2, updated_at = NOW()
        WHERE user_id = $1 AND credits + $2 >= 0
        RETURNING user_id, credits, updated_at`,
		userID, delta,
	).Scan(&w.UserID, &w.Credits, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Row missing entirely, or the guard rejected a negative result.
		if _, getErr := s.Get(ctx, userID); errors.Is(getErr, apperrors.ErrNotFound) {
			return models.Wallet{}, apperrors.ErrNotFound
		}
		return models.Wallet{}, apperrors.ErrInsufficientCredits
	}
	if err != nil {
		return models.Wallet{}, apperrors.Storage("credit wallet", err)
	}
	return w, nil
}
