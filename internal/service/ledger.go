package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aditpra/smartcare-server/internal/apperrors"
	"github.com/aditpra/smartcare-server/internal/models"
	"github.com/aditpra/smartcare-server/internal/notify"
)

// ApplyTransaction records a ledger transaction against an account.
// Topups are created pending and leave the balance untouched until an
// admin resolves them; income and expense apply immediately.
func (s *DefaultService) ApplyTransaction(ctx context.Context, accountID string, amount int64, kind models.TransactionKind, note string) (*models.LedgerTransaction, error) {
	if amount <= 0 {
		return nil, apperrors.Errorf(apperrors.ErrInvalidAmount, "got %d", amount)
	}

	owner, err := s.repo.GetUserByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("error getting account owner: %w", err)
	}
	if owner == nil {
		return nil, apperrors.Errorf(apperrors.ErrNotFound, "account %s", accountID)
	}

	status := models.TransactionConfirmed
	if kind == models.TransactionTopup {
		status = models.TransactionPending
	}

	txn := &models.LedgerTransaction{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Amount:    amount,
		Kind:      kind,
		Status:    status,
		Note:      note,
	}

	if err := s.repo.AddTransaction(ctx, txn); err != nil {
		return nil, err
	}

	s.publish(notify.EntityLedger, txn.ID, ledgerChangeKind(txn), accountID)

	return txn, nil
}

// ResolveTopup finalizes a pending topup. Confirming credits the account;
// rejecting leaves the balance untouched. Resolving twice fails.
func (s *DefaultService) ResolveTopup(ctx context.Context, txnID string, resolution models.TransactionStatus) (*models.LedgerTransaction, error) {
	txn, err := s.repo.ResolveTopup(ctx, txnID, resolution)
	if err != nil {
		return nil, err
	}

	s.publish(notify.EntityLedger, txn.ID, ledgerChangeKind(txn), txn.AccountID)

	return txn, nil
}

// GetBalance returns the current confirmed balance for an account.
func (s *DefaultService) GetBalance(ctx context.Context, accountID string) (int64, error) {
	return s.repo.GetBalance(ctx, accountID)
}

// GetHistory returns an account's transactions, newest first.
func (s *DefaultService) GetHistory(ctx context.Context, accountID string) ([]models.LedgerTransaction, error) {
	return s.repo.GetTransactions(ctx, accountID)
}

func ledgerChangeKind(txn *models.LedgerTransaction) string {
	if txn.Kind == models.TransactionTopup {
		switch txn.Status {
		case models.TransactionPending:
			return "topup_requested"
		case models.TransactionConfirmed:
			return "topup_confirmed"
		case models.TransactionRejected:
			return "topup_rejected"
		}
	}
	return string(txn.Kind)
}
