package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aditpra/smartcare-server/internal/apperrors"
	"github.com/aditpra/smartcare-server/internal/models"
)

func newTestUser(t *testing.T, repo *MemoryRepository, email string, role models.Role) *models.User {
	user := &models.User{
		Email:    email,
		Name:     "Test User",
		Password: "irrelevant-hash",
		Role:     role,
	}

	err := repo.CreateUser(context.Background(), user)
	assert.NoError(t, err)
	return user
}

func confirmedSum(t *testing.T, repo *MemoryRepository, accountID string) int64 {
	txns, err := repo.GetTransactions(context.Background(), accountID)
	assert.NoError(t, err)

	var sum int64
	for _, txn := range txns {
		if txn.Status != models.TransactionConfirmed {
			continue
		}
		if txn.Kind == models.TransactionExpense {
			sum -= txn.Amount
		} else {
			sum += txn.Amount
		}
	}
	return sum
}

func TestReconciliationInvariantUnderConcurrency(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	user := newTestUser(t, repo, "concurrent@example.com", models.RoleUser)

	const numGoroutines = 10
	const opsPerGoroutine = 20

	var wg sync.WaitGroup

	// Interleave incomes, expenses and topup resolutions; expenses may
	// legitimately fail with insufficient balance, everything else must
	// succeed
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(routineID int) {
			defer wg.Done()

			for j := 0; j < opsPerGoroutine; j++ {
				switch j % 3 {
				case 0:
					err := repo.AddTransaction(ctx, &models.LedgerTransaction{
						AccountID: user.ID,
						Amount:    1000,
						Kind:      models.TransactionIncome,
						Status:    models.TransactionConfirmed,
						Note:      fmt.Sprintf("income %d_%d", routineID, j),
					})
					assert.NoError(t, err)
				case 1:
					err := repo.AddTransaction(ctx, &models.LedgerTransaction{
						AccountID: user.ID,
						Amount:    700,
						Kind:      models.TransactionExpense,
						Status:    models.TransactionConfirmed,
						Note:      fmt.Sprintf("expense %d_%d", routineID, j),
					})
					if err != nil {
						assert.True(t, errors.Is(err, apperrors.ErrInsufficientBalance))
					}
				case 2:
					topup := &models.LedgerTransaction{
						AccountID: user.ID,
						Amount:    300,
						Kind:      models.TransactionTopup,
						Status:    models.TransactionPending,
						Note:      fmt.Sprintf("topup %d_%d", routineID, j),
					}
					err := repo.AddTransaction(ctx, topup)
					assert.NoError(t, err)

					_, err = repo.ResolveTopup(ctx, topup.ID, models.TransactionConfirmed)
					assert.NoError(t, err)
				}
			}
		}(i)
	}

	wg.Wait()

	// The balance equals confirmed topups + incomes - expenses
	balance, err := repo.GetBalance(ctx, user.ID)
	assert.NoError(t, err)
	assert.Equal(t, confirmedSum(t, repo, user.ID), balance)
	assert.GreaterOrEqual(t, balance, int64(0), "balance must never go negative")
}

func TestAddTransactionInsufficientBalance(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	user := newTestUser(t, repo, "poor@example.com", models.RoleUser)

	err := repo.AddTransaction(ctx, &models.LedgerTransaction{
		AccountID: user.ID,
		Amount:    100,
		Kind:      models.TransactionExpense,
		Status:    models.TransactionConfirmed,
	})
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientBalance))

	// The failed expense left no record behind
	txns, err := repo.GetTransactions(ctx, user.ID)
	assert.NoError(t, err)
	assert.Empty(t, txns)
}

func TestResolveTopupTwice(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	user := newTestUser(t, repo, "topup@example.com", models.RoleUser)

	topup := &models.LedgerTransaction{
		AccountID: user.ID,
		Amount:    500,
		Kind:      models.TransactionTopup,
		Status:    models.TransactionPending,
	}
	assert.NoError(t, repo.AddTransaction(ctx, topup))

	_, err := repo.ResolveTopup(ctx, topup.ID, models.TransactionConfirmed)
	assert.NoError(t, err)

	_, err = repo.ResolveTopup(ctx, topup.ID, models.TransactionRejected)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyResolved))

	balance, err := repo.GetBalance(ctx, user.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(500), balance)
}

func TestSettleOrderAtomicity(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	requester := newTestUser(t, repo, "requester@example.com", models.RoleUser)
	provider := newTestUser(t, repo, "provider@example.com", models.RoleMitra)

	budget := int64(5000)
	order := &models.Order{
		RequesterID:    requester.ID,
		ProviderID:     provider.ID,
		ServiceType:    "cleaning",
		Description:    "test",
		Address:        "test",
		BudgetEstimate: &budget,
		Status:         models.OrderInProgress,
	}
	assert.NoError(t, repo.CreateOrder(ctx, order))

	income := &models.LedgerTransaction{
		AccountID: provider.ID,
		Amount:    budget,
		Kind:      models.TransactionIncome,
		Status:    models.TransactionConfirmed,
	}
	expense := &models.LedgerTransaction{
		AccountID: requester.ID,
		Amount:    budget,
		Kind:      models.TransactionExpense,
		Status:    models.TransactionConfirmed,
	}

	// Requester has no balance: settlement must fail without touching
	// the order or either account
	err := repo.SettleOrder(ctx, order.ID, income, expense)
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientBalance))

	stored, err := repo.GetOrder(ctx, order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderInProgress, stored.Status)

	providerBalance, err := repo.GetBalance(ctx, provider.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), providerBalance)

	txns, err := repo.GetTransactions(ctx, provider.ID)
	assert.NoError(t, err)
	assert.Empty(t, txns)

	// Fund the requester and settle for real
	assert.NoError(t, repo.AddTransaction(ctx, &models.LedgerTransaction{
		AccountID: requester.ID,
		Amount:    budget,
		Kind:      models.TransactionIncome,
		Status:    models.TransactionConfirmed,
	}))

	assert.NoError(t, repo.SettleOrder(ctx, order.ID, income, expense))

	stored, err = repo.GetOrder(ctx, order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, stored.Status)

	providerBalance, err = repo.GetBalance(ctx, provider.ID)
	assert.NoError(t, err)
	assert.Equal(t, budget, providerBalance)

	requesterBalance, err := repo.GetBalance(ctx, requester.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), requesterBalance)

	// Settling a completed order fails
	err = repo.SettleOrder(ctx, order.ID, income, expense)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
}

func TestUpdateOrderStatusCompareAndSwap(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	requester := newTestUser(t, repo, "cas-user@example.com", models.RoleUser)
	provider := newTestUser(t, repo, "cas-mitra@example.com", models.RoleMitra)

	order := &models.Order{
		RequesterID: requester.ID,
		ProviderID:  provider.ID,
		ServiceType: "plumbing",
		Description: "test",
		Address:     "test",
		Status:      models.OrderAwaitingConfirmation,
	}
	assert.NoError(t, repo.CreateOrder(ctx, order))

	err := repo.UpdateOrderStatus(ctx, order.ID, models.OrderAwaitingConfirmation, models.OrderInProgress)
	assert.NoError(t, err)

	// A second transition from the stale status loses the race
	err = repo.UpdateOrderStatus(ctx, order.ID, models.OrderAwaitingConfirmation, models.OrderRejected)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))

	stored, err := repo.GetOrder(ctx, order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderInProgress, stored.Status)
}

func TestDuplicateEmail(t *testing.T) {
	repo := NewMemoryRepository()

	newTestUser(t, repo, "dup@example.com", models.RoleUser)

	err := repo.CreateUser(context.Background(), &models.User{
		Email:    "dup@example.com",
		Name:     "Duplicate",
		Password: "irrelevant-hash",
		Role:     models.RoleUser,
	})
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}
