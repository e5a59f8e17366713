package repository

import (
	"context"

	"github.com/aditpra/smartcare-server/internal/models"
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateVerification(ctx context.Context, userID string, status models.VerificationStatus) error

	// Order operations
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListOrdersByParticipant(ctx context.Context, userID string) ([]models.Order, error)
	// UpdateOrderStatus moves an order from one status to another; it
	// fails with ErrInvalidTransition when the order is no longer in the
	// expected status.
	UpdateOrderStatus(ctx context.Context, orderID string, from, to models.OrderStatus) error
	// SettleOrder marks an in-progress order completed and applies the
	// provider income and requester expense as one atomic unit. Either
	// transaction may be nil for unpriced orders. Nothing is changed on
	// failure.
	SettleOrder(ctx context.Context, orderID string, income, expense *models.LedgerTransaction) error

	// Ledger operations
	// AddTransaction records a ledger transaction and, when it is
	// confirmed, adjusts the account balance in the same unit.
	AddTransaction(ctx context.Context, txn *models.LedgerTransaction) error
	ResolveTopup(ctx context.Context, txnID string, resolution models.TransactionStatus) (*models.LedgerTransaction, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	GetTransactions(ctx context.Context, userID string) ([]models.LedgerTransaction, error)

	// Chat operations
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	GetConversation(ctx context.Context, userA, userB string) ([]models.ChatMessage, error)
}
