package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aditpra/smartcare-server/internal/apperrors"
	"github.com/aditpra/smartcare-server/internal/models"
)

// MemoryRepository is a thread-safe in-memory implementation of Repository,
// used by the tests and for dependency-free local runs. A single mutex
// serializes all mutations, which also covers the cross-account atomicity
// that settlement needs.
type MemoryRepository struct {
	mu           sync.RWMutex
	users        map[string]*models.User
	emailIndex   map[string]string // email -> userID
	orders       map[string]*models.Order
	balances     map[string]int64 // userID -> balance
	transactions map[string]*models.LedgerTransaction
	messages     []*models.ChatMessage
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:        make(map[string]*models.User),
		emailIndex:   make(map[string]string),
		orders:       make(map[string]*models.Order),
		balances:     make(map[string]int64),
		transactions: make(map[string]*models.LedgerTransaction),
	}
}

// User repository methods
func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.emailIndex[user.Email]; exists {
		return apperrors.Errorf(apperrors.ErrConflict, "email %s already registered", user.Email)
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	u := *user
	r.users[u.ID] = &u
	r.emailIndex[u.Email] = u.ID
	r.balances[u.ID] = 0

	return nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.emailIndex[email]
	if !ok {
		return nil, nil
	}

	u := *r.users[id]
	return &u, nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}

	u := *user
	return &u, nil
}

func (r *MemoryRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, *u)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})

	return users, nil
}

func (r *MemoryRepository) UpdateVerification(ctx context.Context, userID string, status models.VerificationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return apperrors.Errorf(apperrors.ErrNotFound, "user %s", userID)
	}

	user.Verification = status
	user.UpdatedAt = time.Now().UTC()

	return nil
}

// Order repository methods
func (r *MemoryRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	order.CreatedAt = time.Now().UTC()

	o := *order
	r.orders[o.ID] = &o

	return nil
}

func (r *MemoryRepository) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}

	o := *order
	return &o, nil
}

func (r *MemoryRepository) ListOrders(ctx context.Context) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		orders = append(orders, *o)
	}

	sortOrdersDesc(orders)
	return orders, nil
}

func (r *MemoryRepository) ListOrdersByParticipant(ctx context.Context, userID string) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var orders []models.Order
	for _, o := range r.orders {
		if o.RequesterID == userID || o.ProviderID == userID {
			orders = append(orders, *o)
		}
	}

	sortOrdersDesc(orders)
	return orders, nil
}

func (r *MemoryRepository) UpdateOrderStatus(ctx context.Context, orderID string, from, to models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return apperrors.Errorf(apperrors.ErrNotFound, "order %s", orderID)
	}

	if order.Status != from {
		return apperrors.Errorf(apperrors.ErrInvalidTransition, "order %s is no longer %s", orderID, from)
	}

	order.Status = to
	return nil
}

func (r *MemoryRepository) SettleOrder(ctx context.Context, orderID string, income, expense *models.LedgerTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return apperrors.Errorf(apperrors.ErrNotFound, "order %s", orderID)
	}

	if order.Status != models.OrderInProgress {
		return apperrors.Errorf(apperrors.ErrInvalidTransition,
			"order %s is %s, cannot complete", orderID, order.Status)
	}

	if income != nil && expense != nil {
		providerBalance, ok := r.balances[income.AccountID]
		if !ok {
			return apperrors.Errorf(apperrors.ErrNotFound, "account %s", income.AccountID)
		}
		requesterBalance, ok := r.balances[expense.AccountID]
		if !ok {
			return apperrors.Errorf(apperrors.ErrNotFound, "account %s", expense.AccountID)
		}

		if requesterBalance < expense.Amount {
			return apperrors.Errorf(apperrors.ErrInsufficientBalance,
				"account %s has %d, needs %d", expense.AccountID, requesterBalance, expense.Amount)
		}

		r.insertTransactionLocked(income)
		r.insertTransactionLocked(expense)
		r.balances[income.AccountID] = providerBalance + income.Amount
		r.balances[expense.AccountID] = requesterBalance - expense.Amount
	}

	order.Status = models.OrderCompleted
	return nil
}

// Ledger repository methods
func (r *MemoryRepository) AddTransaction(ctx context.Context, txn *models.LedgerTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	balance, ok := r.balances[txn.AccountID]
	if !ok {
		return apperrors.Errorf(apperrors.ErrNotFound, "account %s", txn.AccountID)
	}

	if txn.Status == models.TransactionConfirmed {
		if txn.Kind == models.TransactionExpense {
			if balance < txn.Amount {
				return apperrors.Errorf(apperrors.ErrInsufficientBalance,
					"account %s has %d, needs %d", txn.AccountID, balance, txn.Amount)
			}
			r.balances[txn.AccountID] = balance - txn.Amount
		} else {
			r.balances[txn.AccountID] = balance + txn.Amount
		}
	}

	r.insertTransactionLocked(txn)
	return nil
}

func (r *MemoryRepository) ResolveTopup(ctx context.Context, txnID string, resolution models.TransactionStatus) (*models.LedgerTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	txn, ok := r.transactions[txnID]
	if !ok {
		return nil, apperrors.Errorf(apperrors.ErrNotFound, "transaction %s", txnID)
	}

	if txn.Kind != models.TransactionTopup {
		return nil, apperrors.Errorf(apperrors.ErrNotFound, "transaction %s is not a topup", txnID)
	}
	if txn.Status != models.TransactionPending {
		return nil, apperrors.Errorf(apperrors.ErrAlreadyResolved, "transaction %s is %s", txnID, txn.Status)
	}

	txn.Status = resolution
	if resolution == models.TransactionConfirmed {
		r.balances[txn.AccountID] += txn.Amount
	}

	result := *txn
	return &result, nil
}

func (r *MemoryRepository) GetBalance(ctx context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	balance, ok := r.balances[userID]
	if !ok {
		return 0, apperrors.Errorf(apperrors.ErrNotFound, "account %s", userID)
	}

	return balance, nil
}

func (r *MemoryRepository) GetTransactions(ctx context.Context, userID string) ([]models.LedgerTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var txns []models.LedgerTransaction
	for _, t := range r.transactions {
		if t.AccountID == userID {
			txns = append(txns, *t)
		}
	}

	sort.Slice(txns, func(i, j int) bool {
		if txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].ID > txns[j].ID
		}
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})

	return txns, nil
}

// Chat repository methods
func (r *MemoryRepository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	m := *msg
	r.messages = append(r.messages, &m)

	return nil
}

func (r *MemoryRepository) GetConversation(ctx context.Context, userA, userB string) ([]models.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var messages []models.ChatMessage
	for _, m := range r.messages {
		if (m.SenderID == userA && m.RecipientID == userB) ||
			(m.SenderID == userB && m.RecipientID == userA) {
			messages = append(messages, *m)
		}
	}

	// Appended in commit order, already ascending by timestamp
	return messages, nil
}

// insertTransactionLocked records a transaction; caller holds the write lock.
func (r *MemoryRepository) insertTransactionLocked(txn *models.LedgerTransaction) {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	t := *txn
	r.transactions[t.ID] = &t
}

func sortOrdersDesc(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
