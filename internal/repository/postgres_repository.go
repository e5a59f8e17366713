package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aditpra/smartcare-server/internal/apperrors"
	"github.com/aditpra/smartcare-server/internal/models"
)

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Generate a new UUID if not provided
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, name, password, role, verification, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = tx.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.Password, user.Role, user.Verification,
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return err
	}

	// Every user gets a balance account at registration
	_, err = tx.ExecContext(ctx,
		`INSERT INTO balance_accounts (user_id, balance, updated_at) VALUES ($1, 0, $2)`,
		user.ID, now)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT * FROM users WHERE email = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT * FROM users ORDER BY created_at ASC`

	var users []models.User
	err := r.db.SelectContext(ctx, &users, query)
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *PostgresRepository) UpdateVerification(ctx context.Context, userID string, status models.VerificationStatus) error {
	query := `UPDATE users SET verification = $1, updated_at = $2 WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), userID)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperrors.Errorf(apperrors.ErrNotFound, "user %s", userID)
	}

	return nil
}

// Order repository methods
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	// Generate a new UUID if not provided
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	order.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO orders (id, requester_id, provider_id, service_type, description,
			address, desired_time, budget_estimate, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		order.ID, order.RequesterID, order.ProviderID, order.ServiceType, order.Description,
		order.Address, order.DesiredTime, order.BudgetEstimate, order.Status, order.CreatedAt)

	return err
}

func (r *PostgresRepository) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	query := `SELECT * FROM orders WHERE id = $1`

	var order models.Order
	err := r.db.GetContext(ctx, &order, query, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Order not found
		}
		return nil, err
	}

	return &order, nil
}

func (r *PostgresRepository) ListOrders(ctx context.Context) ([]models.Order, error) {
	query := `SELECT * FROM orders ORDER BY created_at DESC`

	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, query)
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *PostgresRepository) ListOrdersByParticipant(ctx context.Context, userID string) ([]models.Order, error) {
	query := `
		SELECT * FROM orders
		WHERE requester_id = $1 OR provider_id = $1
		ORDER BY created_at DESC
	`

	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, query, userID)
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, orderID string, from, to models.OrderStatus) error {
	// Compare-and-swap so a concurrent transition cannot be overwritten
	query := `UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`

	res, err := r.db.ExecContext(ctx, query, to, orderID, from)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperrors.Errorf(apperrors.ErrInvalidTransition, "order %s is no longer %s", orderID, from)
	}

	return nil
}

func (r *PostgresRepository) SettleOrder(ctx context.Context, orderID string, income, expense *models.LedgerTransaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Lock the order row so the completion check and the ledger
	// application observe the same state
	var status models.OrderStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = apperrors.Errorf(apperrors.ErrNotFound, "order %s", orderID)
		}
		return err
	}

	if status != models.OrderInProgress {
		err = apperrors.Errorf(apperrors.ErrInvalidTransition,
			"order %s is %s, cannot complete", orderID, status)
		return err
	}

	if income != nil && expense != nil {
		// Lock both accounts in id order to avoid deadlocks between
		// concurrent settlements
		first, second := income.AccountID, expense.AccountID
		if second < first {
			first, second = second, first
		}
		if _, err = lockAccount(ctx, tx, first); err != nil {
			return err
		}
		if _, err = lockAccount(ctx, tx, second); err != nil {
			return err
		}

		var requesterBalance int64
		err = tx.QueryRowContext(ctx,
			`SELECT balance FROM balance_accounts WHERE user_id = $1`,
			expense.AccountID).Scan(&requesterBalance)
		if err != nil {
			return err
		}

		if requesterBalance < expense.Amount {
			err = apperrors.Errorf(apperrors.ErrInsufficientBalance,
				"account %s has %d, needs %d", expense.AccountID, requesterBalance, expense.Amount)
			return err
		}

		if err = insertTransactionTx(ctx, tx, income); err != nil {
			return err
		}
		if err = insertTransactionTx(ctx, tx, expense); err != nil {
			return err
		}

		if err = adjustBalanceTx(ctx, tx, income.AccountID, income.Amount); err != nil {
			return err
		}
		if err = adjustBalanceTx(ctx, tx, expense.AccountID, -expense.Amount); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2`, models.OrderCompleted, orderID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Ledger repository methods
func (r *PostgresRepository) AddTransaction(ctx context.Context, txn *models.LedgerTransaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if txn.Status == models.TransactionConfirmed {
		// Serialize against other writers on the same account
		var balance int64
		balance, err = lockAccount(ctx, tx, txn.AccountID)
		if err != nil {
			return err
		}

		delta := txn.Amount
		if txn.Kind == models.TransactionExpense {
			if balance < txn.Amount {
				err = apperrors.Errorf(apperrors.ErrInsufficientBalance,
					"account %s has %d, needs %d", txn.AccountID, balance, txn.Amount)
				return err
			}
			delta = -txn.Amount
		}

		if err = adjustBalanceTx(ctx, tx, txn.AccountID, delta); err != nil {
			return err
		}
	}

	if err = insertTransactionTx(ctx, tx, txn); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) ResolveTopup(ctx context.Context, txnID string, resolution models.TransactionStatus) (*models.LedgerTransaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	var txn models.LedgerTransaction
	err = tx.QueryRowContext(ctx,
		`SELECT id, account_id, amount, kind, status, note, created_at
		FROM ledger_transactions WHERE id = $1 FOR UPDATE`, txnID).Scan(
		&txn.ID, &txn.AccountID, &txn.Amount, &txn.Kind, &txn.Status, &txn.Note, &txn.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = apperrors.Errorf(apperrors.ErrNotFound, "transaction %s", txnID)
		}
		return nil, err
	}

	if txn.Kind != models.TransactionTopup {
		err = apperrors.Errorf(apperrors.ErrNotFound, "transaction %s is not a topup", txnID)
		return nil, err
	}
	if txn.Status != models.TransactionPending {
		err = apperrors.Errorf(apperrors.ErrAlreadyResolved, "transaction %s is %s", txnID, txn.Status)
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE ledger_transactions SET status = $1 WHERE id = $2`, resolution, txnID)
	if err != nil {
		return nil, err
	}

	if resolution == models.TransactionConfirmed {
		if _, err = lockAccount(ctx, tx, txn.AccountID); err != nil {
			return nil, err
		}
		if err = adjustBalanceTx(ctx, tx, txn.AccountID, txn.Amount); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	txn.Status = resolution
	return &txn, nil
}

func (r *PostgresRepository) GetBalance(ctx context.Context, userID string) (int64, error) {
	query := `SELECT balance FROM balance_accounts WHERE user_id = $1`

	var balance int64
	err := r.db.GetContext(ctx, &balance, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperrors.Errorf(apperrors.ErrNotFound, "account %s", userID)
		}
		return 0, err
	}

	return balance, nil
}

func (r *PostgresRepository) GetTransactions(ctx context.Context, userID string) ([]models.LedgerTransaction, error) {
	query := `
		SELECT * FROM ledger_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
	`

	var txns []models.LedgerTransaction
	err := r.db.SelectContext(ctx, &txns, query, userID)
	if err != nil {
		return nil, err
	}

	return txns, nil
}

// Chat repository methods
func (r *PostgresRepository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO chat_messages (id, sender_id, recipient_id, order_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		msg.ID, msg.SenderID, msg.RecipientID, msg.OrderID, msg.Body, msg.CreatedAt)

	return err
}

func (r *PostgresRepository) GetConversation(ctx context.Context, userA, userB string) ([]models.ChatMessage, error) {
	query := `
		SELECT * FROM chat_messages
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at ASC
	`

	var messages []models.ChatMessage
	err := r.db.SelectContext(ctx, &messages, query, userA, userB)
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// Helpers shared by the transactional ledger paths

func lockAccount(ctx context.Context, tx *sql.Tx, accountID string) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx,
		`SELECT balance FROM balance_accounts WHERE user_id = $1 FOR UPDATE`,
		accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperrors.Errorf(apperrors.ErrNotFound, "account %s", accountID)
		}
		return 0, err
	}
	return balance, nil
}

func adjustBalanceTx(ctx context.Context, tx *sql.Tx, accountID string, delta int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE balance_accounts SET balance = balance + $1, updated_at = $2 WHERE user_id = $3`,
		delta, time.Now().UTC(), accountID)
	return err
}

func insertTransactionTx(ctx context.Context, tx *sql.Tx, txn *models.LedgerTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}

	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO ledger_transactions (id, account_id, amount, kind, status, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := tx.ExecContext(ctx, query,
		txn.ID, txn.AccountID, txn.Amount, txn.Kind, txn.Status, txn.Note, txn.CreatedAt)

	return err
}
