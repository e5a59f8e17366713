package models

import (
	"time"
)

// Role identifies what a user can do in the marketplace
type Role string

const (
	RoleUser  Role = "user"
	RoleMitra Role = "mitra"
	RoleAdmin Role = "admin"
)

// VerificationStatus tracks the admin review of a mitra account
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// User represents a user in the system
type User struct {
	ID           string             `db:"id" json:"id"`
	Email        string             `db:"email" json:"email"`
	Name         string             `db:"name" json:"name"`
	Password     string             `db:"password" json:"-"` // Password hash, not returned in JSON
	Role         Role               `db:"role" json:"role"`
	Verification VerificationStatus `db:"verification" json:"verification,omitempty"` // mitra only
	CreatedAt    time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updatedAt"`
}

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderAwaitingConfirmation OrderStatus = "awaiting_confirmation"
	OrderInProgress           OrderStatus = "in_progress"
	OrderCompleted            OrderStatus = "completed"
	OrderRejected             OrderStatus = "rejected"
)

// Terminal reports whether no further transitions are possible from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderRejected
}

// OrderAction is a transition requested against an order
type OrderAction string

const (
	ActionAccept   OrderAction = "accept"
	ActionReject   OrderAction = "reject"
	ActionComplete OrderAction = "complete"
)

// Order represents a service request placed by a user against a mitra
type Order struct {
	ID             string      `db:"id" json:"id"`
	RequesterID    string      `db:"requester_id" json:"requesterId"`
	ProviderID     string      `db:"provider_id" json:"providerId"`
	ServiceType    string      `db:"service_type" json:"serviceType"`
	Description    string      `db:"description" json:"description"`
	Address        string      `db:"address" json:"address"`
	DesiredTime    time.Time   `db:"desired_time" json:"desiredTime"`
	BudgetEstimate *int64      `db:"budget_estimate" json:"budgetEstimate,omitempty"` // minor units, nil = unpriced
	Status         OrderStatus `db:"status" json:"status"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
}

// TransactionKind classifies a ledger transaction
type TransactionKind string

const (
	TransactionTopup   TransactionKind = "topup"
	TransactionIncome  TransactionKind = "income"
	TransactionExpense TransactionKind = "expense"
)

// TransactionStatus is the resolution state of a ledger transaction.
// Income and expense are confirmed at creation; only topups go through
// pending.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionConfirmed TransactionStatus = "confirmed"
	TransactionRejected  TransactionStatus = "rejected"
)

// LedgerTransaction is one entry against a user's balance account
type LedgerTransaction struct {
	ID        string            `db:"id" json:"id"`
	AccountID string            `db:"account_id" json:"accountId"`
	Amount    int64             `db:"amount" json:"amount"` // positive, minor units
	Kind      TransactionKind   `db:"kind" json:"kind"`
	Status    TransactionStatus `db:"status" json:"status"`
	Note      string            `db:"note" json:"note,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"createdAt"`
}

// BalanceAccount holds the current confirmed balance for one user
type BalanceAccount struct {
	UserID    string    `db:"user_id" json:"userId"`
	Balance   int64     `db:"balance" json:"balance"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ChatMessage is a message between two participants. Conversations are
// keyed by the unordered pair of sender and recipient ids.
type ChatMessage struct {
	ID          string    `db:"id" json:"id"`
	SenderID    string    `db:"sender_id" json:"senderId"`
	RecipientID string    `db:"recipient_id" json:"recipientId"`
	OrderID     string    `db:"order_id" json:"orderId,omitempty"`
	Body        string    `db:"body" json:"body"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
