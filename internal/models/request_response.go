package models

import "time"

// Request models
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
	Role     Role   `json:"role" binding:"required,oneof=user mitra"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type VerifyUserRequest struct {
	Status VerificationStatus `json:"status" binding:"required,oneof=verified rejected"`
}

type CreateOrderRequest struct {
	ProviderID     string    `json:"providerId" binding:"required"`
	ServiceType    string    `json:"serviceType" binding:"required"`
	Description    string    `json:"description" binding:"required"`
	Address        string    `json:"address" binding:"required"`
	DesiredTime    time.Time `json:"desiredTime" binding:"required"`
	BudgetEstimate *int64    `json:"budgetEstimate"`
}

type TransitionOrderRequest struct {
	Action OrderAction `json:"action" binding:"required,oneof=accept reject complete"`
}

type TopupRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Note   string `json:"note"`
}

type ResolveTopupRequest struct {
	Resolution TransactionStatus `json:"resolution" binding:"required,oneof=confirmed rejected"`
}

type SendMessageRequest struct {
	RecipientID string `json:"recipientId" binding:"required"`
	Body        string `json:"body" binding:"required"`
	OrderID     string `json:"orderId"`
}

// Response models
type AuthResponse struct {
	Status       string             `json:"status"`
	UserID       string             `json:"userId,omitempty"`
	Email        string             `json:"email,omitempty"`
	Name         string             `json:"name,omitempty"`
	Role         Role               `json:"role,omitempty"`
	Verification VerificationStatus `json:"verification,omitempty"`
	Token        string             `json:"token,omitempty"`
	ExpiresIn    int                `json:"expiresIn,omitempty"`
}

type UsersResponse struct {
	Status string `json:"status"`
	Users  []User `json:"users"`
}

type OrderResponse struct {
	Status string `json:"status"`
	Order  *Order `json:"order,omitempty"`
}

type OrdersResponse struct {
	Status string  `json:"status"`
	Orders []Order `json:"orders"`
}

type BalanceResponse struct {
	Status  string `json:"status"`
	UserID  string `json:"userId"`
	Balance int64  `json:"balance"`
}

type TransactionResponse struct {
	Status      string             `json:"status"`
	Transaction *LedgerTransaction `json:"transaction,omitempty"`
}

type HistoryResponse struct {
	Status       string              `json:"status"`
	UserID       string              `json:"userId"`
	Transactions []LedgerTransaction `json:"transactions"`
}

type ConversationResponse struct {
	Status   string        `json:"status"`
	Messages []ChatMessage `json:"messages"`
}

type MessageResponse struct {
	Status  string       `json:"status"`
	Message *ChatMessage `json:"message,omitempty"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
