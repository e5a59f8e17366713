package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/aditpra/smartcare-server/internal/apperrors"
	"github.com/aditpra/smartcare-server/internal/models"
	"github.com/aditpra/smartcare-server/internal/notify"
	"github.com/aditpra/smartcare-server/internal/repository"
)

// Service defines all the business logic operations
type Service interface {
	// Authentication and directory
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	VerifyUser(ctx context.Context, userID string, status models.VerificationStatus) error

	// Order workflow
	CreateOrder(ctx context.Context, requesterID string, req models.CreateOrderRequest) (*models.Order, error)
	TransitionOrder(ctx context.Context, orderID, actorID string, action models.OrderAction) (*models.Order, error)
	GetOrder(ctx context.Context, orderID, actorID string, actorRole models.Role) (*models.Order, error)
	ListOrders(ctx context.Context, actorID string, actorRole models.Role) ([]models.Order, error)

	// Balance ledger
	ApplyTransaction(ctx context.Context, accountID string, amount int64, kind models.TransactionKind, note string) (*models.LedgerTransaction, error)
	ResolveTopup(ctx context.Context, txnID string, resolution models.TransactionStatus) (*models.LedgerTransaction, error)
	GetBalance(ctx context.Context, accountID string) (int64, error)
	GetHistory(ctx context.Context, accountID string) ([]models.LedgerTransaction, error)

	// Chat
	SendMessage(ctx context.Context, senderID string, req models.SendMessageRequest) (*models.ChatMessage, error)
	GetConversation(ctx context.Context, userID, partnerID string) ([]models.ChatMessage, error)

	// Change notification
	Subscribe(participantID string, entityType notify.EntityType) *notify.Subscription
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	hub           *notify.Hub
	jwtSecret     []byte
	tokenDuration time.Duration
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, hub *notify.Hub, jwtSecret string) Service {
	return &DefaultService{
		repo:          repo,
		hub:           hub,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
	}
}

// Authentication methods
func (s *DefaultService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	// Check if user already exists
	existingUser, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}

	if existingUser != nil {
		return nil, apperrors.Errorf(apperrors.ErrConflict, "email %s already registered", req.Email)
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		ID:       uuid.New().String(),
		Email:    req.Email,
		Name:     req.Name,
		Password: string(hashedPassword),
		Role:     req.Role,
	}

	// Mitra accounts wait for admin review before they can log in
	if req.Role == models.RoleMitra {
		user.Verification = models.VerificationPending
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		Status:       "success",
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Role:         user.Role,
		Verification: user.Verification,
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	// Get the user
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	// Mitra accounts must be verified before use
	if user.Role == models.RoleMitra && user.Verification != models.VerificationVerified {
		return nil, apperrors.Errorf(apperrors.ErrUnauthorized,
			"account verification is %s", user.Verification)
	}

	// Generate JWT token
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Role:      user.Role,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

func (s *DefaultService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *DefaultService) VerifyUser(ctx context.Context, userID string, status models.VerificationStatus) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return apperrors.Errorf(apperrors.ErrNotFound, "user %s", userID)
	}

	if user.Role != models.RoleMitra {
		return apperrors.Errorf(apperrors.ErrValidation, "user %s is not a mitra", userID)
	}

	return s.repo.UpdateVerification(ctx, userID, status)
}

// Subscribe registers interest in change events for a participant.
func (s *DefaultService) Subscribe(participantID string, entityType notify.EntityType) *notify.Subscription {
	return s.hub.Subscribe(participantID, entityType)
}

// publish emits a change event after a commit. Fire and forget: it never
// fails the operation that triggered it.
func (s *DefaultService) publish(entityType notify.EntityType, entityID, changeKind string, participants ...string) {
	if s.hub == nil {
		return
	}

	s.hub.Publish(notify.Event{
		EntityType:   entityType,
		EntityID:     entityID,
		ChangeKind:   changeKind,
		Timestamp:    time.Now().UTC(),
		Participants: participants,
	})
}

// Helper methods
func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub":  user.ID, // subject
		"role": string(user.Role),
		"exp":  expirationTime.Unix(),
		"iat":  time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
