package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aditpra/smartcare-server/internal/apperrors"
	"github.com/aditpra/smartcare-server/internal/models"
)

// SendMessage delivers a chat message from senderID to a recipient.
func (s *DefaultService) SendMessage(ctx context.Context, senderID string, req models.SendMessageRequest) (*models.ChatMessage, error) {
	if req.RecipientID == senderID {
		return nil, apperrors.Errorf(apperrors.ErrValidation, "cannot message yourself")
	}

	recipient, err := s.repo.GetUserByID(ctx, req.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("error getting recipient: %w", err)
	}
	if recipient == nil {
		return nil, apperrors.Errorf(apperrors.ErrNotFound, "user %s", req.RecipientID)
	}

	msg := &models.ChatMessage{
		ID:          uuid.New().String(),
		SenderID:    senderID,
		RecipientID: req.RecipientID,
		OrderID:     req.OrderID,
		Body:        req.Body,
	}

	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("error creating message: %w", err)
	}

	return msg, nil
}

// GetConversation returns the messages between userID and partnerID in
// ascending timestamp order.
func (s *DefaultService) GetConversation(ctx context.Context, userID, partnerID string) ([]models.ChatMessage, error) {
	partner, err := s.repo.GetUserByID(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("error getting partner: %w", err)
	}
	if partner == nil {
		return nil, apperrors.Errorf(apperrors.ErrNotFound, "user %s", partnerID)
	}

	return s.repo.GetConversation(ctx, userID, partnerID)
}
