package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aditpra/smartcare-server/internal/apperrors"
	"github.com/aditpra/smartcare-server/internal/models"
	"github.com/aditpra/smartcare-server/internal/notify"
)

// CreateOrder places a new order by requesterID against a verified mitra.
func (s *DefaultService) CreateOrder(ctx context.Context, requesterID string, req models.CreateOrderRequest) (*models.Order, error) {
	requester, err := s.repo.GetUserByID(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("error getting requester: %w", err)
	}
	if requester == nil {
		return nil, apperrors.Errorf(apperrors.ErrNotFound, "user %s", requesterID)
	}

	if requester.Role != models.RoleUser {
		return nil, apperrors.Errorf(apperrors.ErrUnauthorized, "only users place orders")
	}

	provider, err := s.repo.GetUserByID(ctx, req.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("error getting provider: %w", err)
	}
	if provider == nil {
		return nil, apperrors.Errorf(apperrors.ErrNotFound, "provider %s", req.ProviderID)
	}

	if provider.Role != models.RoleMitra || provider.Verification != models.VerificationVerified {
		return nil, apperrors.Errorf(apperrors.ErrInvalidTransition,
			"provider %s is not a verified mitra", req.ProviderID)
	}

	if req.BudgetEstimate != nil && *req.BudgetEstimate <= 0 {
		return nil, apperrors.Errorf(apperrors.ErrInvalidAmount,
			"budget estimate must be positive, got %d", *req.BudgetEstimate)
	}

	order := &models.Order{
		ID:             uuid.New().String(),
		RequesterID:    requesterID,
		ProviderID:     req.ProviderID,
		ServiceType:    req.ServiceType,
		Description:    req.Description,
		Address:        req.Address,
		DesiredTime:    req.DesiredTime,
		BudgetEstimate: req.BudgetEstimate,
		Status:         models.OrderAwaitingConfirmation,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("error creating order: %w", err)
	}

	s.publish(notify.EntityOrder, order.ID, "created", order.RequesterID, order.ProviderID)

	return order, nil
}

// TransitionOrder applies an action to an order on behalf of actorID.
// Only the assigned provider may transition; completion settles the
// order's budget between the two balance accounts as one atomic unit.
func (s *DefaultService) TransitionOrder(ctx context.Context, orderID, actorID string, action models.OrderAction) (*models.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("error getting order: %w", err)
	}
	if order == nil {
		return nil, apperrors.Errorf(apperrors.ErrNotFound, "order %s", orderID)
	}

	if actorID != order.ProviderID {
		return nil, apperrors.Errorf(apperrors.ErrUnauthorized,
			"only the assigned mitra may %s this order", action)
	}

	next, ok := nextStatus(order.Status, action)
	if !ok {
		return nil, apperrors.Errorf(apperrors.ErrInvalidTransition,
			"cannot %s an order in status %s", action, order.Status)
	}

	var incomeTxn, expenseTxn *models.LedgerTransaction

	if action == models.ActionComplete {
		// Orders without a budget complete with no ledger movement
		if order.BudgetEstimate != nil {
			amount := *order.BudgetEstimate
			note := fmt.Sprintf("order %s: %s", order.ID, order.ServiceType)
			incomeTxn = &models.LedgerTransaction{
				ID:        uuid.New().String(),
				AccountID: order.ProviderID,
				Amount:    amount,
				Kind:      models.TransactionIncome,
				Status:    models.TransactionConfirmed,
				Note:      note,
			}
			expenseTxn = &models.LedgerTransaction{
				ID:        uuid.New().String(),
				AccountID: order.RequesterID,
				Amount:    amount,
				Kind:      models.TransactionExpense,
				Status:    models.TransactionConfirmed,
				Note:      note,
			}
		}

		if err := s.repo.SettleOrder(ctx, order.ID, incomeTxn, expenseTxn); err != nil {
			return nil, err
		}
	} else {
		if err := s.repo.UpdateOrderStatus(ctx, order.ID, order.Status, next); err != nil {
			return nil, err
		}
	}

	order.Status = next

	s.publish(notify.EntityOrder, order.ID, changeKindFor(action), order.RequesterID, order.ProviderID)
	if incomeTxn != nil {
		s.publish(notify.EntityLedger, incomeTxn.ID, string(models.TransactionIncome), incomeTxn.AccountID)
	}
	if expenseTxn != nil {
		s.publish(notify.EntityLedger, expenseTxn.ID, string(models.TransactionExpense), expenseTxn.AccountID)
	}

	return order, nil
}

// GetOrder returns an order; only participants and admins may view it.
func (s *DefaultService) GetOrder(ctx context.Context, orderID, actorID string, actorRole models.Role) (*models.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("error getting order: %w", err)
	}
	if order == nil {
		return nil, apperrors.Errorf(apperrors.ErrNotFound, "order %s", orderID)
	}

	if actorRole != models.RoleAdmin && actorID != order.RequesterID && actorID != order.ProviderID {
		return nil, apperrors.Errorf(apperrors.ErrUnauthorized, "not a participant of order %s", orderID)
	}

	return order, nil
}

// ListOrders returns the actor's orders; admins see all orders.
func (s *DefaultService) ListOrders(ctx context.Context, actorID string, actorRole models.Role) ([]models.Order, error) {
	if actorRole == models.RoleAdmin {
		return s.repo.ListOrders(ctx)
	}
	return s.repo.ListOrdersByParticipant(ctx, actorID)
}

func changeKindFor(action models.OrderAction) string {
	switch action {
	case models.ActionAccept:
		return "accepted"
	case models.ActionReject:
		return "rejected"
	case models.ActionComplete:
		return "completed"
	default:
		return string(action)
	}
}
