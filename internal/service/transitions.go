package service

import (
	"github.com/aditpra/smartcare-server/internal/models"
)

// transitionTable maps the current order status and requested action to
// the resulting status. Absent entries are illegal. Status only ever
// moves forward: awaiting_confirmation -> in_progress -> completed, with
// the alternate edge awaiting_confirmation -> rejected. Both completed
// and rejected are terminal.
var transitionTable = map[models.OrderStatus]map[models.OrderAction]models.OrderStatus{
	models.OrderAwaitingConfirmation: {
		models.ActionAccept: models.OrderInProgress,
		models.ActionReject: models.OrderRejected,
	},
	models.OrderInProgress: {
		models.ActionComplete: models.OrderCompleted,
	},
}

// nextStatus resolves the target status for an action, if legal.
func nextStatus(current models.OrderStatus, action models.OrderAction) (models.OrderStatus, bool) {
	actions, ok := transitionTable[current]
	if !ok {
		return "", false
	}

	next, ok := actions[action]
	return next, ok
}
