package orders

import "bakehouse/internal/model"

var validNext = map[model.OrderStatus][]model.OrderStatus{
	model.OrderPending:   {model.OrderConfirmed, model.OrderCanceled},
	model.OrderConfirmed: {model.OrderBaking, model.OrderCanceled},
	model.OrderBaking:    {model.OrderReady},
	model.OrderReady:     {model.OrderPickedUp, model.OrderCanceled},
	// picked_up and canceled are terminal.
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to model.OrderStatus) bool {
	for _, s := range validNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from s.
func NextStatuses(s model.OrderStatus) []model.OrderStatus {
	return append([]model.OrderStatus(nil), validNext[s]...)
}

// KnownStatus reports whether s is one of the order statuses.
func KnownStatus(s model.OrderStatus) bool {
	switch s {
	case model.OrderPending, model.OrderConfirmed, model.OrderBaking,
		model.OrderReady, model.OrderPickedUp, model.OrderCanceled:
		return true
	}
	return false
}
