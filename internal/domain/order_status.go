package domain

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits payment or admin confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing indicates the order has been accepted and is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusPaid indicates payment was captured before or at acceptance.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusShipped indicates the order has been handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled and its stock released.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusReturnRequested indicates the customer asked to return a delivered order.
	OrderStatusReturnRequested OrderStatus = "return_requested"
	// OrderStatusReturned indicates the return was accepted and completed.
	OrderStatusReturned OrderStatus = "returned"
	// OrderStatusCancellationRequested indicates a cancellation awaiting admin approval.
	OrderStatusCancellationRequested OrderStatus = "cancellation_requested"
)

var orderStateTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:               {OrderStatusProcessing, OrderStatusPaid, OrderStatusCancelled, OrderStatusCancellationRequested},
	OrderStatusProcessing:            {OrderStatusPaid, OrderStatusShipped, OrderStatusCancelled, OrderStatusCancellationRequested},
	OrderStatusPaid:                  {OrderStatusProcessing, OrderStatusShipped},
	OrderStatusShipped:               {OrderStatusDelivered},
	OrderStatusDelivered:             {OrderStatusReturnRequested},
	OrderStatusReturnRequested:       {OrderStatusReturned, OrderStatusDelivered},
	OrderStatusCancellationRequested: {OrderStatusCancelled, OrderStatusProcessing},
}

// Statuses a customer may cancel from. Anything later in the lifecycle has
// left the warehouse or already settled.
var customerCancellableStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
}

var terminalStatuses = []OrderStatus{
	OrderStatusCancelled,
	OrderStatusReturned,
}

// CanTransition reports whether the state machine permits current → target.
func CanTransition(current, target OrderStatus) bool {
	if current == target {
		return true
	}
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	for _, candidate := range next {
		if candidate == target {
			return true
		}
	}
	return false
}

// IsCustomerCancellable reports whether a customer-initiated cancellation is
// legal from the given status.
func IsCustomerCancellable(status OrderStatus) bool {
	for _, candidate := range customerCancellableStatuses {
		if candidate == status {
			return true
		}
	}
	return false
}

// IsReturnable reports whether a customer may request a return. Only a
// delivered order qualifies.
func IsReturnable(status OrderStatus) bool {
	return status == OrderStatusDelivered
}

// IsTerminal reports whether no further transitions leave the given status.
func IsTerminal(status OrderStatus) bool {
	for _, candidate := range terminalStatuses {
		if candidate == status {
			return true
		}
	}
	return false
}

// ValidOrderStatus reports whether raw names a known status.
func ValidOrderStatus(raw OrderStatus) bool {
	if _, ok := orderStateTransitions[raw]; ok {
		return true
	}
	for _, candidate := range terminalStatuses {
		if candidate == raw {
			return true
		}
	}
	return false
}
