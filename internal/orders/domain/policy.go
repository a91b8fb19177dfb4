package domain

// Policy holds per-actor rules layered on top of the lifecycle graph.
type Policy struct {
	// CustomerCancellable lists the states from which an owner may cancel their own order.
	CustomerCancellable []OrderStatus
}

// DefaultPolicy lets customers cancel from any non-terminal state.
func DefaultPolicy() Policy {
	return Policy{CustomerCancellable: []OrderStatus{StatusPending, StatusProcessing}}
}

// PendingOnlyPolicy restricts customer cancellation to orders not yet picked up by a manager.
func PendingOnlyPolicy() Policy {
	return Policy{CustomerCancellable: []OrderStatus{StatusPending}}
}

// CustomerMayCancel reports whether an owner may cancel an order in status s.
func (p Policy) CustomerMayCancel(s OrderStatus) bool {
	if !s.CanTransitionTo(StatusCancelled) {
		return false
	}
	for _, allowed := range p.CustomerCancellable {
		if allowed == s {
			return true
		}
	}
	return false
}
