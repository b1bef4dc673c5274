package workflows

// StateMachine enforces verification status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a new state machine with allowed transitions
func NewStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"pending":         {"payment_pending", "in_progress", "denied", "cancelled"},
			"payment_pending": {"in_progress", "cancelled"},
			"in_progress":     {"field_work", "analysis", "quality_review", "completed", "expired", "cancelled"},
			"field_work":      {"analysis", "quality_review", "completed", "cancelled"},
			"analysis":        {"quality_review", "completed", "cancelled"},
			"quality_review":  {"completed", "cancelled"},
			"completed":       {},
			"denied":          {},
			"expired":         {},
			"cancelled":       {},
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

// IsTerminal reports whether a status has no outgoing transitions
func (sm *StateMachine) IsTerminal(status string) bool {
	allowed, exists := sm.allowedTransitions[status]
	return exists && len(allowed) == 0
}

// IsKnown reports whether the status exists in the transition table
func (sm *StateMachine) IsKnown(status string) bool {
	_, exists := sm.allowedTransitions[status]
	return exists
}
