package session

// State is the position of a session in the evaluation flow
type State string

const (
	StateAwaitingIdentity State = "awaiting_identity"
	StateBrowsingProjects State = "browsing_projects"
	StateEditingProject   State = "editing_project"
	StateSubmitting       State = "submitting"
	StateAllComplete      State = "all_complete"
)

// isTransitionAllowed enforces the evaluation flow
func isTransitionAllowed(from, to State) bool {
	switch from {
	case StateAwaitingIdentity:
		return to == StateBrowsingProjects || to == StateAllComplete
	case StateBrowsingProjects:
		return to == StateEditingProject || to == StateAwaitingIdentity
	case StateEditingProject:
		return to == StateEditingProject || to == StateSubmitting || to == StateAwaitingIdentity
	case StateSubmitting:
		return to == StateEditingProject || to == StateBrowsingProjects || to == StateAllComplete
	case StateAllComplete:
		return to == StateAwaitingIdentity
	default:
		return false
	}
}

// IsTransitionAllowed reports whether a state transition is permitted
func IsTransitionAllowed(from, to State) bool {
	return isTransitionAllowed(from, to)
}
