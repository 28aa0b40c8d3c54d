// README: Pure state machine: transition table and the dual-channel tie-break rule.
package order

// AllowedTransitions represents the order lifecycle (diagram) as code.
// cancelled is reachable only before accepted takes effect for the
// passenger role; driver rejection maps onto assigned → cancelled.
var AllowedTransitions = map[Status][]Status{
	StatusNone:       {StatusPending},
	StatusPending:    {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusAccepted, StatusCancelled, StatusExpired},
	StatusAccepted:   {StatusInProgress},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Supersedes decides whether an inbound candidate status should replace the
// current one when the two channels disagree. A later forward status wins;
// cancelled/expired win over any non-terminal state but never override
// completed; everything else is a stale update.
func Supersedes(candidate, current Status) bool {
	if candidate == current {
		return false
	}
	if Terminal(current) {
		return false
	}
	if candidate == StatusCancelled || candidate == StatusExpired {
		return true
	}
	cr, ok := rank[candidate]
	if !ok {
		return false
	}
	return cr > rank[current]
}
