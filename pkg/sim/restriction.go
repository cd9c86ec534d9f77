package sim

// RestrictionFunc is the predicate behind a restriction. A nil return means
// the action passes; an error blocks it.
type RestrictionFunc func(agent *Agent, action Action) error

// ActionRestriction vetoes a specific action kind for the agent it is
// attached to. Several restrictions may guard the same kind; all must pass.
type ActionRestriction struct {
	Kind       ActionKind
	Predicate  RestrictionFunc
	Message    string // relayed to the decision collaborator on trigger
	Retry      bool   // ask the collaborator to choose again when blocked
	MaxRetries int

	retries int
}

func NewRestriction(kind ActionKind, pred RestrictionFunc, message string) *ActionRestriction {
	return &ActionRestriction{
		Kind:       kind,
		Predicate:  pred,
		Message:    message,
		Retry:      true,
		MaxRetries: 3,
	}
}

// Check runs the predicate. A failure is reported with the restriction's
// message when one is set.
func (r *ActionRestriction) Check(agent *Agent, action Action) error {
	return r.Predicate(agent, action)
}

// Retries reports how many retries this restriction has triggered in the
// current episode.
func (r *ActionRestriction) Retries() int { return r.retries }

func (r *ActionRestriction) reset() { r.retries = 0 }
