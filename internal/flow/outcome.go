package flow

type OutcomeKind string

const (
	// OutcomeNotApplicable covers the silent no-ops: an unusable token set,
	// an unknown operation, or a connect flow owned by a different user.
	OutcomeNotApplicable OutcomeKind = "not_applicable"

	// OutcomeUserCancelled is an authorization-server error from the
	// canonical "user declined consent" set.
	OutcomeUserCancelled OutcomeKind = "user_cancelled"

	// OutcomeAuthorizationError is any other authorization-server error.
	OutcomeAuthorizationError OutcomeKind = "authorization_error"

	OutcomeLoginCompleted OutcomeKind = "login_completed"
	OutcomeLinkCompleted  OutcomeKind = "link_completed"
)

// Outcome classifies a processed callback. It lives only for the duration
// of the request; the user-visible effect is the queued notice and the
// redirect.
type Outcome struct {
	Kind OutcomeKind

	// Set for OutcomeAuthorizationError.
	ErrorCode        string
	ErrorDescription string

	// Set for OutcomeLoginCompleted and OutcomeLinkCompleted.
	OK bool
}

// Result is what a completion collaborator reports back. A reason
// accompanies failures for diagnostics; it is not shown to the user.
type Result struct {
	OK     bool
	Reason string
}
