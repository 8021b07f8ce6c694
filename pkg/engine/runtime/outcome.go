package runtime

// NodeOutcome classifies how a node execution ended.
type NodeOutcome string

const (
	// OutcomeSuccess indicates the runner returned an output.
	OutcomeSuccess NodeOutcome = "success"
	// OutcomeFailure indicates the runner failed on its last attempt.
	OutcomeFailure NodeOutcome = "failure"
	// OutcomeTimeout indicates the last attempt exceeded its deadline.
	OutcomeTimeout NodeOutcome = "timeout"
	// OutcomeRejected indicates the node never ran: unknown type or invalid config.
	OutcomeRejected NodeOutcome = "rejected"
	// OutcomeCancelled indicates the run was cancelled while the node was active.
	OutcomeCancelled NodeOutcome = "cancelled"
)
