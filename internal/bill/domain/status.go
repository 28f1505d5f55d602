package domain

type Status string

const (
	StatusCreated      Status = "CREATED"
	StatusFileAttached Status = "FILE_ATTACHED"
	StatusProcessed    Status = "PROCESSED"
	StatusApproved     Status = "APPROVED"
	StatusRejected     Status = "REJECTED"
)

// Decision is the outcome an approver records.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusFileAttached, StatusProcessed, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// rank orders statuses along the lifecycle; terminal states share a rank.
func (s Status) rank() int {
	switch s {
	case StatusCreated:
		return 1
	case StatusFileAttached:
		return 2
	case StatusProcessed:
		return 3
	case StatusApproved, StatusRejected:
		return 4
	}
	return 0
}

// CanTransition reports whether moving from s to next is one step forward
// along CREATED, FILE_ATTACHED, PROCESSED, then APPROVED or REJECTED. The
// empty status is the state before a stream exists.
func (s Status) CanTransition(next Status) bool {
	if !next.Valid() || s.Terminal() {
		return false
	}
	return next.rank() == s.rank()+1
}

func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

func (d Decision) Status() Status {
	if d == DecisionRejected {
		return StatusRejected
	}
	return StatusApproved
}
