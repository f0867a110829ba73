package chat

// RunStatus is the lifecycle state of one assistant invocation on a thread.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
)

// Terminal reports whether no further transition can happen.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled:
		return true
	}
	return false
}

// NormalizeRunStatus folds upstream statuses outside the closed set into it.
func NormalizeRunStatus(raw string) RunStatus {
	switch RunStatus(raw) {
	case RunQueued, RunInProgress, RunRequiresAction, RunCompleted, RunFailed, RunCancelled:
		return RunStatus(raw)
	}
	switch raw {
	case "expired", "incomplete":
		return RunFailed
	case "cancelling":
		return RunInProgress
	case "canceled":
		return RunCancelled
	}
	return RunInProgress
}

type RunError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Run is never persisted locally; it mirrors the remote state during polling.
type Run struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Status    RunStatus `json:"status"`
	LastError *RunError `json:"last_error,omitempty"`
}
