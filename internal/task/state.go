package task

// State is the lifecycle state of a task.
type State string

const (
	StatePending    State = "pending"
	StateRunning    State = "running"
	StateSuccessful State = "successful"
	StateFailed     State = "failed"
	StateSkipped    State = "skipped"
)

// Terminal reports whether no further transition is permitted from s.
func (s State) Terminal() bool {
	switch s {
	case StateSuccessful, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}
