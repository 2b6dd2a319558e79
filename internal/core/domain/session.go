package domain

// State identifies the step a user's conversation is waiting on.
type State string

const (
	StateIdle                     State = "idle"
	StateAddWaitingForName        State = "add_waiting_for_name"
	StateAddWaitingForQuantity    State = "add_waiting_for_quantity"
	StateRemoveWaitingForName     State = "remove_waiting_for_name"
	StateRemoveWaitingForQuantity State = "remove_waiting_for_quantity"
)

// Session is the per-user conversation state plus the scratch values
// collected in earlier steps of the active scenario.
type Session struct {
	State   State             `json:"state"`
	Scratch map[string]string `json:"scratch,omitempty"`
}

// NewIdleSession returns the default session: idle, empty scratch.
// A missing session in any store is equivalent to this value.
func NewIdleSession() Session {
	return Session{State: StateIdle, Scratch: map[string]string{}}
}
