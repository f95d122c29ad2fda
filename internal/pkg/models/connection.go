package models

// ConnectionState is the lifecycle state of a tracking stream connection
type ConnectionState string

const (
	StateUninstantiated ConnectionState = "UNINSTANTIATED"
	StateConnecting     ConnectionState = "CONNECTING"
	StateOpen           ConnectionState = "OPEN"
	StateClosing        ConnectionState = "CLOSING"
	StateClosed         ConnectionState = "CLOSED"
)

// Status returns the human readable text shown for the state
func (s ConnectionState) Status() string {
	switch s {
	case StateUninstantiated:
		return "Not initialized"
	case StateConnecting:
		return "Connecting…"
	case StateOpen:
		return "Connected"
	case StateClosing:
		return "Closing…"
	case StateClosed:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// ConnectionStatus is the connection summary surfaced to the UI layer
type ConnectionStatus struct {
	State     ConnectionState `json:"state"`
	Status    string          `json:"status"`
	Exhausted bool            `json:"exhausted"`
	Notice    string          `json:"notice,omitempty"`
}
