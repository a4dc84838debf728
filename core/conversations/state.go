package conversations

// SessionState is the phase of the voice session. Exactly one is active at a
// time.
type SessionState string

const (
	StateIdle              SessionState = "idle"
	StateListening         SessionState = "listening"
	StateProcessing        SessionState = "processing"
	StateSpeaking          SessionState = "speaking"
	StatePermissionBlocked SessionState = "permission_blocked"
	StateFailed            SessionState = "failed"
)

func (s SessionState) String() string { return string(s) }

// CanStartListening reports whether an explicit start is accepted from s.
func (s SessionState) CanStartListening() bool {
	switch s {
	case StateIdle, StateFailed, StatePermissionBlocked:
		return true
	}
	return false
}

// IsActive reports whether a turn is in progress.
func (s SessionState) IsActive() bool {
	switch s {
	case StateListening, StateProcessing, StateSpeaking:
		return true
	}
	return false
}
