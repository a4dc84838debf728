package events

import (
	"github.com/koscakluka/ema-voice/core/conversations"
	"github.com/koscakluka/ema-voice/core/permissions"
)

const (
	// KindStateChanged identifies session state transitions.
	KindStateChanged Kind = "session.state_changed"
	// KindSessionError identifies user facing session errors.
	KindSessionError Kind = "session.error"
)

// StateChanged carries a session state transition. BlockedOn is set when the
// new state is permission blocked.
type StateChanged struct {
	Base
	From      conversations.SessionState
	To        conversations.SessionState
	BlockedOn permissions.Kind
}

// NewStateChanged creates a state transition event.
func NewStateChanged(from, to conversations.SessionState, blockedOn permissions.Kind) StateChanged {
	return StateChanged{Base: NewBase(KindStateChanged), From: from, To: to, BlockedOn: blockedOn}
}

// SessionError carries an error surfaced to the user.
type SessionError struct {
	Base
	Err error
	// Retryable is set when an explicit retry may succeed.
	Retryable bool
	// RequiresSettings is set when only a change in system settings can fix
	// the error.
	RequiresSettings bool
}

// NewSessionError creates a session error event.
func NewSessionError(err error, retryable, requiresSettings bool) SessionError {
	return SessionError{Base: NewBase(KindSessionError), Err: err, Retryable: retryable, RequiresSettings: requiresSettings}
}
