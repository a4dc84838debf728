package orchestration

import (
	"github.com/koscakluka/ema-voice/core/conversations"
	"github.com/koscakluka/ema-voice/core/permissions"
)

// Visualization is what an audio visualizer should show for a status.
type Visualization string

const (
	VisualizationIdle       Visualization = "idle"
	VisualizationListening  Visualization = "listening"
	VisualizationResponding Visualization = "responding"
)

// Status is a snapshot of everything a UI shows about the session.
type Status struct {
	State conversations.SessionState
	// BlockedOn is the missing permission while State is permission blocked.
	BlockedOn permissions.Kind

	Transcript string
	Response   string

	UserLevel      float64
	AssistantLevel float64

	// Err is the error that moved the session to failed or blocked.
	Err   error
	Retry RetryState
}

func (s Status) Description() string {
	switch s.State {
	case conversations.StateListening:
		return "Listening..."
	case conversations.StateProcessing:
		return "Processing..."
	case conversations.StateSpeaking:
		return "AI is responding..."
	}
	return "Tap to start speaking"
}

func (s Status) Visualization() Visualization {
	switch s.State {
	case conversations.StateListening:
		return VisualizationListening
	case conversations.StateSpeaking:
		return VisualizationResponding
	}
	return VisualizationIdle
}

// CanRetry reports whether Retry would be accepted.
func (s Status) CanRetry() bool {
	switch s.State {
	case conversations.StatePermissionBlocked:
		return true
	case conversations.StateFailed:
		return s.Retry.Remaining() > 0
	}
	return false
}

// Level is the level a visualizer should follow: the user's while
// listening, the assistant's while responding.
func (s Status) Level() float64 {
	switch s.Visualization() {
	case VisualizationListening:
		return s.UserLevel
	case VisualizationResponding:
		return s.AssistantLevel
	}
	return 0
}
