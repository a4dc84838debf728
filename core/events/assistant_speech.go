package events

const (
	// KindAssistantSpeechStarted identifies the start of response playback.
	KindAssistantSpeechStarted Kind = "assistant_speech.started"
	// KindAssistantSpeechFinished identifies completed response playback.
	KindAssistantSpeechFinished Kind = "assistant_speech.finished"
	// KindAssistantSpeechCancelled identifies interrupted response playback.
	KindAssistantSpeechCancelled Kind = "assistant_speech.cancelled"
	// KindAssistantAudioLevel identifies synthesized voice level readings.
	KindAssistantAudioLevel Kind = "assistant_speech.audio_level"
)

// AssistantSpeechStarted marks when response playback starts.
type AssistantSpeechStarted struct{ Base }

// NewAssistantSpeechStarted creates a speech started event.
func NewAssistantSpeechStarted() AssistantSpeechStarted {
	return AssistantSpeechStarted{Base: NewBase(KindAssistantSpeechStarted)}
}

// AssistantSpeechFinished marks when response playback completes.
type AssistantSpeechFinished struct{ Base }

// NewAssistantSpeechFinished creates a speech finished event.
func NewAssistantSpeechFinished() AssistantSpeechFinished {
	return AssistantSpeechFinished{Base: NewBase(KindAssistantSpeechFinished)}
}

// AssistantSpeechCancelled marks when response playback was cut short.
type AssistantSpeechCancelled struct{ Base }

// NewAssistantSpeechCancelled creates a speech cancelled event.
func NewAssistantSpeechCancelled() AssistantSpeechCancelled {
	return AssistantSpeechCancelled{Base: NewBase(KindAssistantSpeechCancelled)}
}

// AssistantAudioLevel carries a synthesized voice level reading.
type AssistantAudioLevel struct {
	Base
	Level float64
}

// NewAssistantAudioLevel creates a synthesized voice level event.
func NewAssistantAudioLevel(level float64) AssistantAudioLevel {
	return AssistantAudioLevel{Base: NewBase(KindAssistantAudioLevel), Level: level}
}
