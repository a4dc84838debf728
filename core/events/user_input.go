package events

const (
	// KindUserSpeechStarted identifies start of user speech activity.
	KindUserSpeechStarted Kind = "user_input.speech_started"
	// KindUserTranscriptUpdated identifies live transcript snapshots.
	KindUserTranscriptUpdated Kind = "user_input.transcript_updated"
	// KindUserTranscriptFinal identifies the final transcript for the turn.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
	// KindUserAudioLevel identifies microphone level readings.
	KindUserAudioLevel Kind = "user_input.audio_level"
)

// UserSpeechStarted marks when user speech activity starts.
type UserSpeechStarted struct{ Base }

// NewUserSpeechStarted creates a user speech started event.
func NewUserSpeechStarted() UserSpeechStarted {
	return UserSpeechStarted{Base: NewBase(KindUserSpeechStarted)}
}

// UserTranscriptUpdated carries the live transcript. An empty transcript
// means the buffer was cleared.
type UserTranscriptUpdated struct {
	Base
	Transcript string
}

// NewUserTranscriptUpdated creates a transcript snapshot event.
func NewUserTranscriptUpdated(transcript string) UserTranscriptUpdated {
	return UserTranscriptUpdated{Base: NewBase(KindUserTranscriptUpdated), Transcript: transcript}
}

// UserTranscriptFinal carries the final transcript for the turn.
type UserTranscriptFinal struct {
	Base
	Transcript string
}

// NewUserTranscriptFinal creates a final transcript event.
func NewUserTranscriptFinal(transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), Transcript: transcript}
}

// UserAudioLevel carries a microphone level reading.
type UserAudioLevel struct {
	Base
	Level float64
}

// NewUserAudioLevel creates a microphone level event.
func NewUserAudioLevel(level float64) UserAudioLevel {
	return UserAudioLevel{Base: NewBase(KindUserAudioLevel), Level: level}
}
