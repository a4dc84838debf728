package events

import (
	"errors"
	"testing"

	"github.com/koscakluka/ema-voice/core/conversations"
	"github.com/koscakluka/ema-voice/core/permissions"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "state changed", event: NewStateChanged(conversations.StateIdle, conversations.StateListening, ""), expected: KindStateChanged},
		{name: "session error", event: NewSessionError(errors.New("boom"), true, false), expected: KindSessionError},
		{name: "user speech started", event: NewUserSpeechStarted(), expected: KindUserSpeechStarted},
		{name: "user transcript updated", event: NewUserTranscriptUpdated("text"), expected: KindUserTranscriptUpdated},
		{name: "user transcript final", event: NewUserTranscriptFinal("text"), expected: KindUserTranscriptFinal},
		{name: "user audio level", event: NewUserAudioLevel(0.5), expected: KindUserAudioLevel},
		{name: "assistant response started", event: NewAssistantResponseStarted("text"), expected: KindAssistantResponseStarted},
		{name: "assistant response final", event: NewAssistantResponseFinal("text"), expected: KindAssistantResponseFinal},
		{name: "assistant speech started", event: NewAssistantSpeechStarted(), expected: KindAssistantSpeechStarted},
		{name: "assistant speech finished", event: NewAssistantSpeechFinished(), expected: KindAssistantSpeechFinished},
		{name: "assistant speech cancelled", event: NewAssistantSpeechCancelled(), expected: KindAssistantSpeechCancelled},
		{name: "assistant audio level", event: NewAssistantAudioLevel(0.5), expected: KindAssistantAudioLevel},
		{name: "turn completed", event: NewTurnCompleted(conversations.Exchange{}), expected: KindTurnCompleted},
		{name: "turn cancelled", event: NewTurnCancelled(), expected: KindTurnCancelled},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected event to be timestamped")
			}
		})
	}
}

func TestStateChangedCarriesBlockingPermission(t *testing.T) {
	event := NewStateChanged(conversations.StateIdle, conversations.StatePermissionBlocked, permissions.Microphone)

	if event.BlockedOn != permissions.Microphone {
		t.Fatalf("expected blocking permission to be microphone, got %q", event.BlockedOn)
	}
}

func TestSpeechLifecycleKindsAreDistinct(t *testing.T) {
	kinds := map[Kind]bool{}
	for _, event := range []Event{NewAssistantSpeechStarted(), NewAssistantSpeechFinished(), NewAssistantSpeechCancelled()} {
		if kinds[event.Kind()] {
			t.Fatalf("expected speech lifecycle kinds to differ, %q repeated", event.Kind())
		}
		kinds[event.Kind()] = true
	}
}
