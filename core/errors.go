package orchestration

import (
	"errors"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/permissions"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

var (
	ErrClosed          = errors.New("turn controller closed")
	ErrNotConfigured   = errors.New("turn controller is missing a recognizer, generator or audio input")
	ErrSessionActive   = errors.New("a listening session is already active")
	ErrStartInProgress = errors.New("listening is already starting")
	ErrNothingToRetry  = errors.New("session is neither failed nor blocked on a permission")
	ErrSuperseded      = errors.New("start was superseded by a newer request or teardown")
	ErrEmptyResponse   = errors.New("generator returned an empty response")
)

// GenerationError wraps failures of the response generator. They return the
// session to idle and never count as retries.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return "response generation failed: " + e.Err.Error() }
func (e *GenerationError) Unwrap() error { return e.Err }

// SynthesisError wraps failures of the speech synthesizer.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return "speech synthesis failed: " + e.Err.Error() }
func (e *SynthesisError) Unwrap() error { return e.Err }

// IsRetryable reports whether an explicit retry may fix err.
func IsRetryable(err error) bool {
	if err == nil || RequiresSettings(err) || errors.Is(err, ErrRetriesExhausted) {
		return false
	}

	var requestErr *permissions.RequestError
	if errors.As(err, &requestErr) {
		return true
	}

	var captureErr *audio.CaptureError
	if errors.As(err, &captureErr) {
		return captureErr.Kind == audio.CaptureInputUnavailable
	}

	switch speechtotext.KindOf(err) {
	case speechtotext.ServiceUnavailable, speechtotext.ConnectionIssue, speechtotext.NoSpeechDetected, speechtotext.Other:
		return true
	}

	var generationErr *GenerationError
	var synthesisErr *SynthesisError
	return errors.As(err, &generationErr) || errors.As(err, &synthesisErr)
}

// RequiresSettings reports whether only a change in system settings can fix
// err, such as a denied permission.
func RequiresSettings(err error) bool {
	var permissionErr *permissions.PermissionError
	return errors.As(err, &permissionErr)
}
