package orchestration

import (
	"errors"
	"testing"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

func TestRetryPolicyRetriesUnavailableInputUpToBound(t *testing.T) {
	policy := NewRetryPolicy(DefaultMaxRetries)
	err := audio.NewInputUnavailableError(errors.New("device busy"))

	retries := 0
	for policy.ShouldRetry(err) {
		if consumeErr := policy.Consume(); consumeErr != nil {
			t.Fatalf("expected consume to succeed while retries remain, got %v", consumeErr)
		}
		retries++
	}

	if retries != DefaultMaxRetries {
		t.Fatalf("expected %d retries, got %d", DefaultMaxRetries, retries)
	}
	if err := policy.Consume(); !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected retries exhausted, got %v", err)
	}
	if remaining := policy.State().Remaining(); remaining != 0 {
		t.Fatalf("expected no remaining retries, got %d", remaining)
	}
}

func TestRetryPolicyNeverAutoRetriesOtherErrors(t *testing.T) {
	policy := NewRetryPolicy(DefaultMaxRetries)

	for name, err := range map[string]error{
		"session config":      audio.NewSessionConfigError(errors.New("bad format")),
		"service unavailable": speechtotext.NewRecognitionError(speechtotext.ServiceUnavailable, "503", nil),
		"connection issue":    speechtotext.NewRecognitionError(speechtotext.ConnectionIssue, "", nil),
		"generation":          &GenerationError{Err: errors.New("boom")},
		"synthesis":           &SynthesisError{Err: errors.New("boom")},
		"nil":                 nil,
	} {
		t.Run(name, func(t *testing.T) {
			if policy.ShouldRetry(err) {
				t.Fatalf("expected %v not to be retried automatically", err)
			}
		})
	}
}

func TestRetryPolicyResetRestoresAttempts(t *testing.T) {
	policy := NewRetryPolicy(1)
	if err := policy.Consume(); err != nil {
		t.Fatalf("expected first consume to succeed, got %v", err)
	}
	if err := policy.Consume(); !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected retries exhausted, got %v", err)
	}

	policy.Reset()

	if state := policy.State(); state.Attempt != 0 || state.Max != 1 {
		t.Fatalf("expected reset state {0 1}, got %+v", state)
	}
}
