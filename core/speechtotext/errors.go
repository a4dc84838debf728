package speechtotext

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ServiceUnavailable ErrorKind = "service_unavailable"
	NoSpeechDetected   ErrorKind = "no_speech_detected"
	ConnectionIssue    ErrorKind = "connection_issue"
	Other              ErrorKind = "other"
)

// RecognitionError is the only error type recognition streams report.
type RecognitionError struct {
	Kind ErrorKind
	// Code is the backend specific error code, when one was reported.
	Code string
	Err  error
}

func (e *RecognitionError) Error() string {
	msg := fmt.Sprintf("speech recognition failed: %s", e.Kind)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RecognitionError) Unwrap() error { return e.Err }

func NewRecognitionError(kind ErrorKind, code string, err error) *RecognitionError {
	return &RecognitionError{Kind: kind, Code: code, Err: err}
}

// KindOf reports the recognition error kind of err, or "" if err is not a
// recognition error.
func KindOf(err error) ErrorKind {
	var recognitionErr *RecognitionError
	if errors.As(err, &recognitionErr) {
		return recognitionErr.Kind
	}
	return ""
}

// IsFatal reports whether err should end the session and be shown to the
// user. No speech detected is not fatal.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case NoSpeechDetected:
		return false
	case "":
		return err != nil
	}
	return true
}
