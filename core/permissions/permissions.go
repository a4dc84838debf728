// Package permissions resolves the operating system permissions a voice
// session needs before it may open the microphone.
package permissions

import (
	"context"
	"fmt"
)

type Kind string

const (
	Microphone        Kind = "microphone"
	SpeechRecognition Kind = "speech_recognition"
)

type Status string

const (
	Granted      Status = "granted"
	Denied       Status = "denied"
	Undetermined Status = "undetermined"
)

// Authority is the platform permission subsystem. Request prompts the user
// at most once per call and reports the final status.
type Authority interface {
	Status(kind Kind) Status
	Request(ctx context.Context, kind Kind) (Status, error)
}

// PermissionError reports the first permission the user has not granted.
type PermissionError struct {
	Kind Kind
	Err  error
}

func (e *PermissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s permission not granted: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s permission not granted", e.Kind)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// RequestError reports that asking for a permission failed before the user
// answered, for example because the prompt was cancelled. It says nothing
// about whether the permission will be granted.
type RequestError struct {
	Kind Kind
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("failed to request %s permission: %v", e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
