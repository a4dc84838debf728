package speechtotext

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwrapsRecognitionErrors(t *testing.T) {
	err := fmt.Errorf("listening: %w", NewRecognitionError(ServiceUnavailable, "503", nil))

	if got := KindOf(err); got != ServiceUnavailable {
		t.Fatalf("expected %s, got %s", ServiceUnavailable, got)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("expected no kind for plain errors, got %s", got)
	}
}

func TestIsFatal(t *testing.T) {
	testCases := []struct {
		err      error
		expected bool
	}{
		{err: nil, expected: false},
		{err: NewRecognitionError(NoSpeechDetected, "NET-0001", nil), expected: false},
		{err: NewRecognitionError(ServiceUnavailable, "", nil), expected: true},
		{err: NewRecognitionError(ConnectionIssue, "", nil), expected: true},
		{err: NewRecognitionError(Other, "1008", nil), expected: true},
		{err: errors.New("unknown"), expected: true},
	}

	for _, testCase := range testCases {
		if got := IsFatal(testCase.err); got != testCase.expected {
			t.Fatalf("expected IsFatal(%v) to be %v, got %v", testCase.err, testCase.expected, got)
		}
	}
}

func TestRecognitionErrorMessageIncludesCode(t *testing.T) {
	err := NewRecognitionError(Other, "DATA-0000", errors.New("bad audio"))

	if got := err.Error(); got != "speech recognition failed: other (DATA-0000): bad audio" {
		t.Fatalf("unexpected message %q", got)
	}
}
