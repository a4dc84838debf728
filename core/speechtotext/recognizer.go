// Package speechtotext defines live speech recognition streams and the
// errors they report.
package speechtotext

import (
	"context"

	"github.com/koscakluka/ema-voice/core/audio"
)

// Transcript is a recognition result. A partial supersedes every partial
// before it; a final ends the recognition phase of a turn.
type Transcript struct {
	Text    string
	IsFinal bool
}

type Recognizer interface {
	// Open starts a recognition stream. Callbacks configured through opts are
	// called from the stream's reader goroutine, in arrival order.
	Open(ctx context.Context, opts ...TranscriptionOption) (Stream, error)
}

type Stream interface {
	Feed(frame audio.Frame) error
	// Finish marks the end of audio. The backend delivers a final transcript
	// and closes the stream.
	Finish() error
	// Cancel abandons the stream. No further callbacks are delivered and no
	// final transcript is produced. Safe to call repeatedly.
	Cancel()
	// Done is closed once the stream has released its connection.
	Done() <-chan struct{}
}
