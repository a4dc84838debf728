// Package texttospeech defines speech synthesis of a complete response.
package texttospeech

import "context"

type Synthesizer interface {
	// Speak synthesizes and plays text. Exactly one of the finished,
	// cancelled or error callbacks is called for every utterance that was
	// successfully started.
	Speak(ctx context.Context, text string, opts ...SpeechOption) (Utterance, error)
}

type Utterance interface {
	// Cancel stops synthesis and playback. Cancelling an utterance that has
	// already ended is a no-op.
	Cancel() error
	// Done is closed once the utterance has ended, whichever way it ended.
	Done() <-chan struct{}
}
