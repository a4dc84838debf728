package orchestration

import (
	"context"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

// teardownCoordinator owns the handles of the running session. It is only
// touched with the controller lock held and none of its methods block.
type teardownCoordinator struct {
	capture *audio.CaptureSource

	cancelStart context.CancelFunc
	stream      speechtotext.Stream
	endpointer  *Endpointer
	// lastStream is kept after release so the next start can wait for the
	// backend to let go of it.
	lastStream speechtotext.Stream

	cancelTurn context.CancelFunc
	utterance  texttospeech.Utterance
}

// releaseListening cancels recognition without a final result and stops
// capture. The device is released on the capture source's own worker.
func (t *teardownCoordinator) releaseListening() {
	if t.endpointer != nil {
		t.endpointer.Stop()
		t.endpointer = nil
	}
	if t.stream != nil {
		t.stream.Cancel()
		t.stream = nil
	}
	t.capture.Stop()
}

// finishTurn forgets the turn's handles once it ended on its own.
func (t *teardownCoordinator) finishTurn() {
	if t.cancelTurn != nil {
		t.cancelTurn()
		t.cancelTurn = nil
	}
	t.utterance = nil
}

// cancelTurnWork stops in-flight generation and synthesis.
func (t *teardownCoordinator) cancelTurnWork() {
	if utterance := t.utterance; utterance != nil {
		go func() {
			if err := utterance.Cancel(); err != nil {
				logger.Debug("failed to cancel utterance", "error", err)
			}
		}()
	}
	t.finishTurn()
}

func (t *teardownCoordinator) releaseAll() {
	if t.cancelStart != nil {
		t.cancelStart()
		t.cancelStart = nil
	}
	t.releaseListening()
	t.cancelTurnWork()
}

// previousStream is the stream that has to be released before a new one is
// opened, if any.
func (t *teardownCoordinator) previousStream() <-chan struct{} {
	if t.lastStream == nil {
		return nil
	}
	return t.lastStream.Done()
}
