package deepgram

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

type websocketMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func speakMsg(text string) websocketMessage { return websocketMessage{Type: "Speak", Text: text} }

var (
	flushMsg = websocketMessage{Type: "Flush"}
	clearMsg = websocketMessage{Type: "Clear"}
	closeMsg = websocketMessage{Type: "Close"}
)

type utterance struct {
	ws      *websocket.Conn
	wsMu    sync.Mutex
	output  audio.Output
	options texttospeech.SpeechOptions

	started   atomic.Bool
	cancelled atomic.Bool

	endOnce   sync.Once
	closeOnce sync.Once
	done      chan struct{}

	// drainCtx is cancelled to abandon waiting for playback
	drainCtx    context.Context
	drainCancel context.CancelFunc
}

func newUtterance(ws *websocket.Conn, output audio.Output, options texttospeech.SpeechOptions) *utterance {
	drainCtx, drainCancel := context.WithCancel(context.Background())
	return &utterance{
		ws:          ws,
		output:      output,
		options:     options,
		done:        make(chan struct{}),
		drainCtx:    drainCtx,
		drainCancel: drainCancel,
	}
}

func (u *utterance) Done() <-chan struct{} { return u.done }

func (u *utterance) Cancel() error {
	select {
	case <-u.done:
		return nil
	default:
	}

	u.cancelled.Store(true)
	u.drainCancel()
	if u.output != nil {
		u.output.ClearBuffer()
	}

	var err error
	if sendErr := u.send(clearMsg); sendErr != nil {
		err = fmt.Errorf("failed to clear deepgram buffer: %w", sendErr)
	}
	u.close()
	u.end(u.options.CancelledCallback)
	return err
}

// end runs the terminal callback of the utterance exactly once.
func (u *utterance) end(callback func()) {
	u.endOnce.Do(func() {
		u.drainCancel()
		callback()
		close(u.done)
	})
}

func (u *utterance) close() {
	u.closeOnce.Do(func() {
		_ = u.send(closeMsg)
		u.wsMu.Lock()
		defer u.wsMu.Unlock()
		if err := u.ws.Close(); err != nil {
			logger.Debug("failed to close deepgram speak connection", "error", err)
		}
	})
}

func (u *utterance) send(msg websocketMessage) error {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}

	u.wsMu.Lock()
	defer u.wsMu.Unlock()
	if err := u.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

func (u *utterance) readMessages() {
	for {
		msgType, msg, err := u.ws.ReadMessage()
		if err != nil {
			if u.cancelled.Load() {
				return
			}
			u.close()
			u.end(func() {
				u.options.ErrorCallback(fmt.Errorf("deepgram speak stream ended before flush: %w", err))
			})
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if u.cancelled.Load() || len(msg) == 0 {
				continue
			}
			if u.started.CompareAndSwap(false, true) {
				u.options.StartedCallback()
			}
			u.options.AudioCallback(msg)
			if u.output != nil {
				if err := u.output.SendAudio(msg); err != nil {
					logger.Warn("failed to play synthesized audio", "error", err)
				}
			}

		case websocket.TextMessage:
			var parsedMsg websocketMessage
			if err := sonic.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Warn("failed to unmarshal deepgram message", "error", err)
				continue
			}

			if parsedMsg.Type == "Flushed" {
				u.close()
				go u.awaitPlayback()
				return
			}
		}
	}
}

func (u *utterance) awaitPlayback() {
	if u.output != nil {
		if err := u.output.AwaitMark(u.drainCtx); err != nil {
			return
		}
	}
	if u.cancelled.Load() {
		return
	}
	if u.started.CompareAndSwap(false, true) {
		u.options.StartedCallback()
	}
	u.end(u.options.FinishedCallback)
}
