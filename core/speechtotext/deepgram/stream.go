package deepgram

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

const (
	keepAliveInterval = 5 * time.Second
	writeTimeout      = 5 * time.Second
	typeErrorResponse = "Error"
)

var (
	ErrStreamFinished = errors.New("recognition stream already finished")
	ErrStreamClosed   = errors.New("recognition stream closed")
)

type stream struct {
	conn              *websocket.Conn
	encoding          audio.EncodingInfo
	options           speechtotext.TranscriptionOptions
	serverEndpointing bool

	writeMu   sync.Mutex
	lastWrite time.Time

	finishing atomic.Bool
	cancelled atomic.Bool
	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}

	// owned by the read loop
	accumulated string
	finalSent   bool
	errorSent   bool
}

func newStream(conn *websocket.Conn, encoding audio.EncodingInfo, options speechtotext.TranscriptionOptions, serverEndpointing bool) *stream {
	return &stream{
		conn:              conn,
		encoding:          encoding,
		options:           options,
		serverEndpointing: serverEndpointing,
		lastWrite:         time.Now(),
		closed:            make(chan struct{}),
		done:              make(chan struct{}),
	}
}

func (s *stream) Feed(frame audio.Frame) error {
	if s.cancelled.Load() {
		return ErrStreamClosed
	} else if s.finishing.Load() {
		return ErrStreamFinished
	}

	payload, err := audio.Encode(frame, s.encoding)
	if err != nil {
		return fmt.Errorf("failed to encode audio frame: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.lastWrite = time.Now()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *stream) Finish() error {
	if s.cancelled.Load() {
		return ErrStreamClosed
	}
	if !s.finishing.CompareAndSwap(false, true) {
		return nil
	}

	if err := s.writeControl(api.TypeCloseStreamResponse); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

func (s *stream) Cancel() {
	s.cancelled.Store(true)
	s.close()
}

func (s *stream) Done() <-chan struct{} { return s.done }

func (s *stream) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		if err := s.conn.Close(); err != nil {
			logger.Debug("failed to close deepgram connection", "error", err)
		}
	})
}

func (s *stream) writeControl(messageType api.TypeResponse) error {
	payload, err := sonic.Marshal(struct {
		Type string `json:"type"`
	}{Type: string(messageType)})
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *stream) keepAlive() {
	ticker := time.NewTicker(keepAliveInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			idle := time.Since(s.lastWrite)
			s.writeMu.Unlock()
			if idle < keepAliveInterval || s.finishing.Load() {
				continue
			}

			if err := s.writeControl("KeepAlive"); err != nil {
				logger.Warn("failed to send deepgram keep alive", "error", err)
			}
		}
	}
}

func (s *stream) readMessages() {
	defer close(s.done)
	defer s.close()

	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			s.onClosed(err)
			return
		}
		if msgType == websocket.TextMessage {
			s.processMessage(msg)
		}
	}
}

func (s *stream) onClosed(err error) {
	if s.cancelled.Load() {
		return
	}

	if recognitionErr := classifyCloseError(err); recognitionErr != nil {
		s.emitError(recognitionErr)
		return
	}

	if !s.finalSent || s.accumulated != "" {
		s.emitFinal()
	}
}

func (s *stream) processMessage(msg []byte) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := sonic.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := sonic.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram results", "error", err)
			return
		}

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}

		if msgResp.IsFinal {
			s.accumulated = joinTranscript(s.accumulated, transcript)
			s.emitPartial(s.accumulated)
			if msgResp.SpeechFinal && s.serverEndpointing && s.accumulated != "" {
				s.emitFinal()
			}
		} else if transcript != "" {
			s.emitPartial(joinTranscript(s.accumulated, transcript))
		}

	case api.TypeUtteranceEndResponse:
		var msgResp api.UtteranceEndResponse
		if err := sonic.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram utterance end", "error", err)
			return
		}
		if s.serverEndpointing && s.accumulated != "" {
			s.emitFinal()
		}

	case api.TypeSpeechStartedResponse:
		var msgResp api.SpeechStartedResponse
		if err := sonic.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram speech started", "error", err)
			return
		}
		if !s.cancelled.Load() {
			s.options.EmitSpeechStarted()
		}

	case typeErrorResponse:
		var msgResp struct {
			Description string `json:"description"`
			Message     string `json:"message"`
			Variant     string `json:"variant"`
		}
		if err := sonic.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram error", "error", err)
			return
		}
		s.emitError(speechtotext.NewRecognitionError(speechtotext.Other, msgResp.Variant,
			fmt.Errorf("%s: %s", msgResp.Description, msgResp.Message)))
		s.close()
	}
}

func (s *stream) emitPartial(text string) {
	if s.cancelled.Load() || text == "" {
		return
	}
	s.options.EmitTranscript(speechtotext.Transcript{Text: text})
}

func (s *stream) emitFinal() {
	text := s.accumulated
	s.accumulated = ""
	s.finalSent = true
	if s.cancelled.Load() || s.errorSent {
		return
	}
	s.options.EmitTranscript(speechtotext.Transcript{Text: text, IsFinal: true})
}

func (s *stream) emitError(err *speechtotext.RecognitionError) {
	if s.cancelled.Load() || s.errorSent {
		return
	}
	s.errorSent = true
	s.options.EmitError(err)
}

func joinTranscript(accumulated, segment string) string {
	switch {
	case segment == "":
		return accumulated
	case accumulated == "":
		return segment
	}
	return accumulated + " " + segment
}
