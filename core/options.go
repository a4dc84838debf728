package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/conversations"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/permissions"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

// SilencePolicy decides what happens when listening ends without any
// transcript.
type SilencePolicy int

const (
	// SilenceReturnsToIdle ends the session.
	SilenceReturnsToIdle SilencePolicy = iota
	// SilenceKeepsListening keeps the microphone open until the user speaks
	// or the session is torn down.
	SilenceKeepsListening
)

func (p SilencePolicy) String() string {
	if p == SilenceKeepsListening {
		return "keep_listening"
	}
	return "return_to_idle"
}

type ControllerOption func(*TurnController)

func WithPermissionGate(gate *permissions.Gate) ControllerOption {
	return func(c *TurnController) {
		if gate != nil {
			c.gate = gate
		}
	}
}

func WithPermissionAuthority(authority permissions.Authority) ControllerOption {
	return func(c *TurnController) {
		c.gate = permissions.NewGate(authority)
	}
}

// WithAudioInput captures from input through a capture source built with
// the controller's level interval.
func WithAudioInput(input audio.Input) ControllerOption {
	return func(c *TurnController) {
		c.captureInput = input
	}
}

func WithCaptureSource(source *audio.CaptureSource) ControllerOption {
	return func(c *TurnController) {
		c.resources.capture = source
	}
}

func WithRecognizer(recognizer speechtotext.Recognizer) ControllerOption {
	return func(c *TurnController) {
		c.recognizer = recognizer
	}
}

func WithGenerator(generator llms.Generator) ControllerOption {
	return func(c *TurnController) {
		c.generator = generator
	}
}

// WithSynthesizer speaks every response. Without one the session returns
// to idle as soon as the response is generated.
func WithSynthesizer(synthesizer texttospeech.Synthesizer) ControllerOption {
	return func(c *TurnController) {
		c.synthesizer = synthesizer
	}
}

// WithSpeechEncoding is the encoding synthesized audio is requested in. It
// is also used to read the assistant's audio level.
func WithSpeechEncoding(encoding audio.EncodingInfo) ControllerOption {
	return func(c *TurnController) {
		if !encoding.IsZero() {
			c.speechEncoding = encoding
		}
	}
}

func WithHistory(history *conversations.History) ControllerOption {
	return func(c *TurnController) {
		if history != nil {
			c.history = history
		}
	}
}

func WithQuietInterval(interval time.Duration) ControllerOption {
	return func(c *TurnController) {
		if interval > 0 {
			c.quietInterval = interval
		}
	}
}

func WithSilencePolicy(policy SilencePolicy) ControllerOption {
	return func(c *TurnController) {
		c.silencePolicy = policy
	}
}

func WithMaxRetries(maxRetries int) ControllerOption {
	return func(c *TurnController) {
		c.maxRetries = maxRetries
	}
}

// WithLevelInterval caps how often user and assistant levels are reported.
func WithLevelInterval(interval time.Duration) ControllerOption {
	return func(c *TurnController) {
		if interval > 0 {
			c.levelInterval = interval
		}
	}
}

func WithTimerFactory(factory TimerFactory) ControllerOption {
	return func(c *TurnController) {
		if factory != nil {
			c.newTimer = factory
		}
	}
}

// WithBaseContext is the parent of every generation and synthesis call.
func WithBaseContext(ctx context.Context) ControllerOption {
	return func(c *TurnController) {
		if ctx != nil {
			c.baseContext = ctx
		}
	}
}

func WithEventHandler(handler EventHandler) ControllerOption {
	return func(c *TurnController) {
		if handler != nil {
			c.emitters = append(c.emitters, handler.Handle)
		}
	}
}

func WithStateChangedCallback(callback func(from, to conversations.SessionState)) ControllerOption {
	return func(c *TurnController) {
		c.callbacks.onStateChanged = callback
	}
}

// WithTranscriptCallback receives the live transcript and then the final
// one.
func WithTranscriptCallback(callback func(transcript string)) ControllerOption {
	return func(c *TurnController) {
		c.callbacks.onTranscript = callback
	}
}

func WithResponseCallback(callback func(response string)) ControllerOption {
	return func(c *TurnController) {
		c.callbacks.onResponse = callback
	}
}

func WithErrorCallback(callback func(err error, retryable, requiresSettings bool)) ControllerOption {
	return func(c *TurnController) {
		c.callbacks.onError = callback
	}
}

func WithAudioLevelCallbacks(onUserLevel, onAssistantLevel func(level float64)) ControllerOption {
	return func(c *TurnController) {
		c.callbacks.onUserLevel = onUserLevel
		c.callbacks.onAssistantLevel = onAssistantLevel
	}
}
