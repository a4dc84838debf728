package deepgram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

const defaultSpeakURL = "wss://api.deepgram.com/v1/speak"

// Synthesizer speaks text through the deepgram speak websocket API and plays
// the audio on output.
type Synthesizer struct {
	apiKey   string
	speakURL string
	voice    deepgramVoice
	output   audio.Output
	dialer   *websocket.Dialer
}

type SynthesizerOption func(*Synthesizer)

func WithAPIKey(apiKey string) SynthesizerOption {
	return func(s *Synthesizer) { s.apiKey = apiKey }
}

func WithSpeakURL(speakURL string) SynthesizerOption {
	return func(s *Synthesizer) { s.speakURL = speakURL }
}

// WithOutput plays synthesized audio. Without an output an utterance
// finishes as soon as synthesis completes.
func WithOutput(output audio.Output) SynthesizerOption {
	return func(s *Synthesizer) { s.output = output }
}

func NewSynthesizer(voice deepgramVoice, opts ...SynthesizerOption) (*Synthesizer, error) {
	if voice == "" {
		voice = defaultVoice
	} else if !slices.Contains(GetAvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice %q", voice)
	}

	s := &Synthesizer{
		speakURL: defaultSpeakURL,
		voice:    voice,
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.apiKey == "" {
		s.apiKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	return s, nil
}

func (s *Synthesizer) Speak(ctx context.Context, text string, opts ...texttospeech.SpeechOption) (texttospeech.Utterance, error) {
	ctx, span := tracer.Start(ctx, "speak")
	defer span.End()

	if s.output != nil {
		opts = append([]texttospeech.SpeechOption{texttospeech.WithEncodingInfo(s.output.EncodingInfo())}, opts...)
	}
	options := texttospeech.NewSpeechOptions(opts...)

	conn, err := s.dial(ctx, options.EncodingInfo)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	u := newUtterance(conn, s.output, options)
	if err := u.send(speakMsg(text)); err != nil {
		u.close()
		return nil, fmt.Errorf("failed to send text to deepgram: %w", err)
	}
	if err := u.send(flushMsg); err != nil {
		u.close()
		return nil, fmt.Errorf("failed to flush deepgram buffer: %w", err)
	}

	go u.readMessages()
	return u, nil
}

func (s *Synthesizer) dial(ctx context.Context, encoding audio.EncodingInfo) (*websocket.Conn, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	speakURL, err := url.Parse(s.speakURL)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}
	urlValues := speakURL.Query()
	urlValues.Set("encoding", encoding.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	urlValues.Set("model", string(s.voice))
	urlValues.Set("container", "none")
	speakURL.RawQuery = urlValues.Encode()

	conn, resp, err := s.dialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"token " + s.apiKey}})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram refused connection with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}
