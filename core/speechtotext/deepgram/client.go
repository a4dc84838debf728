package deepgram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

const defaultListenURL = "wss://api.deepgram.com/v1/listen"

// Recognizer opens live transcription streams against the deepgram listen
// websocket API.
type Recognizer struct {
	apiKey    string
	listenURL string
	model     string
	language  string
	dialer    *websocket.Dialer

	wireFormat        string
	serverEndpointing bool
}

type RecognizerOption func(*Recognizer)

func WithAPIKey(apiKey string) RecognizerOption {
	return func(r *Recognizer) { r.apiKey = apiKey }
}

func WithListenURL(listenURL string) RecognizerOption {
	return func(r *Recognizer) { r.listenURL = listenURL }
}

func WithModel(model string) RecognizerOption {
	return func(r *Recognizer) { r.model = model }
}

func WithLanguage(language string) RecognizerOption {
	return func(r *Recognizer) { r.language = language }
}

// WithWireFormat compands linear16 frames into mulaw or alaw before sending
// them. Deepgram only accepts those at 8 kHz.
func WithWireFormat(format string) RecognizerOption {
	return func(r *Recognizer) { r.wireFormat = format }
}

// WithServerEndpointing makes deepgram's own end of speech detection produce
// final transcripts. Without it a final is only produced when the stream is
// finished.
func WithServerEndpointing(enabled bool) RecognizerOption {
	return func(r *Recognizer) { r.serverEndpointing = enabled }
}

func NewRecognizer(opts ...RecognizerOption) *Recognizer {
	r := &Recognizer{
		listenURL: defaultListenURL,
		model:     "nova-3",
		language:  "en-US",
		dialer:    websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.apiKey == "" {
		r.apiKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	return r
}

func (r *Recognizer) Open(ctx context.Context, opts ...speechtotext.TranscriptionOption) (speechtotext.Stream, error) {
	ctx, span := tracer.Start(ctx, "open recognition stream")
	defer span.End()

	options := speechtotext.NewTranscriptionOptions(opts...)

	wire := options.EncodingInfo
	if r.wireFormat != "" {
		format, ok := audio.ParseFormat(r.wireFormat)
		if !ok {
			err := speechtotext.NewRecognitionError(speechtotext.Other, "", fmt.Errorf("unknown wire format %q", r.wireFormat))
			span.RecordError(err)
			return nil, err
		}
		wire.Format = format
	}

	encoding, err := convertEncoding(wire)
	if err != nil {
		err = speechtotext.NewRecognitionError(speechtotext.Other, "", fmt.Errorf("invalid encoding: %w", err))
		span.RecordError(err)
		return nil, err
	}

	conn, err := r.dial(ctx, encoding)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s := newStream(conn, encoding, options, r.serverEndpointing)
	go s.readMessages()
	go s.keepAlive()
	return s, nil
}

func (r *Recognizer) dial(ctx context.Context, encoding audio.EncodingInfo) (*websocket.Conn, error) {
	if r.apiKey == "" {
		return nil, speechtotext.NewRecognitionError(speechtotext.Other, "missing_api_key", fmt.Errorf("deepgram api key not found"))
	}

	listenURL, err := url.Parse(r.listenURL)
	if err != nil {
		return nil, speechtotext.NewRecognitionError(speechtotext.Other, "", fmt.Errorf("invalid listen url: %w", err))
	}
	queryParams := listenURL.Query()
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", strconv.Itoa(encoding.Channels))
	queryParams.Set("model", r.model)
	queryParams.Set("language", r.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("vad_events", "true")
	if r.serverEndpointing {
		queryParams.Set("endpointing", "300")
		queryParams.Set("utterance_end_ms", "1000")
	} else {
		queryParams.Set("endpointing", "false")
	}
	listenURL.RawQuery = queryParams.Encode()

	conn, resp, err := r.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + r.apiKey}})
	if err != nil {
		return nil, classifyDialError(resp, err)
	}

	return conn, nil
}
