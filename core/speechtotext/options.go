package speechtotext

import "github.com/koscakluka/ema-voice/core/audio"

type TranscriptionOptions struct {
	TranscriptCallback    func(transcript Transcript)
	ErrorCallback         func(err error)
	SpeechStartedCallback func()

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

// WithTranscriptCallback receives partial and final transcripts in arrival
// order. Each partial supersedes the previous one.
func WithTranscriptCallback(callback func(transcript Transcript)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptCallback = callback
	}
}

// WithErrorCallback receives at most one error, after which the stream is
// closed. Errors are always *RecognitionError.
func WithErrorCallback(callback func(err error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.ErrorCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}

func NewTranscriptionOptions(opts ...TranscriptionOption) TranscriptionOptions {
	options := TranscriptionOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// EmitTranscript calls the transcript callback if one is configured.
func (o TranscriptionOptions) EmitTranscript(transcript Transcript) {
	if o.TranscriptCallback != nil {
		o.TranscriptCallback(transcript)
	}
}

// EmitError calls the error callback if one is configured.
func (o TranscriptionOptions) EmitError(err error) {
	if o.ErrorCallback != nil {
		o.ErrorCallback(err)
	}
}

func (o TranscriptionOptions) EmitSpeechStarted() {
	if o.SpeechStartedCallback != nil {
		o.SpeechStartedCallback()
	}
}
