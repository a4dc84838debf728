package texttospeech

import "github.com/koscakluka/ema-voice/core/audio"

type SpeechOptions struct {
	// StartedCallback is called once, when the first synthesized audio is
	// produced.
	StartedCallback func()
	// FinishedCallback is called once all audio has been played.
	FinishedCallback func()
	// CancelledCallback is called when the utterance is cancelled before it
	// finished.
	CancelledCallback func()
	// AudioCallback receives every chunk of synthesized audio in order.
	AudioCallback func(audio []byte)
	// ErrorCallback is called when synthesis fails.
	ErrorCallback func(error)

	EncodingInfo audio.EncodingInfo
}

type SpeechOption func(*SpeechOptions)

func WithStartedCallback(callback func()) SpeechOption {
	return func(o *SpeechOptions) { o.StartedCallback = callback }
}

func WithFinishedCallback(callback func()) SpeechOption {
	return func(o *SpeechOptions) { o.FinishedCallback = callback }
}

func WithCancelledCallback(callback func()) SpeechOption {
	return func(o *SpeechOptions) { o.CancelledCallback = callback }
}

func WithAudioCallback(callback func([]byte)) SpeechOption {
	return func(o *SpeechOptions) { o.AudioCallback = callback }
}

func WithErrorCallback(callback func(error)) SpeechOption {
	return func(o *SpeechOptions) { o.ErrorCallback = callback }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SpeechOption {
	return func(o *SpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

// NewSpeechOptions applies opts over no-op callbacks so backends never have
// to nil check.
func NewSpeechOptions(opts ...SpeechOption) SpeechOptions {
	options := SpeechOptions{
		StartedCallback:   func() {},
		FinishedCallback:  func() {},
		CancelledCallback: func() {},
		AudioCallback:     func([]byte) {},
		ErrorCallback:     func(error) {},
		EncodingInfo:      audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.StartedCallback == nil {
		options.StartedCallback = func() {}
	}
	if options.FinishedCallback == nil {
		options.FinishedCallback = func() {}
	}
	if options.CancelledCallback == nil {
		options.CancelledCallback = func() {}
	}
	if options.AudioCallback == nil {
		options.AudioCallback = func([]byte) {}
	}
	if options.ErrorCallback == nil {
		options.ErrorCallback = func(error) {}
	}
	return options
}
