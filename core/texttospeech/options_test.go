package texttospeech

import (
	"testing"

	"github.com/koscakluka/ema-voice/core/audio"
)

func TestNewSpeechOptionsDefaultsToNoopCallbacks(t *testing.T) {
	options := NewSpeechOptions(WithFinishedCallback(nil))

	options.StartedCallback()
	options.FinishedCallback()
	options.CancelledCallback()
	options.AudioCallback([]byte{1})
	options.ErrorCallback(nil)

	if options.EncodingInfo != audio.GetDefaultEncodingInfo() {
		t.Fatalf("expected default encoding, got %+v", options.EncodingInfo)
	}
}

func TestWithEncodingInfoIgnoresZeroEncoding(t *testing.T) {
	options := NewSpeechOptions(WithEncodingInfo(audio.EncodingInfo{}))

	if options.EncodingInfo != audio.GetDefaultEncodingInfo() {
		t.Fatalf("expected zero encoding to be ignored, got %+v", options.EncodingInfo)
	}
}
