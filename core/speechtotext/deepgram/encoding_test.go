package deepgram

import (
	"testing"

	"github.com/koscakluka/ema-voice/core/audio"
)

func TestConvertEncoding(t *testing.T) {
	testCases := []struct {
		name    string
		input   audio.EncodingInfo
		wantErr bool
	}{
		{name: "default", input: audio.GetDefaultEncodingInfo()},
		{name: "device rate", input: audio.EncodingInfo{SampleRate: 48000, Format: audio.EncodingLinear16}},
		{name: "mulaw telephone", input: audio.EncodingInfo{SampleRate: 8000, Format: audio.EncodingMulaw}},
		{name: "mulaw wideband", input: audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingMulaw}, wantErr: true},
		{name: "odd rate", input: audio.EncodingInfo{SampleRate: 11025, Format: audio.EncodingLinear16}, wantErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got, err := convertEncoding(testCase.input)
			if testCase.wantErr {
				if err == nil {
					t.Fatalf("expected %+v to be rejected", testCase.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected %+v to be accepted, got %v", testCase.input, err)
			}
			if got.Channels != 1 {
				t.Fatalf("expected channel count to default to 1, got %d", got.Channels)
			}
		})
	}
}
