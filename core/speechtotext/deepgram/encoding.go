package deepgram

import (
	"fmt"

	"github.com/koscakluka/ema-voice/core/audio"
)

// convertEncoding validates that deepgram accepts the stream encoding. The
// companded formats are only accepted at telephone rate.
func convertEncoding(encoding audio.EncodingInfo) (audio.EncodingInfo, error) {
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 44100, 48000:
	default:
		return audio.EncodingInfo{}, fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
	case audio.EncodingALaw, audio.EncodingMulaw:
		if encoding.SampleRate != 8000 {
			return audio.EncodingInfo{}, fmt.Errorf("unsupported sample rate %d for %s encoding", encoding.SampleRate, encoding.Format.Name())
		}
	default:
		return audio.EncodingInfo{}, fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}

	encoding.Channels = encoding.ChannelCount()
	return encoding, nil
}
