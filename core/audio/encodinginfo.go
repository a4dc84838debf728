package audio

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultFormat     = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Channels: DefaultChannels, Format: encodingFormat(DefaultFormat)}
}

// EncodingInfo describes an audio stream as reported by the device when the
// stream is opened. Consumers must not assume a particular sample rate.
type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// ChannelCount defaults to mono for devices that do not report a channel
// count.
func (e EncodingInfo) ChannelCount() int {
	if e.Channels <= 0 {
		return 1
	}
	return e.Channels
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)

// ParseFormat looks up an encoding format by name.
func ParseFormat(name string) (encodingFormat, bool) {
	switch format := encodingFormat(name); format {
	case EncodingMulaw, EncodingALaw, EncodingLinear16:
		return format, true
	}
	return "", false
}
