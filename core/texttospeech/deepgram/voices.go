package deepgram

type deepgramVoice string

const (
	VoiceThalia    deepgramVoice = "aura-2-thalia-en"
	VoiceAndromeda deepgramVoice = "aura-2-andromeda-en"
	VoiceHelena    deepgramVoice = "aura-2-helena-en"
	VoiceApollo    deepgramVoice = "aura-2-apollo-en"
	VoiceArcas     deepgramVoice = "aura-2-arcas-en"
	VoiceAries     deepgramVoice = "aura-2-aries-en"

	defaultVoice = VoiceThalia
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{
		VoiceThalia,
		VoiceAndromeda,
		VoiceHelena,
		VoiceApollo,
		VoiceArcas,
		VoiceAries,
	}
}

// ParseVoice accepts any of the available voice model names.
func ParseVoice(name string) (deepgramVoice, bool) {
	for _, voice := range GetAvailableVoices() {
		if string(voice) == name {
			return voice, true
		}
	}
	return "", false
}
