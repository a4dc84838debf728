package audio

import "context"

// Output plays synthesized audio. SendAudio queues audio behind anything
// already queued, ClearBuffer drops whatever has not been played yet and
// AwaitMark blocks until the audio queued before the call has been played
// or cleared.
type Output interface {
	EncodingInfo() EncodingInfo
	SendAudio(audio []byte) error
	ClearBuffer()
	AwaitMark(ctx context.Context) error
}
