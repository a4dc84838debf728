package audio

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/zaf/g711"
)

// Frame is an immutable block of interleaved PCM samples. Ownership passes
// to the receiver on delivery; senders never touch a frame after handing it
// on.
type Frame struct {
	samples  []int16
	channels int
}

// NewFrame copies samples into a new frame.
func NewFrame(samples []int16, channels int) Frame {
	if channels <= 0 {
		channels = 1
	}
	return Frame{samples: slices.Clone(samples), channels: channels}
}

// FrameFromLinear16 decodes little endian 16 bit PCM. A trailing odd byte is
// dropped.
func FrameFromLinear16(pcm []byte, channels int) Frame {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	if channels <= 0 {
		channels = 1
	}
	return Frame{samples: samples, channels: channels}
}

// Samples returns a copy of the interleaved samples.
func (f Frame) Samples() []int16 { return slices.Clone(f.samples) }

// SampleCount is the number of samples per channel.
func (f Frame) SampleCount() int {
	if f.channels == 0 {
		return 0
	}
	return len(f.samples) / f.channels
}

func (f Frame) Channels() int { return f.channels }

func (f Frame) IsEmpty() bool { return len(f.samples) == 0 }

// Linear16 encodes the frame as little endian 16 bit PCM.
func (f Frame) Linear16() []byte {
	out := make([]byte, 2*len(f.samples))
	for i, sample := range f.samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(sample))
	}
	return out
}

// Encode converts a frame into the wire format described by encoding.
func Encode(frame Frame, encoding EncodingInfo) ([]byte, error) {
	pcm := frame.Linear16()
	switch encoding.Format {
	case EncodingLinear16, "":
		return pcm, nil
	case EncodingMulaw:
		return g711.EncodeUlaw(pcm), nil
	case EncodingALaw:
		return g711.EncodeAlaw(pcm), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}
}
