package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-voice/core/audio"
)

// Client owns a miniaudio context with one capture and one playback device.
// It is both the microphone input and the speaker output of a session.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	sampleRate   int

	playbackClient
	captureClient
}

type ClientOption func(*Client)

// WithSampleRate overrides the device sample rate. Both devices run at the
// same rate.
func WithSampleRate(sampleRate int) ClientOption {
	return func(c *Client) {
		if sampleRate > 0 {
			c.sampleRate = sampleRate
		}
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := Client{sampleRate: audio.DefaultSampleRate}
	for _, opt := range opts {
		opt(&client)
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, audio.NewSessionConfigError(fmt.Errorf("failed to initialize audio context: %w", err))
	}
	client.audioContext = audioCtx

	if err := client.playbackClient.Init(audioCtx, client.sampleRate); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if err := client.captureClient.Init(audioCtx, client.sampleRate); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	return c.captureClient.Start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

func (c *Client) SetErrorCallback(onError func(error)) {
	c.captureClient.SetErrorCallback(onError)
}

func (c *Client) StartPlayback(_ context.Context) error {
	return c.playbackClient.Start()
}

func (c *Client) StopPlayback() error {
	return c.playbackClient.Stop()
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}

func (c *Client) SendAudio(audio []byte) error {
	return c.playbackClient.SendAudio(audio)
}

func (c *Client) ClearBuffer() {
	c.playbackClient.ClearBuffer()
}

func (c *Client) AwaitMark(ctx context.Context) error {
	return c.playbackClient.AwaitMark(ctx)
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: c.sampleRate,
		Channels:   1,
		Format:     audio.EncodingLinear16,
	}
}

var (
	_ audio.InputWithErrors = (*Client)(nil)
	_ audio.Output          = (*Client)(nil)
)
