package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	mu sync.Mutex

	// audioMu guards the queue and its marks; the device callback holds it
	// while draining.
	audioMu       sync.Mutex
	leftoverAudio []byte
	marks         []playbackMark
}

type playbackMark struct {
	// position is the number of queued bytes that must play before the mark
	// is reached
	position int
	reached  chan struct{}
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, sampleRate int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = uint32(sampleRate)
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = uint32(sampleRate / 10) // ~100ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return err
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if c.device.IsStarted() {
		return nil
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}

	c.ClearBuffer()
	return nil
}

func (c *playbackClient) SendAudio(audio []byte) error {
	c.mu.Lock()
	started := c.device != nil && c.device.IsStarted()
	c.mu.Unlock()
	if !started {
		return fmt.Errorf("playback device not started")
	}

	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = append(c.leftoverAudio, audio...)
	return nil
}

// ClearBuffer drops queued audio and releases every pending mark.
func (c *playbackClient) ClearBuffer() {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()

	c.leftoverAudio = nil
	for _, mark := range c.marks {
		close(mark.reached)
	}
	c.marks = nil
}

func (c *playbackClient) AwaitMark(ctx context.Context) error {
	c.audioMu.Lock()
	if len(c.leftoverAudio) == 0 {
		c.audioMu.Unlock()
		return nil
	}
	mark := playbackMark{position: len(c.leftoverAudio), reached: make(chan struct{})}
	c.marks = append(c.marks, mark)
	c.audioMu.Unlock()

	select {
	case <-mark.reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.device.Uninit()
	c.device = nil
	c.ClearBuffer()

	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		c.audioMu.Lock()
		defer c.audioMu.Unlock()

		played := copy(pOutput[:min(need, len(pOutput))], c.leftoverAudio)
		c.leftoverAudio = c.leftoverAudio[played:]
		if len(c.leftoverAudio) == 0 {
			c.leftoverAudio = nil
		}
		c.processMarks(played)
	}
}

func (c *playbackClient) processMarks(played int) {
	remaining := c.marks[:0]
	for _, mark := range c.marks {
		mark.position -= played
		if mark.position <= 0 {
			close(mark.reached)
			continue
		}
		remaining = append(remaining, mark)
	}
	c.marks = remaining
}
