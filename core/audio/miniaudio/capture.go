package miniaudio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-voice/core/audio"
)

type captureClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	onAudio  func(audio []byte)
	onError  func(error)
	stopping bool

	mu         sync.Mutex
	callbackMu sync.RWMutex
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext, sampleRate int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Capture)
	c.config.SampleRate = uint32(sampleRate)
	c.config.Capture.Format = format
	c.config.Capture.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	// 30ms periods at the configured rate
	c.config.PeriodSizeInFrames = uint32(sampleRate * 3 / 100)
	c.config.Periods = 3

	c.audioContext = audioContext

	var err error
	c.device, err = malgo.InitDevice(c.audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}

			c.callbackMu.RLock()
			onAudio := c.onAudio
			c.callbackMu.RUnlock()
			if onAudio != nil {
				onAudio(pInput[:n])
			}
		},
		Stop: c.deviceStopped,
	})
	if err != nil {
		return audio.NewSessionConfigError(fmt.Errorf("failed to initialize capture device: %w", err))
	}

	return nil
}

func (c *captureClient) SetErrorCallback(onError func(error)) {
	c.callbackMu.Lock()
	c.onError = onError
	c.callbackMu.Unlock()
}

func (c *captureClient) Start(onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return audio.NewInputUnavailableError(errors.New("capture device not initialized"))
	} else if c.device.IsStarted() {
		return nil
	}

	c.callbackMu.Lock()
	c.onAudio = onAudio
	c.stopping = false
	c.callbackMu.Unlock()

	if err := c.device.Start(); err != nil {
		c.callbackMu.Lock()
		c.onAudio = nil
		c.callbackMu.Unlock()
		return audio.NewInputUnavailableError(fmt.Errorf("failed to start capture device: %w", err))
	}

	return nil
}

func (c *captureClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return nil
	}

	c.callbackMu.Lock()
	c.stopping = true
	c.callbackMu.Unlock()

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}

	c.callbackMu.Lock()
	c.onAudio = nil
	c.callbackMu.Unlock()
	return nil
}

// deviceStopped runs on the audio thread whenever the device stops. Stops we
// did not ask for mean the device went away.
func (c *captureClient) deviceStopped() {
	c.callbackMu.RLock()
	requested := c.stopping
	onError := c.onError
	c.callbackMu.RUnlock()

	if requested || onError == nil {
		return
	}
	go onError(audio.NewInputUnavailableError(errors.New("capture device stopped unexpectedly")))
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.callbackMu.Lock()
	c.stopping = true
	c.onAudio = nil
	c.callbackMu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	return nil
}
