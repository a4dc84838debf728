package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Input is a hardware capture device delivering 16 bit little endian PCM in
// the format reported by EncodingInfo.
type Input interface {
	EncodingInfo() EncodingInfo
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

// InputWithErrors is implemented by inputs that can fail after capture has
// started (device unplugged, stream overflow that cannot be recovered).
type InputWithErrors interface {
	Input
	SetErrorCallback(onError func(error))
}

type CaptureErrorKind string

const (
	CaptureInputUnavailable    CaptureErrorKind = "input_unavailable"
	CaptureSessionConfigFailed CaptureErrorKind = "session_config_failed"
)

var (
	ErrInputUnavailable    = &CaptureError{Kind: CaptureInputUnavailable}
	ErrSessionConfigFailed = &CaptureError{Kind: CaptureSessionConfigFailed}
)

type CaptureError struct {
	Kind CaptureErrorKind
	Err  error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("audio capture failed: %s", e.Kind)
	}
	return fmt.Sprintf("audio capture failed: %s: %v", e.Kind, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Is matches the kind sentinels ErrInputUnavailable and
// ErrSessionConfigFailed.
func (e *CaptureError) Is(target error) bool {
	t, ok := target.(*CaptureError)
	return ok && t.Err == nil && t.Kind == e.Kind
}

func NewInputUnavailableError(err error) *CaptureError {
	return &CaptureError{Kind: CaptureInputUnavailable, Err: err}
}

func NewSessionConfigError(err error) *CaptureError {
	return &CaptureError{Kind: CaptureSessionConfigFailed, Err: err}
}

func asCaptureError(err error) *CaptureError {
	var captureErr *CaptureError
	if errors.As(err, &captureErr) {
		return captureErr
	}
	return NewSessionConfigError(err)
}

// CaptureSink receives the output of a capture run. Callbacks run on the
// capture delivery worker and must not block for long.
type CaptureSink struct {
	OnFrame func(Frame)
	OnLevel func(Level)
	OnError func(error)
}

type CaptureOption func(*CaptureSource)

func WithLevelInterval(interval time.Duration) CaptureOption {
	return func(c *CaptureSource) {
		if interval > 0 {
			c.levelInterval = interval
		}
	}
}

func WithFrameBuffer(size int) CaptureOption {
	return func(c *CaptureSource) {
		if size > 0 {
			c.frameBuffer = size
		}
	}
}

const defaultFrameBuffer = 64

// CaptureSource owns the hardware input. Only one run is open at a time: a
// new run waits for the previous one to confirm the device was released.
type CaptureSource struct {
	input         Input
	levelInterval time.Duration
	frameBuffer   int

	startMu sync.Mutex

	mu  sync.Mutex
	run *captureRun
}

func NewCaptureSource(input Input, opts ...CaptureOption) *CaptureSource {
	c := &CaptureSource{
		input:         input,
		levelInterval: DefaultLevelInterval,
		frameBuffer:   defaultFrameBuffer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CaptureSource) IsConfigured() bool { return c != nil && c.input != nil }

func (c *CaptureSource) EncodingInfo() EncodingInfo {
	if !c.IsConfigured() {
		return GetDefaultEncodingInfo()
	}
	return c.input.EncodingInfo()
}

// Start opens the device and begins delivering frames to sink. The returned
// error is always a *CaptureError.
func (c *CaptureSource) Start(ctx context.Context, sink CaptureSink) error {
	if !c.IsConfigured() {
		return NewInputUnavailableError(errors.New("no audio input configured"))
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	previous := c.run
	c.mu.Unlock()

	if previous != nil {
		previous.halt()
		select {
		case <-previous.released:
		case <-ctx.Done():
			return NewInputUnavailableError(fmt.Errorf("waiting for previous capture release: %w", ctx.Err()))
		}
	}

	encoding := c.input.EncodingInfo()
	if encoding.IsZero() {
		return NewSessionConfigError(errors.New("input reported no encoding"))
	}
	if encoding.Format != EncodingLinear16 {
		return NewSessionConfigError(fmt.Errorf("unsupported capture format %q", encoding.Format.Name()))
	}

	run := newCaptureRun(c.input, c.frameBuffer, NewLevelThrottle(c.levelInterval))
	if reporter, ok := c.input.(InputWithErrors); ok {
		reporter.SetErrorCallback(func(err error) {
			if run.active.Load() && sink.OnError != nil {
				sink.OnError(asCaptureError(err))
			}
		})
	}

	go run.deliver(sink)

	if err := c.input.StartCapture(ctx, run.onAudio(encoding.ChannelCount())); err != nil {
		run.abandon()
		return asCaptureError(err)
	}

	c.mu.Lock()
	c.run = run
	c.mu.Unlock()

	return nil
}

// Stop halts the current run. It never blocks; the device is released on a
// background worker. Safe to call repeatedly and from any goroutine.
func (c *CaptureSource) Stop() {
	if c == nil {
		return
	}

	c.mu.Lock()
	run := c.run
	c.mu.Unlock()

	if run != nil {
		run.halt()
	}
}

// Finish stops the device like Stop but keeps delivering the frames that
// were already captured. The returned channel is closed once they all
// reached the sink. A Stop during the drain drops whatever is left.
func (c *CaptureSource) Finish() <-chan struct{} {
	if c != nil {
		c.mu.Lock()
		run := c.run
		c.mu.Unlock()
		if run != nil {
			run.finish()
			return run.drained
		}
	}

	drained := make(chan struct{})
	close(drained)
	return drained
}

// Released is closed once the most recent run has let go of the device.
func (c *CaptureSource) Released() <-chan struct{} {
	if c != nil {
		c.mu.Lock()
		run := c.run
		c.mu.Unlock()
		if run != nil {
			return run.released
		}
	}

	released := make(chan struct{})
	close(released)
	return released
}

func (c *CaptureSource) IsCapturing() bool {
	if c == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run != nil && c.run.active.Load()
}

type captureRun struct {
	input    Input
	throttle *LevelThrottle

	frames   chan Frame
	stop     chan struct{}
	released chan struct{}
	drained  chan struct{}
	stopOnce sync.Once

	active atomic.Bool
	// draining keeps delivery going after stop until the queue is empty.
	draining atomic.Bool
}

func newCaptureRun(input Input, buffer int, throttle *LevelThrottle) *captureRun {
	run := &captureRun{
		input:    input,
		throttle: throttle,
		frames:   make(chan Frame, buffer),
		stop:     make(chan struct{}),
		released: make(chan struct{}),
		drained:  make(chan struct{}),
	}
	run.active.Store(true)
	return run
}

func (r *captureRun) onAudio(channels int) func([]byte) {
	return func(pcm []byte) {
		if !r.active.Load() || len(pcm) == 0 {
			return
		}

		frame := FrameFromLinear16(pcm, channels)
		select {
		case r.frames <- frame:
		case <-r.stop:
		}
	}
}

func (r *captureRun) deliver(sink CaptureSink) {
	defer close(r.drained)

	for {
		select {
		case <-r.stop:
			r.flush(sink)
			return
		case frame := <-r.frames:
			if !r.active.Load() && !r.draining.Load() {
				return
			}
			r.emit(sink, frame)
		}
	}
}

func (r *captureRun) flush(sink CaptureSink) {
	for r.draining.Load() {
		select {
		case frame := <-r.frames:
			r.emit(sink, frame)
		default:
			return
		}
	}
}

func (r *captureRun) emit(sink CaptureSink, frame Frame) {
	if sink.OnFrame != nil {
		sink.OnFrame(frame)
	}

	if now := time.Now(); sink.OnLevel != nil && r.throttle.Allow(now) {
		sink.OnLevel(Level{Value: LevelOf(frame), At: now})
	}
}

// halt stops the run and drops frames still queued.
func (r *captureRun) halt() {
	r.draining.Store(false)
	r.stopDevice()
}

// finish stops the run and lets delivery drain the queue. It has no effect
// on a run that was already halted.
func (r *captureRun) finish() {
	r.stopOnce.Do(func() {
		r.draining.Store(true)
		r.stopCapture()
	})
}

func (r *captureRun) stopDevice() {
	r.stopOnce.Do(r.stopCapture)
}

func (r *captureRun) stopCapture() {
	r.active.Store(false)
	close(r.stop)
	go func() {
		defer close(r.released)
		if err := r.input.StopCapture(); err != nil {
			logger.Warn("failed to stop audio capture", "error", err)
		}
	}()
}

// abandon tears down a run whose device never started.
func (r *captureRun) abandon() {
	r.stopOnce.Do(func() {
		r.active.Store(false)
		close(r.stop)
		close(r.released)
	})
}
