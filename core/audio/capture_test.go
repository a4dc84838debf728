package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCaptureSourceDeliversEveryFrame(t *testing.T) {
	input := &testInput{}
	source := NewCaptureSource(input, WithLevelInterval(time.Hour))

	var frames atomic.Int32
	var levels atomic.Int32
	if err := source.Start(context.Background(), CaptureSink{
		OnFrame: func(Frame) { frames.Add(1) },
		OnLevel: func(Level) { levels.Add(1) },
	}); err != nil {
		t.Fatalf("expected capture to start, got %v", err)
	}

	for range 20 {
		input.push(make([]byte, 320))
	}

	waitFor(t, func() bool { return frames.Load() == 20 }, "20 delivered frames")
	if got := levels.Load(); got != 1 {
		t.Fatalf("expected level readings to be throttled to 1, got %d", got)
	}
}

func TestCaptureSourceStopIsIdempotentAndReleases(t *testing.T) {
	input := &testInput{}
	source := NewCaptureSource(input)

	if err := source.Start(context.Background(), CaptureSink{}); err != nil {
		t.Fatalf("expected capture to start, got %v", err)
	}

	source.Stop()
	source.Stop()
	source.Stop()

	select {
	case <-source.Released():
	case <-time.After(time.Second):
		t.Fatalf("expected capture to be released")
	}

	if got := input.stopCalls.Load(); got != 1 {
		t.Fatalf("expected device to be stopped once, got %d", got)
	}
	if source.IsCapturing() {
		t.Fatalf("expected source to report not capturing after stop")
	}
}

func TestCaptureSourceStopDoesNotBlockOnSlowRelease(t *testing.T) {
	input := &testInput{stopDelay: 200 * time.Millisecond}
	source := NewCaptureSource(input)

	if err := source.Start(context.Background(), CaptureSink{}); err != nil {
		t.Fatalf("expected capture to start, got %v", err)
	}

	started := time.Now()
	source.Stop()
	if elapsed := time.Since(started); elapsed > 50*time.Millisecond {
		t.Fatalf("expected stop to return immediately, took %v", elapsed)
	}
}

func TestCaptureSourceWaitsForPreviousRelease(t *testing.T) {
	input := &testInput{stopDelay: 50 * time.Millisecond}
	source := NewCaptureSource(input)

	if err := source.Start(context.Background(), CaptureSink{}); err != nil {
		t.Fatalf("expected first capture to start, got %v", err)
	}
	source.Stop()

	if err := source.Start(context.Background(), CaptureSink{}); err != nil {
		t.Fatalf("expected second capture to start, got %v", err)
	}

	if input.overlapped.Load() {
		t.Fatalf("expected second run to open only after the first released the device")
	}
}

func TestCaptureSourceDropsFramesAfterStop(t *testing.T) {
	input := &testInput{}
	source := NewCaptureSource(input)

	var frames atomic.Int32
	if err := source.Start(context.Background(), CaptureSink{OnFrame: func(Frame) { frames.Add(1) }}); err != nil {
		t.Fatalf("expected capture to start, got %v", err)
	}
	source.Stop()
	<-source.Released()

	input.push(make([]byte, 320))
	time.Sleep(20 * time.Millisecond)

	if got := frames.Load(); got != 0 {
		t.Fatalf("expected no frames after stop, got %d", got)
	}
}

func TestCaptureSourceFinishDeliversQueuedFrames(t *testing.T) {
	input := &testInput{}
	source := NewCaptureSource(input)

	release := make(chan struct{})
	var frames atomic.Int32
	if err := source.Start(context.Background(), CaptureSink{OnFrame: func(Frame) {
		<-release
		frames.Add(1)
	}}); err != nil {
		t.Fatalf("expected capture to start, got %v", err)
	}

	for range 10 {
		input.push(make([]byte, 320))
	}
	drained := source.Finish()
	close(release)

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatalf("expected queued frames to drain")
	}
	if got := frames.Load(); got != 10 {
		t.Fatalf("expected all 10 captured frames to be delivered, got %d", got)
	}

	<-source.Released()
	if source.IsCapturing() {
		t.Fatalf("expected source to report not capturing after finish")
	}
}

func TestCaptureSourceStopCutsFinishShort(t *testing.T) {
	input := &testInput{}
	source := NewCaptureSource(input)

	release := make(chan struct{})
	inFlight := make(chan struct{}, 1)
	var frames atomic.Int32
	if err := source.Start(context.Background(), CaptureSink{OnFrame: func(Frame) {
		select {
		case inFlight <- struct{}{}:
		default:
		}
		<-release
		frames.Add(1)
	}}); err != nil {
		t.Fatalf("expected capture to start, got %v", err)
	}

	for range 10 {
		input.push(make([]byte, 320))
	}
	<-inFlight
	drained := source.Finish()
	source.Stop()
	close(release)

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatalf("expected delivery to end after stop")
	}
	if got := frames.Load(); got != 1 {
		t.Fatalf("expected only the frame in flight to be delivered, got %d", got)
	}
}

func TestCaptureSourceFinishWithoutRunIsDone(t *testing.T) {
	source := NewCaptureSource(&testInput{})

	select {
	case <-source.Finish():
	default:
		t.Fatalf("expected finish without a run to be done already")
	}
}

func TestCaptureSourceClassifiesStartErrors(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected error
	}{
		{name: "typed unavailable", err: NewInputUnavailableError(errors.New("busy")), expected: ErrInputUnavailable},
		{name: "untyped", err: errors.New("boom"), expected: ErrSessionConfigFailed},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			source := NewCaptureSource(&testInput{startErr: testCase.err})

			err := source.Start(context.Background(), CaptureSink{})
			if !errors.Is(err, testCase.expected) {
				t.Fatalf("expected %v, got %v", testCase.expected, err)
			}
			<-source.Released()
		})
	}
}

func TestCaptureSourceWithoutInputIsUnavailable(t *testing.T) {
	source := NewCaptureSource(nil)

	if err := source.Start(context.Background(), CaptureSink{}); !errors.Is(err, ErrInputUnavailable) {
		t.Fatalf("expected input unavailable, got %v", err)
	}
}

func TestCaptureSourceRejectsNonLinearInput(t *testing.T) {
	source := NewCaptureSource(&testInput{encoding: EncodingInfo{SampleRate: 8000, Channels: 1, Format: EncodingMulaw}})

	if err := source.Start(context.Background(), CaptureSink{}); !errors.Is(err, ErrSessionConfigFailed) {
		t.Fatalf("expected session config failure, got %v", err)
	}
}

func TestCaptureSourceForwardsRuntimeErrors(t *testing.T) {
	input := &testInput{}
	source := NewCaptureSource(input)

	errs := make(chan error, 1)
	if err := source.Start(context.Background(), CaptureSink{OnError: func(err error) { errs <- err }}); err != nil {
		t.Fatalf("expected capture to start, got %v", err)
	}

	input.fail(NewInputUnavailableError(errors.New("unplugged")))

	select {
	case err := <-errs:
		if !errors.Is(err, ErrInputUnavailable) {
			t.Fatalf("expected input unavailable, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected runtime error to be forwarded")
	}
}

type testInput struct {
	encoding  EncodingInfo
	startErr  error
	stopDelay time.Duration

	mu      sync.Mutex
	onAudio func([]byte)
	onError func(error)
	running bool

	stopCalls  atomic.Int32
	overlapped atomic.Bool
}

func (i *testInput) EncodingInfo() EncodingInfo {
	if i.encoding.IsZero() {
		return GetDefaultEncodingInfo()
	}
	return i.encoding
}

func (i *testInput) StartCapture(_ context.Context, onAudio func([]byte)) error {
	if i.startErr != nil {
		return i.startErr
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.running {
		i.overlapped.Store(true)
	}
	i.running = true
	i.onAudio = onAudio
	return nil
}

func (i *testInput) StopCapture() error {
	i.stopCalls.Add(1)
	time.Sleep(i.stopDelay)

	i.mu.Lock()
	defer i.mu.Unlock()
	i.running = false
	return nil
}

func (i *testInput) SetErrorCallback(onError func(error)) {
	i.mu.Lock()
	i.onError = onError
	i.mu.Unlock()
}

func (i *testInput) push(pcm []byte) {
	i.mu.Lock()
	onAudio := i.onAudio
	i.mu.Unlock()
	if onAudio != nil {
		onAudio(pcm)
	}
}

func (i *testInput) fail(err error) {
	i.mu.Lock()
	onError := i.onError
	i.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}

func waitFor(t *testing.T, condition func() bool, description string) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", description)
}
