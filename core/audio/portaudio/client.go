package portaudio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-voice/core/audio"
)

// Client is a blocking-IO PortAudio duplex stream. Capture runs a reader
// goroutine; playback is fed by a writer goroutine draining a byte queue.
type Client struct {
	bufferSize int
	sampleRate int
	stream     *portaudio.Stream

	in  []int16
	out []int16

	mu        sync.Mutex
	capturing bool
	stopRead  chan struct{}
	readDone  chan struct{}
	onError   func(error)

	queueMu sync.Mutex
	queue   []byte
	marks   []playbackMark
	wake    chan struct{}
	closed  chan struct{}
}

type playbackMark struct {
	position int
	reached  chan struct{}
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, audio.NewSessionConfigError(fmt.Errorf("failed to initialize PortAudio: %w", err))
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		portaudio.Terminate()
		return nil, audio.NewInputUnavailableError(fmt.Errorf("failed to open PortAudio stream: %w", err))
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, audio.NewInputUnavailableError(fmt.Errorf("failed to start PortAudio stream: %w", err))
	}

	c := &Client{
		bufferSize: bufferSize,
		sampleRate: audio.DefaultSampleRate,
		stream:     stream,
		in:         in,
		out:        out,
		wake:       make(chan struct{}, 1),
		closed:     make(chan struct{}),
	}
	go c.writeLoop()
	return c, nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: c.sampleRate,
		Channels:   1,
		Format:     audio.EncodingLinear16,
	}
}

func (c *Client) SetErrorCallback(onError func(error)) {
	c.mu.Lock()
	c.onError = onError
	c.mu.Unlock()
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capturing {
		return nil
	}

	c.capturing = true
	c.stopRead = make(chan struct{})
	c.readDone = make(chan struct{})
	go c.readLoop(c.stopRead, c.readDone, onAudio)
	return nil
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	if !c.capturing {
		c.mu.Unlock()
		return nil
	}
	c.capturing = false
	close(c.stopRead)
	done := c.readDone
	c.mu.Unlock()

	<-done
	return nil
}

func (c *Client) readLoop(stop, done chan struct{}, onAudio func([]byte)) {
	defer close(done)

	buffer := make([]byte, 2*c.bufferSize)
	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				logger.Debug("PortAudio input overflowed", "error", err)
				continue
			}
			c.mu.Lock()
			onError := c.onError
			c.mu.Unlock()
			if onError != nil {
				onError(audio.NewInputUnavailableError(fmt.Errorf("failed to read from PortAudio stream: %w", err)))
			}
			return
		}

		for i, sample := range c.in {
			binary.LittleEndian.PutUint16(buffer[2*i:], uint16(sample))
		}
		onAudio(append([]byte(nil), buffer...))
	}
}

func (c *Client) SendAudio(audio []byte) error {
	select {
	case <-c.closed:
		return fmt.Errorf("client closed")
	default:
	}

	c.queueMu.Lock()
	c.queue = append(c.queue, audio...)
	c.queueMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

func (c *Client) ClearBuffer() {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()

	c.queue = nil
	for _, mark := range c.marks {
		close(mark.reached)
	}
	c.marks = nil
}

func (c *Client) AwaitMark(ctx context.Context) error {
	c.queueMu.Lock()
	if len(c.queue) == 0 {
		c.queueMu.Unlock()
		return nil
	}
	mark := playbackMark{position: len(c.queue), reached: make(chan struct{})}
	c.marks = append(c.marks, mark)
	c.queueMu.Unlock()

	select {
	case <-mark.reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) writeLoop() {
	chunkSize := 2 * c.bufferSize
	for {
		c.queueMu.Lock()
		if len(c.queue) == 0 {
			c.queueMu.Unlock()
			select {
			case <-c.wake:
				continue
			case <-c.closed:
				return
			}
		}

		chunk := c.queue[:min(chunkSize, len(c.queue))]
		c.queue = c.queue[len(chunk):]
		clear(c.out)
		for i := range len(chunk) / 2 {
			c.out[i] = int16(binary.LittleEndian.Uint16(chunk[2*i:]))
		}
		c.advanceMarks(len(chunk))
		c.queueMu.Unlock()

		if err := c.stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			logger.Warn("failed to write to PortAudio stream", "error", err)
		}
	}
}

func (c *Client) advanceMarks(played int) {
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

func (c *Client) Close() {
	_ = c.StopCapture()
	close(c.closed)
	c.ClearBuffer()
	c.stream.Close()
	portaudio.Terminate()
}

var (
	_ audio.InputWithErrors = (*Client)(nil)
	_ audio.Output          = (*Client)(nil)
)
