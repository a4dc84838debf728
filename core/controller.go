package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/conversations"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/permissions"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TurnController runs a voice session one turn at a time: listen until the
// user stops talking, generate a response, speak it, and go back to idle.
//
// Inputs from the capture, recognition, endpointing, generation and
// synthesis workers are applied one at a time by a single consumer
// goroutine. Events are delivered to handlers by a separate dispatcher.
type TurnController struct {
	gate         *permissions.Gate
	captureInput audio.Input
	recognizer   speechtotext.Recognizer
	generator    llms.Generator
	synthesizer  texttospeech.Synthesizer
	history      *conversations.History

	quietInterval  time.Duration
	silencePolicy  SilencePolicy
	levelInterval  time.Duration
	maxRetries     int
	speechEncoding audio.EncodingInfo
	newTimer       TimerFactory
	baseContext    context.Context

	emitters  []eventEmitter
	callbacks eventCallbacks

	retry *RetryPolicy

	mu     sync.Mutex
	status Status
	// generation changes on every transition. Inputs tagged with an older
	// generation are dropped.
	generation uint64
	// startGen is the generation of the start in progress, zero if none.
	startGen   uint64
	dismissing bool
	finishing  bool
	closed     bool
	resources  teardownCoordinator

	inputs     *mailbox[input]
	dispatcher *eventDispatcher

	closeOnce sync.Once
	closeCh   chan struct{}
	done      chan struct{}
}

func NewTurnController(opts ...ControllerOption) *TurnController {
	c := &TurnController{
		history:        conversations.NewHistory(0),
		quietInterval:  DefaultQuietInterval,
		silencePolicy:  SilenceReturnsToIdle,
		levelInterval:  audio.DefaultLevelInterval,
		maxRetries:     DefaultMaxRetries,
		speechEncoding: audio.GetDefaultEncodingInfo(),
		newTimer:       defaultTimerFactory,
		baseContext:    context.Background(),
		status:         Status{State: conversations.StateIdle},
		inputs:         newMailbox[input](),
		closeCh:        make(chan struct{}),
		done:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.gate == nil {
		c.gate = permissions.NewGate(nil)
	}
	if c.resources.capture == nil {
		c.resources.capture = audio.NewCaptureSource(c.captureInput, audio.WithLevelInterval(c.levelInterval))
	}
	c.retry = NewRetryPolicy(c.maxRetries)
	c.status.Retry = c.retry.State()

	emitters := append([]eventEmitter(nil), c.emitters...)
	emitters = append(emitters, newCallbackEventEmitter(c.callbacks))
	c.dispatcher = newEventDispatcher(emitters)

	go c.consume()
	return c
}

// StartListening begins a new turn. Permissions are resolved first, then the
// recognition stream is opened and capture started. Unavailable capture
// input is retried right away, up to the retry bound. Every explicit start
// resets the retry count.
func (c *TurnController) StartListening(ctx context.Context) error {
	gen, startCtx, err := c.claimStart(ctx, func() error {
		if !c.status.State.CanStartListening() {
			return ErrSessionActive
		}
		c.retry.Reset()
		return nil
	})
	if err != nil {
		return err
	}

	return c.listen(startCtx, gen)
}

// Retry restarts listening after a failure or a permission block. From
// failed it uses up one retry and is refused with ErrRetriesExhausted once
// none are left. From permission blocked it asks for the permissions again
// and does not count as a retry.
func (c *TurnController) Retry(ctx context.Context) error {
	gen, startCtx, err := c.claimStart(ctx, func() error {
		switch c.status.State {
		case conversations.StatePermissionBlocked:
			return nil
		case conversations.StateFailed:
			return c.retry.Consume()
		}
		return ErrNothingToRetry
	})
	if err != nil {
		return err
	}

	return c.listen(startCtx, gen)
}

// StopListening ends the user's turn early. Audio captured so far still
// reaches the recognizer, which is then asked for its final transcript. That
// completes the turn as usual.
func (c *TurnController) StopListening() error {
	c.mu.Lock()
	if c.status.State != conversations.StateListening || c.resources.stream == nil {
		c.mu.Unlock()
		return nil
	}

	if strings.TrimSpace(c.resources.endpointer.Transcript()) == "" {
		c.resources.releaseListening()
		c.moveToLocked(conversations.StateIdle)
		c.mu.Unlock()
		return nil
	}

	stream := c.resources.stream
	gen := c.generation
	c.finishing = true
	drained := c.resources.capture.Finish()
	c.mu.Unlock()

	<-drained

	c.mu.Lock()
	superseded := c.generation != gen || !c.finishing
	c.mu.Unlock()
	if superseded {
		return nil
	}

	if err := stream.Finish(); err != nil {
		return fmt.Errorf("failed to finish recognition: %w", err)
	}
	return nil
}

// Teardown cancels whatever the session is doing and returns it to idle. It
// never waits on hardware or network and is safe from any goroutine,
// including event handlers.
func (c *TurnController) Teardown() {
	_, span := tracer.Start(c.baseContext, "teardown")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	span.SetAttributes(attribute.String("session.state", c.status.State.String()))
	c.teardownLocked()
}

// Close tears the session down and stops the controller's goroutines. It
// must not be called from an event handler.
func (c *TurnController) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.teardownLocked()
		c.closed = true
		c.mu.Unlock()

		close(c.closeCh)
		<-c.done
		c.dispatcher.close()
	})
}

func (c *TurnController) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.status
	status.Retry = c.retry.State()
	return status
}

func (c *TurnController) State() conversations.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.State
}

// History returns the stored exchanges, oldest first.
func (c *TurnController) History() []conversations.Exchange {
	return c.history.History()
}

func (c *TurnController) claimStart(ctx context.Context, check func() error) (uint64, context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, nil, ErrClosed
	}
	if c.recognizer == nil || c.generator == nil || !c.resources.capture.IsConfigured() {
		return 0, nil, ErrNotConfigured
	}
	if c.startGen != 0 {
		return 0, nil, ErrStartInProgress
	}
	if err := check(); err != nil {
		return 0, nil, err
	}

	c.dismissing = false
	c.finishing = false
	c.generation++
	c.startGen = c.generation

	startCtx, cancel := context.WithCancel(ctx)
	c.resources.cancelStart = cancel
	return c.generation, startCtx, nil
}

func (c *TurnController) listen(ctx context.Context, gen uint64) error {
	ctx, span := tracer.Start(ctx, "start listening")
	defer span.End()
	defer c.endStart(gen)

	if err := c.gate.Resolve(ctx); err != nil {
		var requestErr *permissions.RequestError
		switch {
		case !errors.As(err, &requestErr):
			return c.blockOnPermission(span, gen, err)
		case ctx.Err() != nil:
			return c.abortStart(gen, err)
		default:
			return c.failStart(span, gen, err)
		}
	}

	c.mu.Lock()
	previous := c.resources.previousStream()
	c.mu.Unlock()
	if previous != nil {
		select {
		case <-previous:
		case <-ctx.Done():
			return c.abortStart(gen, fmt.Errorf("waiting for previous recognition stream: %w", ctx.Err()))
		}
	}

	stream, err := c.recognizer.Open(ctx,
		speechtotext.WithEncodingInfo(c.resources.capture.EncodingInfo()),
		speechtotext.WithTranscriptCallback(func(transcript speechtotext.Transcript) {
			c.submit(transcriptInput{tagged: tagged{gen}, transcript: transcript})
		}),
		speechtotext.WithSpeechStartedCallback(func() {
			c.submit(speechStartedInput{tagged: tagged{gen}})
		}),
		speechtotext.WithErrorCallback(func(err error) {
			c.submit(recognitionErrorInput{tagged: tagged{gen}, err: err})
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return c.abortStart(gen, err)
		}
		return c.failStart(span, gen, err)
	}
	if !c.adoptStream(gen, stream) {
		stream.Cancel()
		return ErrSuperseded
	}

	sink := audio.CaptureSink{
		OnFrame: func(frame audio.Frame) {
			if err := stream.Feed(frame); err != nil {
				logger.Debug("dropping audio frame", "error", err)
			}
		},
		OnLevel: func(level audio.Level) {
			c.submit(userLevelInput{tagged: tagged{gen}, level: level})
		},
		OnError: func(err error) {
			c.submit(captureErrorInput{tagged: tagged{gen}, err: err})
		},
	}

	attempts := 0
	for {
		attempts++
		err = c.resources.capture.Start(ctx, sink)
		if err == nil || ctx.Err() != nil || !c.retry.ShouldRetry(err) || c.retry.Consume() != nil {
			break
		}
		logger.Info("retrying audio capture start", "attempt", attempts, "error", err)
	}
	span.SetAttributes(attribute.Int("capture.start_attempts", attempts))
	if err != nil {
		if ctx.Err() != nil {
			return c.abortStart(gen, err)
		}
		return c.failStart(span, gen, err)
	}

	return c.commitListening(gen, stream)
}

func (c *TurnController) endStart(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.startGen == gen {
		c.startGen = 0
	}
	if c.resources.cancelStart != nil {
		c.resources.cancelStart()
		c.resources.cancelStart = nil
	}
}

func (c *TurnController) blockOnPermission(span trace.Span, gen uint64, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return ErrSuperseded
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "permission not granted")

	kind := permissions.Microphone
	var permissionErr *permissions.PermissionError
	if errors.As(err, &permissionErr) {
		kind = permissionErr.Kind
	}

	c.status.BlockedOn = kind
	c.status.Err = err
	c.moveToLocked(conversations.StatePermissionBlocked)
	c.emit(events.NewSessionError(err, false, true))
	return err
}

// abortStart handles a start cancelled by its caller or by teardown. The
// session state is left alone.
func (c *TurnController) abortStart(gen uint64, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return ErrSuperseded
	}
	c.resources.releaseListening()
	return err
}

func (c *TurnController) failStart(span trace.Span, gen uint64, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return ErrSuperseded
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "failed to start listening")
	c.failLocked(err)
	return err
}

func (c *TurnController) adoptStream(gen uint64, stream speechtotext.Stream) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return false
	}

	c.resources.stream = stream
	c.resources.lastStream = stream
	c.resources.endpointer = NewEndpointer(c.quietInterval,
		func(transcript string) {
			c.submit(turnCompleteInput{tagged: tagged{gen}, transcript: transcript})
		},
		WithEndpointerTimerFactory(c.newTimer),
		WithSilenceCallback(func() {
			c.submit(silenceInput{tagged: tagged{gen}})
		}),
	)
	return true
}

func (c *TurnController) commitListening(gen uint64, stream speechtotext.Stream) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.closed {
		stream.Cancel()
		c.resources.capture.Stop()
		return ErrSuperseded
	}

	c.status.Err = nil
	c.status.BlockedOn = ""
	c.status.Transcript = ""
	c.status.Response = ""
	c.setStateLocked(conversations.StateListening)
	c.resources.endpointer.Arm()
	return nil
}

func (c *TurnController) submit(in input) {
	c.inputs.push(in)
}

func (c *TurnController) emit(event events.Event) {
	c.dispatcher.emit(event)
}

func (c *TurnController) consume() {
	defer close(c.done)

	for {
		select {
		case <-c.closeCh:
			return
		case <-c.inputs.ready():
			for _, in := range c.inputs.drain() {
				c.apply(in)
			}
		}
	}
}

func (c *TurnController) apply(in input) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.dismissing || in.generation() != c.generation {
		logger.Debug("dropping stale input",
			"input", fmt.Sprintf("%T", in),
			"generation", in.generation(),
			"current_generation", c.generation,
		)
		return
	}

	state := c.status.State
	switch in := in.(type) {
	case transcriptInput:
		c.applyTranscriptLocked(in.transcript)
	case speechStartedInput:
		if endpointer := c.resources.endpointer; endpointer != nil && state == conversations.StateListening {
			endpointer.OnActivity()
		}
		c.emit(events.NewUserSpeechStarted())
	case userLevelInput:
		c.status.UserLevel = in.level.Value
		c.emit(events.NewUserAudioLevel(in.level.Value))
	case turnCompleteInput:
		if state == conversations.StateListening {
			c.completeTurnLocked(in.transcript)
		}
	case silenceInput:
		if state == conversations.StateListening {
			c.silenceLocked()
		}
	case recognitionErrorInput:
		c.recognitionErrorLocked(in.err)
	case captureErrorInput:
		c.failLocked(in.err)
	case generationResultInput:
		if state == conversations.StateProcessing {
			c.applyGenerationResultLocked(in)
		}
	case synthesisStartedInput:
		if state == conversations.StateSpeaking {
			c.emit(events.NewAssistantSpeechStarted())
		}
	case synthesisEndedInput:
		if state == conversations.StateSpeaking {
			c.resources.finishTurn()
			if in.cancelled {
				c.emit(events.NewAssistantSpeechCancelled())
			} else {
				c.emit(events.NewAssistantSpeechFinished())
			}
			c.moveToLocked(conversations.StateIdle)
		}
	case synthesisErrorInput:
		if state == conversations.StateSpeaking {
			c.resources.cancelTurnWork()
			c.status.Err = in.err
			c.emit(events.NewSessionError(in.err, IsRetryable(in.err), false))
			c.moveToLocked(conversations.StateIdle)
		}
	case assistantLevelInput:
		if state == conversations.StateSpeaking {
			c.status.AssistantLevel = in.level.Value
			c.emit(events.NewAssistantAudioLevel(in.level.Value))
		}
	}
}

func (c *TurnController) applyTranscriptLocked(transcript speechtotext.Transcript) {
	endpointer := c.resources.endpointer
	if endpointer == nil {
		return
	}

	if text := strings.TrimSpace(transcript.Text); text != "" && text != c.status.Transcript {
		c.status.Transcript = text
		c.emit(events.NewUserTranscriptUpdated(text))
	}

	if transcript.IsFinal {
		endpointer.OnFinal(transcript.Text)
	} else {
		endpointer.OnPartial(transcript.Text)
	}
}

func (c *TurnController) completeTurnLocked(transcript string) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		c.silenceLocked()
		return
	}

	c.resources.releaseListening()
	c.status.Transcript = transcript
	gen := c.moveToLocked(conversations.StateProcessing)
	c.emit(events.NewUserTranscriptFinal(transcript))
	c.emit(events.NewAssistantResponseStarted(transcript))

	turnCtx, cancel := context.WithCancel(c.baseContext)
	c.resources.cancelTurn = cancel
	go c.generate(turnCtx, gen, transcript, c.history.History())
}

func (c *TurnController) silenceLocked() {
	if c.silencePolicy == SilenceKeepsListening && !c.finishing {
		logger.Debug("no speech heard, still listening")
		return
	}

	c.resources.releaseListening()
	c.moveToLocked(conversations.StateIdle)
}

func (c *TurnController) recognitionErrorLocked(err error) {
	if speechtotext.KindOf(err) == speechtotext.NoSpeechDetected {
		if endpointer := c.resources.endpointer; endpointer != nil && strings.TrimSpace(endpointer.Transcript()) != "" {
			return
		}
		logger.Debug("recognizer heard no speech")
		c.resources.releaseListening()
		c.moveToLocked(conversations.StateIdle)
		return
	}

	c.failLocked(err)
}

func (c *TurnController) failLocked(err error) {
	logger.Warn("voice session failed", "error", err)

	c.resources.releaseListening()
	c.status.Err = err
	c.moveToLocked(conversations.StateFailed)
	c.emit(events.NewSessionError(err, IsRetryable(err), RequiresSettings(err)))
}

func (c *TurnController) applyGenerationResultLocked(result generationResultInput) {
	c.resources.finishTurn()

	if result.err != nil {
		c.status.Err = result.err
		c.emit(events.NewSessionError(result.err, IsRetryable(result.err), false))
		c.moveToLocked(conversations.StateIdle)
		return
	}

	c.status.Response = result.response
	c.emit(events.NewAssistantResponseFinal(result.response))

	exchange := conversations.NewExchange(conversations.TurnResult{
		Transcript: result.transcript,
		Response:   result.response,
	})
	c.history.Push(exchange)
	c.emit(events.NewTurnCompleted(exchange))

	if c.synthesizer == nil {
		c.moveToLocked(conversations.StateIdle)
		return
	}

	gen := c.moveToLocked(conversations.StateSpeaking)
	turnCtx, cancel := context.WithCancel(c.baseContext)
	c.resources.cancelTurn = cancel
	go c.speak(turnCtx, gen, result.response)
}

func (c *TurnController) generate(ctx context.Context, gen uint64, transcript string, history []conversations.Exchange) {
	ctx, span := tracer.Start(ctx, "process turn")
	defer span.End()
	span.SetAttributes(attribute.Int("turn.history_length", len(history)))

	var response string
	err := panicSafeNamedWorker("response generation", func(ctx context.Context) error {
		var err error
		response, err = c.generator.Generate(ctx, transcript, history)
		return err
	})(ctx)
	response = strings.TrimSpace(response)
	if err == nil && response == "" {
		err = ErrEmptyResponse
	}

	if err != nil {
		if ctx.Err() == nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to generate response")
		}
		c.submit(generationResultInput{tagged: tagged{gen}, transcript: transcript, err: &GenerationError{Err: err}})
		return
	}

	c.submit(generationResultInput{tagged: tagged{gen}, transcript: transcript, response: response})
}

func (c *TurnController) speak(ctx context.Context, gen uint64, text string) {
	ctx, span := tracer.Start(ctx, "speak response")
	defer span.End()

	throttle := audio.NewLevelThrottle(c.levelInterval)
	channels := c.speechEncoding.ChannelCount()
	readLevels := c.speechEncoding.Format == audio.EncodingLinear16

	utterance, err := c.synthesizer.Speak(ctx, text,
		texttospeech.WithEncodingInfo(c.speechEncoding),
		texttospeech.WithStartedCallback(func() {
			c.submit(synthesisStartedInput{tagged: tagged{gen}})
		}),
		texttospeech.WithFinishedCallback(func() {
			c.submit(synthesisEndedInput{tagged: tagged{gen}})
		}),
		texttospeech.WithCancelledCallback(func() {
			c.submit(synthesisEndedInput{tagged: tagged{gen}, cancelled: true})
		}),
		texttospeech.WithErrorCallback(func(err error) {
			c.submit(synthesisErrorInput{tagged: tagged{gen}, err: &SynthesisError{Err: err}})
		}),
		texttospeech.WithAudioCallback(func(pcm []byte) {
			if now := time.Now(); readLevels && throttle.Allow(now) {
				level := audio.LevelOf(audio.FrameFromLinear16(pcm, channels))
				c.submit(assistantLevelInput{tagged: tagged{gen}, level: audio.Level{Value: level, At: now}})
			}
		}),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start speech")
		c.submit(synthesisErrorInput{tagged: tagged{gen}, err: &SynthesisError{Err: err}})
		return
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		if err := utterance.Cancel(); err != nil {
			logger.Debug("failed to cancel stale utterance", "error", err)
		}
		return
	}
	c.resources.utterance = utterance
	c.mu.Unlock()
}

func (c *TurnController) teardownLocked() {
	c.dismissing = true

	from := c.status.State
	busy := from.IsActive() || c.startGen != 0
	c.resources.releaseAll()
	c.moveToLocked(conversations.StateIdle)
	c.status.Err = nil

	if busy {
		c.emit(events.NewTurnCancelled())
	}
}

// moveToLocked transitions to state and invalidates every input produced for
// the previous one.
func (c *TurnController) moveToLocked(state conversations.SessionState) uint64 {
	c.generation++
	c.setStateLocked(state)
	return c.generation
}

func (c *TurnController) setStateLocked(state conversations.SessionState) {
	from := c.status.State
	c.status.State = state

	switch state {
	case conversations.StateIdle:
		c.status.Transcript = ""
		c.status.Response = ""
		c.status.BlockedOn = ""
		c.status.UserLevel = 0
		c.status.AssistantLevel = 0
	case conversations.StateProcessing, conversations.StateFailed:
		c.status.UserLevel = 0
	case conversations.StatePermissionBlocked:
	default:
		c.status.BlockedOn = ""
	}

	if from != state {
		c.emit(events.NewStateChanged(from, state, c.status.BlockedOn))
	}
}
