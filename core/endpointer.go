package orchestration

import (
	"strings"
	"sync"
	"time"
)

// DefaultQuietInterval is how long the user has to stay quiet before the
// turn is considered complete.
const DefaultQuietInterval = 2 * time.Second

// Timer is a pending callback that can be stopped.
type Timer interface {
	Stop() bool
}

// TimerFactory schedules f to run once after d.
type TimerFactory func(d time.Duration, f func()) Timer

func defaultTimerFactory(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type EndpointerOption func(*Endpointer)

// WithEndpointerTimerFactory replaces the wall clock timer, mostly for tests.
func WithEndpointerTimerFactory(factory TimerFactory) EndpointerOption {
	return func(e *Endpointer) {
		if factory != nil {
			e.newTimer = factory
		}
	}
}

// WithSilenceCallback is called once when an armed quiet interval passes
// without any transcript.
func WithSilenceCallback(onSilence func()) EndpointerOption {
	return func(e *Endpointer) {
		e.onSilence = onSilence
	}
}

// Endpointer decides when the user has finished speaking. It reports
// exactly one turn completion per turn, whichever of the quiet timer or a
// final transcript gets there first.
type Endpointer struct {
	quietInterval  time.Duration
	newTimer       TimerFactory
	onTurnComplete func(transcript string)
	onSilence      func()

	mu             sync.Mutex
	transcript     string
	timer          Timer
	timerSeq       uint64
	fired          bool
	silenceEmitted bool
}

func NewEndpointer(quietInterval time.Duration, onTurnComplete func(transcript string), opts ...EndpointerOption) *Endpointer {
	if quietInterval <= 0 {
		quietInterval = DefaultQuietInterval
	}

	e := &Endpointer{
		quietInterval:  quietInterval,
		newTimer:       defaultTimerFactory,
		onTurnComplete: onTurnComplete,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Arm starts the quiet timer before anything was heard, so that a user who
// never speaks is noticed.
func (e *Endpointer) Arm() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fired {
		return
	}
	e.restartTimerLocked()
}

func (e *Endpointer) OnPartial(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fired {
		return
	}
	e.transcript = text
	e.restartTimerLocked()
}

// OnActivity restarts the quiet interval when the recognizer hears speech
// before it has any words for it.
func (e *Endpointer) OnActivity() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fired {
		return
	}
	e.restartTimerLocked()
}

// OnFinal completes the turn immediately. Empty text falls back to the last
// partial. Finals after the turn completed are ignored.
func (e *Endpointer) OnFinal(text string) {
	e.mu.Lock()
	if e.fired {
		e.mu.Unlock()
		return
	}
	if strings.TrimSpace(text) != "" {
		e.transcript = text
	}
	e.stopTimerLocked()

	transcript := e.transcript
	if strings.TrimSpace(transcript) == "" {
		emitSilence := e.takeSilenceLocked()
		e.mu.Unlock()
		if emitSilence {
			e.onSilence()
		}
		return
	}
	e.fired = true
	e.mu.Unlock()

	if e.onTurnComplete != nil {
		e.onTurnComplete(transcript)
	}
}

// Stop invalidates pending timers. The endpointer reports nothing after Stop.
func (e *Endpointer) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.fired = true
	e.stopTimerLocked()
}

// Transcript returns the last non-empty transcript seen this turn.
func (e *Endpointer) Transcript() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transcript
}

func (e *Endpointer) restartTimerLocked() {
	e.stopTimerLocked()
	seq := e.timerSeq
	e.timer = e.newTimer(e.quietInterval, func() { e.quietIntervalPassed(seq) })
}

func (e *Endpointer) stopTimerLocked() {
	e.timerSeq++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Endpointer) quietIntervalPassed(seq uint64) {
	e.mu.Lock()
	if seq != e.timerSeq || e.fired {
		e.mu.Unlock()
		return
	}
	e.timer = nil

	transcript := e.transcript
	if strings.TrimSpace(transcript) == "" {
		emitSilence := e.takeSilenceLocked()
		e.mu.Unlock()
		if emitSilence {
			e.onSilence()
		}
		return
	}
	e.fired = true
	e.mu.Unlock()

	if e.onTurnComplete != nil {
		e.onTurnComplete(transcript)
	}
}

func (e *Endpointer) takeSilenceLocked() bool {
	if e.silenceEmitted || e.onSilence == nil {
		return false
	}
	e.silenceEmitted = true
	return true
}
