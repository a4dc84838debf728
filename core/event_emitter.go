package orchestration

import (
	"github.com/koscakluka/ema-voice/core/conversations"
	"github.com/koscakluka/ema-voice/core/events"
)

// EventHandler receives every controller event, in order, on a dedicated
// goroutine. Handlers may call back into the controller.
type EventHandler interface {
	Handle(event events.Event)
}

type EventHandlerFunc func(event events.Event)

func (f EventHandlerFunc) Handle(event events.Event) { f(event) }

type eventEmitter func(events.Event)

type eventCallbacks struct {
	onStateChanged   func(from, to conversations.SessionState)
	onTranscript     func(transcript string)
	onResponse       func(response string)
	onError          func(err error, retryable, requiresSettings bool)
	onUserLevel      func(level float64)
	onAssistantLevel func(level float64)
}

func newCallbackEventEmitter(callbacks eventCallbacks) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.StateChanged:
			if callbacks.onStateChanged != nil {
				callbacks.onStateChanged(typedEvent.From, typedEvent.To)
			}
		case events.UserTranscriptUpdated:
			if callbacks.onTranscript != nil {
				callbacks.onTranscript(typedEvent.Transcript)
			}
		case events.UserTranscriptFinal:
			if callbacks.onTranscript != nil {
				callbacks.onTranscript(typedEvent.Transcript)
			}
		case events.AssistantResponseFinal:
			if callbacks.onResponse != nil {
				callbacks.onResponse(typedEvent.Response)
			}
		case events.SessionError:
			if callbacks.onError != nil {
				callbacks.onError(typedEvent.Err, typedEvent.Retryable, typedEvent.RequiresSettings)
			}
		case events.UserAudioLevel:
			if callbacks.onUserLevel != nil {
				callbacks.onUserLevel(typedEvent.Level)
			}
		case events.AssistantAudioLevel:
			if callbacks.onAssistantLevel != nil {
				callbacks.onAssistantLevel(typedEvent.Level)
			}
		}
	}
}

// eventDispatcher delivers events outside the controller lock so handlers
// can call Teardown or StartListening without deadlocking.
type eventDispatcher struct {
	outbox   *mailbox[events.Event]
	emitters []eventEmitter

	closeCh chan struct{}
	done    chan struct{}
}

func newEventDispatcher(emitters []eventEmitter) *eventDispatcher {
	d := &eventDispatcher{
		outbox:   newMailbox[events.Event](),
		emitters: emitters,
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *eventDispatcher) emit(event events.Event) {
	if len(d.emitters) == 0 {
		return
	}
	d.outbox.push(event)
}

func (d *eventDispatcher) run() {
	defer close(d.done)

	for {
		select {
		case <-d.outbox.ready():
			d.deliver(d.outbox.drain())
		case <-d.closeCh:
			d.deliver(d.outbox.drain())
			return
		}
	}
}

func (d *eventDispatcher) deliver(pending []events.Event) {
	for _, event := range pending {
		for _, emit := range d.emitters {
			d.deliverOne(emit, event)
		}
	}
}

func (d *eventDispatcher) deliverOne(emit eventEmitter, event events.Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("event handler panicked", "kind", event.Kind(), "panic", recovered)
		}
	}()
	emit(event)
}

// close delivers what is still queued and waits for the dispatcher to stop.
func (d *eventDispatcher) close() {
	close(d.closeCh)
	<-d.done
}
