package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/conversations"
	"github.com/koscakluka/ema-voice/core/events"
)

type fakeSession struct {
	status    orchestration.Status
	starts    int
	retries   int
	stops     int
	teardowns int
	startErr  error
}

func (s *fakeSession) StartListening(context.Context) error {
	s.starts++
	if s.startErr == nil {
		s.status.State = conversations.StateListening
	}
	return s.startErr
}

func (s *fakeSession) Retry(context.Context) error {
	s.retries++
	return nil
}

func (s *fakeSession) StopListening() error {
	s.stops++
	return nil
}

func (s *fakeSession) Teardown() {
	s.teardowns++
	s.status = orchestration.Status{State: conversations.StateIdle}
}

func (s *fakeSession) Status() orchestration.Status { return s.status }

func press(t *testing.T, m model, key string) (model, tea.Msg) {
	t.Helper()

	var keyMsg tea.KeyMsg
	switch key {
	case "space":
		keyMsg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "esc":
		keyMsg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		keyMsg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}

	next, cmd := m.Update(keyMsg)
	var msg tea.Msg
	if cmd != nil {
		msg = cmd()
	}
	return next.(model), msg
}

func TestSpaceStartsThenStopsListening(t *testing.T) {
	s := &fakeSession{status: orchestration.Status{State: conversations.StateIdle}}
	m := newModel(context.Background(), s)

	m, msg := press(t, m, "space")
	if s.starts != 1 {
		t.Fatalf("expected one start, got %d", s.starts)
	}
	next, _ := m.Update(msg)
	m = next.(model)
	if m.status.State != conversations.StateListening {
		t.Fatalf("expected listening, got %s", m.status.State)
	}

	m, msg = press(t, m, "space")
	if _, ok := msg.(actionDoneMsg); !ok || s.stops != 1 {
		t.Fatalf("expected one stop, got %d", s.stops)
	}
}

func TestSpaceWhileRespondingTearsDown(t *testing.T) {
	s := &fakeSession{status: orchestration.Status{State: conversations.StateSpeaking, Response: "hello"}}
	m := newModel(context.Background(), s)

	m, _ = press(t, m, "space")
	if s.teardowns != 1 {
		t.Fatalf("expected teardown, got %d", s.teardowns)
	}
	if m.status.State != conversations.StateIdle {
		t.Fatalf("expected idle, got %s", m.status.State)
	}
}

func TestRetryKeyAndFailedSpaceRetry(t *testing.T) {
	s := &fakeSession{status: orchestration.Status{State: conversations.StateFailed}}
	m := newModel(context.Background(), s)

	m, _ = press(t, m, "r")
	_, _ = press(t, m, "space")
	if s.retries != 2 {
		t.Fatalf("expected two retries, got %d", s.retries)
	}
}

func TestEscTearsDown(t *testing.T) {
	s := &fakeSession{status: orchestration.Status{State: conversations.StateListening}}
	m := newModel(context.Background(), s)

	_, _ = press(t, m, "esc")
	if s.teardowns != 1 {
		t.Fatalf("expected teardown, got %d", s.teardowns)
	}
}

func TestFailedStartShowsNotice(t *testing.T) {
	s := &fakeSession{status: orchestration.Status{State: conversations.StateIdle}, startErr: orchestration.ErrSessionActive}
	m := newModel(context.Background(), s)

	m, msg := press(t, m, "space")
	next, _ := m.Update(msg)
	m = next.(model)
	if !strings.Contains(m.View(), orchestration.ErrSessionActive.Error()) {
		t.Fatalf("expected view to show the start error")
	}
}

func TestErrorMessagesCarryHints(t *testing.T) {
	s := &fakeSession{status: orchestration.Status{State: conversations.StatePermissionBlocked}}
	m := newModel(context.Background(), s)

	next, _ := m.Update(errorMsg{err: errors.New("microphone denied"), requiresSettings: true})
	if !strings.Contains(next.(model).notice, "settings") {
		t.Fatalf("expected settings hint, got %q", next.(model).notice)
	}

	next, _ = m.Update(errorMsg{err: errors.New("network"), retryable: true})
	if !strings.Contains(next.(model).notice, "retry") {
		t.Fatalf("expected retry hint, got %q", next.(model).notice)
	}
}

func TestEventsRefreshStatus(t *testing.T) {
	s := &fakeSession{status: orchestration.Status{State: conversations.StateIdle}}
	m := newModel(context.Background(), s)
	m.notice = "old error"

	s.status = orchestration.Status{State: conversations.StateListening, Transcript: "what time is it"}
	next, _ := m.Update(eventMsg{event: events.NewStateChanged(conversations.StateIdle, conversations.StateListening, "")})
	m = next.(model)

	if m.notice != "" {
		t.Fatalf("expected notice to clear when listening starts")
	}
	if !strings.Contains(m.View(), "what time is it") {
		t.Fatalf("expected transcript in view")
	}
}
