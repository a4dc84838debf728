package main

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/conversations"
)

func TestProgramSenderDropsMessagesBeforeAttach(t *testing.T) {
	sender := &programSender{}
	sender.send(actionDoneMsg{action: "start"})
}

func TestProgramSenderAttachesWhileEventsArrive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &fakeSession{status: orchestration.Status{State: conversations.StateIdle}}
	program := tea.NewProgram(newModel(ctx, s), tea.WithContext(ctx), tea.WithInput(nil), tea.WithoutRenderer())
	sender := &programSender{}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				sender.send(actionDoneMsg{action: "start"})
			}
		}()
	}
	sender.attach(program)
	wg.Wait()

	if sender.program.Load() != program {
		t.Fatalf("expected the attached program to receive events")
	}
}
