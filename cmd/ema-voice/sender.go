package main

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// programSender forwards controller events to the program once it exists.
// Events are dispatched on the controller's own goroutine, which may run
// before attach.
type programSender struct {
	program atomic.Pointer[tea.Program]
}

func (s *programSender) attach(p *tea.Program) {
	s.program.Store(p)
}

func (s *programSender) send(msg tea.Msg) {
	if p := s.program.Load(); p != nil {
		p.Send(msg)
	}
}
