package permissions

import (
	"context"
	"sync"
)

// StaticAuthority answers from a fixed table. Desktop audio backends get
// device access from the OS implicitly, so they run with GrantAll.
type StaticAuthority struct {
	mu       sync.Mutex
	statuses map[Kind]Status
	answers  map[Kind]Status
	requests map[Kind]int
}

// NewStaticAuthority reports statuses as given; kinds missing from the map
// are undetermined. answers is what a prompt for each kind resolves to,
// defaulting to denied.
func NewStaticAuthority(statuses map[Kind]Status, answers map[Kind]Status) *StaticAuthority {
	a := &StaticAuthority{
		statuses: map[Kind]Status{},
		answers:  map[Kind]Status{},
		requests: map[Kind]int{},
	}
	for kind, status := range statuses {
		a.statuses[kind] = status
	}
	for kind, status := range answers {
		a.answers[kind] = status
	}
	return a
}

func GrantAll() *StaticAuthority {
	return NewStaticAuthority(map[Kind]Status{
		Microphone:        Granted,
		SpeechRecognition: Granted,
	}, nil)
}

func (a *StaticAuthority) Status(kind Kind) Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	if status, ok := a.statuses[kind]; ok {
		return status
	}
	return Undetermined
}

func (a *StaticAuthority) Request(ctx context.Context, kind Kind) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Undetermined, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests[kind]++
	if status, ok := a.statuses[kind]; ok && status != Undetermined {
		return status, nil
	}

	answer, ok := a.answers[kind]
	if !ok {
		answer = Denied
	}
	a.statuses[kind] = answer
	return answer, nil
}

// Set changes a status, as when the user flips a switch in system settings.
func (a *StaticAuthority) Set(kind Kind, status Status) {
	a.mu.Lock()
	a.statuses[kind] = status
	a.mu.Unlock()
}

// Requests reports how many times kind was prompted for.
func (a *StaticAuthority) Requests(kind Kind) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[kind]
}
