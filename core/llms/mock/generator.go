// Package mock answers every transcript from a fixed set of templates after
// a simulated processing delay. It needs no network access.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-voice/core/conversations"
	"github.com/koscakluka/ema-voice/core/llms"
)

const DefaultDelay = 1500 * time.Millisecond

// DefaultTemplates are formatted with the transcript.
var DefaultTemplates = []string{
	"I understand you said: %s. That's an interesting point!",
	"Let me help you with that. %s is something I can definitely assist with.",
	"Based on what you said about %s, here's what I think.",
	"That's fascinating! Tell me more about %s.",
}

type Generator struct {
	templates []string
	delay     time.Duration
	next      atomic.Uint64
}

type GeneratorOption func(*Generator)

func WithDelay(delay time.Duration) GeneratorOption {
	return func(g *Generator) {
		if delay >= 0 {
			g.delay = delay
		}
	}
}

// WithTemplates replaces the response templates. A %s verb in a template is
// replaced with the transcript.
func WithTemplates(templates ...string) GeneratorOption {
	return func(g *Generator) {
		if len(templates) > 0 {
			g.templates = templates
		}
	}
}

func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{templates: DefaultTemplates, delay: DefaultDelay}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate cycles through the templates in order.
func (g *Generator) Generate(ctx context.Context, transcript string, _ []conversations.Exchange) (string, error) {
	timer := time.NewTimer(g.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}

	template := g.templates[(g.next.Add(1)-1)%uint64(len(g.templates))]
	if !strings.Contains(template, "%s") {
		return template, nil
	}
	return fmt.Sprintf(template, transcript), nil
}

var _ llms.Generator = (*Generator)(nil)
