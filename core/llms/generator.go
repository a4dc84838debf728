// Package llms turns a user transcript into a text response.
package llms

import (
	"context"

	"github.com/koscakluka/ema-voice/core/conversations"
)

// Generator produces the assistant's reply to transcript. history holds the
// previous exchanges, oldest first, and never includes the current turn.
type Generator interface {
	Generate(ctx context.Context, transcript string, history []conversations.Exchange) (string, error)
}

type GeneratorFunc func(ctx context.Context, transcript string, history []conversations.Exchange) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, transcript string, history []conversations.Exchange) (string, error) {
	return f(ctx, transcript, history)
}
