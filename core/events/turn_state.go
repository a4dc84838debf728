package events

import "github.com/koscakluka/ema-voice/core/conversations"

const (
	// KindTurnCompleted identifies a turn that produced an exchange.
	KindTurnCompleted Kind = "turn_state.completed"
	// KindTurnCancelled identifies a turn that was torn down.
	KindTurnCancelled Kind = "turn_state.cancelled"
)

// TurnCompleted carries the exchange a turn produced.
type TurnCompleted struct {
	Base
	Exchange conversations.Exchange
}

// NewTurnCompleted creates a turn completed event.
func NewTurnCompleted(exchange conversations.Exchange) TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted), Exchange: exchange}
}

// TurnCancelled marks a turn that was torn down before completing.
type TurnCancelled struct{ Base }

// NewTurnCancelled creates a turn cancelled event.
func NewTurnCancelled() TurnCancelled {
	return TurnCancelled{Base: NewBase(KindTurnCancelled)}
}
