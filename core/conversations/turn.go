package conversations

import (
	"time"

	"github.com/google/uuid"
)

// TurnResult is what one completed turn produced. It is created once,
// handed to the synthesizer and discarded after playback.
type TurnResult struct {
	Transcript string
	Response   string
}

func (r TurnResult) IsEmpty() bool { return r.Response == "" }

// Exchange is a stored transcript and response pair.
type Exchange struct {
	ID         uuid.UUID
	Transcript string
	Response   string
	At         time.Time
}

func NewExchange(result TurnResult) Exchange {
	return Exchange{
		ID:         uuid.New(),
		Transcript: result.Transcript,
		Response:   result.Response,
		At:         time.Now(),
	}
}
