package orchestration

import (
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

// input is anything that may change session state. Every input carries the
// generation it was produced for and is dropped once that is stale.
type input interface {
	generation() uint64
}

type tagged struct{ gen uint64 }

func (t tagged) generation() uint64 { return t.gen }

type transcriptInput struct {
	tagged
	transcript speechtotext.Transcript
}

type speechStartedInput struct{ tagged }

type recognitionErrorInput struct {
	tagged
	err error
}

type captureErrorInput struct {
	tagged
	err error
}

type userLevelInput struct {
	tagged
	level audio.Level
}

type turnCompleteInput struct {
	tagged
	transcript string
}

type silenceInput struct{ tagged }

type generationResultInput struct {
	tagged
	transcript string
	response   string
	err        error
}

type synthesisStartedInput struct{ tagged }

type synthesisEndedInput struct {
	tagged
	cancelled bool
}

type synthesisErrorInput struct {
	tagged
	err error
}

type assistantLevelInput struct {
	tagged
	level audio.Level
}
