package events

const (
	// KindAssistantResponseStarted identifies the start of response generation.
	KindAssistantResponseStarted Kind = "assistant_response.started"
	// KindAssistantResponseFinal identifies the complete response text.
	KindAssistantResponseFinal Kind = "assistant_response.final"
)

// AssistantResponseStarted marks the start of response generation for
// transcript.
type AssistantResponseStarted struct {
	Base
	Transcript string
}

// NewAssistantResponseStarted creates a response started event.
func NewAssistantResponseStarted(transcript string) AssistantResponseStarted {
	return AssistantResponseStarted{Base: NewBase(KindAssistantResponseStarted), Transcript: transcript}
}

// AssistantResponseFinal carries the complete response text.
type AssistantResponseFinal struct {
	Base
	Response string
}

// NewAssistantResponseFinal creates a final response event.
func NewAssistantResponseFinal(response string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), Response: response}
}
