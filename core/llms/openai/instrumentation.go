package openai

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/koscakluka/ema-voice/core/llms/openai"

var tracer = otel.Tracer(scopeName)
