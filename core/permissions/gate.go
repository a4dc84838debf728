package permissions

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Gate checks and requests the permissions required to listen. Microphone
// access is always resolved before speech recognition.
type Gate struct {
	authority Authority
}

func NewGate(authority Authority) *Gate {
	if authority == nil {
		authority = GrantAll()
	}
	return &Gate{authority: authority}
}

func (g *Gate) CheckStatus(kind Kind) Status {
	return g.authority.Status(kind)
}

// RequestIfUndetermined prompts only when the user has not yet decided. A
// previous denial is reported without prompting again.
func (g *Gate) RequestIfUndetermined(ctx context.Context, kind Kind) (bool, error) {
	switch g.authority.Status(kind) {
	case Granted:
		return true, nil
	case Denied:
		return false, nil
	}

	status, err := g.authority.Request(ctx, kind)
	if err != nil {
		return false, &RequestError{Kind: kind, Err: err}
	}
	return status == Granted, nil
}

// Resolve makes sure both the microphone and speech recognition permissions
// are granted, prompting for each at most once. Speech recognition is not
// requested unless the microphone was granted.
func (g *Gate) Resolve(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "resolve permissions")
	defer span.End()

	for _, kind := range []Kind{Microphone, SpeechRecognition} {
		granted, err := g.RequestIfUndetermined(ctx, kind)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "permission request failed")
			return err
		}
		if !granted {
			span.SetAttributes(attribute.String("permission.denied", string(kind)))
			logger.Info("permission not granted", "kind", kind)
			return &PermissionError{Kind: kind}
		}
	}

	return nil
}
