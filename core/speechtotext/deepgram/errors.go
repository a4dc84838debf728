package deepgram

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

const noAudioCode = "NET-0001"

func classifyDialError(resp *http.Response, err error) *speechtotext.RecognitionError {
	if resp == nil {
		return speechtotext.NewRecognitionError(speechtotext.ConnectionIssue, "",
			fmt.Errorf("failed to open socket connection to deepgram: %w", err))
	}

	code := strconv.Itoa(resp.StatusCode)
	if reason := resp.Header.Get("dg-error"); reason != "" {
		err = fmt.Errorf("%w: %s", err, reason)
	}
	err = fmt.Errorf("deepgram refused connection with status %s: %w", code, err)

	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return speechtotext.NewRecognitionError(speechtotext.ServiceUnavailable, code, err)
	}
	return speechtotext.NewRecognitionError(speechtotext.Other, code, err)
}

// classifyCloseError maps the error that ended the read loop onto a
// recognition error. A normal closure returns nil.
func classifyCloseError(err error) *speechtotext.RecognitionError {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return speechtotext.NewRecognitionError(speechtotext.ConnectionIssue, "", err)
	}

	switch {
	case closeErr.Code == websocket.CloseNormalClosure:
		return nil
	case strings.Contains(closeErr.Text, noAudioCode):
		return speechtotext.NewRecognitionError(speechtotext.NoSpeechDetected, noAudioCode, err)
	case closeErr.Code == websocket.CloseTryAgainLater,
		closeErr.Code == websocket.CloseServiceRestart:
		return speechtotext.NewRecognitionError(speechtotext.ServiceUnavailable, strconv.Itoa(closeErr.Code), err)
	case closeErr.Code == websocket.CloseAbnormalClosure,
		closeErr.Code == websocket.CloseGoingAway:
		return speechtotext.NewRecognitionError(speechtotext.ConnectionIssue, strconv.Itoa(closeErr.Code), err)
	}

	code := strconv.Itoa(closeErr.Code)
	if token, _, _ := strings.Cut(closeErr.Text, " "); strings.Contains(token, "-") {
		code = token
	}
	return speechtotext.NewRecognitionError(speechtotext.Other, code, err)
}
