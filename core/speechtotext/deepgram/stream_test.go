package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

func TestStreamDeliversPartialsAndFinalOnFinish(t *testing.T) {
	server := newListenServer(t, func(conn *websocket.Conn, _ *http.Request) {
		writeResults(t, conn, "hel", false)
		writeResults(t, conn, "hello", true)
		writeResults(t, conn, "wor", false)
		writeResults(t, conn, "world", true)

		awaitCloseStream(t, conn)
		closeWith(conn, websocket.CloseNormalClosure, "")
	})

	recorder := &transcriptRecorder{}
	stream := openStream(t, server, recorder)

	waitForTranscripts(t, recorder, 4)
	if err := stream.Finish(); err != nil {
		t.Fatalf("expected finish to succeed, got %v", err)
	}
	waitForDone(t, stream)

	expected := []speechtotext.Transcript{
		{Text: "hel"},
		{Text: "hello"},
		{Text: "hello wor"},
		{Text: "hello world"},
		{Text: "hello world", IsFinal: true},
	}
	if got := recorder.all(); !equalTranscripts(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	if errs := recorder.errors(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestStreamIgnoresServerEndpointingByDefault(t *testing.T) {
	server := newListenServer(t, func(conn *websocket.Conn, _ *http.Request) {
		writeMessage(t, conn, `{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"hello"}]}}`)
		writeMessage(t, conn, `{"type":"UtteranceEnd","last_word_end":1.2}`)
		awaitCloseStream(t, conn)
		closeWith(conn, websocket.CloseNormalClosure, "")
	})

	recorder := &transcriptRecorder{}
	stream := openStream(t, server, recorder)

	waitForTranscripts(t, recorder, 1)
	_ = stream.Finish()
	waitForDone(t, stream)

	finals := 0
	for _, transcript := range recorder.all() {
		if transcript.IsFinal {
			finals++
		}
	}
	if finals != 1 {
		t.Fatalf("expected exactly one final transcript, got %d", finals)
	}
}

func TestStreamReportsNoSpeech(t *testing.T) {
	server := newListenServer(t, func(conn *websocket.Conn, _ *http.Request) {
		closeWith(conn, websocket.CloseInternalServerErr, "NET-0001 no audio received")
	})

	recorder := &transcriptRecorder{}
	stream := openStream(t, server, recorder)
	waitForDone(t, stream)

	errs := recorder.errors()
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	if kind := speechtotext.KindOf(errs[0]); kind != speechtotext.NoSpeechDetected {
		t.Fatalf("expected no speech detected, got %s", kind)
	}
	if got := recorder.all(); len(got) != 0 {
		t.Fatalf("expected no transcripts, got %v", got)
	}
}

func TestStreamCancelSuppressesCallbacks(t *testing.T) {
	release := make(chan struct{})
	server := newListenServer(t, func(conn *websocket.Conn, _ *http.Request) {
		<-release
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"late"}]}}`))
	})
	defer close(release)

	recorder := &transcriptRecorder{}
	stream := openStream(t, server, recorder)

	stream.Cancel()
	stream.Cancel()
	waitForDone(t, stream)

	if got := recorder.all(); len(got) != 0 {
		t.Fatalf("expected no transcripts after cancel, got %v", got)
	}
	if errs := recorder.errors(); len(errs) != 0 {
		t.Fatalf("expected no errors after cancel, got %v", errs)
	}
	if err := stream.Feed(audio.NewFrame(make([]int16, 160), 1)); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected feed after cancel to fail, got %v", err)
	}
}

func TestStreamSendsEncodedFrames(t *testing.T) {
	received := make(chan []byte, 1)
	query := make(chan string, 1)
	server := newListenServer(t, func(conn *websocket.Conn, r *http.Request) {
		query <- r.URL.RawQuery
		_, msg, err := conn.ReadMessage()
		if err == nil {
			received <- msg
		}
		awaitCloseStream(t, conn)
		closeWith(conn, websocket.CloseNormalClosure, "")
	})

	recorder := &transcriptRecorder{}
	telephone := audio.EncodingInfo{SampleRate: 8000, Channels: 1, Format: audio.EncodingLinear16}
	stream := openStreamWithEncoding(t, server, recorder, telephone, WithWireFormat("mulaw"))

	if err := stream.Feed(audio.NewFrame(make([]int16, 160), 1)); err != nil {
		t.Fatalf("expected feed to succeed, got %v", err)
	}

	select {
	case msg := <-received:
		if len(msg) != 160 {
			t.Fatalf("expected 160 mulaw bytes, got %d", len(msg))
		}
	case <-time.After(time.Second):
		t.Fatalf("expected server to receive audio")
	}

	rawQuery := <-query
	if !strings.Contains(rawQuery, "encoding=mulaw") || !strings.Contains(rawQuery, "sample_rate=8000") {
		t.Fatalf("expected mulaw at 8kHz in query, got %s", rawQuery)
	}

	_ = stream.Finish()
	waitForDone(t, stream)
}

func TestOpenClassifiesHandshakeFailures(t *testing.T) {
	testCases := []struct {
		status   int
		expected speechtotext.ErrorKind
	}{
		{status: http.StatusServiceUnavailable, expected: speechtotext.ServiceUnavailable},
		{status: http.StatusTooManyRequests, expected: speechtotext.ServiceUnavailable},
		{status: http.StatusUnauthorized, expected: speechtotext.Other},
	}

	for _, testCase := range testCases {
		t.Run(http.StatusText(testCase.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(testCase.status)
			}))
			defer server.Close()

			recognizer := NewRecognizer(WithAPIKey("test"), WithListenURL(wsURL(server)))
			_, err := recognizer.Open(context.Background())
			if kind := speechtotext.KindOf(err); kind != testCase.expected {
				t.Fatalf("expected %s, got %s (%v)", testCase.expected, kind, err)
			}
		})
	}
}

func TestOpenWithUnreachableServerIsConnectionIssue(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(server)
	server.Close()

	_, err := NewRecognizer(WithAPIKey("test"), WithListenURL(url)).Open(context.Background())
	if kind := speechtotext.KindOf(err); kind != speechtotext.ConnectionIssue {
		t.Fatalf("expected connection issue, got %s (%v)", kind, err)
	}
}

func TestClassifyCloseError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected speechtotext.ErrorKind
		code     string
	}{
		{name: "normal", err: &websocket.CloseError{Code: websocket.CloseNormalClosure}},
		{name: "no audio", err: &websocket.CloseError{Code: 1011, Text: "NET-0001"}, expected: speechtotext.NoSpeechDetected, code: "NET-0001"},
		{name: "try again later", err: &websocket.CloseError{Code: websocket.CloseTryAgainLater}, expected: speechtotext.ServiceUnavailable, code: "1013"},
		{name: "abnormal", err: &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, expected: speechtotext.ConnectionIssue, code: "1006"},
		{name: "bad data", err: &websocket.CloseError{Code: 1008, Text: "DATA-0000 invalid audio"}, expected: speechtotext.Other, code: "DATA-0000"},
		{name: "network", err: errors.New("read: connection reset"), expected: speechtotext.ConnectionIssue},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := classifyCloseError(testCase.err)
			if testCase.expected == "" {
				if got != nil {
					t.Fatalf("expected no error, got %v", got)
				}
				return
			}
			if got == nil || got.Kind != testCase.expected || got.Code != testCase.code {
				t.Fatalf("expected %s (%s), got %v", testCase.expected, testCase.code, got)
			}
		})
	}
}

type transcriptRecorder struct {
	mu          sync.Mutex
	transcripts []speechtotext.Transcript
	errs        []error
}

func (r *transcriptRecorder) onTranscript(transcript speechtotext.Transcript) {
	r.mu.Lock()
	r.transcripts = append(r.transcripts, transcript)
	r.mu.Unlock()
}

func (r *transcriptRecorder) onError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *transcriptRecorder) all() []speechtotext.Transcript {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]speechtotext.Transcript(nil), r.transcripts...)
}

func (r *transcriptRecorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func newListenServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func openStream(t *testing.T, server *httptest.Server, recorder *transcriptRecorder, opts ...RecognizerOption) speechtotext.Stream {
	t.Helper()
	return openStreamWithEncoding(t, server, recorder, audio.GetDefaultEncodingInfo(), opts...)
}

func openStreamWithEncoding(t *testing.T, server *httptest.Server, recorder *transcriptRecorder, encoding audio.EncodingInfo, opts ...RecognizerOption) speechtotext.Stream {
	t.Helper()

	opts = append([]RecognizerOption{WithAPIKey("test"), WithListenURL(wsURL(server))}, opts...)
	stream, err := NewRecognizer(opts...).Open(context.Background(),
		speechtotext.WithEncodingInfo(encoding),
		speechtotext.WithTranscriptCallback(recorder.onTranscript),
		speechtotext.WithErrorCallback(recorder.onError),
	)
	if err != nil {
		t.Fatalf("expected stream to open, got %v", err)
	}
	return stream
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func writeResults(t *testing.T, conn *websocket.Conn, transcript string, isFinal bool) {
	t.Helper()

	final := "false"
	if isFinal {
		final = "true"
	}
	writeMessage(t, conn, `{"type":"Results","is_final":`+final+`,"channel":{"alternatives":[{"transcript":"`+transcript+`"}]}}`)
}

func writeMessage(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Errorf("failed to write message: %v", err)
	}
}

// awaitCloseStream reads until the client asks to close the stream.
func awaitCloseStream(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType == websocket.TextMessage && strings.Contains(string(msg), "CloseStream") {
			return
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
	// give the client a moment to read the close frame before the socket
	// is torn down
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, _ = conn.ReadMessage()
}

func waitForTranscripts(t *testing.T, recorder *transcriptRecorder, count int) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(recorder.all()) >= count {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d transcripts, got %v", count, recorder.all())
}

func waitForDone(t *testing.T, stream speechtotext.Stream) {
	t.Helper()

	select {
	case <-stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for stream to close")
	}
}

func equalTranscripts(a, b []speechtotext.Transcript) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
