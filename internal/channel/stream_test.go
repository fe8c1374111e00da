package channel

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timfallmk/disk-space-bridge/internal/logging"
)

func discardLogger() *logging.Logger {
	return logging.NewLoggerWithWriter(logging.DefaultConfig(), io.Discard)
}

type observedRequest struct {
	transport string
	status    string
}

type fakeObserver struct {
	mu   sync.Mutex
	seen []observedRequest
}

func (o *fakeObserver) RecordBridgeRequest(transport, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, observedRequest{transport: transport, status: status})
}

func (o *fakeObserver) requests() []observedRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]observedRequest(nil), o.seen...)
}

func decodeResponses(t *testing.T, data []byte) []map[string]any {
	t.Helper()

	var out []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m), "line: %s", scanner.Text())
		out = append(out, m)
	}
	return out
}

func TestStreamServerServe(t *testing.T) {
	m := NewMessenger("main")
	m.SetMethodCallHandler("main", echoHandler)

	input := strings.Join([]string{
		`{"id":"1","method":"echo","args":{"path":"C:\\"}}`,
		``,
		`   `,
		`not json`,
		`{"method":"echo","args":"x"}`,
		`{"id":"3","method":"missing"}`,
		`{"id":"4","channel":"main","method":"fail"}`,
	}, "\n")

	var out bytes.Buffer
	obs := &fakeObserver{}
	s := NewStreamServer(m, strings.NewReader(input), &out, "stdio", discardLogger())
	s.SetObserver(obs)

	require.NoError(t, s.Serve(context.Background()))

	responses := decodeResponses(t, out.Bytes())
	require.Len(t, responses, 5)

	assert.Equal(t, "1", responses[0]["id"])
	assert.Equal(t, map[string]any{"path": `C:\`}, responses[0]["result"])

	badEnvelope := responses[1]["error"].(map[string]any)
	assert.Equal(t, CodeBadEnvelope, badEnvelope["code"])

	id, ok := responses[2]["id"].(string)
	require.True(t, ok, "a missing id is assigned")
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, "x", responses[2]["result"])

	assert.Equal(t, true, responses[3]["not_implemented"])
	assert.Equal(t, "failed", responses[4]["error"].(map[string]any)["message"])

	statuses := make([]string, 0, 5)
	for _, r := range obs.requests() {
		assert.Equal(t, "stdio", r.transport)
		statuses = append(statuses, r.status)
	}
	assert.Equal(t, []string{"success", "error", "success", "not_implemented", "error"}, statuses)
}

func TestStreamServerCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	s := NewStreamServer(NewMessenger("main"), pr, io.Discard, "stdio", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestStreamServerWriteError(t *testing.T) {
	m := NewMessenger("main")
	m.SetMethodCallHandler("main", echoHandler)

	s := NewStreamServer(m, strings.NewReader(`{"method":"echo"}`+"\n"), failingWriter{}, "stdio", discardLogger())

	err := s.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestStreamServerOversizedLine(t *testing.T) {
	m := NewMessenger("main")
	m.SetMethodCallHandler("main", echoHandler)

	input := `{"method":"echo","args":"` + strings.Repeat("a", maxEnvelopeBytes) + `"}` + "\n" +
		`{"id":"next","method":"echo","args":"ok"}` + "\n"

	var out bytes.Buffer
	obs := &fakeObserver{}
	s := NewStreamServer(m, strings.NewReader(input), &out, "serial", discardLogger())
	s.SetObserver(obs)

	require.NoError(t, s.Serve(context.Background()))

	responses := decodeResponses(t, out.Bytes())
	require.Len(t, responses, 2)

	rejected := responses[0]["error"].(map[string]any)
	assert.Equal(t, CodeBadEnvelope, rejected["code"])
	assert.Contains(t, rejected["message"], "exceeds")

	assert.Equal(t, "next", responses[1]["id"])
	assert.Equal(t, "ok", responses[1]["result"])
	assert.Len(t, obs.requests(), 2)
}

func TestReadLines(t *testing.T) {
	const limit = 8

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"unterminated tail", "ab\ncd", []string{"ab\n", "cd"}},
		{"crlf at limit", "12345678\r\n", []string{"12345678\r\n"}},
		{"over limit", "123456789\nok\n", []string{"<too long>", "ok\n"}},
		{"over limit at eof", "ok\n123456789", []string{"ok\n", "<too long>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			err := readLines(strings.NewReader(tt.input), limit, func(l streamLine) bool {
				if l.tooLong {
					got = append(got, "<too long>")
				} else {
					got = append(got, string(l.data))
				}
				return true
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadLinesStopsWhenEmitDeclines(t *testing.T) {
	calls := 0
	err := readLines(strings.NewReader("a\nb\nc\n"), 8, func(streamLine) bool {
		calls++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
