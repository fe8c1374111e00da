package channel

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/timfallmk/disk-space-bridge/internal/logging"
)

// maxEnvelopeBytes bounds a single request line.
const maxEnvelopeBytes = 1 << 20

// Observer is notified of every request a transport serves.
type Observer interface {
	RecordBridgeRequest(transport, status string, duration time.Duration)
}

// StreamServer serves newline-delimited JSON envelopes over a byte stream.
// Requests are answered one at a time, in arrival order.
type StreamServer struct {
	messenger *Messenger
	r         io.Reader
	w         io.Writer
	transport string
	logger    *logging.Logger
	observer  Observer
	writeMu   sync.Mutex
}

// NewStreamServer returns a StreamServer reading requests from r and writing
// responses to w. transport names the stream in logs and metrics.
func NewStreamServer(m *Messenger, r io.Reader, w io.Writer, transport string, logger *logging.Logger) *StreamServer {
	return &StreamServer{
		messenger: m,
		r:         r,
		w:         w,
		transport: transport,
		logger:    logger.WithComponent("bridge").WithFields(map[string]interface{}{"transport": transport}),
	}
}

// SetObserver installs o to receive per-request notifications.
func (s *StreamServer) SetObserver(o Observer) {
	s.observer = o
}

// Serve answers requests until the stream ends or ctx is cancelled. A clean
// end of stream returns nil. A request line longer than maxEnvelopeBytes is
// answered with a Bad Envelope response and skipped.
func (s *StreamServer) Serve(ctx context.Context) error {
	lines := make(chan streamLine)
	readErr := make(chan error, 1)

	go func() {
		readErr <- readLines(s.r, maxEnvelopeBytes, func(l streamLine) bool {
			select {
			case lines <- l:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	s.logger.Info("stream bridge serving")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read %s stream: %w", s.transport, err)
			}
			s.logger.Info("stream bridge closed by peer")
			return nil
		case line := <-lines:
			resp, ok := s.handleLine(ctx, line)
			if !ok {
				continue
			}
			if err := s.write(resp); err != nil {
				return err
			}
		}
	}
}

type streamLine struct {
	data    []byte
	tooLong bool
}

// readLines splits r on newlines and hands each line to emit until emit
// returns false or r is exhausted. Lines over limit bytes are delivered
// without their data and flagged tooLong.
func readLines(r io.Reader, limit int, emit func(streamLine) bool) error {
	br := bufio.NewReaderSize(r, 64*1024)

	var (
		buf     []byte
		tooLong bool
	)

	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(bytes.TrimRight(chunk, "\r\n")) > limit {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil:
			if !emit(streamLine{data: buf, tooLong: tooLong}) {
				return nil
			}
			buf, tooLong = nil, false
		case errors.Is(err, io.EOF):
			if len(buf) > 0 || tooLong {
				emit(streamLine{data: buf, tooLong: tooLong})
			}
			return nil
		default:
			return err
		}
	}
}

func (s *StreamServer) handleLine(ctx context.Context, l streamLine) (Response, bool) {
	start := time.Now()

	if l.tooLong {
		err := fmt.Errorf("request line exceeds %d bytes", maxEnvelopeBytes)
		s.logger.Warn("rejected request envelope", "error", err)
		resp := BadEnvelope("", err)
		s.observe(resp, time.Since(start))
		return resp, true
	}

	line := bytes.TrimSpace(l.data)
	if len(line) == 0 {
		return Response{}, false
	}

	req, err := DecodeRequest(line)
	if err != nil {
		s.logger.Warn("rejected request envelope", "error", err)
		resp := BadEnvelope("", err)
		s.observe(resp, time.Since(start))
		return resp, true
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	resp := s.messenger.Invoke(req)
	duration := time.Since(start)
	s.observe(resp, duration)

	s.logger.WithContext(logging.ContextWithCallID(ctx, req.ID)).Debug("call handled",
		"channel", req.Channel,
		"method", req.Method,
		"status", resp.Status().String(),
		"duration", duration,
	)

	return resp, true
}

func (s *StreamServer) observe(resp Response, d time.Duration) {
	if s.observer != nil {
		s.observer.RecordBridgeRequest(s.transport, resp.Status().String(), d)
	}
}

func (s *StreamServer) write(resp Response) error {
	data, err := EncodeResponse(resp)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("write %s stream: %w", s.transport, err)
	}
	return nil
}
