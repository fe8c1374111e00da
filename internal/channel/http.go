package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/timfallmk/disk-space-bridge/internal/logging"
)

// CallIDHeader carries the call correlation ID in both directions.
const CallIDHeader = "X-Call-ID"

// HealthFunc reports overall health and a JSON-encodable detail payload.
type HealthFunc func() (healthy bool, details any)

// MetricsFunc returns a JSON-encodable metrics snapshot.
type MetricsFunc func() any

// HTTPServer exposes a Messenger over HTTP.
type HTTPServer struct {
	messenger *Messenger
	logger    *logging.Logger
	observer  Observer
	health    HealthFunc
	metrics   MetricsFunc
	timeout   time.Duration
	router    chi.Router
}

// NewHTTPServer builds the router for m. timeout bounds each request.
func NewHTTPServer(m *Messenger, logger *logging.Logger, timeout time.Duration) *HTTPServer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &HTTPServer{
		messenger: m,
		logger:    logger.WithComponent("bridge").WithFields(map[string]interface{}{"transport": "http"}),
		timeout:   timeout,
	}
	s.router = s.routes()
	return s
}

// SetObserver installs o to receive per-request notifications.
func (s *HTTPServer) SetObserver(o Observer) {
	s.observer = o
}

// SetHealthFunc installs the function backing GET /health.
func (s *HTTPServer) SetHealthFunc(fn HealthFunc) {
	s.health = fn
}

// SetMetricsFunc installs the function backing GET /metrics. Without one the
// route answers 404.
func (s *HTTPServer) SetMetricsFunc(fn MetricsFunc) {
	s.metrics = fn
}

// Handler returns the HTTP handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath)
	r.Use(s.callID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/channels", s.handleChannels)
	r.Post("/invoke", s.handleInvoke)
	r.Post("/channels/{channel}/{method}", s.handleMethod)

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *HTTPServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: s.timeout,
		ReadTimeout:       s.timeout,
		WriteTimeout:      s.timeout + time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http bridge listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http bridge: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http bridge shutdown: %w", err)
		}
		return nil
	}
}

func (s *HTTPServer) callID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CallIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(CallIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithCallID(r.Context(), id)))
	})
}

func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.WithContext(r.Context()).Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"size", ww.BytesWritten(),
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *HTTPServer) handleMethod(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := logging.CallIDFromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeBytes))
	if err != nil {
		s.respond(w, BadEnvelope(id, err), start)
		return
	}

	args, err := DecodeArgs(body)
	if err != nil {
		s.respond(w, BadEnvelope(id, err), start)
		return
	}

	req := Request{
		ID:      id,
		Channel: chi.URLParam(r, "channel"),
		Method:  chi.URLParam(r, "method"),
		Args:    args,
	}
	s.respond(w, s.messenger.Invoke(req), start)
}

func (s *HTTPServer) handleInvoke(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := logging.CallIDFromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeBytes))
	if err != nil {
		s.respond(w, BadEnvelope(id, err), start)
		return
	}

	req, err := DecodeRequest(body)
	if err != nil {
		s.respond(w, BadEnvelope(id, err), start)
		return
	}
	if req.ID == "" {
		req.ID = id
	}

	s.respond(w, s.messenger.Invoke(req), start)
}

type healthResponse struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Channels  []string `json:"channels"`
	Checks    any      `json:"checks,omitempty"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Channels:  s.messenger.Channels(),
	}
	code := http.StatusOK

	if s.health != nil {
		healthy, details := s.health()
		resp.Checks = details
		if !healthy {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, resp)
}

func (s *HTTPServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": s.metrics()})
}

func (s *HTTPServer) handleChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"channels": s.messenger.Channels()})
}

func (s *HTTPServer) respond(w http.ResponseWriter, resp Response, start time.Time) {
	if s.observer != nil {
		s.observer.RecordBridgeRequest("http", resp.Status().String(), time.Since(start))
	}
	writeJSON(w, StatusCode(resp), resp)
}

// StatusCode maps a Response onto an HTTP status.
func StatusCode(resp Response) int {
	switch resp.Status() {
	case StatusNotImplemented:
		return http.StatusNotImplemented
	case StatusError:
		switch resp.Error.Code {
		case CodeBadEnvelope, CodeBadArguments:
			return http.StatusBadRequest
		default:
			return http.StatusInternalServerError
		}
	default:
		return http.StatusOK
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
