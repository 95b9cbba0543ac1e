// Package api serves the lingoxa HTTP API.
//
// Routes use net/http method patterns. JSON bodies are decoded strictly and
// every error is answered as {"error": "..."} with a status derived from the
// error chain (see statusFor). The voice channel of a session is a
// websocket; see voice.go.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/lingoxa/internal/app"
	"github.com/MrWong99/lingoxa/internal/builder"
	"github.com/MrWong99/lingoxa/internal/health"
	"github.com/MrWong99/lingoxa/internal/observe"
	"github.com/MrWong99/lingoxa/internal/scenario"
	"github.com/MrWong99/lingoxa/internal/session"
	"github.com/MrWong99/lingoxa/internal/speech"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Server routes HTTP requests to an [app.App].
type Server struct {
	app            *app.App
	metrics        *observe.Metrics
	originPatterns []string
	mux            *http.ServeMux
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics sets the metrics sink of the request middleware. Default:
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithOriginPatterns lists the extra origins allowed to open the voice
// websocket. Same-origin requests are always allowed.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.originPatterns = patterns }
}

// New returns a Server with every route registered.
func New(a *app.App, opts ...Option) *Server {
	s := &Server{app: a, mux: http.NewServeMux()}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.routes()
	return s
}

// Handler returns the routed handler wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	return observe.Middleware(s.metrics)(s.mux)
}

func (s *Server) routes() {
	m := s.mux

	m.HandleFunc("GET /v1/scenarios", s.handleListScenarios)
	m.HandleFunc("GET /v1/scenarios/random", s.handleRandomScenario)
	m.HandleFunc("GET /v1/scenarios/{id}", s.handleGetScenario)
	m.HandleFunc("POST /v1/scenarios", s.handleCreateScenario)
	m.HandleFunc("POST /v1/scenarios/free-chat", s.handleFreeChat)
	m.HandleFunc("GET /v1/topics", s.handleTopics)
	m.HandleFunc("GET /v1/destinations", s.handleDestinations)

	m.HandleFunc("GET /v1/sessions", s.handleListSessions)
	m.HandleFunc("POST /v1/sessions", s.handleStartSession)
	m.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	m.HandleFunc("DELETE /v1/sessions/{id}", s.handleExitSession)
	m.HandleFunc("POST /v1/sessions/{id}/messages", s.handleSubmit)
	m.HandleFunc("POST /v1/sessions/{id}/hints", s.handleHints)
	m.HandleFunc("POST /v1/sessions/{id}/listening/start", s.handleStartListening)
	m.HandleFunc("POST /v1/sessions/{id}/finish", s.handleFinish)
	m.HandleFunc("GET /v1/sessions/{id}/transcript", s.handleTranscript)
	m.HandleFunc("GET /v1/sessions/{id}/voice", s.handleVoice)

	m.HandleFunc("GET /v1/sessions/{id}/builder", s.handleBuilderState)
	m.HandleFunc("POST /v1/sessions/{id}/builder", s.handleBuilderBegin)
	m.HandleFunc("POST /v1/sessions/{id}/builder/parts", s.handleBuilderPart)
	m.HandleFunc("POST /v1/sessions/{id}/builder/choose", s.handleBuilderChoose)
	m.HandleFunc("DELETE /v1/sessions/{id}/builder", s.handleBuilderClose)

	m.HandleFunc("GET /v1/reports", s.handleReports)

	health.New(s.app.Checkers()...).Register(m)
	m.Handle("GET /metrics", promhttp.Handler())
}

// errorBody is the JSON body of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

// statusFor maps an error chain onto an HTTP status. Anything not
// recognised comes from the generation service and is reported as a bad
// gateway.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoSession), errors.Is(err, scenario.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy), errors.Is(err, builder.ErrBusy),
		errors.Is(err, session.ErrStale), errors.Is(err, builder.ErrStale),
		errors.Is(err, speech.ErrBlocked):
		return http.StatusConflict
	case errors.Is(err, session.ErrInsufficientContent), errors.Is(err, session.ErrWrongPhase),
		errors.Is(err, session.ErrEmptyInput), errors.Is(err, builder.ErrWrongState),
		errors.Is(err, scenario.ErrNoConversation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrNoLLM), errors.Is(err, speech.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := observe.Logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Warn("request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// decode reads a JSON body into v. Unknown fields are rejected.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// entry resolves the {id} path value to a live session.
func (s *Server) entry(r *http.Request) (*app.Entry, error) {
	return s.app.Sessions().Get(r.PathValue("id"))
}
