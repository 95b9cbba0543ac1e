// Package session implements the practice session state machine.
//
// A [Session] binds one scenario to a transcript and moves through the
// phases Initializing, Chatting, RetryGated and Reporting. Conversation
// scenarios gate replies behind corrections: a corrected submission keeps the
// session in RetryGated until a later submission passes the check. Listening
// scenarios replace the gate with a story quiz (see [ListeningPhase]).
//
// Every operation that waits on the generation service follows the same
// pattern: validate and mark the session busy under the lock, release the
// lock for the request, then re-acquire it and apply the result only if the
// session's generation token is unchanged. [Session.Close] rotates the token,
// so a response that arrives after the session was abandoned is dropped with
// [ErrStale] instead of mutating state.
//
// All exported methods are safe for concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/lingoxa/internal/observe"
	"github.com/MrWong99/lingoxa/internal/scenario"
	"github.com/MrWong99/lingoxa/internal/transcript"
	"github.com/MrWong99/lingoxa/internal/tutor"
)

var (
	// ErrInsufficientContent is returned by Finish when the transcript holds
	// one message or fewer. No report request is issued.
	ErrInsufficientContent = errors.New("session: not enough conversation for a report")

	// ErrBusy is returned when a submission arrives while another request
	// of the same session is outstanding.
	ErrBusy = errors.New("session: a request is already in progress")

	// ErrStale is returned when a result arrives for a session that was
	// closed while the request was in flight. The result is discarded.
	ErrStale = errors.New("session: result belongs to an abandoned session")

	// ErrWrongPhase is returned when an operation is not allowed in the
	// current phase.
	ErrWrongPhase = errors.New("session: operation not allowed in current phase")

	// ErrNoSession is returned when a session ID is unknown.
	ErrNoSession = errors.New("session: no such session")

	// ErrEmptyInput is returned when a submission is blank.
	ErrEmptyInput = errors.New("session: empty submission")
)

// ApologyText is appended as the AI turn when a correction or reply request
// fails.
const ApologyText = "I'm sorry, I encountered an error. Please try again."

// StoryPrefix marks the story message of a listening session.
const StoryPrefix = "(Story) "

const defaultHintWindow = 6

// Phase is the high-level state of a session.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseChatting     Phase = "chatting"
	PhaseRetryGated   Phase = "retry_gated"
	PhaseReporting    Phase = "reporting"

	// PhaseClosed is entered by Close. Nothing is accepted afterwards.
	PhaseClosed Phase = "closed"
)

// ReportStatus is the sub-state of PhaseReporting.
type ReportStatus string

const (
	ReportGenerating ReportStatus = "generating"
	ReportReady      ReportStatus = "ready"
	ReportFailed     ReportStatus = "failed"
)

// Generator is the subset of [tutor.Tutor] a session uses.
type Generator interface {
	Opening(ctx context.Context, p tutor.Persona) (tutor.Opening, error)
	Reply(ctx context.Context, p tutor.Persona, history []transcript.Message, text string) (string, error)
	Correct(ctx context.Context, text string, history []transcript.Message) (*transcript.Correction, error)
	Hints(ctx context.Context, p tutor.Persona, recent []transcript.Message) ([]string, error)
	Story(ctx context.Context, p tutor.Persona, history []transcript.Message) (tutor.Story, error)
	Evaluate(ctx context.Context, story, question, answer string) (tutor.Evaluation, error)
	Report(ctx context.Context, msgs []transcript.Message) (tutor.Report, error)
}

var _ Generator = (*tutor.Tutor)(nil)

// Config holds the parameters of a new session.
type Config struct {
	// ID identifies the session. A UUID is generated when empty.
	ID string

	Scenario scenario.Scenario

	// Reversed swaps the learner's and the AI's roles. It is ignored for
	// scenarios that skip role selection.
	Reversed bool

	// Destination enables travel mode for conversation scenarios.
	Destination string

	// HintWindow is the number of recent messages sent with a hint
	// request. Default: 6.
	HintWindow int

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Session is one live practice instance.
type Session struct {
	id         string
	persona    tutor.Persona
	gen        Generator
	metrics    *observe.Metrics
	hintWindow int
	startedAt  time.Time

	hintGroup singleflight.Group

	mu         sync.Mutex
	generation string
	phase      Phase
	busy       bool
	transcript *transcript.Transcript
	aiName     string
	hints      []string

	listening ListeningPhase
	story     string

	report       *tutor.Report
	reportStatus ReportStatus
	reportErr    string
}

// Start creates a session and issues its opening line. If the opening
// request fails no session is returned.
func Start(ctx context.Context, gen Generator, cfg Config) (*Session, error) {
	sc := cfg.Scenario
	reversed := cfg.Reversed && !sc.SkipsRoleSelection()
	destination := scenario.NormalizeDestination(cfg.Destination)
	if sc.Kind != scenario.KindConversation {
		destination = ""
	}

	s := &Session{
		id:         cfg.ID,
		persona:    tutor.Persona{Scenario: sc, Reversed: reversed, Destination: destination},
		gen:        gen,
		metrics:    cfg.Metrics,
		hintWindow: cfg.HintWindow,
		startedAt:  time.Now().UTC(),
		generation: uuid.NewString(),
		phase:      PhaseInitializing,
		transcript: transcript.New(),
		aiName:     sc.AITutorName,
		hints:      sc.Phrases(),
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.hintWindow <= 0 {
		s.hintWindow = defaultHintWindow
	}

	opening, err := gen.Opening(ctx, s.persona)
	if err != nil {
		return nil, fmt.Errorf("session: opening line: %w", err)
	}

	s.transcript.AppendMessage(transcript.Message{
		Role:          transcript.RoleAI,
		Text:          opening.Text,
		ExtractedName: opening.ExtractedName,
	})
	if opening.ExtractedName != "" {
		s.aiName = opening.ExtractedName
	}
	s.phase = PhaseChatting
	if sc.Kind == scenario.KindListening {
		s.listening = ListeningReady
	}

	observe.Logger(ctx).Info("session started",
		"session_id", s.id,
		"scenario", sc.ID,
		"kind", sc.Kind,
		"reversed", reversed,
		"destination", destination,
	)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Scenario returns the bound scenario.
func (s *Session) Scenario() scenario.Scenario { return s.persona.Scenario }

// AIName returns the AI's display name, which a generated opening may have
// rebound.
func (s *Session) AIName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aiName
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []transcript.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Messages()
}

// Message returns the transcript message with the given ID.
func (s *Session) Message(id string) (transcript.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Get(id)
}

// Export renders the transcript as plain text.
func (s *Session) Export() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return transcript.Export(s.transcript.Messages(), s.aiName)
}

// Close abandons the session. Requests still in flight finish with
// [ErrStale] and leave no trace.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return
	}
	s.generation = uuid.NewString()
	s.phase = PhaseClosed
	s.busy = false
	observe.Logger(context.Background()).Info("session closed", "session_id", s.id)
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID          string               `json:"id"`
	ScenarioID  string               `json:"scenario_id"`
	Title       string               `json:"title"`
	Kind        scenario.Kind        `json:"kind"`
	Reversed    bool                 `json:"role_reversed"`
	Destination string               `json:"destination,omitempty"`
	UserRole    string               `json:"user_role"`
	AIRole      string               `json:"ai_role"`
	AIName      string               `json:"ai_name"`
	Phase       Phase                `json:"phase"`
	Listening   ListeningPhase       `json:"listening_phase,omitempty"`
	Busy        bool                 `json:"busy"`
	Hints       []string             `json:"hints"`
	Messages    []transcript.Message `json:"messages"`
	StartedAt   time.Time            `json:"started_at"`

	ReportStatus ReportStatus  `json:"report_status,omitempty"`
	Report       *tutor.Report `json:"report,omitempty"`
	ReportError  string        `json:"report_error,omitempty"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	userRole, aiRole := s.persona.Scenario.Roles(s.persona.Reversed)
	return Snapshot{
		ID:           s.id,
		ScenarioID:   s.persona.Scenario.ID,
		Title:        s.persona.Scenario.Title,
		Kind:         s.persona.Scenario.Kind,
		Reversed:     s.persona.Reversed,
		Destination:  s.persona.Destination,
		UserRole:     userRole,
		AIRole:       aiRole,
		AIName:       s.aiName,
		Phase:        s.phase,
		Listening:    s.listening,
		Busy:         s.busy,
		Hints:        append([]string(nil), s.hints...),
		Messages:     s.transcript.Messages(),
		StartedAt:    s.startedAt,
		ReportStatus: s.reportStatus,
		Report:       s.report,
		ReportError:  s.reportErr,
	}
}

// beginLocked marks the session busy and returns the generation token the result
// must be applied under. s.mu must be held.
func (s *Session) beginLocked() (string, error) {
	if s.phase == PhaseClosed {
		return "", ErrWrongPhase
	}
	if s.busy {
		return "", ErrBusy
	}
	s.busy = true
	return s.generation, nil
}

// staleLocked reports whether token no longer matches the session. s.mu
// must be held.
func (s *Session) staleLocked(token string) bool {
	return token != s.generation
}

// Submit processes one learner submission. In conversation sessions it runs
// the correction check and, if nothing was corrected, the reply. In listening
// sessions it evaluates the answer to the current question.
//
// The returned messages are the ones added or updated by this call.
func (s *Session) Submit(ctx context.Context, text string) ([]transcript.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	if s.persona.Scenario.Kind == scenario.KindListening {
		return s.answer(ctx, text)
	}
	return s.converse(ctx, text)
}
