package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/lingoxa/internal/archive"
	"github.com/MrWong99/lingoxa/internal/builder"
	"github.com/MrWong99/lingoxa/internal/observe"
	"github.com/MrWong99/lingoxa/internal/scenario"
	"github.com/MrWong99/lingoxa/internal/session"
	"github.com/MrWong99/lingoxa/internal/tutor"
)

// archiveTimeout bounds the write of a finished session to the archive.
const archiveTimeout = 10 * time.Second

// Entry is one live session together with its sentence builder.
type Entry struct {
	Session *session.Session
	Builder *builder.Builder

	// StartedAt is when the session was registered.
	StartedAt time.Time
}

// StartRequest selects the scenario and role of a new session.
type StartRequest struct {
	ScenarioID   string `json:"scenario_id"`
	RoleReversed bool   `json:"role_reversed"`
	Destination  string `json:"destination"`
}

// SessionManager owns the live practice sessions, keyed by session ID.
// All exported methods are safe for concurrent use.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Entry

	// Dependencies injected at construction.
	generator  session.Generator
	planner    builder.Planner
	catalog    *scenario.Catalog
	archive    archive.Store
	metrics    *observe.Metrics
	hintWindow int
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	Generator session.Generator
	Planner   builder.Planner
	Catalog   *scenario.Catalog

	// Archive receives ready reports. Nil disables archiving.
	Archive archive.Store

	Metrics    *observe.Metrics
	HintWindow int
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	sm := &SessionManager{
		sessions:   make(map[string]*Entry),
		generator:  cfg.Generator,
		planner:    cfg.Planner,
		catalog:    cfg.Catalog,
		archive:    cfg.Archive,
		metrics:    cfg.Metrics,
		hintWindow: cfg.HintWindow,
	}
	if sm.metrics == nil {
		sm.metrics = observe.DefaultMetrics()
	}
	return sm
}

// Start looks up the scenario, issues the opening line and registers the
// session. If the opening request fails nothing is registered.
func (sm *SessionManager) Start(ctx context.Context, req StartRequest) (*Entry, error) {
	if sm.generator == nil {
		return nil, ErrNoLLM
	}
	sc, err := sm.catalog.Get(req.ScenarioID)
	if err != nil {
		return nil, fmt.Errorf("app: start session %q: %w", req.ScenarioID, err)
	}

	sess, err := session.Start(ctx, sm.generator, session.Config{
		ID:          uuid.NewString(),
		Scenario:    sc,
		Reversed:    req.RoleReversed,
		Destination: req.Destination,
		HintWindow:  sm.hintWindow,
		Metrics:     sm.metrics,
	})
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		Session:   sess,
		Builder:   builder.New(sm.planner),
		StartedAt: time.Now().UTC(),
	}
	sm.mu.Lock()
	sm.sessions[sess.ID()] = entry
	n := len(sm.sessions)
	sm.mu.Unlock()

	sm.metrics.ActiveSessions.Add(ctx, 1)
	slog.Info("session registered", "session_id", sess.ID(), "scenario", sc.ID, "active", n)
	return entry, nil
}

// Get returns the live session with the given ID.
func (sm *SessionManager) Get(id string) (*Entry, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	e, ok := sm.sessions[id]
	if !ok {
		return nil, session.ErrNoSession
	}
	return e, nil
}

// Finish produces the session report and, when it is ready, archives the
// session. Archive failures never fail the call.
func (sm *SessionManager) Finish(ctx context.Context, id string) (tutor.Report, error) {
	e, err := sm.Get(id)
	if err != nil {
		return tutor.Report{}, err
	}
	report, err := e.Session.Finish(ctx)
	if err != nil {
		return tutor.Report{}, err
	}
	if sm.archive != nil {
		sm.archiveSession(ctx, e.Session, report)
	}
	return report, nil
}

func (sm *SessionManager) archiveSession(ctx context.Context, sess *session.Session, report tutor.Report) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	snap := sess.Snapshot()
	rec := archive.Record{
		SessionID:    snap.ID,
		ScenarioID:   snap.ScenarioID,
		Title:        snap.Title,
		RoleReversed: snap.Reversed,
		Destination:  snap.Destination,
		Messages:     snap.Messages,
		Report:       report,
		CreatedAt:    time.Now().UTC(),
	}
	if err := sm.archive.Save(ctx, rec); err != nil {
		observe.Logger(ctx).Warn("archive session failed", "session_id", snap.ID, "err", err)
	}
}

// Exit abandons the session and forgets it. Requests still in flight for
// it finish with [session.ErrStale].
func (sm *SessionManager) Exit(ctx context.Context, id string) error {
	sm.mu.Lock()
	e, ok := sm.sessions[id]
	delete(sm.sessions, id)
	sm.mu.Unlock()
	if !ok {
		return session.ErrNoSession
	}

	e.Builder.Close()
	e.Session.Close()
	sm.metrics.ActiveSessions.Add(ctx, -1)
	return nil
}

// List returns snapshots of all live sessions, oldest first.
func (sm *SessionManager) List() []session.Snapshot {
	sm.mu.Lock()
	entries := make([]*Entry, 0, len(sm.sessions))
	for _, e := range sm.sessions {
		entries = append(entries, e)
	}
	sm.mu.Unlock()

	slices.SortFunc(entries, func(a, b *Entry) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Session.ID(), b.Session.ID())
	})
	out := make([]session.Snapshot, len(entries))
	for i, e := range entries {
		out[i] = e.Session.Snapshot()
	}
	return out
}

// Len returns the number of live sessions.
func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// CloseAll exits every live session.
func (sm *SessionManager) CloseAll(ctx context.Context) {
	sm.mu.Lock()
	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	sm.mu.Unlock()

	for _, id := range ids {
		if err := sm.Exit(ctx, id); err != nil && !errors.Is(err, session.ErrNoSession) {
			slog.Warn("close session failed", "session_id", id, "err", err)
		}
	}
}
