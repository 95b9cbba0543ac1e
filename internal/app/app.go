// Package app wires the lingoxa subsystems into a running server.
//
// The App struct owns the full lifecycle: New builds the scenario catalog,
// the tutor, the session registry and the report archive; Run serves HTTP
// and follows config changes until its context ends; Shutdown releases
// everything in order.
//
// For testing, inject doubles via functional options (WithArchive,
// WithMetrics, ...). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/lingoxa/internal/archive"
	"github.com/MrWong99/lingoxa/internal/config"
	"github.com/MrWong99/lingoxa/internal/health"
	"github.com/MrWong99/lingoxa/internal/observe"
	"github.com/MrWong99/lingoxa/internal/scenario"
	"github.com/MrWong99/lingoxa/internal/speech"
	"github.com/MrWong99/lingoxa/internal/transcript/phonetic"
	"github.com/MrWong99/lingoxa/internal/tutor"
	"github.com/MrWong99/lingoxa/pkg/audio"
	"github.com/MrWong99/lingoxa/pkg/provider/llm"
	"github.com/MrWong99/lingoxa/pkg/provider/stt"
	"github.com/MrWong99/lingoxa/pkg/provider/tts"
	"github.com/MrWong99/lingoxa/pkg/types"
)

// ErrNoLLM is returned by operations that need the generation service when
// no LLM provider is configured.
var ErrNoLLM = errors.New("app: no LLM provider configured")

// shutdownTimeout bounds the graceful HTTP shutdown at the end of Run.
const shutdownTimeout = 15 * time.Second

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by the CLI via the config registry.
type Providers struct {
	LLM llm.Provider
	STT stt.Provider
	TTS tts.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems, initialised in New and torn down in Shutdown.
	catalog  *scenario.Catalog
	tutor    *tutor.Tutor
	sessions *SessionManager
	archive  archive.Store
	pinger   health.Pinger
	metrics  *observe.Metrics
	level    *slog.LevelVar
	watcher  *config.Watcher

	// userScenarios are the IDs added from cfg.Scenarios, which the config
	// watcher may replace or remove.
	mu            sync.Mutex
	userScenarios map[string]struct{}

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithArchive injects a report archive instead of connecting to
// archive.postgres_dsn.
func WithArchive(s archive.Store) Option {
	return func(a *App) { a.archive = s }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel hands New the level variable of the process logger so
// config reloads can change it.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithWatcher makes Run follow config changes reported by w.
func WithWatcher(w *config.Watcher) Option {
	return func(a *App) { a.watcher = w }
}

// New creates an App by wiring all subsystems together. The providers come
// from the CLI (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:           cfg,
		providers:     providers,
		userScenarios: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initCatalog(); err != nil {
		return nil, fmt.Errorf("app: init catalog: %w", err)
	}
	if err := a.initArchive(ctx); err != nil {
		return nil, fmt.Errorf("app: init archive: %w", err)
	}

	smCfg := SessionManagerConfig{
		Catalog:    a.catalog,
		Archive:    a.archive,
		Metrics:    a.metrics,
		HintWindow: cfg.Practice.Hints(),
	}
	if providers.LLM != nil {
		a.tutor = tutor.New(providers.LLM,
			tutor.WithNativeLanguage(cfg.Practice.Language()),
			tutor.WithContextMessages(cfg.Practice.Context()),
			tutor.WithRequestTimeout(cfg.Practice.Timeout()),
			tutor.WithMetrics(a.metrics),
		)
		smCfg.Generator = a.tutor
		smCfg.Planner = a.tutor
	}
	a.sessions = NewSessionManager(smCfg)

	return a, nil
}

// initCatalog loads the embedded scenarios and appends the configured ones.
func (a *App) initCatalog() error {
	catalog, err := scenario.Builtin()
	if err != nil {
		return err
	}
	for _, s := range a.cfg.Scenarios {
		added, err := catalog.Add(s)
		if err != nil {
			return err
		}
		a.userScenarios[added.ID] = struct{}{}
	}
	a.catalog = catalog
	slog.Info("scenario catalog loaded", "scenarios", catalog.Len(), "from_config", len(a.cfg.Scenarios))
	return nil
}

// initArchive connects the Postgres archive when configured. Every store is
// wrapped in an [archive.Guard] so archive outages never fail a session.
func (a *App) initArchive(ctx context.Context) error {
	if a.archive == nil && a.cfg.Archive.PostgresDSN != "" {
		pg, err := archive.NewPostgres(ctx, a.cfg.Archive.PostgresDSN)
		if err != nil {
			return err
		}
		a.archive = pg
		a.pinger = pg
		a.closers = append(a.closers, func() error {
			pg.Close()
			return nil
		})
	}
	if a.archive != nil {
		if p, ok := a.archive.(health.Pinger); ok {
			a.pinger = p
		}
		a.archive = archive.NewGuard(a.archive)
	}
	return nil
}

// Config returns the config the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Catalog returns the scenario catalog.
func (a *App) Catalog() *scenario.Catalog { return a.catalog }

// Sessions returns the live session registry.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Providers returns the configured providers.
func (a *App) Providers() *Providers { return a.providers }

// NativeLanguage returns the learner's configured native language.
func (a *App) NativeLanguage() string { return a.cfg.Practice.Language() }

// SynthesizeScenario derives a custom conversation scenario from a
// free-text description and adds it to the catalog.
func (a *App) SynthesizeScenario(ctx context.Context, description string) (scenario.Scenario, error) {
	if a.tutor == nil {
		return scenario.Scenario{}, ErrNoLLM
	}
	sc, err := a.tutor.Synthesize(ctx, description)
	if err != nil {
		return scenario.Scenario{}, err
	}
	adopted, err := a.catalog.AdoptCustom(sc, description)
	if err != nil {
		return scenario.Scenario{}, fmt.Errorf("app: adopt scenario: %w", err)
	}
	observe.Logger(ctx).Info("custom scenario created", "scenario", adopted.ID, "title", adopted.Title)
	return adopted, nil
}

// FreeChat synthesizes a free conversation scenario about topic.
func (a *App) FreeChat(ctx context.Context, topic string) (scenario.Scenario, error) {
	return a.SynthesizeScenario(ctx, scenario.FreeChatPrompt(topic))
}

// Reports lists archived sessions. Without an archive the list is empty.
func (a *App) Reports(ctx context.Context, opts archive.ListOptions) ([]archive.Record, error) {
	if a.archive == nil {
		return []archive.Record{}, nil
	}
	return a.archive.List(ctx, opts)
}

// Checkers returns the readiness checks of the app.
func (a *App) Checkers() []health.Checker {
	checkers := []health.Checker{
		health.Configured("llm", func() bool { return a.providers.LLM != nil }),
	}
	if a.pinger != nil {
		checkers = append(checkers, health.Ping("archive", a.pinger))
	}
	return checkers
}

// VoiceOptions configures the speech endpoints of one voice connection.
type VoiceOptions struct {
	// Sink receives synthesized PCM.
	Sink speech.Sink

	// Input is the format of microphone PCM. Default: [audio.Recognition].
	Input audio.Format

	OnPlayback func(messageID string)
	OnPartial  func(text string)
}

// NewVoice returns the player and capture for one voice connection to e.
// Recognised speech is snapped onto the session's AI name and key phrases.
func (a *App) NewVoice(e *Entry, opts VoiceOptions) (*speech.Player, *speech.Capture) {
	player := speech.NewPlayer(a.providers.TTS, a.voiceProfile(), opts.Sink,
		speech.OnPlaybackChange(opts.OnPlayback),
		speech.WithPlayerMetrics(a.metrics),
	)
	capture := speech.NewCapture(a.providers.STT, speech.CaptureConfig{
		Input:      opts.Input,
		Vocabulary: phonetic.Vocabulary(e.Session.AIName(), e.Session.Scenario().Phrases()),
		OnPartial:  opts.OnPartial,
		Metrics:    a.metrics,
	})
	return player, capture
}

// voiceProfile converts the configured voice. Pitch shift is given in
// semitones.
func (a *App) voiceProfile() types.VoiceProfile {
	v := a.cfg.Practice.Voice
	profile := types.VoiceProfile{
		ID:          v.VoiceID,
		Provider:    a.cfg.Providers.TTS.Name,
		SpeedFactor: v.SpeedFactor,
		PitchFactor: 1,
	}
	if v.PitchShift != 0 {
		profile.PitchFactor = math.Pow(2, v.PitchShift/12)
	}
	return profile
}

// ApplyConfig applies the hot-reloadable part of a config change: the log
// level and the scenarios listed in the file. Built-in and custom scenarios
// are left alone.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}

	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(LogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range d.ScenariosRemoved {
		if _, ours := a.userScenarios[id]; !ours {
			continue
		}
		if err := a.catalog.Remove(id); err != nil {
			slog.Warn("remove scenario failed", "scenario", id, "err", err)
		}
		delete(a.userScenarios, id)
	}
	for _, s := range d.ScenariosChanged {
		if _, ours := a.userScenarios[s.ID]; ours {
			_ = a.catalog.Remove(s.ID)
		}
		a.addUserScenarioLocked(s)
	}
	for _, s := range d.ScenariosAdded {
		a.addUserScenarioLocked(s)
	}
	slog.Info("scenarios reloaded",
		"added", len(d.ScenariosAdded),
		"changed", len(d.ScenariosChanged),
		"removed", len(d.ScenariosRemoved),
	)
}

func (a *App) addUserScenarioLocked(s scenario.Scenario) {
	added, err := a.catalog.Add(s)
	if err != nil {
		slog.Warn("add scenario failed", "scenario", s.ID, "err", err)
		return
	}
	a.userScenarios[added.ID] = struct{}{}
}

// LogLevel converts a config log level to its slog level.
func LogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Run serves handler on the configured address and, when a watcher was
// given, follows config changes. It blocks until ctx is cancelled, then
// shuts the HTTP server down gracefully and returns nil. A listener failure
// is returned as is.
func (a *App) Run(ctx context.Context, handler http.Handler) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve %s: %w", srv.Addr, err)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	slog.Info("app running", "addr", srv.Addr, "tls", a.cfg.Server.TLS != nil)
	return g.Wait()
}

// Shutdown ends every live session and releases subsystems in order. It
// respects the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "sessions", a.sessions.Len(), "closers", len(a.closers))
		a.sessions.CloseAll(ctx)

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
