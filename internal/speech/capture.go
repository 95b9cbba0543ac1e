package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/MrWong99/lingoxa/internal/observe"
	"github.com/MrWong99/lingoxa/internal/transcript/phonetic"
	"github.com/MrWong99/lingoxa/pkg/audio"
	"github.com/MrWong99/lingoxa/pkg/provider/stt"
	"github.com/MrWong99/lingoxa/pkg/types"
)

// ErrNotCapturing is returned by Stop and Write when no capture is running.
var ErrNotCapturing = errors.New("speech: not capturing")

// CaptureState is the state of a [Capture].
type CaptureState string

const (
	CaptureIdle      CaptureState = "idle"
	CaptureCapturing CaptureState = "capturing"

	// CaptureBlocked follows a permission failure and lasts until
	// Acknowledge.
	CaptureBlocked CaptureState = "blocked"
)

// CaptureConfig configures a [Capture].
type CaptureConfig struct {
	// Input is the format of the PCM passed to Write. Default:
	// [audio.Recognition].
	Input audio.Format

	// Language is the BCP-47 recognition language. Default: "en-US".
	Language string

	// Vocabulary lists names and phrases recognised text is snapped onto.
	// They are also sent to the recognizer as keyword boosts.
	Vocabulary []string

	// OnPartial receives interim recognition results. May be nil.
	OnPartial func(text string)

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Capture records one utterance at a time through a streaming recognizer.
//
// All methods are safe for concurrent use.
type Capture struct {
	stt     stt.Provider
	cfg     CaptureConfig
	matcher *phonetic.Matcher

	mu     sync.Mutex
	state  CaptureState
	active *utterance
}

// utterance is one recognition stream. finals is written by the collector
// only and may be read once done is closed.
type utterance struct {
	handle stt.SessionHandle
	finals []string
	done   chan struct{}
}

// NewCapture returns an idle Capture. A nil provider yields a Capture whose
// Start always reports [ErrUnavailable].
func NewCapture(provider stt.Provider, cfg CaptureConfig) *Capture {
	if !cfg.Input.Valid() {
		cfg.Input = audio.Recognition
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Capture{stt: provider, cfg: cfg, matcher: phonetic.New(), state: CaptureIdle}
}

// Available reports whether a recognition backend is configured.
func (c *Capture) Available() bool { return c.stt != nil }

// State returns the current state.
func (c *Capture) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens a recognition stream. Pending text from an earlier capture is
// discarded. A permission failure moves the capture to [CaptureBlocked].
func (c *Capture) Start(ctx context.Context) error {
	if c.stt == nil {
		return ErrUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case CaptureBlocked:
		return ErrBlocked
	case CaptureCapturing:
		return nil
	}

	handle, err := c.stt.StartStream(ctx, stt.StreamConfig{
		SampleRate: audio.Recognition.SampleRate,
		Channels:   audio.Recognition.Channels,
		Language:   c.cfg.Language,
		Keywords: lo.Map(c.cfg.Vocabulary, func(v string, _ int) types.KeywordBoost {
			return types.KeywordBoost{Keyword: v}
		}),
	})
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			c.state = CaptureBlocked
		}
		return fmt.Errorf("speech: start capture: %w", err)
	}

	u := &utterance{handle: handle, done: make(chan struct{})}
	c.state, c.active = CaptureCapturing, u
	go c.collect(u)
	return nil
}

// collect gathers finals and forwards partials until the handle closes both
// channels.
func (c *Capture) collect(u *utterance) {
	defer close(u.done)
	partials, finals := u.handle.Partials(), u.handle.Finals()
	for partials != nil || finals != nil {
		select {
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			if c.cfg.OnPartial != nil {
				c.cfg.OnPartial(t.Text)
			}
		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			if text := strings.TrimSpace(t.Text); text != "" {
				u.finals = append(u.finals, text)
			}
		}
	}
}

// Write feeds microphone PCM in the configured input format.
func (c *Capture) Write(pcm []byte) error {
	c.mu.Lock()
	u := c.active
	c.mu.Unlock()
	if u == nil {
		return ErrNotCapturing
	}
	return u.handle.SendAudio(audio.Convert(pcm, c.cfg.Input, audio.Recognition))
}

// Stop closes the stream and returns the recognised text snapped onto the
// vocabulary.
func (c *Capture) Stop(ctx context.Context) (string, error) {
	c.mu.Lock()
	u := c.active
	if u == nil {
		c.mu.Unlock()
		return "", ErrNotCapturing
	}
	c.state, c.active = CaptureIdle, nil
	c.mu.Unlock()

	start := time.Now()
	closeErr := u.handle.Close()
	select {
	case <-u.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	c.cfg.Metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	text := strings.Join(u.finals, " ")

	if closeErr != nil {
		observe.Logger(ctx).Warn("closing recognition stream", "err", closeErr)
	}
	snapped, subs := c.matcher.Snap(text, c.cfg.Vocabulary)
	if len(subs) > 0 {
		observe.Logger(ctx).Debug("snapped recognised speech", "substitutions", len(subs))
	}
	return snapped, nil
}

// Toggle starts a capture when idle and stops it when capturing. The text is
// only set when a capture was stopped.
func (c *Capture) Toggle(ctx context.Context) (state CaptureState, text string, err error) {
	if c.State() == CaptureCapturing {
		text, err = c.Stop(ctx)
		return c.State(), text, err
	}
	err = c.Start(ctx)
	return c.State(), "", err
}

// Fail reports a capture error raised on the learner's device. The running
// capture, if any, is stopped without returning text. Permission failures
// block further captures until [Capture.Acknowledge].
func (c *Capture) Fail(cause error) CaptureState {
	c.mu.Lock()
	u := c.active
	c.active = nil
	if errors.Is(cause, ErrPermissionDenied) {
		c.state = CaptureBlocked
	} else {
		c.state = CaptureIdle
	}
	state := c.state
	c.mu.Unlock()

	if u != nil {
		_ = u.handle.Close()
	}
	return state
}

// Acknowledge leaves [CaptureBlocked].
func (c *Capture) Acknowledge() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CaptureBlocked {
		c.state = CaptureIdle
	}
	return c.state
}
