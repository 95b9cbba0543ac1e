package speech

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrWong99/lingoxa/internal/observe"
	"github.com/MrWong99/lingoxa/pkg/audio"
	"github.com/MrWong99/lingoxa/pkg/provider/tts"
	"github.com/MrWong99/lingoxa/pkg/types"
)

var (
	// ErrUnavailable is returned when no speech backend is configured. The
	// matching control should be shown as disabled.
	ErrUnavailable = errors.New("speech: not available")

	// ErrPermissionDenied marks a capture failure caused by the learner's
	// device refusing microphone access.
	ErrPermissionDenied = errors.New("speech: microphone permission denied")

	// ErrBlocked is returned by Capture.Start until a permission failure has
	// been acknowledged.
	ErrBlocked = errors.New("speech: capture is blocked")
)

// Sink receives synthesized PCM in playback order.
type Sink func(ctx context.Context, pcm []byte) error

// PlayerOption configures a [Player].
type PlayerOption func(*Player)

// OnPlaybackChange registers fn to be called with the message ID that is
// now playing, or "" when playback stopped or finished.
func OnPlaybackChange(fn func(messageID string)) PlayerOption {
	return func(p *Player) { p.onChange = fn }
}

// WithPlayerMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithPlayerMetrics(m *observe.Metrics) PlayerOption {
	return func(p *Player) { p.metrics = m }
}

// Player speaks one message at a time. Starting another message preempts the
// current one; toggling the current message stops it.
//
// All methods are safe for concurrent use.
type Player struct {
	tts      tts.Provider
	voice    types.VoiceProfile
	sink     Sink
	onChange func(string)
	metrics  *observe.Metrics

	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPlayer returns a Player that synthesizes with provider and writes audio
// to sink. A nil provider yields a Player whose Toggle always reports
// [ErrUnavailable].
func NewPlayer(provider tts.Provider, voice types.VoiceProfile, sink Sink, opts ...PlayerOption) *Player {
	p := &Player{tts: provider, voice: voice, sink: sink}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Available reports whether a synthesis backend is configured.
func (p *Player) Available() bool { return p.tts != nil }

// Current returns the ID of the message being spoken, or "".
func (p *Player) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Toggle speaks text as messageID. If messageID is already playing it is
// stopped instead. It reports whether messageID is playing afterwards.
func (p *Player) Toggle(ctx context.Context, messageID, text string) (bool, error) {
	if p.tts == nil {
		return false, ErrUnavailable
	}

	p.mu.Lock()
	if p.current == messageID && p.current != "" {
		p.stopLocked()
		p.mu.Unlock()
		p.notify("")
		return false, nil
	}
	p.stopLocked()

	segments := Segments(text)
	if len(segments) == 0 {
		p.mu.Unlock()
		p.notify("")
		return false, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.current, p.cancel, p.done = messageID, cancel, done
	p.mu.Unlock()

	p.notify(messageID)
	go p.run(runCtx, messageID, segments, done)
	return true, nil
}

// Stop ends the current playback, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.current == "" {
		p.mu.Unlock()
		return
	}
	p.stopLocked()
	p.mu.Unlock()
	p.notify("")
}

// stopLocked cancels the running playback. Its goroutine notices that it no
// longer owns the slot and exits quietly. p.mu must be held.
func (p *Player) stopLocked() {
	if p.cancel != nil {
		p.cancel()
	}
	p.current, p.cancel, p.done = "", nil, nil
}

func (p *Player) run(ctx context.Context, messageID string, segments []Segment, done chan struct{}) {
	err := p.speak(ctx, segments)

	p.mu.Lock()
	owner := p.done == done
	if owner {
		p.cancel()
		p.current, p.cancel, p.done = "", nil, nil
	}
	p.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		observe.Logger(ctx).Warn("playback failed", "message_id", messageID, "err", err)
	}
	if owner {
		p.notify("")
	}
}

// speak synthesizes every segment in order and feeds the audio to the sink.
func (p *Player) speak(ctx context.Context, segments []Segment) error {
	start := time.Now()
	defer func() { p.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds()) }()

	for _, seg := range segments {
		voice := p.voice
		voice.SpeedFactor = scale(voice.SpeedFactor, seg.Rate)
		voice.PitchFactor = scale(voice.PitchFactor, seg.Pitch)

		in := make(chan string, 1)
		in <- seg.Text
		close(in)

		stream, err := p.tts.SynthesizeStream(ctx, in, voice)
		if err != nil {
			return err
		}
		for chunk := range stream {
			if err := p.sink(ctx, chunk); err != nil {
				audio.Drain(stream)
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Player) notify(messageID string) {
	if p.onChange != nil {
		p.onChange(messageID)
	}
}

// scale applies factor to a voice parameter whose zero value means 1.
func scale(base, factor float64) float64 {
	if base == 0 {
		base = 1
	}
	return base * factor
}
