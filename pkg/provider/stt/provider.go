// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a real-time transcription service (e.g. Deepgram)
// behind a streaming interface. Once opened, a SessionHandle accepts raw PCM
// audio frames and emits low-latency partial transcripts and authoritative
// final transcripts. Microphone capture in the practice session opens one
// stream per recording and joins the finals when the learner stops.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/lingoxa/pkg/types"
)

var (
	// ErrSessionClosed is returned by SendAudio after Close.
	ErrSessionClosed = errors.New("stt: session is closed")

	// ErrNotSupported is returned for optional operations a backend lacks.
	ErrNotSupported = errors.New("stt: operation not supported")
)

// StreamConfig describes the audio format and recognition hints for a new
// STT session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Zero selects the provider default.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g. "en-US").
	// Empty selects the provider default.
	Language string

	// Keywords biases recognition towards scenario vocabulary such as key
	// phrases and the partner's name.
	Keywords []types.KeywordBoost
}

// SessionHandle represents an open STT streaming session.
//
// Callers must call Close when done. All methods must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio. Calling SendAudio after
	// Close returns ErrSessionClosed.
	SendAudio(chunk []byte) error

	// Partials emits interim transcripts. Closed when the session ends.
	Partials() <-chan types.Transcript

	// Finals emits committed transcripts. Closed when the session ends.
	Finals() <-chan types.Transcript

	// SetKeywords replaces the keyword list mid-session. Backends that cannot
	// do this return an error wrapping ErrNotSupported.
	SetKeywords(keywords []types.KeywordBoost) error

	// Close flushes pending audio and releases resources. Partials and Finals
	// are closed once Close returns. Calling Close more than once is safe.
	Close() error
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// StartStream opens a new streaming transcription session. The caller
	// owns the returned SessionHandle and must Close it.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
