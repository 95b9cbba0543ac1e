// Package mock provides test doubles for the stt package interfaces.
//
// Provider hands out Sessions. A Session records the audio it receives and
// emits FinalTexts as final transcripts when it is closed, which mirrors how a
// streaming backend flushes its last results.
//
// Example:
//
//	p := &mock.Provider{FinalTexts: []string{"could I get a latte"}}
//	handle, _ := p.StartStream(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lingoxa/pkg/provider/stt"
	"github.com/MrWong99/lingoxa/pkg/types"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// FinalTexts is emitted by each new session as final transcripts on Close.
	FinalTexts []string

	// StartStreamErr, if non-nil, is returned from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall

	// Sessions holds every session handed out, in order.
	Sessions []*Session
}

var _ stt.Provider = (*Provider)(nil)

// StartStream records the call and returns a new Session.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	s := NewSession(p.FinalTexts...)
	p.Sessions = append(p.Sessions, s)
	return s, nil
}

// Calls returns a copy of the recorded StartStream calls.
func (p *Provider) Calls() []StartStreamCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]StartStreamCall(nil), p.StartStreamCalls...)
}

// Session is a mock implementation of stt.SessionHandle.
type Session struct {
	mu sync.Mutex

	partials chan types.Transcript
	finals   chan types.Transcript
	texts    []string
	closed   bool

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	audio      [][]byte
	closeCalls int
}

var _ stt.SessionHandle = (*Session)(nil)

// NewSession returns a Session that emits finals on Close.
func NewSession(finals ...string) *Session {
	return &Session{
		partials: make(chan types.Transcript, 16),
		finals:   make(chan types.Transcript, len(finals)+1),
		texts:    append([]string(nil), finals...),
	}
}

// SendAudio records a copy of chunk.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stt.ErrSessionClosed
	}
	if s.SendAudioErr != nil {
		return s.SendAudioErr
	}
	s.audio = append(s.audio, append([]byte(nil), chunk...))
	return nil
}

// EmitPartial sends an interim transcript.
func (s *Session) EmitPartial(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.partials <- types.Transcript{Text: text}
}

func (s *Session) Partials() <-chan types.Transcript { return s.partials }

func (s *Session) Finals() <-chan types.Transcript { return s.finals }

// SetKeywords always succeeds.
func (s *Session) SetKeywords([]types.KeywordBoost) error { return nil }

// Close emits the configured finals and closes both channels.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if s.closed {
		return nil
	}
	s.closed = true
	for _, text := range s.texts {
		s.finals <- types.Transcript{Text: text, IsFinal: true}
	}
	close(s.finals)
	close(s.partials)
	return nil
}

// AudioChunks returns the number of SendAudio calls that were accepted.
func (s *Session) AudioChunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audio)
}

// CloseCalls returns how often Close was called.
func (s *Session) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}
