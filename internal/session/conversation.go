package session

import (
	"context"
	"fmt"

	"github.com/MrWong99/lingoxa/internal/observe"
	"github.com/MrWong99/lingoxa/internal/transcript"
)

// converse runs one conversation turn: append the submission, check it, and
// either gate on the correction or ask for the reply.
func (s *Session) converse(ctx context.Context, text string) ([]transcript.Message, error) {
	s.mu.Lock()
	if s.phase != PhaseChatting && s.phase != PhaseRetryGated {
		s.mu.Unlock()
		return nil, ErrWrongPhase
	}
	token, err := s.beginLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	history := s.transcript.Messages()
	user := s.transcript.Append(transcript.RoleUser, text)
	s.mu.Unlock()

	log := observe.Logger(ctx).With("session_id", s.id)

	correction, err := s.gen.Correct(ctx, text, history)

	s.mu.Lock()
	if s.staleLocked(token) {
		s.mu.Unlock()
		return nil, ErrStale
	}
	if err != nil {
		log.Warn("correction check failed", "err", err)
		apology := s.failTurnLocked()
		s.mu.Unlock()
		return []transcript.Message{user, apology}, nil
	}
	if correction != nil {
		user, err = s.transcript.AttachCorrection(user.ID, *correction)
		if err != nil {
			s.busy = false
			s.mu.Unlock()
			return nil, fmt.Errorf("session: %w", err)
		}
		s.phase = PhaseRetryGated
		s.busy = false
		s.mu.Unlock()

		s.metrics.RecordCorrection(ctx, correction.IsTranslationSuggestion)
		log.Debug("submission corrected", "translation", correction.IsTranslationSuggestion)
		return []transcript.Message{user}, nil
	}
	s.phase = PhaseChatting
	s.mu.Unlock()

	reply, err := s.gen.Reply(ctx, s.persona, history, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleLocked(token) {
		return nil, ErrStale
	}
	if err != nil {
		log.Warn("reply failed", "err", err)
		return []transcript.Message{user, s.failTurnLocked()}, nil
	}
	ai := s.transcript.Append(transcript.RoleAI, reply)
	s.busy = false
	return []transcript.Message{user, ai}, nil
}

// failTurnLocked ends a failed conversation turn: the gate is cleared and the
// apology becomes the AI turn. s.mu must be held.
func (s *Session) failTurnLocked() transcript.Message {
	s.phase = PhaseChatting
	s.busy = false
	return s.transcript.Append(transcript.RoleAI, ApologyText)
}
