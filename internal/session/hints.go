package session

import (
	"context"
)

// Hints returns the current hint set. It starts as the scenario's key
// phrases.
func (s *Session) Hints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.hints...)
}

// RefreshHints asks for phrases that fit the last few messages and returns
// the resulting hint set. A failed or empty response leaves the previous set
// in place and is not reported as an error. Concurrent refreshes share one
// request.
//
// Hint refresh does not mark the session busy and may run alongside a
// submission.
func (s *Session) RefreshHints(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	if s.phase != PhaseChatting && s.phase != PhaseRetryGated {
		s.mu.Unlock()
		return nil, ErrWrongPhase
	}
	token := s.generation
	recent := s.transcript.Tail(s.hintWindow)
	s.mu.Unlock()

	v, err, _ := s.hintGroup.Do(token, func() (any, error) {
		hints, err := s.gen.Hints(ctx, s.persona, recent)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.staleLocked(token) {
			return nil, ErrStale
		}
		if err != nil {
			return append([]string(nil), s.hints...), nil
		}
		if len(hints) > 0 {
			s.hints = hints
		}
		return append([]string(nil), s.hints...), nil
	})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), v.([]string)...), nil
}
