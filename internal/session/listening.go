package session

import (
	"context"
	"fmt"

	"github.com/MrWong99/lingoxa/internal/observe"
	"github.com/MrWong99/lingoxa/internal/scenario"
	"github.com/MrWong99/lingoxa/internal/transcript"
)

// ListeningPhase is the quiz state of a listening session. It is empty for
// conversation sessions.
type ListeningPhase string

const (
	ListeningReady    ListeningPhase = "ready"
	ListeningActive   ListeningPhase = "listening"
	ListeningWaiting  ListeningPhase = "waiting_for_answer"
	ListeningEvaluate ListeningPhase = "evaluating"
	ListeningFinished ListeningPhase = "finished"
)

// StartListening requests the story and the first question. Both are
// appended only when both requests succeed; on failure the session returns
// to [ListeningReady].
func (s *Session) StartListening(ctx context.Context) ([]transcript.Message, error) {
	s.mu.Lock()
	if s.persona.Scenario.Kind != scenario.KindListening || s.phase != PhaseChatting || s.listening != ListeningReady {
		s.mu.Unlock()
		return nil, ErrWrongPhase
	}
	token, err := s.beginLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.listening = ListeningActive
	history := s.transcript.Messages()
	s.mu.Unlock()

	story, err := s.gen.Story(ctx, s.persona, history)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleLocked(token) {
		return nil, ErrStale
	}
	s.busy = false
	if err != nil {
		s.listening = ListeningReady
		observe.Logger(ctx).Warn("listening story failed", "session_id", s.id, "err", err)
		return nil, fmt.Errorf("session: listening story: %w", err)
	}
	s.story = story.Text
	storyMsg := s.transcript.Append(transcript.RoleAI, StoryPrefix+story.Text)
	question := s.transcript.Append(transcript.RoleAI, story.FirstQuestion)
	s.listening = ListeningWaiting
	return []transcript.Message{storyMsg, question}, nil
}

// answer evaluates a listening answer. The answer stays in the transcript
// even when the evaluation fails; the quiz then waits for a new answer.
func (s *Session) answer(ctx context.Context, text string) ([]transcript.Message, error) {
	s.mu.Lock()
	if s.phase != PhaseChatting || s.listening != ListeningWaiting {
		s.mu.Unlock()
		return nil, ErrWrongPhase
	}
	token, err := s.beginLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	var question string
	if q, ok := s.transcript.LastBy(transcript.RoleAI); ok {
		question = q.Text
	}
	story := s.story
	user := s.transcript.Append(transcript.RoleUser, text)
	s.listening = ListeningEvaluate
	s.mu.Unlock()

	ev, err := s.gen.Evaluate(ctx, story, question, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleLocked(token) {
		return nil, ErrStale
	}
	s.busy = false
	if err != nil {
		s.listening = ListeningWaiting
		observe.Logger(ctx).Warn("listening evaluation failed", "session_id", s.id, "err", err)
		return []transcript.Message{user}, fmt.Errorf("session: listening evaluation: %w", err)
	}
	feedback := s.transcript.Append(transcript.RoleAI, ev.Feedback)
	next := s.transcript.Append(transcript.RoleAI, ev.NextQuestion)
	if ev.IsFinished {
		s.listening = ListeningFinished
	} else {
		s.listening = ListeningWaiting
	}
	return []transcript.Message{user, feedback, next}, nil
}
