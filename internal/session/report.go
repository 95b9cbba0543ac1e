package session

import (
	"context"
	"fmt"

	"github.com/MrWong99/lingoxa/internal/observe"
	"github.com/MrWong99/lingoxa/internal/tutor"
)

// Finish ends the conversation and requests the learning report over the
// full transcript. A transcript of one message or fewer yields
// [ErrInsufficientContent] without any request. On failure the session still
// moves to the reporting phase with status [ReportFailed]; the report is
// never retried.
func (s *Session) Finish(ctx context.Context) (tutor.Report, error) {
	s.mu.Lock()
	if s.phase != PhaseChatting && s.phase != PhaseRetryGated {
		s.mu.Unlock()
		return tutor.Report{}, ErrWrongPhase
	}
	if s.busy {
		s.mu.Unlock()
		return tutor.Report{}, ErrBusy
	}
	if s.transcript.Len() <= 1 {
		s.mu.Unlock()
		return tutor.Report{}, ErrInsufficientContent
	}
	token, _ := s.beginLocked()
	s.phase = PhaseReporting
	s.reportStatus = ReportGenerating
	msgs := s.transcript.Messages()
	s.mu.Unlock()

	report, err := s.gen.Report(ctx, msgs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleLocked(token) {
		return tutor.Report{}, ErrStale
	}
	s.busy = false
	if err != nil {
		s.reportStatus = ReportFailed
		s.reportErr = fmt.Sprintf("Failed to generate the report: %v", err)
		s.metrics.RecordReport(ctx, observe.StatusError)
		observe.Logger(ctx).Warn("report failed", "session_id", s.id, "err", err)
		return tutor.Report{}, fmt.Errorf("session: report: %w", err)
	}
	s.reportStatus = ReportReady
	s.report = &report
	s.metrics.RecordReport(ctx, observe.StatusOK)
	observe.Logger(ctx).Info("report ready", "session_id", s.id, "fluency_score", report.FluencyScore)
	return report, nil
}

// Report returns the finished report, if any.
func (s *Session) Report() (tutor.Report, ReportStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return tutor.Report{}, s.reportStatus, false
	}
	return *s.report, s.reportStatus, true
}
